package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/sandrolain/jitq/pkg/driver"
)

// ReplCmd starts an interactive expression shell.
type ReplCmd struct {
	NoHistory bool `help:"Do not read or write the history file"`
}

// Run executes the repl command
func (cmd *ReplCmd) Run(ctx *Context) error {
	bg := context.Background()
	d, err := ctx.newDriver(bg)
	if err != nil {
		return err
	}
	defer d.Close(bg)

	s := &session{driver: d, out: ctx.Stdout, errOut: ctx.Stderr}
	if f, ok := ctx.Stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		history := ctx.Config.REPL.HistoryFile
		if cmd.NoHistory {
			history = ""
		}
		return s.runInteractive(bg, ctx.Config.REPL.Prompt, history)
	}
	return s.runBuffered(bg, ctx.Stdin)
}

// session keeps the statements accepted so far, so that let bindings
// persist across input lines.
type session struct {
	driver *driver.Driver
	stmts  []string
	out    io.Writer
	errOut io.Writer
}

// handle processes one input line. It reports false when the session ends.
func (s *session) handle(ctx context.Context, line string) bool {
	line = strings.TrimSuffix(strings.TrimSpace(line), ";")
	switch line {
	case "":
		return true
	case ":quit", ":q":
		return false
	case ":reset":
		s.stmts = s.stmts[:0]
		return true
	case ":show":
		for _, stmt := range s.stmts {
			fmt.Fprintln(s.out, stmt)
		}
		return true
	}

	n, err := s.eval(ctx, line)
	if err != nil {
		color.New(color.FgRed).Fprintf(s.errOut, "Error: %v\n", err)
		return true
	}
	fmt.Fprintln(s.out, n)
	return true
}

// eval runs the accepted statements followed by line. line is accepted
// only if the whole program compiles and runs.
func (s *session) eval(ctx context.Context, line string) (int64, error) {
	src := strings.Join(append(s.stmts[:len(s.stmts):len(s.stmts)], line), "; ")
	prog, err := s.driver.CompileExpressions(ctx, src)
	if err != nil {
		return 0, err
	}
	defer prog.Close(ctx)

	n, err := prog.Eval(ctx)
	if err != nil {
		return 0, err
	}
	s.stmts = append(s.stmts, line)
	return n, nil
}

func (s *session) runBuffered(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if !s.handle(ctx, sc.Text()) {
			return nil
		}
	}
	return sc.Err()
}

func (s *session) runInteractive(ctx context.Context, prompt, historyPath string) error {
	state := liner.NewLiner()
	defer state.Close()
	state.SetCtrlCAborts(true)

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			state.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
				return
			}
			if f, err := os.Create(historyPath); err == nil {
				state.WriteHistory(f)
				f.Close()
			}
		}()
	}

	for {
		input, err := state.Prompt(prompt)
		if err != nil {
			switch {
			case errors.Is(err, liner.ErrPromptAborted):
				fmt.Fprintln(s.out)
				continue
			case errors.Is(err, io.EOF):
				fmt.Fprintln(s.out)
				return nil
			default:
				return fmt.Errorf("read error: %w", err)
			}
		}
		if trimmed := strings.TrimSpace(input); trimmed != "" {
			state.AppendHistory(trimmed)
		}
		if !s.handle(ctx, input) {
			return nil
		}
	}
}
