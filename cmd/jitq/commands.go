package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sandrolain/jitq/pkg/driver"
)

// ErrNoScript is returned by eval when neither a script nor a file is given.
var ErrNoScript = errors.New("no script given: pass it as an argument or with --file")

// PathCmd applies a path script to newline-delimited JSON.
type PathCmd struct {
	Script string   `arg:"" help:"Path script, for example .a[1]"`
	Files  []string `arg:"" optional:"" type:"existingfile" help:"Input files (stdin when omitted)"`
}

// Run executes the path command
func (cmd *PathCmd) Run(ctx *Context) error {
	bg := context.Background()
	d, err := ctx.newDriver(bg)
	if err != nil {
		return err
	}
	defer d.Close(bg)

	prog, err := d.CompilePath(bg, cmd.Script)
	if err != nil {
		return err
	}
	defer prog.Close(bg)

	if len(cmd.Files) == 0 {
		stats, err := d.RunStream(bg, prog, ctx.Stdin, ctx.Stdout)
		ctx.report("stdin", stats)
		return err
	}

	for _, name := range cmd.Files {
		if err := cmd.runFile(bg, ctx, d, prog, name); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *PathCmd) runFile(bg context.Context, ctx *Context, d *driver.Driver, prog *driver.Program, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	stats, err := d.RunStream(bg, prog, f, ctx.Stdout)
	ctx.report(name, stats)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *Context) report(input string, stats driver.Stats) {
	c.Logger.Info("stream finished",
		"input", input,
		"records", stats.Records,
		"matched", stats.Matched,
		"failed", stats.Failed,
		"invalid", stats.Invalid)
}

// EvalCmd evaluates an expression script and prints its value.
type EvalCmd struct {
	Script string `arg:"" optional:"" help:"Expression script, for example \"let a = 3; a * 2\""`
	File   string `short:"f" type:"existingfile" help:"Read the script from a file"`
}

// Run executes the eval command
func (cmd *EvalCmd) Run(ctx *Context) error {
	src := cmd.Script
	if cmd.File != "" {
		data, err := os.ReadFile(cmd.File)
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
		src = strings.TrimSpace(string(data))
	}
	if src == "" && cmd.File == "" {
		return ErrNoScript
	}

	bg := context.Background()
	d, err := ctx.newDriver(bg)
	if err != nil {
		return err
	}
	defer d.Close(bg)

	prog, err := d.CompileExpressions(bg, src)
	if err != nil {
		return err
	}
	defer prog.Close(bg)

	n, err := prog.Eval(bg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Stdout, n)
	return err
}
