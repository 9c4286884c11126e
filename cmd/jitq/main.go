package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/sandrolain/jitq"
	"github.com/sandrolain/jitq/pkg/config"
	"github.com/sandrolain/jitq/pkg/driver"
)

// Context represents the global context for commands
type Context struct {
	Config *config.Config
	Logger *slog.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// newDriver builds a driver from the effective configuration.
func (c *Context) newDriver(ctx context.Context) (*driver.Driver, error) {
	cfg := c.Config
	// printDocument output is only wanted when debugging.
	diag := io.Discard
	if cfg.Debug || cfg.Trace {
		diag = c.Stderr
	}
	return driver.New(ctx,
		driver.WithInterpreter(cfg.Interpreter()),
		driver.WithDebug(cfg.Debug),
		driver.WithTrace(cfg.Trace),
		driver.WithDebugBreak(cfg.Break),
		driver.WithCaching(cfg.Cache.Enabled),
		driver.WithCacheSize(cfg.Cache.Size),
		driver.WithMaxDepth(cfg.Parser.MaxDepth),
		driver.WithDiagnostics(diag),
		driver.WithLogger(c.Logger),
	)
}

// CLI represents the command-line interface
var CLI struct {
	Config  string     `help:"Configuration file path" default:"jitq.yaml"`
	Debug   bool       `help:"Print generated modules to stderr" short:"d"`
	Trace   bool       `help:"Print the document after every path segment"`
	Break   bool       `help:"Call debugBreak at program entry"`
	Engine  string     `help:"Backend: compiler or interpreter"`
	Verbose bool       `help:"Enable verbose logging" short:"v"`
	Color   string     `help:"Colour output: auto, always or never"`
	Path    PathCmd    `cmd:"" default:"withargs" help:"Apply a path script to newline-delimited JSON"`
	Eval    EvalCmd    `cmd:"" help:"Evaluate an expression script"`
	Repl    ReplCmd    `cmd:"" help:"Start an interactive expression shell"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run(ctx *Context) error {
	_, err := fmt.Fprintf(ctx.Stdout, "jitq %s\n", jitq.Version())
	return err
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.Debug {
		cfg.Debug = true
	}
	if CLI.Trace {
		cfg.Trace = true
	}
	if CLI.Break {
		cfg.Break = true
	}
	if CLI.Engine != "" {
		cfg.Engine = CLI.Engine
	}
	if CLI.Color != "" {
		cfg.Color = CLI.Color
	}
	if CLI.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupColor(mode string) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		fd := os.Stderr.Fd()
		color.NoColor = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	}
}

func fatal(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("jitq"),
		kong.Description("Compile path and expression scripts to native code."),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	setupColor(cfg.Color)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	appCtx := &Context{
		Config: cfg,
		Logger: logger,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if err := kctx.Run(appCtx); err != nil {
		fatal(err)
	}
}
