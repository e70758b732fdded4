package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/offlinefirst/tiptap/internal/buildinfo"
	"github.com/offlinefirst/tiptap/pkg/config"
	"github.com/offlinefirst/tiptap/pkg/logging"
)

type command struct {
	name        string
	description string
	// args describes positional arguments in usage output.
	args        string
	configure   func(fs *flag.FlagSet)
	run         func(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error
	skipInit    bool
}

// AppContext carries the resolved configuration, the process logger and a
// context cancelled on SIGINT or SIGTERM.
type AppContext struct {
	Context context.Context
	Config  config.Config
	Logger  *slog.Logger
}

// Done returns the cancellation context, defaulting to Background for
// contexts built by hand in tests.
func (a *AppContext) Done() context.Context {
	if a == nil || a.Context == nil {
		return context.Background()
	}
	return a.Context
}

// RootCommand parses global flags and dispatches to a subcommand.
type RootCommand struct {
	commands   map[string]command
	stdout     io.Writer
	stderr     io.Writer
	appCtx     *AppContext
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand constructs the CLI dispatcher with its subcommands and global flags.
func NewRootCommand() *RootCommand {
	rc := &RootCommand{
		commands: make(map[string]command),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}

	for _, cmd := range []command{
		newReplayCommand(),
		newServeCommand(),
		newSynthCommand(),
		newVersionCommand(),
	} {
		rc.commands[cmd.name] = cmd
	}
	return rc
}

// Execute evaluates the supplied arguments, parses global flags, and dispatches to a subcommand.
func (rc *RootCommand) Execute(args []string) error {
	rootFlags := flag.NewFlagSet("tiptap", flag.ContinueOnError)
	rootFlags.SetOutput(rc.stderr)
	rootFlags.Usage = func() { rc.printHelp() }

	rootFlags.StringVar(&rc.configPath, "config", "", "Path to config file (default: ./config.yaml if present)")
	rootFlags.StringVar(&rc.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootFlags.StringVar(&rc.logFormat, "log-format", "", "Override log output format (json, console)")

	if err := rootFlags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	remaining := rootFlags.Args()
	if len(remaining) == 0 {
		rc.printHelp()
		return nil
	}

	subcommand, ok := rc.commands[remaining[0]]
	if !ok {
		fmt.Fprintf(rc.stderr, "Unknown command %q\n\n", remaining[0])
		rc.printHelp()
		return fmt.Errorf("unknown command %q", remaining[0])
	}

	fs := flag.NewFlagSet(subcommand.name, flag.ContinueOnError)
	fs.SetOutput(rc.stderr)
	fs.Usage = func() {
		fmt.Fprintf(rc.stdout, "Usage: tiptap %s [flags] %s\n", subcommand.name, subcommand.args)
		if subcommand.description != "" {
			fmt.Fprintln(rc.stdout, subcommand.description)
		}
		fs.SetOutput(rc.stdout)
		fs.PrintDefaults()
		fs.SetOutput(rc.stderr)
	}
	if subcommand.configure != nil {
		subcommand.configure(fs)
	}

	if err := fs.Parse(remaining[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	var appCtx *AppContext
	if !subcommand.skipInit {
		var err error
		if appCtx, err = rc.ensureAppContext(subcommand.name); err != nil {
			return err
		}
		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		appCtx.Context = sigCtx
	}

	return subcommand.run(fs, fs.Args(), appCtx, rc.stdout, rc.stderr)
}

// ensureAppContext loads configuration once, applies flag overrides and builds
// a logger tagged with the running command.
func (rc *RootCommand) ensureAppContext(component string) (*AppContext, error) {
	if rc.appCtx != nil {
		return rc.appCtx, nil
	}

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return nil, err
	}

	if rc.logLevel != "" {
		if cfg.Logging.Level, err = config.NormalizeLogLevel(rc.logLevel); err != nil {
			return nil, err
		}
	}
	if rc.logFormat != "" {
		if cfg.Logging.Format, err = config.NormalizeFormat(rc.logFormat); err != nil {
			return nil, err
		}
	}

	logger, err := logging.New(logging.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    rc.stderr,
		Component: component,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", "source", cfg.Source, "runs_dir", cfg.Paths.RunsDir, "lift_policy", cfg.Recognizer.LiftPolicy)

	rc.appCtx = &AppContext{Config: cfg, Logger: logger}
	return rc.appCtx, nil
}

func (rc *RootCommand) printHelp() {
	fmt.Fprintf(rc.stdout, "tiptap - tip-tap gesture recognizer\nVersion: %s\n\n", versionString())
	fmt.Fprintln(rc.stdout, "Usage: tiptap [global flags] <command> [command flags]")
	fmt.Fprintln(rc.stdout)

	tw := tabwriter.NewWriter(rc.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Global flags:")
	fmt.Fprintln(tw, "  --config string\tPath to config file (default: ./config.yaml if present)")
	fmt.Fprintln(tw, "  --log-level string\tOverride log level (debug, info, warn, error)")
	fmt.Fprintln(tw, "  --log-format string\tOverride log output format (json, console)")
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Commands:")

	names := make([]string, 0, len(rc.commands))
	for name := range rc.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, rc.commands[name].description)
	}
	_ = tw.Flush()
}

func versionString() string {
	v := buildinfo.Version()
	if rev := revision(); rev != "" {
		v += "@" + rev
	}
	return fmt.Sprintf("%s (%s/%s)", v, runtimeVersion(), runtimeGOOS())
}

// Extracted for testability.
var (
	revision       = buildinfo.Revision
	runtimeVersion = runtime.Version
	runtimeGOOS    = func() string { return runtime.GOOS }
)
