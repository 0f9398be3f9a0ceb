package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sambeau/endf/config"
	"github.com/sambeau/endf/pkg/endf/endf"
	endferrors "github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/interp"
	"github.com/sambeau/endf/pkg/endf/logging"
)

// Version information, set at build time via -ldflags
var (
	Version = "dev"     // -X main.Version=$(git describe --tags --always)
	Commit  = "unknown" // -X main.Commit=$(git rev-parse --short HEAD)
)

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// errReported is returned once the details of a failure, or the usage
// text, have already been printed.
var errReported = errors.New("failed")

// run is the main entry point, designed for testability
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errReported
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	case "-V", "--version", "version":
		fmt.Fprintf(stdout, "endf version %s (%s)\n", Version, Commit)
		return nil
	case "parse":
		return runParse(args[1:], stdout, stderr, getenv)
	case "write":
		return runWrite(args[1:], stdout, stderr, getenv)
	case "check":
		return runCheck(args[1:], stdout, stderr, getenv)
	case "explain":
		return runExplain(args[1:], stdout, stderr, getenv)
	case "recipes":
		return runRecipes(ctx, args[1:], stdout, stderr, getenv)
	}

	printUsage(stderr)
	return fmt.Errorf("unknown command: %s", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `endf - ENDF-6 tape reader and writer version %s

Usage:
  endf <command> [options] [args]

Commands:
  parse FILE              Parse a tape and print its sections as YAML
  write FILE.yaml         Write sections from YAML back to a tape
  check FILE...           Report which sections of each tape parse
  explain MF/MT/PATH...   Describe recipe variables, e.g. 3/1/QM
  recipes [DIR]           Compile a recipe directory (built-in recipes by default)

Global Options:
  -c, --config <file>     Path to config file (default: $ENDF_CONFIG, ./endf.yaml,
                          ~/.config/endf/endf.yaml)
  -h, --help              Show this help message
  -V, --version           Show version information

Parse Options:
  -o, --output <file>     Write YAML to a file instead of stdout
  --strict                Fail on the first section that does not parse
  --include <specs>       Only parse these sections, e.g. 3,4/2
  --exclude <specs>       Keep these sections as raw lines
  -v, --verbose           Show the records read before a failure

Write Options:
  -o, --output <file>     Write the tape to a file instead of stdout
  --no-linenum            Leave columns 76-80 empty

Recipes Options:
  -w, --watch             Recompile whenever a recipe changes

Files ending in .gz are compressed and decompressed automatically.

Examples:
  endf parse n-026_Fe_056.endf -o fe56.yaml
  endf parse --include 3 n-026_Fe_056.endf.gz
  endf write fe56.yaml -o fe56.endf
  endf check *.endf
  endf explain 3/1/QM 5/18/contribution/1/LF
  endf recipes --watch ./recipes
`, Version)
}

// commandFlags holds the flags shared by every command.
type commandFlags struct {
	*flag.FlagSet
	configPath string
	help       bool
}

func newFlagSet(name string) *commandFlags {
	f := &commandFlags{FlagSet: flag.NewFlagSet("endf "+name, flag.ContinueOnError)}
	f.SetOutput(io.Discard)
	f.StringVar(&f.configPath, "c", "", "Path to config file")
	f.StringVar(&f.configPath, "config", "", "Path to config file")
	f.BoolVar(&f.help, "h", false, "Show help")
	f.BoolVar(&f.help, "help", false, "Show help")
	return f
}

// parse reads flags and positional arguments in any order. It returns
// false when help was requested and printed.
func (f *commandFlags) parse(args []string, stdout, stderr io.Writer) ([]string, bool, error) {
	var positional []string
	for {
		if err := f.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				printUsage(stdout)
				return nil, false, nil
			}
			printUsage(stderr)
			return nil, false, err
		}
		if f.NArg() == 0 {
			break
		}
		positional = append(positional, f.Arg(0))
		args = f.Args()[1:]
	}
	if f.help {
		printUsage(stdout)
		return nil, false, nil
	}
	return positional, true, nil
}

// session is the configured state a command runs with.
type session struct {
	cfg      *config.Config
	log      logging.Logger
	closeLog func() error
	stderr   io.Writer
}

// openSession loads the config, applies overrides and opens the log.
func openSession(configPath string, getenv func(string) string, stdout, stderr io.Writer, override func(*config.Config) error) (*session, error) {
	cfg, _, err := config.LoadWithPath(configPath, getenv)
	if errors.Is(err, config.ErrNotFound) {
		cfg, err = config.Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if override != nil {
		if err := override(cfg); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	for _, warning := range config.Warnings(cfg) {
		fmt.Fprintf(stderr, "warning: %s\n", warning)
	}

	log, closeLog, err := cfg.Logger(stdout, stderr)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, closeLog: closeLog, stderr: stderr}, nil
}

func (s *session) parser() (*endf.Parser, error) {
	opts, err := s.cfg.Options(s.log)
	if err != nil {
		return nil, err
	}
	return endf.New(opts), nil
}

func (s *session) close() {
	if err := s.closeLog(); err != nil {
		fmt.Fprintf(s.stderr, "warning: closing log: %v\n", err)
	}
}

// splitList splits a comma-separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// printError prints err with its structured details when it has them.
func printError(w io.Writer, err error) {
	if errors.Is(err, errReported) {
		return
	}
	var failure *interp.Failure
	if errors.As(err, &failure) {
		if ee, ok := endferrors.As(failure.Err); ok {
			fmt.Fprintln(w, ee.PrettyString())
			return
		}
	}
	if ee, ok := err.(*endferrors.EndfError); ok {
		fmt.Fprintln(w, ee.PrettyString())
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// printReport prints the records read before a failure.
func printReport(w io.Writer, err error) {
	var failure *interp.Failure
	if errors.As(err, &failure) {
		fmt.Fprintln(w, failure.Report())
		return
	}
	printError(w, err)
}
