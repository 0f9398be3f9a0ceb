package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sambeau/endf/config"
	"github.com/sambeau/endf/pkg/endf/endf"
	"github.com/sambeau/endf/pkg/endf/engine"
	"github.com/sambeau/endf/pkg/endf/recipes"
)

// runParse implements 'endf parse FILE'
func runParse(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := newFlagSet("parse")
	var output, include, exclude string
	var strict, verbose bool
	flags.StringVar(&output, "o", "", "Output file")
	flags.StringVar(&output, "output", "", "Output file")
	flags.BoolVar(&strict, "strict", false, "Fail on the first section that does not parse")
	flags.StringVar(&include, "include", "", "Sections to parse")
	flags.StringVar(&exclude, "exclude", "", "Sections to keep raw")
	flags.BoolVar(&verbose, "v", false, "Show the records read before a failure")
	flags.BoolVar(&verbose, "verbose", false, "Show the records read before a failure")

	files, ok, err := flags.parse(args, stdout, stderr)
	if !ok {
		return err
	}
	if len(files) != 1 {
		return fmt.Errorf("parse needs exactly one file")
	}

	s, err := openSession(flags.configPath, getenv, stdout, stderr, func(cfg *config.Config) error {
		if strict {
			cfg.Parse.Strict = true
		}
		if include != "" {
			cfg.Parse.Include = splitList(include)
		}
		if exclude != "" {
			cfg.Parse.Exclude = splitList(exclude)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.parser()
	if err != nil {
		return err
	}
	res, err := p.ParseFile(files[0])
	if err != nil {
		if verbose {
			printReport(stderr, err)
			return errReported
		}
		return err
	}

	if output != "" {
		return endf.WriteYAMLFile(output, res)
	}
	return endf.WriteYAML(stdout, res)
}

// runWrite implements 'endf write FILE.yaml'
func runWrite(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := newFlagSet("write")
	var output string
	var noLinenum bool
	flags.StringVar(&output, "o", "", "Output file")
	flags.StringVar(&output, "output", "", "Output file")
	flags.BoolVar(&noLinenum, "no-linenum", false, "Leave columns 76-80 empty")

	files, ok, err := flags.parse(args, stdout, stderr)
	if !ok {
		return err
	}
	if len(files) != 1 {
		return fmt.Errorf("write needs exactly one YAML file")
	}

	s, err := openSession(flags.configPath, getenv, stdout, stderr, func(cfg *config.Config) error {
		if noLinenum {
			cfg.Write.IncludeLinenum = false
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.parser()
	if err != nil {
		return err
	}
	res, err := endf.ReadYAMLFile(files[0])
	if err != nil {
		return err
	}

	if output != "" {
		return p.WriteFile(output, res)
	}
	lines, err := p.Write(res)
	if err != nil {
		return err
	}
	return endf.Write(stdout, lines)
}

// checkStats counts the sections of one or more tapes by outcome.
type checkStats struct {
	parsed, raw, failed, lines int
}

func (c checkStats) sections() int { return c.parsed + c.raw + c.failed }

// runCheck implements 'endf check FILE...'
func runCheck(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := newFlagSet("check")
	var verbose bool
	flags.BoolVar(&verbose, "v", false, "Show the records read before each failure")
	flags.BoolVar(&verbose, "verbose", false, "Show the records read before each failure")

	files, ok, err := flags.parse(args, stdout, stderr)
	if !ok {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("check needs at least one file")
	}

	s, err := openSession(flags.configPath, getenv, stdout, stderr, func(cfg *config.Config) error {
		cfg.Parse.Strict = false
		return nil
	})
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.parser()
	if err != nil {
		return err
	}

	printer := message.NewPrinter(language.English)
	var total checkStats
	var unreadable int
	for _, file := range files {
		res, err := p.ParseFile(file)
		if err != nil {
			fmt.Fprintf(stdout, "%s\n  %s %v\n", file, color.RedString("unreadable"), err)
			unreadable++
			continue
		}
		fmt.Fprintln(stdout, file)
		stats := checkResult(stdout, stderr, printer, res, verbose)
		total.parsed += stats.parsed
		total.raw += stats.raw
		total.failed += stats.failed
		total.lines += stats.lines
	}

	printer.Fprintf(stdout, "%d sections: %d parsed, %d raw, %d failed (%d lines)\n",
		total.sections(), total.parsed, total.raw, total.failed, total.lines)

	switch {
	case unreadable > 0:
		return fmt.Errorf("%d of %d files could not be read", unreadable, len(files))
	case total.failed > 0:
		return fmt.Errorf("%d of %d sections failed to parse", total.failed, total.sections())
	}
	return nil
}

func checkResult(stdout, stderr io.Writer, printer *message.Printer, res *engine.Result, verbose bool) checkStats {
	var stats checkStats
	for _, sec := range res.Sections() {
		var status string
		var lines int
		switch {
		case sec.Parsed():
			status = color.GreenString("%-7s", "parsed")
			stats.parsed++
		case sec.Err != nil:
			status = color.RedString("%-7s", "failed")
			lines = len(sec.Raw)
			stats.failed++
		default:
			status = color.YellowString("%-7s", "raw")
			lines = len(sec.Raw)
			stats.raw++
		}
		stats.lines += lines

		name := fmt.Sprintf("MF%d/MT%d", sec.MF, sec.MT)
		if lines > 0 {
			printer.Fprintf(stdout, "  %-12s %s %8d lines\n", name, status, lines)
		} else {
			printer.Fprintf(stdout, "  %-12s %s\n", name, status)
		}
		if sec.Err != nil {
			fmt.Fprintf(stdout, "    %s\n", firstLine(sec.Err.Error()))
			if verbose {
				printReport(stderr, sec.Err)
			}
		}
	}
	return stats
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// runExplain implements 'endf explain MF/MT/PATH...'
func runExplain(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := newFlagSet("explain")
	paths, ok, err := flags.parse(args, stdout, stderr)
	if !ok {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("explain needs at least one MF/MT/name path")
	}

	s, err := openSession(flags.configPath, getenv, stdout, stderr, nil)
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.parser()
	if err != nil {
		return err
	}

	var missing []string
	for _, path := range paths {
		text, found := p.Engine().Explain(path)
		if !found {
			missing = append(missing, path)
			continue
		}
		fmt.Fprintf(stdout, "%s: %s\n", path, strings.ReplaceAll(text, "\n", "\n  "))
	}
	if len(missing) > 0 {
		return fmt.Errorf("no explanation available for %s", strings.Join(missing, ", "))
	}
	return nil
}

// runRecipes implements 'endf recipes [--watch] [DIR]'
func runRecipes(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := newFlagSet("recipes")
	var watch bool
	flags.BoolVar(&watch, "w", false, "Recompile on change")
	flags.BoolVar(&watch, "watch", false, "Recompile on change")

	dirs, ok, err := flags.parse(args, stdout, stderr)
	if !ok {
		return err
	}
	if len(dirs) > 1 {
		return fmt.Errorf("recipes takes at most one directory")
	}

	s, err := openSession(flags.configPath, getenv, stdout, stderr, nil)
	if err != nil {
		return err
	}
	defer s.close()

	dir := s.cfg.Recipes.Dir
	if len(dirs) == 1 {
		dir = dirs[0]
	}

	if !watch {
		var table *recipes.Table
		if dir == "" {
			table = recipes.Default()
		} else if table, err = recipes.LoadDir(dir, nil); err != nil {
			return err
		}
		if errs := reportRecipes(stdout, dir, table, table.Compile()); len(errs) > 0 {
			return fmt.Errorf("%d recipes failed to compile", len(errs))
		}
		return nil
	}

	if dir == "" {
		return fmt.Errorf("recipes --watch needs a directory")
	}
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w, err := recipes.NewWatcher(dir, func(table *recipes.Table, errs []error) {
		reportRecipes(stdout, dir, table, errs)
	}, s.log)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// reportRecipes prints the outcome of compiling a recipe table and returns
// the errors it was given.
func reportRecipes(w io.Writer, dir string, table *recipes.Table, errs []error) []error {
	if dir == "" {
		dir = "built-in recipes"
	}
	for _, err := range errs {
		printError(w, err)
	}
	if table == nil {
		fmt.Fprintf(w, "%s %s\n", color.RedString("failed"), dir)
		return errs
	}
	if len(errs) > 0 {
		fmt.Fprintf(w, "%s %s: %d recipes, %d failed\n", color.RedString("failed"), dir, table.Len(), len(errs))
		return errs
	}
	fmt.Fprintf(w, "%s %s: %d recipes\n", color.GreenString("ok"), dir, table.Len())
	return nil
}
