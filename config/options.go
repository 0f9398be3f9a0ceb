package config

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/sambeau/endf/pkg/endf/endf"
	"github.com/sambeau/endf/pkg/endf/engine"
	"github.com/sambeau/endf/pkg/endf/fortran"
	"github.com/sambeau/endf/pkg/endf/interp"
	"github.com/sambeau/endf/pkg/endf/logging"
	"github.com/sambeau/endf/pkg/endf/mapper"
	"github.com/sambeau/endf/pkg/endf/recipes"
	"github.com/sambeau/endf/pkg/endf/record"
)

// EngineOptions converts the configuration into engine options. Recipes in
// Recipes.Dir replace built-in recipes with the same MF/MT.
func (c *Config) EngineOptions() (engine.Options, error) {
	table := recipes.Default()
	if c.Recipes.Dir != "" {
		overrides, err := recipes.LoadDir(c.Recipes.Dir, nil)
		if err != nil {
			return engine.Options{}, err
		}
		table.Merge(overrides)
	}

	return engine.Options{
		Interp: interp.Options{
			Read: fortran.ReadOptions{
				Width:        c.Read.Width,
				AcceptSpaces: c.Read.AcceptSpaces,
				BlankAsZero:  c.Read.BlankAsZero,
			},
			Write: record.WriteOptions{
				WriteOptions: fortran.WriteOptions{
					Width:        c.Write.Width,
					AbuseSignpos: c.Write.AbuseSignpos,
					SkipIntzero:  c.Write.SkipIntzero,
					PreferNoexp:  c.Write.PreferNoexp,
					KeepE:        c.Write.KeepE,
				},
				ZeroAsBlank:    c.Write.ZeroAsBlank,
				IncludeLinenum: c.Write.IncludeLinenum,
			},
			Policy: mapper.Policy{
				IgnoreZeroMismatch:    c.Mapping.IgnoreZeroMismatch,
				IgnoreNumberMismatch:  c.Mapping.IgnoreNumberMismatch,
				IgnoreVarspecMismatch: c.Mapping.IgnoreVarspecMismatch,
				IgnoreAllMismatches:   c.Mapping.IgnoreAllMismatches,
				FuzzyMatching:         c.Mapping.FuzzyMatching,
				AbsTol:                c.Mapping.Atol,
				RelTol:                c.Mapping.Rtol,
			},
			RepeatLimit: c.Mapping.RepeatLimit,
		},
		Recipes:           table,
		IgnoreBlankLines:  c.Read.IgnoreBlankLines,
		IgnoreSendRecords: c.Read.IgnoreSendRecords,
		IgnoreMissingTPID: c.Read.IgnoreMissingTPID,
		ExplainMissing:    c.Mapping.ExplainMissing,
	}, nil
}

// Options converts the configuration into parser options that log to log.
func (c *Config) Options(log logging.Logger) (endf.Options, error) {
	eopts, err := c.EngineOptions()
	if err != nil {
		return endf.Options{}, err
	}
	eopts.Logger = log
	eopts.Interp.Logger = log

	include, err := engine.ParseSectionSpecs(c.Parse.Include)
	if err != nil {
		return endf.Options{}, err
	}
	exclude, err := engine.ParseSectionSpecs(c.Parse.Exclude)
	if err != nil {
		return endf.Options{}, err
	}

	return endf.Options{
		Engine: eopts,
		Parse: engine.ParseOptions{
			Include: include,
			Exclude: exclude,
			Strict:  c.Parse.Strict,
		},
		Write: engine.WriteOptions{
			Include:        include,
			Exclude:        exclude,
			IncludeLinenum: c.Write.IncludeLinenum,
			ZeroAsBlank:    c.Write.ZeroAsBlank,
		},
	}, nil
}

// Logger opens the configured log output. The returned function closes a
// log file and does nothing for stdout and stderr.
func (c *Config) Logger(stdout, stderr io.Writer) (logging.Logger, func() error, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	noop := func() error { return nil }
	var w io.Writer
	closer := noop
	terminal := true
	switch c.Logging.Output {
	case "", "stderr":
		w = stderr
	case "stdout":
		w = stdout
	default:
		f, err := os.OpenFile(c.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closer, terminal = f, f.Close, false
	}

	useColor := c.Logging.Color == "always" || (c.Logging.Color == "auto" && terminal && !color.NoColor)
	if useColor {
		return logging.ColorLogger(w, level), closer, nil
	}
	return logging.WriterLogger(w, level), closer, nil
}
