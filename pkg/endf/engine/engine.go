// Package engine parses whole ENDF tapes into per-section data and writes
// them back. It cuts a tape into MF/MT sections, finds the recipe for each
// one and runs the interpreter over it.
package engine

import (
	"fmt"
	"strings"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/fortran"
	"github.com/sambeau/endf/pkg/endf/interp"
	"github.com/sambeau/endf/pkg/endf/logging"
	"github.com/sambeau/endf/pkg/endf/recipes"
	"github.com/sambeau/endf/pkg/endf/record"
	"github.com/sambeau/endf/pkg/endf/scope"
)

// Options configure an Engine.
type Options struct {
	Interp  interp.Options
	Recipes *recipes.Table // nil means recipes.Default()

	// Tape structure
	IgnoreBlankLines  bool
	IgnoreSendRecords bool
	IgnoreMissingTPID bool

	// Attach the description of a missing variable to write errors.
	ExplainMissing bool

	Logger logging.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Interp: interp.DefaultOptions()}
}

// ParseOptions control one Parse call.
type ParseOptions struct {
	Include []SectionSpec // when set, only these sections are parsed
	Exclude []SectionSpec // kept raw; wins over Include
	Strict  bool          // fail on the first section that does not parse
}

// WriteOptions control one Write call.
type WriteOptions struct {
	Include        []SectionSpec
	Exclude        []SectionSpec
	IncludeLinenum bool
	ZeroAsBlank    bool
}

// Engine parses and writes tapes. It is not safe for concurrent use.
type Engine struct {
	opts    Options
	log     logging.Logger
	recipes *recipes.Table
	interp  *interp.Interpreter
	descr   *interp.Descriptions
	seen    map[recipes.Key]bool // sections whose notes were collected
}

// New returns an Engine for opts.
func New(opts Options) *Engine {
	table := opts.Recipes
	if table == nil {
		table = recipes.Default()
	}
	log := logging.OrNull(opts.Logger)
	descr := opts.Interp.Descriptions
	if descr == nil {
		descr = interp.NewDescriptions()
	}
	io := opts.Interp
	io.Descriptions = descr
	if io.Logger == nil {
		io.Logger = log
	}
	return &Engine{
		opts:    opts,
		log:     log,
		recipes: table,
		interp:  interp.New(io),
		descr:   descr,
		seen:    make(map[recipes.Key]bool),
	}
}

// Recipes returns the recipe table in use.
func (e *Engine) Recipes() *recipes.Table { return e.recipes }

func (e *Engine) width() int {
	if w := e.opts.Interp.Read.Width; w > 0 {
		return w
	}
	return fortran.DefaultWidth
}

// Parse cuts lines into sections and parses every section that has a
// recipe. A section whose recipe fails is kept as raw lines with a warning
// unless opts.Strict is set.
func (e *Engine) Parse(lines []string, opts ParseOptions) (*Result, error) {
	tape, err := record.SplitSections(lines, record.SplitOptions{
		Width:             e.width(),
		IgnoreBlankLines:  e.opts.IgnoreBlankLines,
		IgnoreSendRecords: e.opts.IgnoreSendRecords,
		IgnoreMissingTPID: e.opts.IgnoreMissingTPID,
	})
	if err != nil {
		return nil, err
	}

	res := NewResult()
	writer := record.NewWriter(e.opts.Interp.Write)
	for _, mf := range tape.MFs() {
		e.log.Info("parsing MF%d", mf)
		for _, mt := range tape.MTs(mf) {
			raw := tape.Lines(mf, mt)
			if skip(mf, mt, opts.Include, opts.Exclude) {
				res.SetRaw(mf, mt, raw)
				continue
			}
			recipe, ok, err := e.recipes.Recipe(mf, mt)
			if err != nil {
				return nil, err
			}
			if !ok {
				e.log.Debug("no recipe for MF%d/MT%d; keeping raw lines", mf, mt)
				res.SetRaw(mf, mt, raw)
				continue
			}

			ctrl, err := record.ReadCtrl(raw[0], e.width())
			if err != nil {
				return nil, err
			}
			input := raw
			if mf != 0 {
				input = append(append([]string{}, raw...), writer.Send(ctrl))
			}
			e.log.Debug("parsing MF%d/MT%d", mf, mt)
			d, err := e.interp.Read(recipe, input, ctrl)
			if err != nil {
				err = sectionError(err, mf, mt)
				if opts.Strict {
					return nil, err
				}
				e.log.Warn("MF%d/MT%d kept as raw lines: %v", mf, mt, err)
				res.put(&Section{MF: mf, MT: mt, Raw: raw, Err: err})
				continue
			}
			res.SetData(mf, mt, d)
		}
	}
	return res, nil
}

// Write renders res as a tape. Sections are written in MF, MT order; each
// file is closed by a FEND record and the tape by MEND and TEND records.
func (e *Engine) Write(res *Result, opts WriteOptions) ([]string, error) {
	wopts := e.opts.Interp.Write
	wopts.IncludeLinenum = opts.IncludeLinenum
	wopts.ZeroAsBlank = opts.ZeroAsBlank
	writer := record.NewWriter(wopts)

	io := e.opts.Interp
	io.Write = wopts
	io.Descriptions = e.descr
	if io.Logger == nil {
		io.Logger = e.log
	}
	it := interp.New(io)

	var out []string
	mat := 0
	for _, mf := range res.MFs() {
		wrote := false
		for _, mt := range res.MTs(mf) {
			if skip(mf, mt, opts.Include, opts.Exclude) {
				continue
			}
			s, _ := res.Get(mf, mt)
			recipe, ok, err := e.recipes.Recipe(mf, mt)
			if err != nil {
				return nil, err
			}

			var lines []string
			if ok && s.Parsed() {
				if lines, mat, err = e.writeData(it, recipe, s, opts); err != nil {
					return nil, err
				}
			} else {
				if s.Parsed() {
					return nil, errors.New(errors.CodeRecipeNotFound, map[string]any{"MF": mf, "MT": mt})
				}
				if len(s.Raw) == 0 {
					continue
				}
				numbered, err := record.AddLineNumbers(s.Raw, wopts.Width, wopts.IncludeLinenum)
				if err != nil {
					return nil, err
				}
				lines = numbered
				ctrl, err := record.ReadCtrl(s.Raw[len(s.Raw)-1], wopts.Width)
				if err != nil {
					return nil, err
				}
				mat = ctrl.MAT
				if mf != 0 {
					lines = append(lines, writer.Send(ctrl))
				}
			}
			out = append(out, lines...)
			wrote = true
		}
		if wrote && mf != 0 {
			out = append(out, writer.Fend(mat))
		}
	}
	out = append(out, writer.Mend(), writer.Tend())
	return out, nil
}

// writeData runs the recipe of s in write mode on a copy of its data and
// numbers the lines. The SEND record written by the recipe keeps its fixed
// serial number. MF and MT default to the section key.
func (e *Engine) writeData(it *interp.Interpreter, recipe *ast.Recipe, s *Section, opts WriteOptions) ([]string, int, error) {
	data := s.Data.Clone()
	for _, chk := range []struct {
		name string
		key  int
	}{{"MF", s.MF}, {"MT", s.MT}} {
		if !data.Has(chk.name) {
			data.Set(chk.name, chk.key)
		}
		got, ok := data.Int(chk.name)
		if !ok || got != chk.key {
			v, _ := data.Get(chk.name)
			return nil, 0, errors.New(errors.CodeSectionDataMismatch,
				map[string]any{"Field": chk.name, "Got": v, "Want": chk.key})
		}
	}
	mat, _, _, err := scope.New(data).Ctrl()
	if err != nil {
		return nil, 0, err
	}

	e.log.Debug("writing MF%d/MT%d", s.MF, s.MT)
	lines, err := it.Write(recipe, data)
	if err != nil {
		err = sectionError(err, s.MF, s.MT)
		if e.opts.ExplainMissing {
			err = e.explainMissing(err, s.MF, s.MT)
		}
		return nil, 0, err
	}
	if len(lines) == 0 {
		return nil, mat, nil
	}

	body, send := lines, []string(nil)
	if s.MF != 0 {
		body, send = lines[:len(lines)-1], lines[len(lines)-1:]
	}
	numbered, err := record.AddLineNumbers(body, e.width(), opts.IncludeLinenum)
	if err != nil {
		return nil, 0, err
	}
	return append(numbered, send...), mat, nil
}

// sectionError names the section in err, keeping the record log.
func sectionError(err error, mf, mt int) error {
	return Amend(err, func(ee *errors.EndfError) *errors.EndfError {
		if ee.Path != "" {
			return ee
		}
		return ee.WithPath(fmt.Sprintf("%d/%d", mf, mt))
	})
}

// Amend applies fn to the structured error inside err, which may be
// wrapped in an interp.Failure.
func Amend(err error, fn func(*errors.EndfError) *errors.EndfError) error {
	switch e := err.(type) {
	case *interp.Failure:
		return &interp.Failure{Err: Amend(e.Err, fn), Records: e.Records}
	case *errors.EndfError:
		return fn(e)
	}
	return err
}

// Explain returns the description of the variable at path, given as
// "MF/MT/name" or with section elements in between, e.g.
// "5/18/contribution/1/LF".
func (e *Engine) Explain(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return "", false
	}
	var mf, mt int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &mf, &mt); err != nil {
		return "", false
	}
	if text, ok := e.descr.Lookup(parts); ok {
		return text, true
	}
	e.collect(mf, mt)
	return e.descr.Lookup(parts)
}

func (e *Engine) collect(mf, mt int) {
	key := recipes.Key{MF: mf, MT: mt}
	if e.seen[key] {
		return
	}
	e.seen[key] = true
	recipe, ok, err := e.recipes.Recipe(mf, mt)
	if err != nil || !ok {
		return
	}
	interp.CollectDescriptions(recipe, mf, mt, e.descr)
}

// explainMissing adds the description of a missing variable as a hint.
func (e *Engine) explainMissing(err error, mf, mt int) error {
	ee, ok := errors.As(err)
	if !ok || (ee.Code != errors.CodeVariableNotFound && ee.Code != errors.CodeMissingSection) {
		return err
	}
	path := ee.Path
	if path == "" || path == fmt.Sprintf("%d/%d", mf, mt) {
		name, _ := ee.Data["Name"].(string)
		path = fmt.Sprintf("%d/%d/%s", mf, mt, name)
	}
	path, _, _ = strings.Cut(path, "[")
	text, found := e.Explain(path)
	if !found {
		text = "no explanation available"
	}
	return Amend(err, func(ee *errors.EndfError) *errors.EndfError {
		return ee.WithHint(fmt.Sprintf("%s: %s", path, text))
	})
}
