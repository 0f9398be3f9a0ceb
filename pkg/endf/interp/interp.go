// Package interp runs a compiled recipe over one section. In read mode it
// consumes physical lines and fills a data dictionary; in write mode it
// turns a data dictionary back into lines. Both directions share the same
// walk over the recipe so that a section written from parsed data reads
// back identically.
package interp

import (
	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/expr"
	"github.com/sambeau/endf/pkg/endf/fortran"
	"github.com/sambeau/endf/pkg/endf/logging"
	"github.com/sambeau/endf/pkg/endf/mapper"
	"github.com/sambeau/endf/pkg/endf/record"
	"github.com/sambeau/endf/pkg/endf/scope"
)

// Mode is the direction the recipe runs in.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// DefaultRepeatLimit bounds repeat loops whose condition never holds.
const DefaultRepeatLimit = 100000

// Options configure an Interpreter.
type Options struct {
	Read         fortran.ReadOptions
	Write        record.WriteOptions
	Policy       mapper.Policy
	RepeatLimit  int           // 0 means DefaultRepeatLimit
	Descriptions *Descriptions // shared across runs; created when nil
	Logger       logging.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Read:        fortran.DefaultReadOptions(),
		Write:       record.WriteOptions{WriteOptions: fortran.DefaultWriteOptions()},
		Policy:      mapper.DefaultPolicy(),
		RepeatLimit: DefaultRepeatLimit,
	}
}

// Failure is an error raised while running a recipe, together with the
// records processed before it.
type Failure struct {
	Err     error
	Records []LogEntry
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// Report renders the error after the records leading up to it.
func (f *Failure) Report() string {
	return "records processed before the failure:\n" + FormatRecords(f.Records) + "error: " + f.Err.Error()
}

// Interpreter walks recipes. It is not safe for concurrent use; the
// recipes it runs are never modified and may be shared.
type Interpreter struct {
	opts  Options
	log   logging.Logger
	descr *Descriptions

	mode    Mode
	scope   *scope.Scope
	mapper  *mapper.Mapper
	reader  *record.Reader
	writer  *record.Writer
	out     []string
	budget  int // actions left in the current lookahead; -1 outside one
	records *RecordLog
}

// New returns an Interpreter for opts.
func New(opts Options) *Interpreter {
	if opts.RepeatLimit <= 0 {
		opts.RepeatLimit = DefaultRepeatLimit
	}
	if opts.Read.Width <= 0 {
		opts.Read.Width = fortran.DefaultWidth
	}
	descr := opts.Descriptions
	if descr == nil {
		descr = NewDescriptions()
	}
	return &Interpreter{
		opts:    opts,
		log:     logging.OrNull(opts.Logger),
		descr:   descr,
		budget:  -1,
		records: NewRecordLog(RecordLogCapacity),
	}
}

// Descriptions returns the variable notes collected so far.
func (it *Interpreter) Descriptions() *Descriptions { return it.descr }

// RecordLog returns the records of the latest run.
func (it *Interpreter) RecordLog() *RecordLog { return it.records }

func (it *Interpreter) reset(mode Mode, dict *scope.Dict, mf, mt int) {
	it.mode = mode
	it.scope = scope.New(dict, mf, mt)
	it.mapper = mapper.New(it.scope, it.log)
	it.mapper.Policy = it.opts.Policy
	it.out = nil
	it.budget = -1
	it.records = NewRecordLog(RecordLogCapacity)
}

// Read parses the lines of section ctrl into a new dictionary. The
// dictionary starts out holding MAT, MF and MT.
func (it *Interpreter) Read(recipe *ast.Recipe, lines []string, ctrl record.Ctrl) (*scope.Dict, error) {
	dict := scope.NewDict()
	dict.Set("MAT", ctrl.MAT)
	dict.Set("MF", ctrl.MF)
	dict.Set("MT", ctrl.MT)
	it.reset(ModeRead, dict, ctrl.MF, ctrl.MT)
	it.reader = record.NewReader(lines, it.opts.Read)
	it.log.Debug("reading MF%d/MT%d", ctrl.MF, ctrl.MT)

	if err := it.execBlock(recipe.Statements); err != nil {
		return nil, it.fail(err)
	}
	it.unwind()
	return dict, nil
}

// Write renders dict as the lines of one section. dict must hold MAT, MF
// and MT. Abbreviations introduced while writing are removed again.
func (it *Interpreter) Write(recipe *ast.Recipe, dict *scope.Dict) ([]string, error) {
	_, mf, mt, err := scope.New(dict).Ctrl()
	if err != nil {
		return nil, err
	}
	it.reset(ModeWrite, dict, mf, mt)
	it.writer = record.NewWriter(it.opts.Write)
	it.log.Debug("writing MF%d/MT%d", mf, mt)

	if err := it.execBlock(recipe.Statements); err != nil {
		return nil, it.fail(err)
	}
	it.unwind()
	return it.out, nil
}

func (it *Interpreter) fail(err error) error {
	it.unwind()
	return &Failure{Err: err, Records: it.records.Entries()}
}

// unwind closes every open section so no abbreviation is left behind.
func (it *Interpreter) unwind() {
	for it.scope.Depth() > 1 {
		_ = it.scope.CloseSection()
	}
	it.scope.Finalize()
}

// proceed reports whether the next statement may run. Inside a lookahead
// every record action uses up one unit of the budget.
func (it *Interpreter) proceed(action bool) bool {
	if it.budget < 0 {
		return true
	}
	if it.budget == 0 {
		return false
	}
	if action {
		it.budget--
	}
	return true
}

func (it *Interpreter) evaluator() expr.Evaluator {
	return it.scope.Evaluator(true)
}

func (it *Interpreter) execBlock(stmts []ast.Statement) error {
	for _, stmt := range stmts {
		if !it.proceed(false) {
			return nil
		}
		if err := it.exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (it *Interpreter) exec(stmt ast.Statement) error {
	switch node := stmt.(type) {
	// Records
	case *ast.TextRecord, *ast.ContRecord, *ast.DirRecord, *ast.IntgRecord,
		*ast.Tab1Record, *ast.Tab2Record, *ast.ListRecord, *ast.SendRecord:
		if !it.proceed(true) {
			return nil
		}
		if it.mode == ModeRead {
			return it.readRecord(node)
		}
		return it.writeRecord(node)

	// Control flow
	case *ast.ForStatement:
		return it.execFor(node)

	case *ast.RepeatStatement:
		return it.execRepeat(node)

	case *ast.IfStatement:
		return it.execIf(node)

	case *ast.SectionStatement:
		return it.execSection(node)

	case *ast.Abbreviation:
		return it.scope.Introduce(node.Name, node.Value)

	case *ast.CommentBlock:
		it.describe(node)
		return nil

	case *ast.StopStatement:
		return it.execStop(node)
	}
	return errors.NewSimple(errors.ClassRecipe, "unsupported statement "+stmt.String())
}

func (it *Interpreter) execStop(node *ast.StopStatement) error {
	entry := LogEntry{Index: -1, Spec: node.String()}
	if it.mode == ModeRead {
		entry.Index = it.reader.Pos()
		entry.Line = it.reader.Line(entry.Index)
	}
	it.records.Save(entry)
	msg := node.Message
	if msg == "" {
		msg = "stop instruction"
	}
	return errors.New(errors.CodeStop, map[string]any{"Message": msg}).WithPath(scope.PathString(it.scope.Path()))
}
