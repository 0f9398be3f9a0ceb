// Package mapper moves values between the fields of a physical record and
// the variables named in a recipe record. Reading solves each field
// expression for its single unknown; writing evaluates the expressions
// forward.
package mapper

import (
	"fmt"
	"math"
	"strings"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/expr"
	"github.com/sambeau/endf/pkg/endf/logging"
	"github.com/sambeau/endf/pkg/endf/scope"
)

// readPasses is how often a record is re-mapped while fields with two
// unknowns wait for another field to bind one of them.
const readPasses = 3

// Policy decides what happens when a field holding a known expression
// disagrees with the record.
type Policy struct {
	IgnoreZeroMismatch    bool // expected zero: warn only
	IgnoreNumberMismatch  bool // expression with a desired number (0?): warn only
	IgnoreVarspecMismatch bool // expression with an inconsistent varspec (X?): warn only
	IgnoreAllMismatches   bool // never fail on a mismatch; set during lookahead
	FuzzyMatching         bool // compare with AbsTol/RelTol instead of exactly
	AbsTol                float64
	RelTol                float64
}

// DefaultPolicy returns the mismatch policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		IgnoreZeroMismatch:    true,
		IgnoreVarspecMismatch: true,
		AbsTol:                1e-7,
		RelTol:                1e-5,
	}
}

// Source describes the record being mapped, for diagnostics.
type Source struct {
	Line string // physical line
	Spec string // recipe record
}

// Mapper maps records against a scope.
type Mapper struct {
	Scope  *scope.Scope
	Policy Policy
	Logger logging.Logger
}

// New returns a Mapper with the default policy.
func New(s *scope.Scope, logger logging.Logger) *Mapper {
	return &Mapper{Scope: s, Policy: DefaultPolicy(), Logger: logging.OrNull(logger)}
}

func (m *Mapper) log() logging.Logger {
	return logging.OrNull(m.Logger)
}

func (m *Mapper) readEvaluator() expr.Evaluator {
	return expr.Evaluator{Env: m.Scope, CastInt: !m.Policy.IgnoreAllMismatches, AcceptMissing: true}
}

// ReadFields binds the values of one record. keys name the slots (C1, L1,
// ...) and values holds what the physical record contains for each. A
// field whose expression still has two unknowns is retried after the
// other fields are bound.
func (m *Mapper) ReadFields(src Source, keys []string, values []any, exprs []ast.Expression) error {
	var unresolved []string
	for pass := 0; pass < readPasses; pass++ {
		unresolved = unresolved[:0]
		for i, e := range exprs {
			ok, err := m.readField(src, keys[i], values[i], e)
			if err != nil {
				return err
			}
			if !ok {
				unresolved = append(unresolved, e.String())
			}
		}
		if len(unresolved) == 0 {
			return nil
		}
	}
	return errors.New(errors.CodeUnresolvedVariables, map[string]any{"Names": strings.Join(unresolved, ", ")})
}

// readField maps one slot. It reports false when the expression has more
// than one unknown.
func (m *Mapper) readField(src Source, key string, value any, e ast.Expression) (bool, error) {
	a, err := m.readEvaluator().Eval(e)
	if errors.HasCode(err, errors.CodeSeveralUnbound) {
		return false, nil
	}
	if err != nil {
		return false, withPath(err, m.Scope, key)
	}
	if a.Known() {
		return true, m.check(src, key, value, a, e)
	}

	if _, isList := scope.AsList(value); isList {
		if !a.Offset.IsZero() || !a.Coef.Equal(expr.Int(1)) {
			return false, errors.New(errors.CodeSizeMismatch,
				map[string]any{"Field": key, "Detail": "a table column can only be bound to a plain variable"})
		}
		return true, m.Scope.Bind(a.Var, value)
	}
	n, ok := expr.FromValue(value)
	if !ok {
		return false, errors.New(errors.CodeNotNumeric,
			map[string]any{"Name": key, "Type": fmt.Sprintf("%T", value)})
	}
	solved, err := expr.Solve(a, n, !m.Policy.IgnoreAllMismatches)
	if err != nil {
		return false, withPath(err, m.Scope, a.Var.String())
	}
	if err := m.Scope.Bind(a.Var, solved.Value()); err != nil {
		return false, err
	}
	m.log().Debug("%s = %s (%s)", m.Scope.Resolve(a.Var), solved, key)
	return true, nil
}

// check compares a record value with a known expression under the policy.
func (m *Mapper) check(src Source, key string, got any, a expr.Affine, e ast.Expression) error {
	want := a.Value
	if want == nil {
		want = a.Offset.Value()
	}
	gotList, gotIsList := scope.AsList(got)
	wantList, wantIsList := scope.AsList(want)
	switch {
	case gotIsList != wantIsList:
		return errors.New(errors.CodeSizeMismatch,
			map[string]any{"Field": key, "Detail": "a table column and a single value cannot be matched"})
	case gotIsList && len(gotList) != len(wantList):
		return errors.New(errors.CodeSizeMismatch,
			map[string]any{"Field": key, "Detail": fmt.Sprintf("record has %d values but %d are expected", len(gotList), len(wantList))})
	}

	var equal bool
	if gotIsList {
		equal = true
		for i := range gotList {
			if !m.equal(gotList[i], wantList[i]) {
				equal = false
				break
			}
		}
	} else {
		equal = m.equal(got, want)
	}
	if equal || m.Policy.IgnoreAllMismatches {
		return nil
	}

	mismatch := errors.New(errors.CodeValueMismatch,
		map[string]any{"Field": key, "Got": format(got), "Want": format(want)})
	zero := !wantIsList && a.Value == nil && a.Offset.IsZero()
	switch {
	case m.Policy.IgnoreZeroMismatch && zero,
		m.Policy.IgnoreNumberMismatch && ast.ContainsDesiredNumber(e),
		m.Policy.IgnoreVarspecMismatch && ast.ContainsInconsistentVar(e):
		m.log().Warn("%s", mismatch.Message)
		m.logSource(m.log().Warn, src)
		return nil
	}
	m.logSource(m.log().Error, src)
	return mismatch.WithRecord(src.Line).WithPath(scope.PathString(m.Scope.Path()))
}

func (m *Mapper) equal(a, b any) bool {
	x, okA := expr.FromValue(a)
	y, okB := expr.FromValue(b)
	if !okA || !okB {
		return scope.ValuesEqual(a, b)
	}
	if m.Policy.FuzzyMatching {
		return expr.IsClose(x, y, m.Policy.AbsTol, m.Policy.RelTol)
	}
	return x.Float64() == y.Float64()
}

func (m *Mapper) logSource(logf func(string, ...any), src Source) {
	if src.Spec != "" {
		logf("Record specification: %s", src.Spec)
	}
	if src.Line != "" {
		logf("Offending line: %s", src.Line)
	}
}

// WriteFields evaluates the expressions of one record. Every variable
// they reference must be bound.
func (m *Mapper) WriteFields(keys []string, exprs []ast.Expression) ([]any, error) {
	out := make([]any, len(exprs))
	for i, e := range exprs {
		v, err := m.writeField(e)
		if err != nil {
			return nil, withPath(err, m.Scope, keys[i])
		}
		out[i] = v
	}
	return out, nil
}

func (m *Mapper) writeField(e ast.Expression) (any, error) {
	ev := expr.Evaluator{Env: m.Scope, AcceptMissing: true}
	a, err := ev.Eval(e)
	if err != nil {
		return nil, err
	}
	if !a.Known() {
		return nil, m.notFound(a.Var)
	}
	if a.Value != nil {
		return a.Value, nil
	}
	return a.Offset.Value(), nil
}

func (m *Mapper) notFound(v *ast.Variable) error {
	var names []string
	for _, k := range m.Scope.Current().Keys() {
		if s, ok := k.(string); ok {
			names = append(names, s)
		}
	}
	err := errors.NewVariableNotFound(m.Scope.Resolve(v), names)
	return err.WithPath(joinPath(m.Scope.Path(), m.Scope.Resolve(v)))
}

func joinPath(path []any, name string) string {
	if p := scope.PathString(path); p != "" {
		return p + "/" + name
	}
	return name
}

func withPath(err error, s *scope.Scope, name string) error {
	if e, ok := errors.As(err); ok && e.Path == "" {
		return e.WithPath(joinPath(s.Path(), name))
	}
	return err
}

func format(v any) string {
	if f, ok := v.(float64); ok && !math.IsInf(f, 0) {
		return expr.Float(f).String()
	}
	return fmt.Sprint(v)
}
