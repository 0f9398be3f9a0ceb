// Package scope holds the data dictionary of one section while a recipe
// runs over it: nested sections as an explicit frame stack, loop
// bindings, abbreviations, and an undo journal for lookahead.
package scope

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/expr"
)

type frame struct {
	dict    *Dict
	path    []any
	abbrevs *linkedhashset.Set
}

// Scope is the binding environment for one section.
type Scope struct {
	frames  []*frame
	loops   map[string]int
	journal Journal
}

// New returns a scope whose root frame is root. path names the root in
// paths and descriptions, e.g. (3, 1) for MF3/MT1.
func New(root *Dict, path ...any) *Scope {
	return &Scope{
		frames: []*frame{{dict: root, path: path, abbrevs: linkedhashset.New()}},
		loops:  make(map[string]int),
	}
}

// Root returns the section dictionary.
func (s *Scope) Root() *Dict { return s.frames[0].dict }

// Current returns the dictionary of the innermost open section.
func (s *Scope) Current() *Dict { return s.top().dict }

// Depth returns the number of open frames, including the root.
func (s *Scope) Depth() int { return len(s.frames) }

// Journal returns the undo journal.
func (s *Scope) Journal() *Journal { return &s.journal }

func (s *Scope) top() *frame { return s.frames[len(s.frames)-1] }

// Path returns the key path of the innermost section.
func (s *Scope) Path() []any {
	return append([]any(nil), s.top().path...)
}

// PathString renders a path as "3/1/subsection/2".
func PathString(path []any) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, "/")
}

func (s *Scope) set(d *Dict, key, value any) {
	old, had := d.Get(key)
	s.journal.Record(func() {
		if had {
			d.Set(key, old)
		} else {
			d.Delete(key)
		}
	})
	d.Set(key, value)
}

func (s *Scope) remove(d *Dict, key any) {
	old, had := d.Get(key)
	if !had {
		return
	}
	s.journal.Record(func() { d.Set(key, old) })
	d.Delete(key)
}

// Set stores a plain value in the current frame.
func (s *Scope) Set(name string, value any) {
	s.set(s.Current(), name, value)
}

// Get reads a name from the current frame only.
func (s *Scope) Get(name string) (any, bool) {
	return s.Current().Get(name)
}

// Evaluator returns an expression evaluator over this scope.
func (s *Scope) Evaluator(walkUp bool) expr.Evaluator {
	return expr.Evaluator{Env: s, WalkUp: walkUp}
}

// Lookup implements expr.Env. Loop variables take precedence; a name that
// is both a loop variable and a variable of the current section is an
// error.
func (s *Scope) Lookup(v *ast.Variable, walkUp bool) (any, bool, error) {
	if val, ok := s.loops[v.Name]; ok {
		if s.Current().Has(v.Name) {
			return nil, false, errors.New(errors.CodeLoopRecordClash, map[string]any{"Name": v.Name})
		}
		if len(v.Indices) > 0 {
			return nil, false, errors.New(errors.CodeInvalidIndex,
				map[string]any{"Name": v.Name, "Detail": "a loop variable cannot be indexed"})
		}
		return val, true, nil
	}

	var owner *Dict
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].dict.Has(v.Name) {
			owner = s.frames[i].dict
			break
		}
		if !walkUp {
			break
		}
	}
	if owner == nil {
		return nil, false, nil
	}
	val, _ := owner.Get(v.Name)
	if len(v.Indices) == 0 {
		return val, true, nil
	}

	idx, err := s.Indices(v)
	if err != nil {
		return nil, false, err
	}
	for _, k := range idx {
		sub, ok := val.(*Dict)
		if !ok {
			return nil, false, errors.New(errors.CodeInvalidIndex,
				map[string]any{"Name": v.String(), "Detail": v.Name + " is not an array"})
		}
		if val, ok = sub.Get(k); !ok {
			return nil, false, nil
		}
	}
	return val, true, nil
}

// Indices evaluates the index expressions of v to integers.
func (s *Scope) Indices(v *ast.Variable) ([]int, error) {
	ev := expr.Evaluator{Env: s, WalkUp: true, CastInt: true}
	idx := make([]int, len(v.Indices))
	for i, e := range v.Indices {
		n, err := ev.Value(e)
		if err != nil {
			return nil, err
		}
		k, ok := n.AsInt()
		if !ok {
			return nil, errors.New(errors.CodeInvalidIndex,
				map[string]any{"Name": v.String(), "Detail": n.String() + " is not an integer"})
		}
		idx[i] = k
	}
	return idx, nil
}

// Resolve returns the name of v with its indices evaluated, e.g. "E[3]".
func (s *Scope) Resolve(v *ast.Variable) string {
	if len(v.Indices) == 0 {
		return v.Name
	}
	idx, err := s.Indices(v)
	if err != nil {
		return v.String()
	}
	parts := make([]string, len(idx))
	for i, k := range idx {
		parts[i] = strconv.Itoa(k)
	}
	return v.Name + "[" + strings.Join(parts, ",") + "]"
}

// Bind stores value for v in the current frame, creating the nested
// dictionaries an indexed variable needs.
func (s *Scope) Bind(v *ast.Variable, value any) error {
	if _, ok := s.loops[v.Name]; ok {
		return errors.New(errors.CodeLoopRecordClash, map[string]any{"Name": v.Name})
	}
	cur := s.Current()
	if len(v.Indices) == 0 {
		s.set(cur, v.Name, value)
		return nil
	}
	idx, err := s.Indices(v)
	if err != nil {
		return err
	}
	var key any = v.Name
	for _, k := range idx {
		next, ok := cur.Get(key)
		if !ok {
			sub := NewDict()
			s.set(cur, key, sub)
			cur = sub
		} else if sub, isDict := next.(*Dict); isDict {
			cur = sub
		} else {
			return errors.New(errors.CodeInvalidIndex,
				map[string]any{"Name": v.String(), "Detail": v.Name + " already holds a scalar"})
		}
		key = k
	}
	s.set(cur, key, value)
	return nil
}

// OpenSection pushes the frame for (name[idx...]). Missing sections are
// created when create is set; otherwise they are an error.
func (s *Scope) OpenSection(v *ast.Variable, create bool) error {
	idx, err := s.Indices(v)
	if err != nil {
		return err
	}
	parent := s.top()
	path := append(append([]any(nil), parent.path...), v.Name)

	cur := parent.dict
	keys := make([]any, 0, len(idx)+1)
	keys = append(keys, v.Name)
	for _, k := range idx {
		keys = append(keys, k)
	}
	for n, key := range keys {
		next, ok := cur.Get(key)
		if !ok {
			if !create {
				name := v.Name
				if n > 0 {
					name = s.Resolve(v)
				}
				return errors.New(errors.CodeMissingSection, map[string]any{"Name": name})
			}
			sub := NewDict()
			s.set(cur, key, sub)
			cur = sub
		} else if sub, isDict := next.(*Dict); isDict {
			cur = sub
		} else {
			return errors.New(errors.CodeInvalidIndex,
				map[string]any{"Name": v.String(), "Detail": "not a section"})
		}
		if n > 0 {
			path = append(path, key)
		}
	}

	f := &frame{dict: cur, path: path, abbrevs: linkedhashset.New()}
	s.frames = append(s.frames, f)
	s.journal.Record(func() { s.frames = s.frames[:len(s.frames)-1] })
	return nil
}

// CloseSection drops the abbreviations of the innermost section and pops
// its frame.
func (s *Scope) CloseSection() error {
	if len(s.frames) == 1 {
		return errors.New(errors.CodeUnbalancedSection, nil)
	}
	s.Finalize()
	f := s.top()
	s.frames = s.frames[:len(s.frames)-1]
	s.journal.Record(func() { s.frames = append(s.frames, f) })
	return nil
}

// Introduce registers name as an abbreviation for e in the current frame.
// An abbreviation may be redefined, but it must not shadow a variable.
func (s *Scope) Introduce(name string, e ast.Expression) error {
	f := s.top()
	known := s.IsAbbreviation(name)
	if !known && f.dict.Has(name) {
		return errors.New(errors.CodeSectionNameCollision, map[string]any{"Name": name})
	}
	if !known {
		f.abbrevs.Add(name)
		s.journal.Record(func() { f.abbrevs.Remove(name) })
	}
	s.set(f.dict, name, e)
	return nil
}

// Finalize removes the abbreviations of the current frame.
func (s *Scope) Finalize() {
	f := s.top()
	for _, name := range f.abbrevs.Values() {
		s.remove(f.dict, name)
	}
	names := f.abbrevs.Values()
	f.abbrevs.Clear()
	s.journal.Record(func() { f.abbrevs.Add(names...) })
}

// IsAbbreviation reports whether name is an active abbreviation of the
// current frame.
func (s *Scope) IsAbbreviation(name string) bool {
	return s.top().abbrevs.Contains(name)
}

// Ctrl returns MAT, MF and MT, searching outward from the current frame.
func (s *Scope) Ctrl() (mat, mf, mt int, err error) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		d := s.frames[i].dict
		if !d.Has("MAT") {
			continue
		}
		vals := [3]int{}
		for j, name := range []string{"MAT", "MF", "MT"} {
			v, ok := d.Int(name)
			if !ok {
				return 0, 0, 0, errors.New(errors.CodeVariableNotFound, map[string]any{"Name": name})
			}
			vals[j] = v
		}
		return vals[0], vals[1], vals[2], nil
	}
	return 0, 0, 0, errors.New(errors.CodeVariableNotFound, map[string]any{"Name": "MAT"})
}

// LoopValue returns the current value of a loop variable.
func (s *Scope) LoopValue(name string) (int, bool) {
	v, ok := s.loops[name]
	return v, ok
}

// BindLoop sets a loop variable.
func (s *Scope) BindLoop(name string, value int) {
	old, had := s.loops[name]
	s.journal.Record(func() {
		if had {
			s.loops[name] = old
		} else {
			delete(s.loops, name)
		}
	})
	s.loops[name] = value
}

// UnbindLoop removes a loop variable.
func (s *Scope) UnbindLoop(name string) {
	old, had := s.loops[name]
	if !had {
		return
	}
	s.journal.Record(func() { s.loops[name] = old })
	delete(s.loops, name)
}

// LoopBound evaluates a loop bound to an integer.
func (s *Scope) LoopBound(which, name string, e ast.Expression) (int, error) {
	n, err := s.Evaluator(true).Value(e)
	if err != nil {
		return 0, err
	}
	v, ok := n.AsInt()
	if !ok {
		return 0, errors.New(errors.CodeLoopBoundNotInteger,
			map[string]any{"Which": which, "Name": name, "Value": n.String()})
	}
	return v, nil
}

// ForLoop runs body for name = start..stop inclusive. The variable is
// unbound afterwards; an empty range never binds it.
func (s *Scope) ForLoop(name string, start, stop ast.Expression, body func() error) error {
	lo, err := s.LoopBound("start", name, start)
	if err != nil {
		return err
	}
	hi, err := s.LoopBound("stop", name, stop)
	if err != nil {
		return err
	}
	if _, ok := s.loops[name]; ok {
		return errors.New(errors.CodeLoopVariableReuse, map[string]any{"Name": name})
	}
	for i := lo; i <= hi; i++ {
		s.BindLoop(name, i)
		if err := body(); err != nil {
			return err
		}
	}
	if lo <= hi {
		s.UnbindLoop(name)
	}
	return nil
}
