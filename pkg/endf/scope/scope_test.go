package scope

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/parser"
)

func parseExpr(t *testing.T, src string) ast.Expression {
	t.Helper()
	recipe, err := parser.Parse("Z := "+src+"\n", "test.recipe")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return recipe.Statements[0].(*ast.Abbreviation).Value
}

func parseVar(t *testing.T, src string) *ast.Variable {
	t.Helper()
	v, ok := parseExpr(t, src).(*ast.Variable)
	if !ok {
		t.Fatalf("%q is not a variable", src)
	}
	return v
}

func TestNestedIndexDereference(t *testing.T) {
	s := New(NewDict(), 3, 1)
	if err := s.Bind(parseVar(t, "A[1]"), 9); err != nil {
		t.Fatal(err)
	}
	if err := s.Bind(parseVar(t, "B[1]"), 42.5); err != nil {
		t.Fatal(err)
	}

	val, found, err := s.Lookup(parseVar(t, "B[A[1]-8]"), true)
	if err != nil || !found {
		t.Fatalf("Lookup(B[A[1]-8]) = %v, %v, %v", val, found, err)
	}
	if val != 42.5 {
		t.Errorf("B[A[1]-8] = %v, want 42.5", val)
	}
	if got := s.Resolve(parseVar(t, "B[A[1]-8]")); got != "B[1]" {
		t.Errorf("Resolve = %q, want %q", got, "B[1]")
	}
}

func TestMultiIndexBind(t *testing.T) {
	s := New(NewDict())
	s.BindLoop("i", 2)
	s.BindLoop("j", 5)
	if err := s.Bind(parseVar(t, "a[i,j]"), 1.5); err != nil {
		t.Fatal(err)
	}
	got, ok := s.Root().Path("a", 2, 5)
	if !ok || got != 1.5 {
		t.Errorf("Path(a,2,5) = %v, %v; want 1.5", got, ok)
	}

	if err := s.Bind(parseVar(t, "c"), 1); err != nil {
		t.Fatal(err)
	}
	err := s.Bind(parseVar(t, "c[i]"), 2)
	if !errors.HasCode(err, errors.CodeInvalidIndex) {
		t.Errorf("indexing a scalar: error = %v, want %s", err, errors.CodeInvalidIndex)
	}
}

func TestSectionsWalkOutward(t *testing.T) {
	root := NewDict()
	root.Set("MAT", 9237)
	root.Set("MF", 3)
	root.Set("MT", 1)
	root.Set("AWR", 236.0)
	s := New(root, 3, 1)

	s.BindLoop("k", 2)
	if err := s.OpenSection(parseVar(t, "sub[k]"), true); err != nil {
		t.Fatal(err)
	}
	if got := PathString(s.Path()); got != "3/1/sub/2" {
		t.Errorf("Path = %q, want %q", got, "3/1/sub/2")
	}
	s.Set("LI", 1)

	if _, found, _ := s.Lookup(parseVar(t, "AWR"), false); found {
		t.Error("AWR visible without walking up")
	}
	if v, found, _ := s.Lookup(parseVar(t, "AWR"), true); !found || v != 236.0 {
		t.Errorf("AWR walking up = %v, %v", v, found)
	}
	mat, mf, mt, err := s.Ctrl()
	if err != nil || mat != 9237 || mf != 3 || mt != 1 {
		t.Errorf("Ctrl() = %d, %d, %d, %v", mat, mf, mt, err)
	}

	if err := s.CloseSection(); err != nil {
		t.Fatal(err)
	}
	if got, ok := root.Path("sub", 2, "LI"); !ok || got != 1 {
		t.Errorf("sub[2].LI = %v, %v; want 1", got, ok)
	}
	if err := s.CloseSection(); !errors.HasCode(err, errors.CodeUnbalancedSection) {
		t.Errorf("closing root: error = %v, want %s", err, errors.CodeUnbalancedSection)
	}
}

func TestOpenMissingSection(t *testing.T) {
	s := New(NewDict())
	err := s.OpenSection(parseVar(t, "sub"), false)
	if !errors.HasCode(err, errors.CodeMissingSection) {
		t.Errorf("error = %v, want %s", err, errors.CodeMissingSection)
	}
	if s.Depth() != 1 {
		t.Errorf("Depth() = %d after failed open, want 1", s.Depth())
	}
}

func TestAbbreviations(t *testing.T) {
	s := New(NewDict())
	s.Set("NE", 4)

	if err := s.Introduce("HALF", parseExpr(t, "NE / 2")); err != nil {
		t.Fatal(err)
	}
	n, err := s.Evaluator(false).Value(parseExpr(t, "HALF + 1"))
	if err != nil || n.String() != "3" {
		t.Errorf("HALF + 1 = %v, %v; want 3", n, err)
	}
	if err := s.Introduce("HALF", parseExpr(t, "NE / 4")); err != nil {
		t.Errorf("redefining an abbreviation: %v", err)
	}
	if err := s.Introduce("NE", parseExpr(t, "1")); !errors.HasCode(err, errors.CodeSectionNameCollision) {
		t.Errorf("shadowing NE: error = %v, want %s", err, errors.CodeSectionNameCollision)
	}

	s.Finalize()
	if s.Root().Has("HALF") {
		t.Error("HALF still present after Finalize")
	}
	if !s.Root().Has("NE") {
		t.Error("NE removed by Finalize")
	}
}

func TestForLoop(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		stop     string
		expected []int
	}{
		{"one to five", "1", "5", []int{1, 2, 3, 4, 5}},
		{"empty range", "3", "1", nil},
		{"single", "NE", "NE", []int{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(NewDict())
			s.Set("NE", 4)
			var seen []int
			err := s.ForLoop("i", parseExpr(t, tt.start), parseExpr(t, tt.stop), func() error {
				v, ok := s.LoopValue("i")
				if !ok {
					t.Fatal("i not bound inside body")
				}
				seen = append(seen, v)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(seen) != len(tt.expected) {
				t.Fatalf("iterations = %v, want %v", seen, tt.expected)
			}
			for i := range seen {
				if seen[i] != tt.expected[i] {
					t.Errorf("iteration %d bound %d, want %d", i, seen[i], tt.expected[i])
				}
			}
			if _, ok := s.LoopValue("i"); ok {
				t.Error("i still bound after the loop")
			}
		})
	}
}

func TestForLoopErrors(t *testing.T) {
	s := New(NewDict())
	s.Set("X", 2.5)

	err := s.ForLoop("i", parseExpr(t, "1"), parseExpr(t, "X"), func() error { return nil })
	if !errors.HasCode(err, errors.CodeLoopBoundNotInteger) {
		t.Errorf("float bound: error = %v, want %s", err, errors.CodeLoopBoundNotInteger)
	}

	err = s.ForLoop("i", parseExpr(t, "1"), parseExpr(t, "2"), func() error {
		return s.ForLoop("i", parseExpr(t, "1"), parseExpr(t, "2"), func() error { return nil })
	})
	if !errors.HasCode(err, errors.CodeLoopVariableReuse) {
		t.Errorf("nested reuse: error = %v, want %s", err, errors.CodeLoopVariableReuse)
	}

	s2 := New(NewDict())
	s2.Set("i", 7)
	s2.BindLoop("i", 1)
	if _, _, err := s2.Lookup(parseVar(t, "i"), false); !errors.HasCode(err, errors.CodeLoopRecordClash) {
		t.Errorf("loop/record clash: error = %v, want %s", err, errors.CodeLoopRecordClash)
	}
}

func TestJournalRollback(t *testing.T) {
	root := NewDict()
	root.Set("MAT", 125)
	root.Set("LO", 2)
	s := New(root, 4, 2)
	before := root.Clone()

	j := s.Journal()
	m := j.Mark()
	s.Set("LO", 1)
	s.Set("NEW", 3.0)
	s.BindLoop("i", 1)
	if err := s.Introduce("AB", parseExpr(t, "LO * 2")); err != nil {
		t.Fatal(err)
	}
	if err := s.OpenSection(parseVar(t, "sub[i]"), true); err != nil {
		t.Fatal(err)
	}
	s.Set("Q", 1)
	j.Rollback(m)

	if !root.Equal(before) {
		t.Errorf("root after rollback = %s, want %s", root, before)
	}
	if s.Depth() != 1 {
		t.Errorf("Depth() = %d after rollback, want 1", s.Depth())
	}
	if _, ok := s.LoopValue("i"); ok {
		t.Error("loop binding survived rollback")
	}
	if s.IsAbbreviation("AB") {
		t.Error("abbreviation survived rollback")
	}
	if j.Active() || j.Len() != 0 {
		t.Errorf("journal still active after rollback (len %d)", j.Len())
	}

	// without a mark nothing is recorded
	s.Set("LO", 5)
	if j.Len() != 0 {
		t.Errorf("journal recorded %d entries without a mark", j.Len())
	}
}

func TestDictYAMLKeepsOrder(t *testing.T) {
	d := NewDict()
	d.Set("MAT", 9237)
	d.Set("ZA", 92235.0)
	d.Set("HL", "  a text line ")
	xs := NewDict()
	xs.Set("NBT", []int{3})
	xs.Set("E", []float64{1e-5, 2.0e7})
	d.Set("xstable", xs)
	arr := NewDict()
	arr.Set(2, 1.5)
	arr.Set(1, 0.5)
	d.Set("a", arr)

	out, err := yaml.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	for _, frag := range []string{"MAT: 9237", "ZA: 92235.0", "NBT: [3]", "E: [1e-05, 2e+07]", "2: 1.5"} {
		if !strings.Contains(text, frag) {
			t.Errorf("yaml %q does not contain %q", text, frag)
		}
	}
	if strings.Index(text, "MAT:") > strings.Index(text, "xstable:") {
		t.Errorf("yaml %q lost insertion order", text)
	}

	back := NewDict()
	if err := yaml.Unmarshal(out, back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(d) {
		t.Errorf("round trip = %s, want %s", back, d)
	}
	if keys := back.Keys(); keys[0] != "MAT" || keys[4] != "a" {
		t.Errorf("keys = %v, order lost", keys)
	}
	if v, _ := back.Path("a", 2); v != 1.5 {
		t.Errorf("a[2] = %v (%T), want int-keyed 1.5", v, v)
	}
	if v, _ := back.Path("xstable", "NBT"); !ValuesEqual(v, []int{3}) {
		t.Errorf("NBT = %#v", v)
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{2, 2.0, true},
		{2, 3, false},
		{[]int{1, 2}, []float64{1, 2}, true},
		{[]int{1, 2}, []int{1}, false},
		{"abc", "abc", true},
		{1, []int{1}, false},
	}
	for _, tt := range tests {
		if got := ValuesEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("ValuesEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
