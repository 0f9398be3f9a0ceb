package expr

import (
	"strconv"
	"strings"
	"testing"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/parser"
)

// mapEnv keys values by name with concrete indices, e.g. "B[1]".
type mapEnv map[string]any

func (m mapEnv) Lookup(v *ast.Variable, walkUp bool) (any, bool, error) {
	key := v.Name
	if len(v.Indices) > 0 {
		parts := make([]string, len(v.Indices))
		for i, idx := range v.Indices {
			n, err := Evaluator{Env: m}.Int(idx)
			if err != nil {
				return nil, false, err
			}
			parts[i] = strconv.Itoa(n)
		}
		key += "[" + strings.Join(parts, ",") + "]"
	}
	val, ok := m[key]
	return val, ok, nil
}

func parseExpr(t *testing.T, src string) ast.Expression {
	t.Helper()
	recipe, err := parser.Parse("Z := "+src+"\n", "test.recipe")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	abbrev, ok := recipe.Statements[0].(*ast.Abbreviation)
	if !ok {
		t.Fatalf("parse %q: got %T", src, recipe.Statements[0])
	}
	return abbrev.Value
}

func TestValue(t *testing.T) {
	env := mapEnv{
		"NE":   4,
		"A[1]": 9,
		"B[1]": 42,
		"AWR":  2.5,
		"HALF": parseExpr(t, "NE / 2"),
	}
	tests := []struct {
		input string
		want  string
	}{
		{"NE * (NE + 1) / 2", "10"},
		{"B[A[1] - 8]", "42"},
		{"AWR * 2", "5"},
		{"-NE + 1", "-3"},
		{"7 % 3", "1"},
		{"-7 % 3", "2"},
		{"7 % -3", "-2"},
		{"HALF + 1", "3"},
		{"NE / 8", "0.5"},
		{"1.5e2", "150"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Evaluator{Env: env}.Value(parseExpr(t, tt.input))
			if err != nil {
				t.Fatalf("Value(%q) error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("Value(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestIntegerDivision(t *testing.T) {
	env := mapEnv{"N": 6}
	ev := Evaluator{Env: env, CastInt: true}

	got, err := ev.Value(parseExpr(t, "N / 3"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsInt() || got.String() != "2" {
		t.Errorf("N / 3 = %v (int=%v), want int 2", got, got.IsInt())
	}

	_, err = ev.Value(parseExpr(t, "N / 4"))
	if !errors.HasCode(err, errors.CodeNonIntegral) {
		t.Errorf("N / 4 error = %v, want %s", err, errors.CodeNonIntegral)
	}

	_, err = ev.Value(parseExpr(t, "N / (N - 6)"))
	if !errors.HasCode(err, errors.CodeDivisionByZero) {
		t.Errorf("N / 0 error = %v, want %s", err, errors.CodeDivisionByZero)
	}
}

func TestEvalAffine(t *testing.T) {
	env := mapEnv{"NE": 4}
	ev := Evaluator{Env: env, AcceptMissing: true}

	tests := []struct {
		input  string
		offset string
		coef   string
		varStr string
	}{
		{"X", "0", "1", "X"},
		{"2 * X + 1", "1", "2", "X"},
		{"(X - NE) * 3", "-12", "3", "X"},
		{"NE - X", "4", "-1", "X"},
		{"X * 0 + NE", "4", "0", ""},
		{"2 * X / 2", "0", "1", "X"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, err := ev.Eval(parseExpr(t, tt.input))
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.input, err)
			}
			if a.Offset.String() != tt.offset || a.Coef.String() != tt.coef {
				t.Errorf("Eval(%q) = %s + %s*x, want %s + %s*x", tt.input, a.Offset, a.Coef, tt.offset, tt.coef)
			}
			gotVar := ""
			if a.Var != nil {
				gotVar = a.Var.String()
			}
			if gotVar != tt.varStr {
				t.Errorf("Eval(%q) var = %q, want %q", tt.input, gotVar, tt.varStr)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	env := mapEnv{"NE": 4, "TEXT": "hello"}
	ev := Evaluator{Env: env, AcceptMissing: true}

	tests := []struct {
		input string
		code  string
	}{
		{"X * Y", errors.CodeSeveralUnbound},
		{"X + Y", errors.CodeSeveralUnbound},
		{"NE / X", errors.CodeVariableInDenominator},
		{"X % 2", errors.CodeSeveralUnbound},
		{"TEXT + 1", errors.CodeNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ev.Eval(parseExpr(t, tt.input))
			if !errors.HasCode(err, tt.code) {
				t.Errorf("Eval(%q) error = %v, want %s", tt.input, err, tt.code)
			}
		})
	}

	strict := Evaluator{Env: env}
	if _, err := strict.Eval(parseExpr(t, "X + 1")); !errors.HasCode(err, errors.CodeVariableNotFound) {
		t.Errorf("strict Eval error = %v, want %s", err, errors.CodeVariableNotFound)
	}
}

func TestSolve(t *testing.T) {
	env := mapEnv{"NE": 4}
	ev := Evaluator{Env: env, AcceptMissing: true}

	tests := []struct {
		input   string
		value   Number
		castInt bool
		want    string
		code    string
	}{
		{"X", Int(7), true, "7", ""},
		{"X", Float(1.25), true, "1.25", ""},
		{"2 * X + NE", Int(10), true, "3", ""},
		{"2 * X", Int(5), true, "", errors.CodeNonIntegral},
		{"2 * X", Float(5), false, "2.5", ""},
		{"NE - X", Int(1), true, "3", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, err := ev.Eval(parseExpr(t, tt.input))
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.input, err)
			}
			got, err := Solve(a, tt.value, tt.castInt)
			if tt.code != "" {
				if !errors.HasCode(err, tt.code) {
					t.Errorf("Solve(%q) error = %v, want %s", tt.input, err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Solve(%q) error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("Solve(%q, %s) = %s, want %s", tt.input, tt.value, got, tt.want)
			}
		})
	}
}

func parseCond(t *testing.T, src string) ast.Condition {
	t.Helper()
	recipe, err := parser.Parse("if "+src+":\nSEND\nendif\n", "test.recipe")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	stmt, ok := recipe.Statements[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("parse %q: got %T", src, recipe.Statements[0])
	}
	return stmt.Branches[0].Cond
}

func TestCondition(t *testing.T) {
	env := mapEnv{"LTT": 1, "LI": 0, "NK": 2.0}
	ev := Evaluator{Env: env}

	tests := []struct {
		input string
		want  bool
	}{
		{"LTT == 1", true},
		{"LTT != 1", false},
		{"LTT == 1 and LI == 0", true},
		{"LTT == 2 or LI == 0", true},
		{"LTT == 2 or LI == 1", false},
		{"(LTT == 1 or LTT == 2) and LI == 0", true},
		{"NK == 2", true},
		{"NK >= 3", false},
		{"LTT + 1 > NK - 1", true},
		{"MISSING == 1", false},
		{"LTT == 1 or MISSING == 1", true},
		{"LTT == 2 and MISSING == 1", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ev.Condition(parseCond(t, tt.input), true)
			if err != nil {
				t.Fatalf("Condition(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Condition(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if _, err := ev.Condition(parseCond(t, "MISSING == 1"), false); !errors.HasCode(err, errors.CodeVariableNotFound) {
		t.Errorf("missing variable error = %v, want %s", err, errors.CodeVariableNotFound)
	}
}

func TestNumberMod(t *testing.T) {
	tests := []struct {
		a, b Number
		want string
	}{
		{Int(7), Int(3), "1"},
		{Int(-7), Int(3), "2"},
		{Int(7), Int(-3), "-2"},
		{Float(5.5), Int(2), "1.5"},
		{Float(-5.5), Int(2), "0.5"},
	}
	for _, tt := range tests {
		got, err := tt.a.Mod(tt.b)
		if err != nil {
			t.Fatalf("%s %% %s error: %v", tt.a, tt.b, err)
		}
		if got.String() != tt.want {
			t.Errorf("%s %% %s = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIsClose(t *testing.T) {
	tests := []struct {
		x, y       Number
		atol, rtol float64
		want       bool
	}{
		{Float(1.0), Float(1.0 + 1e-9), 0, 1e-6, true},
		{Float(1.0), Float(1.1), 0, 1e-6, false},
		{Int(0), Float(1e-12), 1e-10, 0, true},
		{Int(3), Int(3), 0, 0, true},
	}
	for _, tt := range tests {
		if got := IsClose(tt.x, tt.y, tt.atol, tt.rtol); got != tt.want {
			t.Errorf("IsClose(%s, %s) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}
