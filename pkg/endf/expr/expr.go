// Package expr reduces recipe expressions to the affine form
// offset + coef*unknown in at most one unbound variable, and evaluates the
// boolean conditions of if and until heads.
package expr

import (
	"fmt"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
)

// Env resolves variables for the evaluator. A found value is a number, an
// ast.Expression for an abbreviation, or any other stored value. walkUp
// allows resolution in enclosing sections.
type Env interface {
	Lookup(v *ast.Variable, walkUp bool) (value any, found bool, err error)
}

// Affine is Offset + Coef*Var. Coef is zero when the expression is known;
// Var is nil then. Value carries a non-numeric stored value that a bare
// variable reference resolved to.
type Affine struct {
	Offset Number
	Coef   Number
	Var    *ast.Variable
	Value  any
}

// Known reports whether the expression has no unbound variable.
func (a Affine) Known() bool {
	return a.Coef.IsZero()
}

func (a Affine) String() string {
	if a.Value != nil {
		return fmt.Sprintf("%v", a.Value)
	}
	if a.Known() {
		return a.Offset.String()
	}
	return fmt.Sprintf("%s + %s*%s", a.Offset, a.Coef, a.Var)
}

func constant(n Number) Affine {
	return Affine{Offset: n, Coef: Int(0)}
}

// Evaluator evaluates expressions against an Env.
type Evaluator struct {
	Env           Env
	WalkUp        bool // resolve names in enclosing sections
	CastInt       bool // int/int must divide exactly
	AcceptMissing bool // a missing variable becomes the unknown instead of an error
}

// Eval reduces e to affine form.
func (ev Evaluator) Eval(e ast.Expression) (Affine, error) {
	switch node := e.(type) {
	case *ast.NumberLiteral:
		return constant(numberOf(node)), nil

	case *ast.DesiredNumber:
		return constant(numberOf(node.Number)), nil

	case *ast.InconsistentVar:
		return ev.Eval(node.Var)

	case *ast.Variable:
		return ev.evalVariable(node)

	case *ast.PrefixExpression:
		right, err := ev.numeric(node.Right)
		if err != nil {
			return Affine{}, err
		}
		return Affine{Offset: right.Offset.Neg(), Coef: right.Coef.Neg(), Var: right.Var}, nil

	case *ast.InfixExpression:
		return ev.evalInfix(node)
	}
	return Affine{}, errors.NewSimple(errors.ClassExpression, fmt.Sprintf("cannot evaluate %T", e))
}

func numberOf(lit *ast.NumberLiteral) Number {
	if lit.IsInt {
		return Int(lit.Int)
	}
	return Float(lit.Float)
}

func (ev Evaluator) evalVariable(v *ast.Variable) (Affine, error) {
	val, found, err := ev.Env.Lookup(v, ev.WalkUp)
	if err != nil {
		return Affine{}, err
	}
	if !found {
		if ev.AcceptMissing {
			return Affine{Offset: Int(0), Coef: Int(1), Var: v}, nil
		}
		return Affine{}, errors.New(errors.CodeVariableNotFound, map[string]any{"Name": v.String()})
	}
	if abbrev, ok := val.(ast.Expression); ok {
		return ev.Eval(abbrev)
	}
	if n, ok := FromValue(val); ok {
		return constant(n), nil
	}
	return Affine{Offset: Int(0), Coef: Int(0), Value: val}, nil
}

// numeric evaluates e and rejects non-numeric stored values.
func (ev Evaluator) numeric(e ast.Expression) (Affine, error) {
	a, err := ev.Eval(e)
	if err != nil {
		return a, err
	}
	if a.Value != nil {
		return a, errors.New(errors.CodeNotNumeric,
			map[string]any{"Name": e.String(), "Type": fmt.Sprintf("%T", a.Value)})
	}
	return a, nil
}

func (ev Evaluator) evalInfix(node *ast.InfixExpression) (Affine, error) {
	left, err := ev.numeric(node.Left)
	if err != nil {
		return Affine{}, err
	}
	right, err := ev.numeric(node.Right)
	if err != nil {
		return Affine{}, err
	}

	severalUnbound := func() error {
		return errors.New(errors.CodeSeveralUnbound, map[string]any{"Expr": node.String()})
	}

	switch node.Operator {
	case "+", "-":
		if !left.Known() && !right.Known() {
			return Affine{}, severalUnbound()
		}
		if node.Operator == "-" {
			right = Affine{Offset: right.Offset.Neg(), Coef: right.Coef.Neg(), Var: right.Var}
		}
		res := Affine{Offset: left.Offset.Add(right.Offset), Coef: left.Coef.Add(right.Coef), Var: left.Var}
		if left.Known() {
			res.Var = right.Var
		}
		return res, nil

	case "*":
		if !left.Known() && !right.Known() {
			return Affine{}, severalUnbound()
		}
		if left.Known() {
			return ev.scaled(right, left.Offset), nil
		}
		return ev.scaled(left, right.Offset), nil

	case "/":
		if !right.Known() {
			return Affine{}, errors.New(errors.CodeVariableInDenominator, map[string]any{"Expr": node.String()})
		}
		off, err := left.Offset.Div(right.Offset, ev.CastInt)
		if err != nil {
			return Affine{}, withExpr(err, node)
		}
		coef, err := left.Coef.Div(right.Offset, ev.CastInt)
		if err != nil {
			return Affine{}, withExpr(err, node)
		}
		res := Affine{Offset: off, Coef: coef, Var: left.Var}
		if res.Coef.IsZero() {
			res.Var = nil
		}
		return res, nil

	case "%":
		if !left.Known() || !right.Known() {
			return Affine{}, severalUnbound()
		}
		r, err := left.Offset.Mod(right.Offset)
		if err != nil {
			return Affine{}, withExpr(err, node)
		}
		return constant(r), nil
	}
	return Affine{}, errors.NewSimple(errors.ClassExpression, "unknown operator "+node.Operator)
}

func (ev Evaluator) scaled(a Affine, k Number) Affine {
	res := Affine{Offset: a.Offset.Mul(k), Coef: a.Coef.Mul(k), Var: a.Var}
	if res.Coef.IsZero() {
		res.Var = nil
	}
	return res
}

func withExpr(err error, node ast.Node) error {
	if e, ok := errors.As(err); ok && e.Code == errors.CodeDivisionByZero {
		return errors.New(errors.CodeDivisionByZero, map[string]any{"Expr": node.String()})
	}
	return err
}

// Value evaluates e to a concrete number. Unbound variables are errors.
func (ev Evaluator) Value(e ast.Expression) (Number, error) {
	strict := ev
	strict.AcceptMissing = false
	a, err := strict.numeric(e)
	if err != nil {
		return Number{}, err
	}
	if !a.Known() {
		return Number{}, errors.New(errors.CodeVariableNotFound, map[string]any{"Name": a.Var.String()})
	}
	return a.Offset, nil
}

// Int evaluates e to an integer.
func (ev Evaluator) Int(e ast.Expression) (int, error) {
	n, err := ev.Value(e)
	if err != nil {
		return 0, err
	}
	v, ok := n.AsInt()
	if !ok {
		return 0, errors.New(errors.CodeNonIntegral, map[string]any{"Value": n.String()})
	}
	return v, nil
}

// Condition evaluates a boolean head with short-circuit and/or. With
// missingAsFalse a comparison that references an unbound variable is
// false instead of an error.
func (ev Evaluator) Condition(c ast.Condition, missingAsFalse bool) (bool, error) {
	switch node := c.(type) {
	case *ast.Logical:
		left, err := ev.Condition(node.Left, missingAsFalse)
		if err != nil {
			return false, err
		}
		if node.Operator == "and" && !left {
			return false, nil
		}
		if node.Operator == "or" && left {
			return true, nil
		}
		return ev.Condition(node.Right, missingAsFalse)

	case *ast.Comparison:
		left, err := ev.Value(node.Left)
		if err == nil {
			var right Number
			right, err = ev.Value(node.Right)
			if err == nil {
				return compare(left, node.Operator, right), nil
			}
		}
		if missingAsFalse && errors.HasCode(err, errors.CodeVariableNotFound) {
			return false, nil
		}
		return false, err
	}
	return false, errors.NewSimple(errors.ClassExpression, fmt.Sprintf("cannot evaluate condition %T", c))
}

func compare(a Number, op string, b Number) bool {
	c := a.Compare(b)
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case ">=":
		return c >= 0
	}
	return false
}

// Solve returns the unknown of a with Offset + Coef*x = value.
func Solve(a Affine, value Number, castInt bool) (Number, error) {
	if a.Offset.IsZero() && a.Coef.Equal(Int(1)) {
		return value, nil
	}
	return value.Sub(a.Offset).Div(a.Coef, castInt)
}
