package expr

import (
	"math"
	"strconv"

	"github.com/sambeau/endf/pkg/endf/errors"
)

// Number is an int or a float64. Arithmetic on two ints stays int when
// the result is integral.
type Number struct {
	i     int
	f     float64
	isInt bool
}

// Int returns an integer Number.
func Int(v int) Number { return Number{i: v, isInt: true} }

// Float returns a floating-point Number.
func Float(v float64) Number { return Number{f: v} }

// FromValue converts a stored value to a Number.
func FromValue(v any) (Number, bool) {
	switch n := v.(type) {
	case int:
		return Int(n), true
	case int64:
		return Int(int(n)), true
	case int32:
		return Int(int(n)), true
	case float64:
		return Float(n), true
	case float32:
		return Float(float64(n)), true
	case Number:
		return n, true
	}
	return Number{}, false
}

// IsInt reports whether n holds an int.
func (n Number) IsInt() bool { return n.isInt }

// Float64 returns n as float64.
func (n Number) Float64() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

// Value returns n as int or float64.
func (n Number) Value() any {
	if n.isInt {
		return n.i
	}
	return n.f
}

// AsInt returns n as an int when it is integral.
func (n Number) AsInt() (int, bool) {
	if n.isInt {
		return n.i, true
	}
	if n.f != math.Trunc(n.f) || math.IsInf(n.f, 0) || math.IsNaN(n.f) {
		return 0, false
	}
	return int(n.f), true
}

// IsZero reports whether n equals zero.
func (n Number) IsZero() bool {
	if n.isInt {
		return n.i == 0
	}
	return n.f == 0
}

// Equal compares numerically, so Int(1) equals Float(1.0).
func (n Number) Equal(m Number) bool {
	if n.isInt && m.isInt {
		return n.i == m.i
	}
	return n.Float64() == m.Float64()
}

// Compare returns -1, 0 or +1.
func (n Number) Compare(m Number) int {
	if n.isInt && m.isInt {
		switch {
		case n.i < m.i:
			return -1
		case n.i > m.i:
			return 1
		}
		return 0
	}
	a, b := n.Float64(), m.Float64()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (n Number) String() string {
	if n.isInt {
		return strconv.Itoa(n.i)
	}
	return strconv.FormatFloat(n.f, 'g', -1, 64)
}

// Neg returns -n.
func (n Number) Neg() Number {
	if n.isInt {
		return Int(-n.i)
	}
	return Float(-n.f)
}

// Add returns n + m.
func (n Number) Add(m Number) Number {
	if n.isInt && m.isInt {
		return Int(n.i + m.i)
	}
	return Float(n.Float64() + m.Float64())
}

// Sub returns n - m.
func (n Number) Sub(m Number) Number {
	if n.isInt && m.isInt {
		return Int(n.i - m.i)
	}
	return Float(n.Float64() - m.Float64())
}

// Mul returns n * m.
func (n Number) Mul(m Number) Number {
	if n.isInt && m.isInt {
		return Int(n.i * m.i)
	}
	return Float(n.Float64() * m.Float64())
}

// Div returns n / m. Two ints divide to an int when exact; otherwise the
// result is a float, or an error when castInt is set.
func (n Number) Div(m Number, castInt bool) (Number, error) {
	if m.IsZero() {
		return Number{}, errors.New(errors.CodeDivisionByZero,
			map[string]any{"Expr": n.String() + " / " + m.String()})
	}
	if n.isInt && m.isInt {
		if n.i%m.i == 0 {
			return Int(n.i / m.i), nil
		}
		if castInt {
			return Number{}, errors.New(errors.CodeNonIntegral,
				map[string]any{"Value": n.String() + "/" + m.String()})
		}
	}
	return Float(n.Float64() / m.Float64()), nil
}

// Mod returns n modulo m with the sign of m.
func (n Number) Mod(m Number) (Number, error) {
	if m.IsZero() {
		return Number{}, errors.New(errors.CodeDivisionByZero,
			map[string]any{"Expr": n.String() + " % " + m.String()})
	}
	if n.isInt && m.isInt {
		r := n.i % m.i
		if r != 0 && (r < 0) != (m.i < 0) {
			r += m.i
		}
		return Int(r), nil
	}
	a, b := n.Float64(), m.Float64()
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return Float(r), nil
}

// IsClose reports |x - y| <= atol + rtol*|y|.
func IsClose(x, y Number, atol, rtol float64) bool {
	a, b := x.Float64(), y.Float64()
	return math.Abs(a-b) <= atol+rtol*math.Abs(b)
}
