package mapper

import (
	"fmt"
	"strings"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/fortran"
	"github.com/sambeau/endf/pkg/endf/record"
)

// ReadText slices the HL field of a TEXT record into its placeholders. A
// placeholder without a length takes the rest of the line.
func (m *Mapper) ReadText(fields []*ast.TextPlaceholder, hl string) error {
	pos := 0
	for _, f := range fields {
		upper := len(hl)
		if f.Length >= 0 {
			upper = pos + f.Length
		}
		if pos >= upper {
			return errors.New(errors.CodeSizeMismatch, map[string]any{
				"Field":  "HL",
				"Detail": fmt.Sprintf("placeholders need more than the %d characters of the line", len(hl)),
			})
		}
		text := hl[min(pos, len(hl)):min(upper, len(hl))]
		if f.Var != nil {
			if err := m.Scope.Bind(f.Var, text); err != nil {
				return err
			}
		}
		pos = upper
	}
	return nil
}

// WriteText assembles the HL field. A placeholder with a length must hold
// a string of exactly that length; one without a variable is blank.
func (m *Mapper) WriteText(fields []*ast.TextPlaceholder) (string, error) {
	var sb strings.Builder
	for _, f := range fields {
		if f.Var == nil {
			sb.WriteString(strings.Repeat(" ", max(f.Length, 0)))
			continue
		}
		v, found, err := m.Scope.Lookup(f.Var, false)
		if err != nil {
			return "", err
		}
		if !found {
			return "", m.notFound(f.Var)
		}
		text, ok := v.(string)
		if !ok {
			text = fmt.Sprint(v)
		}
		if f.Length >= 0 && len(text) != f.Length {
			return "", errors.New(errors.CodeTextLength,
				map[string]any{"Field": m.Scope.Resolve(f.Var), "Got": len(text), "Want": f.Length})
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// padding returns how many values skip to the start of the next line.
func padding(idx int) int {
	return (fortran.FieldsPerLine - idx%fortran.FieldsPerLine) % fortran.FieldsPerLine
}

// ReadListBody binds the values of a LIST body. Every value must be
// consumed.
func (m *Mapper) ReadListBody(src Source, items []ast.ListItem, vals []float64) error {
	idx := 0
	var walk func(items []ast.ListItem) error
	walk = func(items []ast.ListItem) error {
		for _, item := range items {
			switch it := item.(type) {
			case *ast.ListValue:
				if idx >= len(vals) {
					return errors.New(errors.CodeMoreElementsExpected,
						map[string]any{"Kind": "LIST", "Want": idx + 1, "Got": len(vals)}).WithRecord(src.Line)
				}
				if err := m.ReadFields(src, []string{"val"}, []any{vals[idx]}, []ast.Expression{it.Value}); err != nil {
					return err
				}
				idx++
			case *ast.PadLine:
				idx += padding(idx)
			case *ast.ListLoop:
				err := m.Scope.ForLoop(it.Var, it.Start, it.Stop, func() error {
					return walk(it.Body)
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(items); err != nil {
		return err
	}
	if idx < len(vals) {
		return errors.New(errors.CodeUnconsumedElements,
			map[string]any{"Kind": "LIST", "Want": idx, "Got": len(vals)}).WithRecord(src.Line)
	}
	return nil
}

// WriteListBody evaluates a LIST body. PADLINE fills the current line with
// zeros.
func (m *Mapper) WriteListBody(items []ast.ListItem) ([]float64, error) {
	var vals []float64
	var walk func(items []ast.ListItem) error
	walk = func(items []ast.ListItem) error {
		for _, item := range items {
			switch it := item.(type) {
			case *ast.ListValue:
				out, err := m.WriteFields([]string{"val"}, []ast.Expression{it.Value})
				if err != nil {
					return err
				}
				f, err := record.ToFloat(out[0], it.Value.String())
				if err != nil {
					return err
				}
				vals = append(vals, f)
			case *ast.PadLine:
				vals = append(vals, make([]float64, padding(len(vals)))...)
			case *ast.ListLoop:
				err := m.Scope.ForLoop(it.Var, it.Start, it.Stop, func() error {
					return walk(it.Body)
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(items); err != nil {
		return nil, err
	}
	return vals, nil
}
