// Package record reads and writes the physical records of a tape: the
// six-field line layout, the MAT/MF/MT control columns, the record kinds
// (TEXT, HEAD/CONT, DIR, INTG, TAB1, TAB2, LIST) and the section
// terminators.
package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/expr"
	"github.com/sambeau/endf/pkg/endf/fortran"
)

// LineNumberWidth is the width of the trailing serial number column.
const LineNumberWidth = 5

// MaxLineNumber is the largest serial number before numbering wraps.
const MaxLineNumber = 99999

// Ctrl is the control triple of a physical record.
type Ctrl struct {
	MAT int
	MF  int
	MT  int
}

func (c Ctrl) String() string {
	return fmt.Sprintf("MAT=%d MF=%d MT=%d", c.MAT, c.MF, c.MT)
}

// Format renders the control columns, e.g. "9237 3  1".
func (c Ctrl) Format() string {
	return fmt.Sprintf("%4d%2d%3d", c.MAT, c.MF, c.MT)
}

// DataWidth returns the number of data columns for a field width.
func DataWidth(width int) int {
	if width <= 0 {
		width = fortran.DefaultWidth
	}
	return width * fortran.FieldsPerLine
}

// ReadCtrl decodes the control columns of line. Blank columns are zero.
func ReadCtrl(line string, width int) (Ctrl, error) {
	ofs := DataWidth(width)
	parts := [3]string{
		fortran.Field(line, ofs, 4),
		fortran.Field(line, ofs+4, 2),
		fortran.Field(line, ofs+6, 3),
	}
	var vals [3]int
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return Ctrl{}, errors.New(errors.CodeMalformedInteger, map[string]any{"Text": parts[i]}).WithRecord(line)
		}
		vals[i] = v
	}
	return Ctrl{MAT: vals[0], MF: vals[1], MT: vals[2]}, nil
}

// Text is a TEXT record.
type Text struct {
	HL   string
	Ctrl Ctrl
}

// Cont is a HEAD or CONT record.
type Cont struct {
	C1, C2         float64
	L1, L2, N1, N2 int
	Ctrl           Ctrl
}

// Dir is a DIR record: two blank fields followed by four integers.
type Dir struct {
	L1, L2, N1, N2 int
	Ctrl           Ctrl
}

// Intg is an INTG record of a compressed correlation matrix row.
type Intg struct {
	II, JJ int
	KIJ    []int
	Ctrl   Ctrl
}

// Tab1 is a TAB1 record: a CONT head, interpolation ranges and x/y pairs.
type Tab1 struct {
	Cont
	NBT, INT []int
	X, Y     []float64
}

// Tab2 is a TAB2 record: a CONT head and interpolation ranges.
type Tab2 struct {
	Cont
	NBT, INT []int
}

// List is a LIST record: a CONT head and N1 values.
type List struct {
	Cont
	Vals []float64
}

// IntgPositions returns the start columns of the KIJ fields for ndigit.
func IntgPositions(ndigit int) ([]int, error) {
	if ndigit < 2 || ndigit > 6 {
		return nil, errors.New(errors.CodeInvalidNdigit, map[string]any{"Value": ndigit})
	}
	start := 11
	if ndigit == 6 {
		start = 10
	}
	var pos []int
	for i := start; i < 65; i += ndigit + 1 {
		pos = append(pos, i)
	}
	return pos, nil
}

// ToInt converts a value bound for an integer slot. Integral floats are
// accepted.
func ToInt(v any, slot string) (int, error) {
	n, ok := expr.FromValue(v)
	if !ok {
		return 0, errors.New(errors.CodeMalformedInteger, map[string]any{"Text": fmt.Sprint(v)}).WithPath(slot)
	}
	i, ok := n.AsInt()
	if !ok {
		return 0, errors.New(errors.CodeMalformedInteger, map[string]any{"Text": n.String()}).WithPath(slot)
	}
	return i, nil
}

// ToFloat converts a value bound for a float slot.
func ToFloat(v any, slot string) (float64, error) {
	n, ok := expr.FromValue(v)
	if !ok {
		return 0, errors.New(errors.CodeMalformedFloat, map[string]any{"Text": fmt.Sprint(v)}).WithPath(slot)
	}
	return n.Float64(), nil
}

// AddLineNumbers cuts lines after the control columns and, when include
// is set, appends serial numbers. Numbering starts at 1, or at 0 for the
// tape head, and wraps after MaxLineNumber.
func AddLineNumbers(lines []string, width int, include bool) ([]string, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	ctrl, err := ReadCtrl(lines[0], width)
	if err != nil {
		return nil, err
	}
	end := DataWidth(width) + 9
	ofs := 1
	if ctrl.MF == 0 {
		ofs = 0
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		line = fortran.Field(line, 0, end)
		if include {
			line += fmt.Sprintf("%*d", LineNumberWidth, i%MaxLineNumber+ofs)
		}
		out[i] = line
	}
	return out, nil
}

func withRecord(err error, line string) error {
	if e, ok := errors.As(err); ok && e.Record == "" {
		return e.WithRecord(line)
	}
	return err
}
