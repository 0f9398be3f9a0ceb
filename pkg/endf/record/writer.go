package record

import (
	"fmt"
	"strings"

	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/fortran"
)

// WriteOptions control record output.
type WriteOptions struct {
	fortran.WriteOptions
	ZeroAsBlank    bool // terminators carry blank instead of zero fields
	IncludeLinenum bool // append serial numbers to every line
}

// Writer encodes records into lines.
type Writer struct {
	opts WriteOptions
}

// NewWriter returns a Writer for opts.
func NewWriter(opts WriteOptions) *Writer {
	if opts.Width <= 0 {
		opts.Width = fortran.DefaultWidth
	}
	return &Writer{opts: opts}
}

// Options returns the writer's options.
func (w *Writer) Options() WriteOptions { return w.opts }

func (w *Writer) width() int { return w.opts.Width }

func (w *Writer) pad(data string) string {
	return fmt.Sprintf("%-*s", DataWidth(w.width()), data)
}

func (w *Writer) ints(vals ...int) (string, error) {
	var sb strings.Builder
	for _, v := range vals {
		s, err := fortran.WriteInt(v, w.width())
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// Text writes a TEXT record.
func (w *Writer) Text(rec Text) ([]string, error) {
	if len(rec.HL) > DataWidth(w.width()) {
		return nil, errors.New(errors.CodeTextLength,
			map[string]any{"Field": "HL", "Got": len(rec.HL), "Want": DataWidth(w.width())})
	}
	return []string{w.pad(rec.HL) + rec.Ctrl.Format()}, nil
}

func (w *Writer) cont(c Cont) (string, error) {
	c1, err := fortran.WriteFloat(c.C1, w.opts.WriteOptions)
	if err != nil {
		return "", err
	}
	c2, err := fortran.WriteFloat(c.C2, w.opts.WriteOptions)
	if err != nil {
		return "", err
	}
	ints, err := w.ints(c.L1, c.L2, c.N1, c.N2)
	if err != nil {
		return "", err
	}
	return c1 + c2 + ints + c.Ctrl.Format(), nil
}

// Cont writes a HEAD or CONT record.
func (w *Writer) Cont(rec Cont) ([]string, error) {
	line, err := w.cont(rec)
	if err != nil {
		return nil, err
	}
	return []string{line}, nil
}

// Dir writes a DIR record.
func (w *Writer) Dir(rec Dir) ([]string, error) {
	ints, err := w.ints(rec.L1, rec.L2, rec.N1, rec.N2)
	if err != nil {
		return nil, err
	}
	return []string{strings.Repeat(" ", 2*w.width()) + ints + rec.Ctrl.Format()}, nil
}

// Intg writes an INTG record with ndigit digits per KIJ entry.
func (w *Writer) Intg(rec Intg, ndigit int) ([]string, error) {
	pos, err := IntgPositions(ndigit)
	if err != nil {
		return nil, err
	}
	if len(rec.KIJ) > len(pos) {
		return nil, errors.New(errors.CodeUnconsumedElements,
			map[string]any{"Kind": "INTG", "Want": len(pos), "Got": len(rec.KIJ)})
	}
	var sb strings.Builder
	for _, v := range []int{rec.II, rec.JJ} {
		s, err := fortran.WriteInt(v, 5)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	if ndigit != 6 {
		sb.WriteByte(' ')
	}
	for _, v := range rec.KIJ {
		s, err := fortran.WriteInt(v, ndigit+1)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return []string{w.pad(sb.String()) + rec.Ctrl.Format()}, nil
}

// intLines writes integers six per line; the last line is padded.
func (w *Writer) intLines(vals []int, ctrl Ctrl) ([]string, error) {
	var lines []string
	for i := 0; i < len(vals); i += fortran.FieldsPerLine {
		s, err := w.ints(vals[i:min(i+fortran.FieldsPerLine, len(vals))]...)
		if err != nil {
			return nil, err
		}
		lines = append(lines, w.pad(s)+ctrl.Format())
	}
	return lines, nil
}

func (w *Writer) floatLines(vals []float64, ctrl Ctrl) ([]string, error) {
	var lines []string
	for i := 0; i < len(vals); i += fortran.FieldsPerLine {
		s, err := fortran.WriteFloats(vals[i:min(i+fortran.FieldsPerLine, len(vals))], w.opts.WriteOptions)
		if err != nil {
			return nil, err
		}
		lines = append(lines, w.pad(s)+ctrl.Format())
	}
	return lines, nil
}

func interleave[T any](a, b []T) []T {
	out := make([]T, 0, 2*len(a))
	for i := range a {
		out = append(out, a[i], b[i])
	}
	return out
}

func checkPairs(kind, a, b string, na, nb int) error {
	if na != nb {
		return errors.New(errors.CodeSizeMismatch,
			map[string]any{"Field": kind, "Detail": fmt.Sprintf("%s has %d elements but %s has %d", a, na, b, nb)})
	}
	return nil
}

// Tab1 writes a TAB1 record. N1 and N2 are taken from the table sizes.
func (w *Writer) Tab1(rec Tab1) ([]string, error) {
	if err := checkPairs("TAB1", "NBT", "INT", len(rec.NBT), len(rec.INT)); err != nil {
		return nil, err
	}
	if err := checkPairs("TAB1", "X", "Y", len(rec.X), len(rec.Y)); err != nil {
		return nil, err
	}
	head := rec.Cont
	head.N1, head.N2 = len(rec.NBT), len(rec.X)
	lines, err := w.Cont(head)
	if err != nil {
		return nil, err
	}
	ranges, err := w.intLines(interleave(rec.NBT, rec.INT), rec.Ctrl)
	if err != nil {
		return nil, err
	}
	points, err := w.floatLines(interleave(rec.X, rec.Y), rec.Ctrl)
	if err != nil {
		return nil, err
	}
	return append(append(lines, ranges...), points...), nil
}

// Tab2 writes a TAB2 record. N1 is taken from the table size.
func (w *Writer) Tab2(rec Tab2) ([]string, error) {
	if err := checkPairs("TAB2", "NBT", "INT", len(rec.NBT), len(rec.INT)); err != nil {
		return nil, err
	}
	head := rec.Cont
	head.N1 = len(rec.NBT)
	lines, err := w.Cont(head)
	if err != nil {
		return nil, err
	}
	ranges, err := w.intLines(interleave(rec.NBT, rec.INT), rec.Ctrl)
	if err != nil {
		return nil, err
	}
	return append(lines, ranges...), nil
}

// List writes a LIST record. N1 must equal the number of values.
func (w *Writer) List(rec List) ([]string, error) {
	if rec.N1 < len(rec.Vals) {
		return nil, errors.New(errors.CodeUnconsumedElements,
			map[string]any{"Kind": "LIST", "Want": rec.N1, "Got": len(rec.Vals)})
	}
	if rec.N1 > len(rec.Vals) {
		return nil, errors.New(errors.CodeMoreElementsExpected,
			map[string]any{"Kind": "LIST", "Want": rec.N1, "Got": len(rec.Vals)})
	}
	lines, err := w.Cont(rec.Cont)
	if err != nil {
		return nil, err
	}
	body, err := w.floatLines(rec.Vals, rec.Ctrl)
	if err != nil {
		return nil, err
	}
	return append(lines, body...), nil
}

func (w *Writer) terminator(ctrl Ctrl, linenum string) string {
	width := w.width()
	var zf, zi string
	if w.opts.ZeroAsBlank {
		zf = strings.Repeat(" ", width)
		zi = zf
	} else {
		zf, _ = fortran.WriteFloat(0, w.opts.WriteOptions)
		zi = fmt.Sprintf("%*s", width, "0")
	}
	line := zf + zf + zi + zi + zi + zi + ctrl.Format()
	if w.opts.IncludeLinenum {
		line += linenum
	}
	return line
}

// Send writes the section end record for ctrl's MAT and MF.
func (w *Writer) Send(ctrl Ctrl) string {
	return w.terminator(Ctrl{MAT: ctrl.MAT, MF: ctrl.MF}, fmt.Sprint(MaxLineNumber))
}

// Fend writes the file end record for mat.
func (w *Writer) Fend(mat int) string {
	return w.terminator(Ctrl{MAT: mat}, fmt.Sprintf("%*d", LineNumberWidth, 0))
}

// Mend writes the material end record.
func (w *Writer) Mend() string {
	return w.terminator(Ctrl{}, fmt.Sprintf("%*d", LineNumberWidth, 0))
}

// Tend writes the tape end record.
func (w *Writer) Tend() string {
	return w.terminator(Ctrl{MAT: -1}, fmt.Sprintf("%*d", LineNumberWidth, 0))
}
