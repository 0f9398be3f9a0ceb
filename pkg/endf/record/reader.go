package record

import (
	"strings"

	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/fortran"
)

// Reader decodes records from the lines of one section.
type Reader struct {
	lines []string
	pos   int
	opts  fortran.ReadOptions
}

// NewReader returns a Reader positioned at the first line.
func NewReader(lines []string, opts fortran.ReadOptions) *Reader {
	if opts.Width <= 0 {
		opts.Width = fortran.DefaultWidth
	}
	return &Reader{lines: lines, opts: opts}
}

// Pos returns the index of the next line to read.
func (r *Reader) Pos() int { return r.pos }

// SetPos moves the reader, e.g. to undo a speculative read.
func (r *Reader) SetPos(pos int) { r.pos = pos }

// Len returns the number of lines.
func (r *Reader) Len() int { return len(r.lines) }

// Line returns line i.
func (r *Reader) Line(i int) string {
	if i < 0 || i >= len(r.lines) {
		return ""
	}
	return r.lines[i]
}

// Done reports whether every line has been consumed.
func (r *Reader) Done() bool { return r.pos >= len(r.lines) }

// SkipBlank advances past blank lines. Running out of lines is an error.
func (r *Reader) SkipBlank() error {
	for r.pos < len(r.lines) && strings.TrimSpace(r.lines[r.pos]) == "" {
		r.pos++
	}
	if r.pos >= len(r.lines) {
		return errors.New(errors.CodeUnexpectedEnd, map[string]any{"Detail": "expected a record but all lines are consumed"})
	}
	return nil
}

// Current returns the line the next record starts on.
func (r *Reader) Current() (string, error) {
	if err := r.SkipBlank(); err != nil {
		return "", err
	}
	return r.lines[r.pos], nil
}

func (r *Reader) next() (string, error) {
	if r.pos >= len(r.lines) {
		return "", errors.New(errors.CodeUnexpectedEnd, map[string]any{"Detail": "record body continues past the last line"})
	}
	line := r.lines[r.pos]
	r.pos++
	return line, nil
}

func (r *Reader) head() (string, error) {
	if err := r.SkipBlank(); err != nil {
		return "", err
	}
	return r.next()
}

func (r *Reader) field(line string, i int) string {
	return fortran.Field(line, i*r.opts.Width, r.opts.Width)
}

func (r *Reader) ints(line string, from int, n int) ([]int, error) {
	out := make([]int, n)
	for i := range out {
		v, err := fortran.ReadInt(r.field(line, from+i), r.opts)
		if err != nil {
			return nil, withRecord(err, line)
		}
		out[i] = v
	}
	return out, nil
}

func (r *Reader) ctrl(line string) (Ctrl, error) {
	return ReadCtrl(line, r.opts.Width)
}

// Text reads a TEXT record.
func (r *Reader) Text() (Text, error) {
	line, err := r.head()
	if err != nil {
		return Text{}, err
	}
	ctrl, err := r.ctrl(line)
	if err != nil {
		return Text{}, err
	}
	return Text{HL: fortran.Field(line, 0, DataWidth(r.opts.Width)), Ctrl: ctrl}, nil
}

func (r *Reader) decodeCont(line string) (Cont, error) {
	var c Cont
	var err error
	if c.C1, err = fortran.ReadFloat(r.field(line, 0), r.opts); err != nil {
		return c, withRecord(err, line)
	}
	if c.C2, err = fortran.ReadFloat(r.field(line, 1), r.opts); err != nil {
		return c, withRecord(err, line)
	}
	ints, err := r.ints(line, 2, 4)
	if err != nil {
		return c, err
	}
	c.L1, c.L2, c.N1, c.N2 = ints[0], ints[1], ints[2], ints[3]
	c.Ctrl, err = r.ctrl(line)
	return c, err
}

// Cont reads a HEAD or CONT record.
func (r *Reader) Cont() (Cont, error) {
	line, err := r.head()
	if err != nil {
		return Cont{}, err
	}
	return r.decodeCont(line)
}

// Dir reads a DIR record.
func (r *Reader) Dir() (Dir, error) {
	line, err := r.head()
	if err != nil {
		return Dir{}, err
	}
	ints, err := r.ints(line, 2, 4)
	if err != nil {
		return Dir{}, err
	}
	ctrl, err := r.ctrl(line)
	return Dir{L1: ints[0], L2: ints[1], N1: ints[2], N2: ints[3], Ctrl: ctrl}, err
}

// Intg reads an INTG record with ndigit digits per KIJ entry.
func (r *Reader) Intg(ndigit int) (Intg, error) {
	pos, err := IntgPositions(ndigit)
	if err != nil {
		return Intg{}, err
	}
	line, err := r.head()
	if err != nil {
		return Intg{}, err
	}
	opts := r.opts
	opts.BlankAsZero = true
	rec := Intg{KIJ: make([]int, len(pos))}
	if rec.II, err = fortran.ReadInt(fortran.Field(line, 0, 5), opts); err != nil {
		return rec, withRecord(err, line)
	}
	if rec.JJ, err = fortran.ReadInt(fortran.Field(line, 5, 5), opts); err != nil {
		return rec, withRecord(err, line)
	}
	for i, p := range pos {
		if rec.KIJ[i], err = fortran.ReadInt(fortran.Field(line, p, ndigit+1), opts); err != nil {
			return rec, withRecord(err, line)
		}
	}
	rec.Ctrl, err = r.ctrl(line)
	return rec, err
}

// numbers reads n values spread six per line.
func (r *Reader) numbers(n int) ([]float64, error) {
	vals := make([]float64, 0, n)
	for n > 0 {
		line, err := r.next()
		if err != nil {
			return nil, err
		}
		m := min(fortran.FieldsPerLine, n)
		row, err := fortran.ReadFloats(line, m, r.opts)
		if err != nil {
			return nil, withRecord(err, line)
		}
		vals = append(vals, row...)
		n -= fortran.FieldsPerLine
	}
	return vals, nil
}

func (r *Reader) intPairs(n int) ([]int, []int, error) {
	vals, err := r.numbers(2 * n)
	if err != nil {
		return nil, nil, err
	}
	a, b := make([]int, n), make([]int, n)
	for i := 0; i < n; i++ {
		if a[i], err = ToInt(vals[2*i], "NBT"); err != nil {
			return nil, nil, err
		}
		if b[i], err = ToInt(vals[2*i+1], "INT"); err != nil {
			return nil, nil, err
		}
	}
	return a, b, nil
}

func checkCount(kind string, n int) error {
	if n < 0 {
		return errors.New(errors.CodeMoreElementsExpected, map[string]any{"Kind": kind, "Want": n, "Got": 0})
	}
	return nil
}

// Tab1 reads a TAB1 record with NR = N1 ranges and NP = N2 points.
func (r *Reader) Tab1() (Tab1, error) {
	c, err := r.Cont()
	if err != nil {
		return Tab1{}, err
	}
	if err := checkCount("TAB1", c.N1); err != nil {
		return Tab1{}, err
	}
	if err := checkCount("TAB1", c.N2); err != nil {
		return Tab1{}, err
	}
	rec := Tab1{Cont: c}
	if rec.NBT, rec.INT, err = r.intPairs(c.N1); err != nil {
		return rec, err
	}
	xy, err := r.numbers(2 * c.N2)
	if err != nil {
		return rec, err
	}
	rec.X, rec.Y = make([]float64, c.N2), make([]float64, c.N2)
	for i := 0; i < c.N2; i++ {
		rec.X[i], rec.Y[i] = xy[2*i], xy[2*i+1]
	}
	return rec, nil
}

// Tab2 reads a TAB2 record with NR = N1 ranges.
func (r *Reader) Tab2() (Tab2, error) {
	c, err := r.Cont()
	if err != nil {
		return Tab2{}, err
	}
	if err := checkCount("TAB2", c.N1); err != nil {
		return Tab2{}, err
	}
	rec := Tab2{Cont: c}
	rec.NBT, rec.INT, err = r.intPairs(c.N1)
	return rec, err
}

// List reads a LIST record with NPL = N1 values.
func (r *Reader) List() (List, error) {
	c, err := r.Cont()
	if err != nil {
		return List{}, err
	}
	if err := checkCount("LIST", c.N1); err != nil {
		return List{}, err
	}
	vals, err := r.numbers(c.N1)
	if err != nil {
		return List{}, err
	}
	return List{Cont: c, Vals: vals}, nil
}

// Send reads a SEND record; every field and MT must be zero.
func (r *Reader) Send() (Ctrl, error) {
	c, err := r.Cont()
	if err != nil {
		return Ctrl{}, err
	}
	if c.C1 != 0 || c.C2 != 0 || c.L1 != 0 || c.L2 != 0 || c.N1 != 0 || c.N2 != 0 || c.Ctrl.MT != 0 {
		return c.Ctrl, errors.New(errors.CodeNotSectionEnd, map[string]any{"Record": r.Line(r.pos - 1)})
	}
	return c.Ctrl, nil
}
