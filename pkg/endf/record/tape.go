package record

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/fortran"
)

// Tape holds the raw lines of every section, ordered by MF and MT.
type Tape struct {
	files *treemap.Map // MF -> *treemap.Map (MT -> []string)
}

// NewTape returns an empty tape.
func NewTape() *Tape {
	return &Tape{files: treemap.NewWithIntComparator()}
}

// Append adds line to section (mf, mt).
func (t *Tape) Append(mf, mt int, line string) {
	t.Set(mf, mt, append(t.Lines(mf, mt), line))
}

// Set replaces the lines of section (mf, mt).
func (t *Tape) Set(mf, mt int, lines []string) {
	v, ok := t.files.Get(mf)
	if !ok {
		v = treemap.NewWithIntComparator()
		t.files.Put(mf, v)
	}
	v.(*treemap.Map).Put(mt, lines)
}

// Lines returns the lines of section (mf, mt), or nil.
func (t *Tape) Lines(mf, mt int) []string {
	v, ok := t.files.Get(mf)
	if !ok {
		return nil
	}
	lines, ok := v.(*treemap.Map).Get(mt)
	if !ok {
		return nil
	}
	return lines.([]string)
}

// MFs returns the file numbers in ascending order.
func (t *Tape) MFs() []int {
	return intKeys(t.files)
}

// MTs returns the section numbers of file mf in ascending order.
func (t *Tape) MTs(mf int) []int {
	v, ok := t.files.Get(mf)
	if !ok {
		return nil
	}
	return intKeys(v.(*treemap.Map))
}

// Len returns the number of sections.
func (t *Tape) Len() int {
	n := 0
	for _, mf := range t.MFs() {
		n += len(t.MTs(mf))
	}
	return n
}

func intKeys(m *treemap.Map) []int {
	keys := make([]int, 0, m.Size())
	for _, k := range m.Keys() {
		keys = append(keys, k.(int))
	}
	return keys
}

// SplitOptions control how a tape is cut into sections.
type SplitOptions struct {
	Width             int
	IgnoreBlankLines  bool
	IgnoreSendRecords bool
	IgnoreMissingTPID bool
}

// split levels
const (
	levelTapeEnd = -1
	levelTape    = 0
	levelMAT     = 1
	levelMF      = 2
	levelMT      = 3
)

type splitter struct {
	opts  SplitOptions
	tape  *Tape
	level int
	last  Ctrl
}

// SplitSections groups the lines of a tape by section and checks the
// nesting of the SEND, FEND, MEND and TEND records. Terminator records
// are not part of any section.
func SplitSections(lines []string, opts SplitOptions) (*Tape, error) {
	if opts.Width <= 0 {
		opts.Width = fortran.DefaultWidth
	}
	s := &splitter{opts: opts, tape: NewTape()}

	ofs := 0
	for ofs < len(lines) && strings.TrimSpace(lines[ofs]) == "" {
		if !opts.IgnoreBlankLines {
			return nil, errors.New(errors.CodeBlankLine, map[string]any{"Index": ofs})
		}
		ofs++
	}
	if ofs >= len(lines) {
		return nil, errors.New(errors.CodeUnexpectedEnd, map[string]any{"Detail": "the tape contains no records"})
	}

	head, err := ReadCtrl(lines[ofs], opts.Width)
	if err != nil {
		return nil, err
	}
	if head.MF != 0 || head.MT != 0 {
		if !opts.IgnoreMissingTPID {
			return nil, errors.New(errors.CodeMissingTapeID, nil).WithRecord(lines[ofs])
		}
	} else {
		s.tape.Append(0, 0, lines[ofs])
		ofs++
	}

	for ; ofs < len(lines); ofs++ {
		if err := s.line(ofs, lines[ofs]); err != nil {
			return nil, err
		}
	}

	if !opts.IgnoreSendRecords {
		switch {
		case s.level >= levelMAT:
			name := [...]string{"MAT", "MF", "MT"}[s.level-1]
			num := [...]int{s.last.MAT, s.last.MF, s.last.MT}[s.level-1]
			return nil, errors.New(errors.CodeUnexpectedEnd, map[string]any{
				"Detail": fmt.Sprintf("still inside %s=%d; section end records are missing", name, num)})
		case s.level == levelTape:
			return nil, errors.New(errors.CodeUnexpectedEnd, map[string]any{"Detail": "tape end (TEND) record missing"})
		}
	}
	return s.tape, nil
}

func (s *splitter) line(ofs int, line string) error {
	if strings.TrimSpace(line) == "" {
		if s.level == levelTapeEnd || s.opts.IgnoreBlankLines {
			return nil
		}
		return errors.New(errors.CodeBlankLine, map[string]any{"Index": ofs})
	}
	if s.level == levelTapeEnd {
		return s.unexpected(ofs, line, "nothing may follow the tape end (TEND) record")
	}
	c, err := ReadCtrl(line, s.opts.Width)
	if err != nil {
		return err
	}

	if c.MAT != 0 && c.MF != 0 && c.MT != 0 {
		if !s.opts.IgnoreSendRecords {
			for _, chk := range []struct {
				level     int
				name      string
				got, want int
			}{
				{levelMT, "MT", c.MT, s.last.MT},
				{levelMF, "MF", c.MF, s.last.MF},
				{levelMAT, "MAT", c.MAT, s.last.MAT},
			} {
				if s.level >= chk.level && chk.got != chk.want {
					return s.unexpected(ofs, line, fmt.Sprintf("inside %s=%d but found %s=%d", chk.name, chk.want, chk.name, chk.got))
				}
			}
		}
		s.tape.Append(c.MF, c.MT, line)
		s.level = levelMT
		s.last = c
		return nil
	}

	if s.opts.IgnoreSendRecords {
		if c.MAT == -1 {
			s.level = levelTapeEnd
		}
		return nil
	}
	switch {
	case s.level >= levelMF && c.MAT != s.last.MAT:
		return s.endMismatch(ofs, line, "MAT", c.MAT, s.last.MAT)
	case s.level == levelMAT && c.MAT != 0:
		return s.endMismatch(ofs, line, "MAT", c.MAT, 0)
	case s.level >= levelMT && c.MF != s.last.MF:
		return s.endMismatch(ofs, line, "MF", c.MF, s.last.MF)
	case s.level < levelMT && c.MF != 0:
		return s.endMismatch(ofs, line, "MF", c.MF, 0)
	case s.level == levelTape && c.MAT != -1:
		return s.endMismatch(ofs, line, "MAT", c.MAT, -1)
	}
	s.level--
	r := NewReader([]string{line}, fortran.ReadOptions{Width: s.opts.Width, AcceptSpaces: true, BlankAsZero: true})
	_, err = r.Send()
	return err
}

func (s *splitter) unexpected(ofs int, line, detail string) error {
	return errors.New(errors.CodeUnexpectedControl, map[string]any{"Index": ofs, "Detail": detail}).WithRecord(line)
}

func (s *splitter) endMismatch(ofs int, line, name string, got, want int) error {
	return s.unexpected(ofs, line, fmt.Sprintf("expected an end record with %s=%d but found %s=%d", name, want, name, got))
}
