package record

import (
	"strings"
	"testing"

	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/fortran"
)

func line(data string, ctrl string) string {
	return data + strings.Repeat(" ", 66-len(data)) + ctrl
}

func reader(lines ...string) *Reader {
	return NewReader(lines, fortran.DefaultReadOptions())
}

func TestReadCtrl(t *testing.T) {
	tests := []struct {
		line     string
		expected Ctrl
	}{
		{line("", "9237 3  1"), Ctrl{9237, 3, 1}},
		{line("", "  -1 0  0"), Ctrl{-1, 0, 0}},
		{line("", ""), Ctrl{}},
		{"short", Ctrl{}},
	}
	for _, tt := range tests {
		got, err := ReadCtrl(tt.line, 11)
		if err != nil {
			t.Fatalf("ReadCtrl(%q) error: %v", tt.line, err)
		}
		if got != tt.expected {
			t.Errorf("ReadCtrl(%q) = %v, want %v", tt.line, got, tt.expected)
		}
	}

	_, err := ReadCtrl(line("", "92x7 3  1"), 11)
	if !errors.HasCode(err, errors.CodeMalformedInteger) {
		t.Errorf("bad MAT: error = %v, want %s", err, errors.CodeMalformedInteger)
	}
}

func TestReadCont(t *testing.T) {
	r := reader(
		"",
		" 9.223500+4 2.330248+2          0          0          2          0"+"9228 1451",
	)
	c, err := r.Cont()
	if err != nil {
		t.Fatal(err)
	}
	if c.C1 != 92235 || c.C2 != 233.0248 || c.N1 != 2 || c.L1 != 0 {
		t.Errorf("Cont() = %+v", c)
	}
	if c.Ctrl != (Ctrl{9228, 1, 451}) {
		t.Errorf("Ctrl = %v", c.Ctrl)
	}
	if r.Pos() != 2 {
		t.Errorf("Pos() = %d, want 2", r.Pos())
	}
	if _, err := r.Cont(); !errors.HasCode(err, errors.CodeUnexpectedEnd) {
		t.Errorf("past end: error = %v, want %s", err, errors.CodeUnexpectedEnd)
	}
}

func TestReadTab1(t *testing.T) {
	r := reader(
		" 0.000000+0 0.000000+0          0          0          1          3"+"9228 3  1",
		"          3          2                                            "+"9228 3  1",
		" 1.000000-5 1.000000+1 1.000000+0 2.000000+1 2.000000+7 3.000000+1"+"9228 3  1",
	)
	tab, err := r.Tab1()
	if err != nil {
		t.Fatal(err)
	}
	if len(tab.NBT) != 1 || tab.NBT[0] != 3 || tab.INT[0] != 2 {
		t.Errorf("NBT/INT = %v/%v", tab.NBT, tab.INT)
	}
	wantX := []float64{1e-5, 1, 2e7}
	wantY := []float64{10, 20, 30}
	for i := range wantX {
		if tab.X[i] != wantX[i] || tab.Y[i] != wantY[i] {
			t.Errorf("point %d = (%v, %v), want (%v, %v)", i, tab.X[i], tab.Y[i], wantX[i], wantY[i])
		}
	}
	if !r.Done() {
		t.Errorf("reader not done, at %d", r.Pos())
	}
}

func TestReadTab1NonIntegralRange(t *testing.T) {
	r := reader(
		" 0.000000+0 0.000000+0          0          0          1          1"+"9228 3  1",
		" 3.500000+0          2                                            "+"9228 3  1",
		" 1.000000+0 1.000000+0                                            "+"9228 3  1",
	)
	if _, err := r.Tab1(); !errors.HasCode(err, errors.CodeMalformedInteger) {
		t.Errorf("error = %v, want %s", err, errors.CodeMalformedInteger)
	}
}

func TestReadList(t *testing.T) {
	r := reader(
		" 1.000000+0 0.000000+0          0          0          7          0"+"9228 5 18",
		" 1.000000+0 2.000000+0 3.000000+0 4.000000+0 5.000000+0 6.000000+0"+"9228 5 18",
		" 7.000000+0                                                       "+"9228 5 18",
	)
	l, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Vals) != 7 || l.Vals[6] != 7 {
		t.Errorf("Vals = %v", l.Vals)
	}
}

func TestReadIntg(t *testing.T) {
	tests := []struct {
		name   string
		ndigit int
		line   string
		ii, jj int
		kij    []int
	}{
		{
			name:   "ndigit 2",
			ndigit: 2,
			line:   "    3    1 12 -5",
			ii:     3,
			jj:     1,
			kij:    []int{12, -5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name:   "ndigit 6",
			ndigit: 6,
			line:   "   10    2 123456",
			ii:     10,
			jj:     2,
			kij:    []int{123456, 0, 0, 0, 0, 0, 0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := reader(line(tt.line, "9228 8457")).Intg(tt.ndigit)
			if err != nil {
				t.Fatal(err)
			}
			if rec.II != tt.ii || rec.JJ != tt.jj {
				t.Errorf("II, JJ = %d, %d; want %d, %d", rec.II, rec.JJ, tt.ii, tt.jj)
			}
			if len(rec.KIJ) != len(tt.kij) {
				t.Fatalf("len(KIJ) = %d, want %d", len(rec.KIJ), len(tt.kij))
			}
			for i := range tt.kij {
				if rec.KIJ[i] != tt.kij[i] {
					t.Errorf("KIJ[%d] = %d, want %d", i, rec.KIJ[i], tt.kij[i])
				}
			}
		})
	}

	if _, err := reader(line("", "")).Intg(7); !errors.HasCode(err, errors.CodeInvalidNdigit) {
		t.Errorf("ndigit 7: error = %v, want %s", err, errors.CodeInvalidNdigit)
	}
}

func TestReadSend(t *testing.T) {
	if _, err := reader(" 0.000000+0 0.000000+0          0          0          0          09228 3  099999").Send(); err != nil {
		t.Errorf("SEND: %v", err)
	}
	if _, err := reader(line("", "9228 3  0")).Send(); err != nil {
		t.Errorf("blank SEND: %v", err)
	}
	_, err := reader(" 1.000000+0 0.000000+0          0          0          0          09228 3  0").Send()
	if !errors.HasCode(err, errors.CodeNotSectionEnd) {
		t.Errorf("error = %v, want %s", err, errors.CodeNotSectionEnd)
	}
}

func TestWriteRecords(t *testing.T) {
	w := NewWriter(WriteOptions{})
	ctrl := Ctrl{9228, 3, 1}

	lines, err := w.Tab1(Tab1{
		Cont: Cont{C1: 92235, Ctrl: ctrl},
		NBT:  []int{3},
		INT:  []int{2},
		X:    []float64{1e-5, 1, 2e7},
		Y:    []float64{10, 20, 30},
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{
		" 9.223500+4 0.000000+0          0          0          1          39228 3  1",
		"          3          2                                            9228 3  1",
		" 1.000000-5 1.000000+1 1.000000+0 2.000000+1 2.000000+7 3.000000+19228 3  1",
	}
	if len(lines) != len(expected) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(expected), strings.Join(lines, "\n"))
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], expected[i])
		}
	}

	back, err := reader(lines...).Tab1()
	if err != nil {
		t.Fatal(err)
	}
	if back.N1 != 1 || back.N2 != 3 || back.X[2] != 2e7 {
		t.Errorf("read back = %+v", back)
	}
}

func TestWriteDirAndText(t *testing.T) {
	w := NewWriter(WriteOptions{})
	lines, err := w.Dir(Dir{L1: 1, L2: 451, N1: 101, N2: 5, Ctrl: Ctrl{9228, 1, 451}})
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Repeat(" ", 32) + "1        451        101          5" + "9228 1451"
	if lines[0] != want {
		t.Errorf("Dir = %q, want %q", lines[0], want)
	}

	if _, err := w.Text(Text{HL: strings.Repeat("x", 67)}); !errors.HasCode(err, errors.CodeTextLength) {
		t.Errorf("long text: error = %v, want %s", err, errors.CodeTextLength)
	}
	lines, err = w.Text(Text{HL: "hello", Ctrl: Ctrl{1, 0, 0}})
	if err != nil || len(lines[0]) != 75 || !strings.HasPrefix(lines[0], "hello ") {
		t.Errorf("Text = %q, %v", lines, err)
	}
}

func TestWriteIntg(t *testing.T) {
	w := NewWriter(WriteOptions{})
	lines, err := w.Intg(Intg{II: 3, JJ: 1, KIJ: []int{12, -5}, Ctrl: Ctrl{9228, 8, 457}}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := line("    3    1  12 -5", "9228 8457"); lines[0] != want {
		t.Errorf("Intg = %q, want %q", lines[0], want)
	}
	rec, err := reader(lines...).Intg(2)
	if err != nil || rec.KIJ[0] != 12 || rec.KIJ[1] != -5 {
		t.Errorf("read back = %+v, %v", rec, err)
	}
}

func TestWriteListCounts(t *testing.T) {
	w := NewWriter(WriteOptions{})
	tests := []struct {
		name string
		npl  int
		code string
	}{
		{"too few declared", 1, errors.CodeUnconsumedElements},
		{"too many declared", 3, errors.CodeMoreElementsExpected},
		{"exact", 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.List(List{Cont: Cont{N1: tt.npl}, Vals: []float64{1, 2}})
			if tt.code == "" {
				if err != nil {
					t.Errorf("error: %v", err)
				}
				return
			}
			if !errors.HasCode(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestTerminators(t *testing.T) {
	w := NewWriter(WriteOptions{IncludeLinenum: true})
	zeros := " 0.000000+0 0.000000+0          0          0          0          0"
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"SEND", w.Send(Ctrl{9228, 3, 1}), zeros + "9228 3  099999"},
		{"FEND", w.Fend(9228), zeros + "9228 0  0    0"},
		{"MEND", w.Mend(), zeros + "   0 0  0    0"},
		{"TEND", w.Tend(), zeros + "  -1 0  0    0"},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
		}
	}

	blank := NewWriter(WriteOptions{ZeroAsBlank: true})
	if got := blank.Send(Ctrl{9228, 3, 1}); got != line("", "9228 3  0") {
		t.Errorf("blank SEND = %q", got)
	}
}

func TestAddLineNumbers(t *testing.T) {
	lines := []string{line("a", "9228 3  1") + "  extra", line("b", "9228 3  1")}
	got, err := AddLineNumbers(lines, 11, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got[0], "9228 3  1    1") || !strings.HasSuffix(got[1], "    2") {
		t.Errorf("numbered = %q", got)
	}

	head := []string{line("tape", "   1 0  0")}
	got, _ = AddLineNumbers(head, 11, true)
	if !strings.HasSuffix(got[0], "    0") {
		t.Errorf("tape head numbered = %q, want serial 0", got[0])
	}

	got, _ = AddLineNumbers(lines, 11, false)
	if len(got[0]) != 75 {
		t.Errorf("unnumbered length = %d, want 75", len(got[0]))
	}
}

func sampleTape() []string {
	zeros := " 0.000000+0 0.000000+0          0          0          0          0"
	return []string{
		line(" tape id", "   1 0  0"),
		line("head", "9228 1451"),
		line("body", "9228 1451"),
		zeros + "9228 1  0",
		zeros + "9228 0  0",
		line("xs", "9228 3  1"),
		zeros + "9228 3  0",
		line("xs", "9228 3  2"),
		zeros + "9228 3  0",
		zeros + "9228 0  0",
		zeros + "   0 0  0",
		zeros + "  -1 0  0",
		"",
	}
}

func TestSplitSections(t *testing.T) {
	tape, err := SplitSections(sampleTape(), SplitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := tape.MFs(); len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 3 {
		t.Errorf("MFs() = %v, want [0 1 3]", got)
	}
	if got := tape.MTs(3); len(got) != 2 || got[1] != 2 {
		t.Errorf("MTs(3) = %v", got)
	}
	if got := tape.Lines(1, 451); len(got) != 2 {
		t.Errorf("Lines(1, 451) = %q", got)
	}
	if tape.Len() != 4 {
		t.Errorf("Len() = %d, want 4", tape.Len())
	}
}

func TestSplitSectionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]string) []string
		opts   SplitOptions
		code   string
	}{
		{
			name:   "leading blank line",
			mutate: func(l []string) []string { return append([]string{""}, l...) },
			code:   errors.CodeBlankLine,
		},
		{
			name:   "blank line inside",
			mutate: func(l []string) []string { l[2] = ""; return l },
			code:   errors.CodeBlankLine,
		},
		{
			name:   "missing tape id",
			mutate: func(l []string) []string { return l[1:] },
			code:   errors.CodeMissingTapeID,
		},
		{
			name:   "missing TEND",
			mutate: func(l []string) []string { return l[:11] },
			code:   errors.CodeUnexpectedEnd,
		},
		{
			name:   "missing SEND",
			mutate: func(l []string) []string { return append(l[:6:6], l[7:]...) },
			code:   errors.CodeUnexpectedControl,
		},
		{
			name:   "record after TEND",
			mutate: func(l []string) []string { l[12] = line("x", "9228 3  1"); return l },
			code:   errors.CodeUnexpectedControl,
		},
		{
			name:   "section not closed at end",
			mutate: func(l []string) []string { return l[:6] },
			code:   errors.CodeUnexpectedEnd,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SplitSections(tt.mutate(sampleTape()), tt.opts)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestSplitSectionsLenient(t *testing.T) {
	lines := sampleTape()[1:]
	lines = append(lines[:3], lines[4:]...)
	tape, err := SplitSections(lines, SplitOptions{IgnoreMissingTPID: true, IgnoreSendRecords: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(tape.MTs(0)) != 0 {
		t.Errorf("MF0 present without a tape id")
	}
	if len(tape.Lines(3, 1)) != 1 {
		t.Errorf("Lines(3, 1) = %q", tape.Lines(3, 1))
	}
}

func TestSplitSectionsLenientTapeEnd(t *testing.T) {
	opts := SplitOptions{IgnoreSendRecords: true}

	lines := append(sampleTape(), "", "")
	if _, err := SplitSections(lines, opts); err != nil {
		t.Fatalf("blank lines after TEND: %v", err)
	}

	lines = append(sampleTape(), line("xs", "9228 3  1"))
	_, err := SplitSections(lines, opts)
	if !errors.HasCode(err, errors.CodeUnexpectedControl) {
		t.Errorf("record after TEND: error = %v, want %s", err, errors.CodeUnexpectedControl)
	}
}
