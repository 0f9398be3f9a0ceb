package interp

import (
	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/mapper"
	"github.com/sambeau/endf/pkg/endf/record"
	"github.com/sambeau/endf/pkg/endf/scope"
)

var (
	contKeys  = []string{"C1", "C2", "L1", "L2", "N1", "N2"}
	dirKeys   = []string{"L1", "L2", "N1", "N2"}
	intgKeys  = []string{"II", "JJ", "KIJ"}
	tab1Keys  = []string{"NBT", "INT", "X", "Y"}
	tab2Head  = []string{"C1", "C2", "L1", "L2", "N2"}
	rangeKeys = []string{"NBT", "INT"}
)

// Interpolation ranges of TAB1 and TAB2 records are stored under these
// names in the table's section.
var (
	nbtVar = &ast.Variable{Name: "NBT"}
	intVar = &ast.Variable{Name: "INT"}
)

func recordCtrl(stmt ast.Statement) ast.CtrlSpec {
	switch node := stmt.(type) {
	case *ast.TextRecord:
		return node.Ctrl
	case *ast.ContRecord:
		return node.Ctrl
	case *ast.DirRecord:
		return node.Ctrl
	case *ast.IntgRecord:
		return node.Ctrl
	case *ast.Tab1Record:
		return node.Ctrl
	case *ast.Tab2Record:
		return node.Ctrl
	case *ast.ListRecord:
		return node.Ctrl
	}
	return ast.CtrlSpec{
		MAT: ast.CtrlField{Name: "MAT", Wildcard: true},
		MF:  ast.CtrlField{Name: "MF", Wildcard: true},
		MT:  ast.CtrlField{Name: "MT", Wildcard: true},
	}
}

// checkCtrl compares the MAT, MF, MT guard of a recipe record with the
// control numbers in effect.
func checkCtrl(spec ast.CtrlSpec, got record.Ctrl) error {
	have := [3]int{got.MAT, got.MF, got.MT}
	for i, f := range spec.Fields() {
		if f.Wildcard || f.Value == have[i] {
			continue
		}
		return errors.New(errors.CodeCategoryMismatch,
			map[string]any{"Field": [...]string{"MAT", "MF", "MT"}[i], "Got": have[i], "Want": f.Value})
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reading

// begin positions the reader on the next record and logs it.
func (it *Interpreter) begin(stmt ast.Statement) (mapper.Source, error) {
	pos := it.reader.Pos()
	it.scope.Journal().Record(func() { it.reader.SetPos(pos) })
	if err := it.reader.SkipBlank(); err != nil {
		return mapper.Source{}, err
	}
	line := it.reader.Line(it.reader.Pos())
	it.records.Save(LogEntry{Index: it.reader.Pos(), Line: line, Spec: stmt.String()})
	it.log.Debug("line %d: %s", it.reader.Pos()+1, stmt)
	return mapper.Source{Line: line, Spec: stmt.String()}, nil
}

func (it *Interpreter) readRecord(stmt ast.Statement) error {
	src, err := it.begin(stmt)
	if err != nil {
		return err
	}
	if err := it.readBody(stmt, src); err != nil {
		if e, ok := errors.As(err); ok && e.Record == "" {
			return e.WithRecord(src.Line)
		}
		return err
	}
	return nil
}

func (it *Interpreter) readBody(stmt ast.Statement, src mapper.Source) error {
	switch node := stmt.(type) {
	case *ast.TextRecord:
		rec, err := it.reader.Text()
		if err != nil {
			return err
		}
		if err := checkCtrl(node.Ctrl, rec.Ctrl); err != nil {
			return err
		}
		return it.mapper.ReadText(node.Fields, rec.HL)

	case *ast.ContRecord:
		rec, err := it.reader.Cont()
		if err != nil {
			return err
		}
		if err := checkCtrl(node.Ctrl, rec.Ctrl); err != nil {
			return err
		}
		return it.mapper.ReadFields(src, contKeys, contValues(rec), node.Fields)

	case *ast.DirRecord:
		rec, err := it.reader.Dir()
		if err != nil {
			return err
		}
		if err := checkCtrl(node.Ctrl, rec.Ctrl); err != nil {
			return err
		}
		return it.mapper.ReadFields(src, dirKeys, []any{rec.L1, rec.L2, rec.N1, rec.N2}, node.Fields)

	case *ast.IntgRecord:
		ndigit, err := it.evaluator().Int(node.Ndigit)
		if err != nil {
			return err
		}
		rec, err := it.reader.Intg(ndigit)
		if err != nil {
			return err
		}
		if err := checkCtrl(node.Ctrl, rec.Ctrl); err != nil {
			return err
		}
		return it.mapper.ReadFields(src, intgKeys, []any{rec.II, rec.JJ, rec.KIJ}, node.Fields)

	case *ast.Tab1Record:
		rec, err := it.reader.Tab1()
		if err != nil {
			return err
		}
		if err := checkCtrl(node.Ctrl, rec.Ctrl); err != nil {
			return err
		}
		if err := it.mapper.ReadFields(src, contKeys[:4], contValues(rec.Cont)[:4], node.Fields[:4]); err != nil {
			return err
		}
		return it.table(node.Name, func() error {
			return it.mapper.ReadFields(src, tab1Keys,
				[]any{rec.NBT, rec.INT, rec.X, rec.Y},
				[]ast.Expression{nbtVar, intVar, node.X, node.Y})
		})

	case *ast.Tab2Record:
		rec, err := it.reader.Tab2()
		if err != nil {
			return err
		}
		if err := checkCtrl(node.Ctrl, rec.Ctrl); err != nil {
			return err
		}
		head := contValues(rec.Cont)
		if err := it.mapper.ReadFields(src, tab2Head,
			[]any{head[0], head[1], head[2], head[3], head[5]}, tab2Fields(node)); err != nil {
			return err
		}
		return it.table(node.Name, func() error {
			return it.mapper.ReadFields(src, rangeKeys, []any{rec.NBT, rec.INT}, []ast.Expression{nbtVar, intVar})
		})

	case *ast.ListRecord:
		rec, err := it.reader.List()
		if err != nil {
			return err
		}
		if err := checkCtrl(node.Ctrl, rec.Ctrl); err != nil {
			return err
		}
		if err := it.mapper.ReadFields(src, contKeys, contValues(rec.Cont), node.Fields); err != nil {
			return err
		}
		return it.table(node.Name, func() error {
			return it.mapper.ReadListBody(src, node.Body, rec.Vals)
		})

	case *ast.SendRecord:
		_, err := it.reader.Send()
		return err
	}
	return nil
}

func contValues(c record.Cont) []any {
	return []any{c.C1, c.C2, c.L1, c.L2, c.N1, c.N2}
}

// tab2Fields drops NR, which the record derives from its table.
func tab2Fields(node *ast.Tab2Record) []ast.Expression {
	return []ast.Expression{node.Fields[0], node.Fields[1], node.Fields[2], node.Fields[3], node.Fields[5]}
}

// table maps the body of a TAB1, TAB2 or LIST record, inside the named
// section if there is one. The body counts as an action of its own in a
// lookahead.
func (it *Interpreter) table(name *ast.Variable, body func() error) error {
	if !it.proceed(true) {
		return nil
	}
	if name == nil {
		return body()
	}
	if err := it.scope.OpenSection(name, it.mode == ModeRead); err != nil {
		return err
	}
	if err := body(); err != nil {
		return err
	}
	return it.scope.CloseSection()
}

// ---------------------------------------------------------------------------
// Writing

func (it *Interpreter) ctrl() (record.Ctrl, error) {
	mat, mf, mt, err := it.scope.Ctrl()
	return record.Ctrl{MAT: mat, MF: mf, MT: mt}, err
}

func (it *Interpreter) emit(lines ...string) {
	n := len(it.out)
	it.scope.Journal().Record(func() { it.out = it.out[:n] })
	it.out = append(it.out, lines...)
}

func (it *Interpreter) writeRecord(stmt ast.Statement) error {
	it.records.Save(LogEntry{Index: -1, Spec: stmt.String()})
	ctrl, err := it.ctrl()
	if err != nil {
		return err
	}
	if _, isSend := stmt.(*ast.SendRecord); isSend {
		it.emit(it.writer.Send(ctrl))
		return nil
	}
	if err := checkCtrl(recordCtrl(stmt), ctrl); err != nil {
		return err
	}
	lines, err := it.writeBody(stmt, ctrl)
	if err != nil {
		return err
	}
	it.emit(lines...)
	return nil
}

func (it *Interpreter) writeBody(stmt ast.Statement, ctrl record.Ctrl) ([]string, error) {
	switch node := stmt.(type) {
	case *ast.TextRecord:
		hl, err := it.mapper.WriteText(node.Fields)
		if err != nil {
			return nil, err
		}
		return it.writer.Text(record.Text{HL: hl, Ctrl: ctrl})

	case *ast.ContRecord:
		c, err := it.writeCont(contKeys, node.Fields, ctrl)
		if err != nil {
			return nil, err
		}
		return it.writer.Cont(c)

	case *ast.DirRecord:
		vals, err := it.mapper.WriteFields(dirKeys, node.Fields)
		if err != nil {
			return nil, err
		}
		ints, err := toInts(vals, dirKeys)
		if err != nil {
			return nil, err
		}
		return it.writer.Dir(record.Dir{L1: ints[0], L2: ints[1], N1: ints[2], N2: ints[3], Ctrl: ctrl})

	case *ast.IntgRecord:
		ndigit, err := it.evaluator().Int(node.Ndigit)
		if err != nil {
			return nil, err
		}
		vals, err := it.mapper.WriteFields(intgKeys, node.Fields)
		if err != nil {
			return nil, err
		}
		ints, err := toInts(vals[:2], intgKeys[:2])
		if err != nil {
			return nil, err
		}
		kij, err := intList(vals[2], "KIJ")
		if err != nil {
			return nil, err
		}
		return it.writer.Intg(record.Intg{II: ints[0], JJ: ints[1], KIJ: kij, Ctrl: ctrl}, ndigit)

	case *ast.Tab1Record:
		head, err := it.writeCont(contKeys[:4], node.Fields[:4], ctrl)
		if err != nil {
			return nil, err
		}
		rec := record.Tab1{Cont: head}
		err = it.table(node.Name, func() error {
			vals, err := it.mapper.WriteFields(tab1Keys, []ast.Expression{nbtVar, intVar, node.X, node.Y})
			if err != nil {
				return err
			}
			if rec.NBT, err = intList(vals[0], "NBT"); err != nil {
				return err
			}
			if rec.INT, err = intList(vals[1], "INT"); err != nil {
				return err
			}
			if rec.X, err = floatList(vals[2], node.X.String()); err != nil {
				return err
			}
			rec.Y, err = floatList(vals[3], node.Y.String())
			return err
		})
		if err != nil {
			return nil, err
		}
		return it.writer.Tab1(rec)

	case *ast.Tab2Record:
		head, err := it.writeCont(tab2Head, tab2Fields(node), ctrl)
		if err != nil {
			return nil, err
		}
		// writeCont filled L1..N1 from five fields; N2 landed in N1.
		head.N2, head.N1 = head.N1, 0
		rec := record.Tab2{Cont: head}
		err = it.table(node.Name, func() error {
			vals, err := it.mapper.WriteFields(rangeKeys, []ast.Expression{nbtVar, intVar})
			if err != nil {
				return err
			}
			if rec.NBT, err = intList(vals[0], "NBT"); err != nil {
				return err
			}
			rec.INT, err = intList(vals[1], "INT")
			return err
		})
		if err != nil {
			return nil, err
		}
		return it.writer.Tab2(rec)

	case *ast.ListRecord:
		head, err := it.writeCont(contKeys, node.Fields, ctrl)
		if err != nil {
			return nil, err
		}
		rec := record.List{Cont: head}
		err = it.table(node.Name, func() error {
			var err error
			rec.Vals, err = it.mapper.WriteListBody(node.Body)
			return err
		})
		if err != nil {
			return nil, err
		}
		return it.writer.List(rec)
	}
	return nil, nil
}

// writeCont evaluates the leading fields of a CONT-shaped head. The first
// two are floats, the rest fill L1, L2, N1, N2 in order.
func (it *Interpreter) writeCont(keys []string, fields []ast.Expression, ctrl record.Ctrl) (record.Cont, error) {
	c := record.Cont{Ctrl: ctrl}
	vals, err := it.mapper.WriteFields(keys, fields)
	if err != nil {
		return c, err
	}
	if c.C1, err = record.ToFloat(vals[0], keys[0]); err != nil {
		return c, err
	}
	if c.C2, err = record.ToFloat(vals[1], keys[1]); err != nil {
		return c, err
	}
	ints, err := toInts(vals[2:], keys[2:])
	if err != nil {
		return c, err
	}
	slots := []*int{&c.L1, &c.L2, &c.N1, &c.N2}
	for i, v := range ints {
		*slots[i] = v
	}
	return c, nil
}

func toInts(vals []any, keys []string) ([]int, error) {
	out := make([]int, len(vals))
	for i, v := range vals {
		n, err := record.ToInt(v, keys[i])
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func listOf(v any, slot string) ([]any, error) {
	items, ok := scope.AsList(v)
	if !ok {
		return nil, errors.New(errors.CodeSizeMismatch,
			map[string]any{"Field": slot, "Detail": "a table column needs a list of values"})
	}
	return items, nil
}

func intList(v any, slot string) ([]int, error) {
	items, err := listOf(v, slot)
	if err != nil {
		return nil, err
	}
	return toInts(items, repeatKey(slot, len(items)))
}

func floatList(v any, slot string) ([]float64, error) {
	items, err := listOf(v, slot)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, x := range items {
		if out[i], err = record.ToFloat(x, slot); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func repeatKey(key string, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = key
	}
	return keys
}
