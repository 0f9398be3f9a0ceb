package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/sambeau/endf/pkg/endf/lexer"
)

// Node represents any node in the AST
type Node interface {
	TokenLiteral() string
	String() string
}

// Statement represents statement nodes
type Statement interface {
	Node
	statementNode()
}

// Expression represents arithmetic expression nodes
type Expression interface {
	Node
	expressionNode()
}

// Condition represents boolean expression nodes of if/until heads
type Condition interface {
	Node
	conditionNode()
}

// ListItem represents one element of a LIST body
type ListItem interface {
	Node
	listItemNode()
}

// Recipe represents the root node of a parsed recipe
type Recipe struct {
	Statements []Statement
}

func (r *Recipe) TokenLiteral() string {
	if len(r.Statements) > 0 {
		return r.Statements[0].TokenLiteral()
	}
	return ""
}

func (r *Recipe) String() string {
	var out bytes.Buffer
	for _, s := range r.Statements {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

// ---------------------------------------------------------------------------
// Expressions

// Variable is a possibly indexed name such as NBT or a[i,l]
type Variable struct {
	Token   lexer.Token
	Name    string
	Indices []Expression
}

func (v *Variable) expressionNode()      {}
func (v *Variable) TokenLiteral() string { return v.Token.Literal }
func (v *Variable) String() string {
	if len(v.Indices) == 0 {
		return v.Name
	}
	idx := make([]string, len(v.Indices))
	for i, e := range v.Indices {
		idx[i] = e.String()
	}
	return v.Name + "[" + strings.Join(idx, ",") + "]"
}

// NumberLiteral is an integer or float literal. Integer literals have no
// decimal point or exponent.
type NumberLiteral struct {
	Token lexer.Token
	IsInt bool
	Int   int
	Float float64
}

func (nl *NumberLiteral) expressionNode()      {}
func (nl *NumberLiteral) TokenLiteral() string { return nl.Token.Literal }
func (nl *NumberLiteral) String() string       { return nl.Token.Literal }

// Value returns the literal as int or float64.
func (nl *NumberLiteral) Value() any {
	if nl.IsInt {
		return nl.Int
	}
	return nl.Float
}

// DesiredNumber is a literal followed by '?': the field should hold this
// value but tapes in the wild may differ.
type DesiredNumber struct {
	Token  lexer.Token
	Number *NumberLiteral
}

func (dn *DesiredNumber) expressionNode()      {}
func (dn *DesiredNumber) TokenLiteral() string { return dn.Token.Literal }
func (dn *DesiredNumber) String() string       { return dn.Number.String() + "?" }

// InconsistentVar is a variable followed by '?': the field may disagree
// with a value bound earlier in the section.
type InconsistentVar struct {
	Token lexer.Token
	Var   *Variable
}

func (iv *InconsistentVar) expressionNode()      {}
func (iv *InconsistentVar) TokenLiteral() string { return iv.Token.Literal }
func (iv *InconsistentVar) String() string       { return iv.Var.String() + "?" }

// PrefixExpression is unary minus
type PrefixExpression struct {
	Token    lexer.Token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	return "(" + pe.Operator + pe.Right.String() + ")"
}

// InfixExpression is one of + - * / %
type InfixExpression struct {
	Token    lexer.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// ContainsDesiredNumber reports whether e has a NUMBER? leaf.
func ContainsDesiredNumber(e Expression) bool {
	found := false
	Walk(e, func(x Expression) {
		if _, ok := x.(*DesiredNumber); ok {
			found = true
		}
	})
	return found
}

// ContainsInconsistentVar reports whether e has a NAME? leaf.
func ContainsInconsistentVar(e Expression) bool {
	found := false
	Walk(e, func(x Expression) {
		if _, ok := x.(*InconsistentVar); ok {
			found = true
		}
	})
	return found
}

// Walk calls fn for e and every sub-expression, including indices.
func Walk(e Expression, fn func(Expression)) {
	if e == nil {
		return
	}
	fn(e)
	switch node := e.(type) {
	case *Variable:
		for _, idx := range node.Indices {
			Walk(idx, fn)
		}
	case *InconsistentVar:
		Walk(node.Var, fn)
	case *DesiredNumber:
		Walk(node.Number, fn)
	case *PrefixExpression:
		Walk(node.Right, fn)
	case *InfixExpression:
		Walk(node.Left, fn)
		Walk(node.Right, fn)
	}
}

// ---------------------------------------------------------------------------
// Conditions

// Comparison is expr REL expr
type Comparison struct {
	Token    lexer.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (c *Comparison) conditionNode()       {}
func (c *Comparison) TokenLiteral() string { return c.Token.Literal }
func (c *Comparison) String() string {
	return c.Left.String() + " " + c.Operator + " " + c.Right.String()
}

// Logical is a short-circuit 'and' or 'or'
type Logical struct {
	Token    lexer.Token
	Left     Condition
	Operator string
	Right    Condition
}

func (l *Logical) conditionNode()       {}
func (l *Logical) TokenLiteral() string { return l.Token.Literal }
func (l *Logical) String() string {
	return "(" + l.Left.String() + " " + l.Operator + " " + l.Right.String() + ")"
}

// ---------------------------------------------------------------------------
// Records

// CtrlField is one of MAT, MF, MT in a record guard: a literal or the
// wildcard name.
type CtrlField struct {
	Name     string
	Value    int
	Wildcard bool
}

func (cf CtrlField) String() string {
	if cf.Wildcard {
		return cf.Name
	}
	return strconv.Itoa(cf.Value)
}

// CtrlSpec is the MAT, MF, MT guard in front of every record
type CtrlSpec struct {
	MAT, MF, MT CtrlField
}

func (cs CtrlSpec) String() string {
	return cs.MAT.String() + "," + cs.MF.String() + "," + cs.MT.String()
}

// Fields returns the guard in MAT, MF, MT order.
func (cs CtrlSpec) Fields() [3]CtrlField {
	return [3]CtrlField{cs.MAT, cs.MF, cs.MT}
}

// TextPlaceholder is NAME{len}, NAME or {len} inside a TEXT record. Length
// -1 means up to the end of the line.
type TextPlaceholder struct {
	Var    *Variable
	Length int
}

func (tp *TextPlaceholder) String() string {
	var out strings.Builder
	if tp.Var != nil {
		out.WriteString(tp.Var.String())
	}
	if tp.Length >= 0 {
		out.WriteString("{" + strconv.Itoa(tp.Length) + "}")
	}
	return out.String()
}

// TextRecord is [ctrl/ placeholders]TEXT
type TextRecord struct {
	Token  lexer.Token
	Ctrl   CtrlSpec
	Fields []*TextPlaceholder
}

func (tr *TextRecord) statementNode()       {}
func (tr *TextRecord) TokenLiteral() string { return tr.Token.Literal }
func (tr *TextRecord) String() string {
	parts := make([]string, len(tr.Fields))
	for i, f := range tr.Fields {
		parts[i] = f.String()
	}
	return "[" + tr.Ctrl.String() + "/ " + strings.Join(parts, ", ") + "]TEXT"
}

// ContRecord is a HEAD or CONT record with six fields
type ContRecord struct {
	Token  lexer.Token
	Kind   string // HEAD or CONT
	Ctrl   CtrlSpec
	Fields []Expression
}

func (cr *ContRecord) statementNode()       {}
func (cr *ContRecord) TokenLiteral() string { return cr.Token.Literal }
func (cr *ContRecord) String() string {
	return "[" + cr.Ctrl.String() + "/ " + joinExprs(cr.Fields) + "]" + cr.Kind
}

// DirRecord is [ctrl/ blank, blank, L1, L2, N1, N2]DIR
type DirRecord struct {
	Token  lexer.Token
	Ctrl   CtrlSpec
	Fields []Expression
}

func (dr *DirRecord) statementNode()       {}
func (dr *DirRecord) TokenLiteral() string { return dr.Token.Literal }
func (dr *DirRecord) String() string {
	return "[" + dr.Ctrl.String() + "/ blank, blank, " + joinExprs(dr.Fields) + "]DIR"
}

// IntgRecord is [ctrl/ II, JJ, KIJ{NDIGIT}]INTG
type IntgRecord struct {
	Token  lexer.Token
	Ctrl   CtrlSpec
	Fields []Expression
	Ndigit Expression
}

func (ir *IntgRecord) statementNode()       {}
func (ir *IntgRecord) TokenLiteral() string { return ir.Token.Literal }
func (ir *IntgRecord) String() string {
	return "[" + ir.Ctrl.String() + "/ " + joinExprs(ir.Fields) + "{" + ir.Ndigit.String() + "}]INTG"
}

// Tab1Record is [ctrl/ C1, C2, L1, L2, NR, NP/ X / Y]TAB1 (name)
type Tab1Record struct {
	Token  lexer.Token
	Ctrl   CtrlSpec
	Fields []Expression
	X, Y   *Variable
	Name   *Variable // optional section holding the table
}

func (tr *Tab1Record) statementNode()       {}
func (tr *Tab1Record) TokenLiteral() string { return tr.Token.Literal }
func (tr *Tab1Record) String() string {
	s := "[" + tr.Ctrl.String() + "/ " + joinExprs(tr.Fields) + "/ " + tr.X.String() + " / " + tr.Y.String() + "]TAB1"
	if tr.Name != nil {
		s += " (" + tr.Name.String() + ")"
	}
	return s
}

// Tab2Record is [ctrl/ C1, C2, L1, L2, NR, NZ/ Z]TAB2 (name)
type Tab2Record struct {
	Token  lexer.Token
	Ctrl   CtrlSpec
	Fields []Expression
	Z      *Variable
	Name   *Variable
}

func (tr *Tab2Record) statementNode()       {}
func (tr *Tab2Record) TokenLiteral() string { return tr.Token.Literal }
func (tr *Tab2Record) String() string {
	s := "[" + tr.Ctrl.String() + "/ " + joinExprs(tr.Fields) + "/ " + tr.Z.String() + "]TAB2"
	if tr.Name != nil {
		s += " (" + tr.Name.String() + ")"
	}
	return s
}

// ListRecord is [ctrl/ C1, C2, L1, L2, NPL, N2/ body]LIST (name)
type ListRecord struct {
	Token  lexer.Token
	Ctrl   CtrlSpec
	Fields []Expression
	Body   []ListItem
	Name   *Variable
}

func (lr *ListRecord) statementNode()       {}
func (lr *ListRecord) TokenLiteral() string { return lr.Token.Literal }
func (lr *ListRecord) String() string {
	s := "[" + lr.Ctrl.String() + "/ " + joinExprs(lr.Fields) + "/ " + joinItems(lr.Body) + "]LIST"
	if lr.Name != nil {
		s += " (" + lr.Name.String() + ")"
	}
	return s
}

// SendRecord is the section end marker
type SendRecord struct {
	Token lexer.Token
}

func (sr *SendRecord) statementNode()       {}
func (sr *SendRecord) TokenLiteral() string { return sr.Token.Literal }
func (sr *SendRecord) String() string       { return "SEND" }

// StopStatement aborts processing with a message
type StopStatement struct {
	Token   lexer.Token
	Message string
}

func (ss *StopStatement) statementNode()       {}
func (ss *StopStatement) TokenLiteral() string { return ss.Token.Literal }
func (ss *StopStatement) String() string {
	if ss.Message == "" {
		return "stop()"
	}
	return "stop(" + strconv.Quote(ss.Message) + ")"
}

// ListValue consumes one value of a LIST body
type ListValue struct {
	Value Expression
}

func (lv *ListValue) listItemNode()        {}
func (lv *ListValue) TokenLiteral() string { return lv.Value.TokenLiteral() }
func (lv *ListValue) String() string       { return lv.Value.String() }

// PadLine skips to the start of the next line of six values
type PadLine struct {
	Token lexer.Token
}

func (pl *PadLine) listItemNode()        {}
func (pl *PadLine) TokenLiteral() string { return pl.Token.Literal }
func (pl *PadLine) String() string       { return "PADLINE" }

// ListLoop is {body}{VAR = start to stop}
type ListLoop struct {
	Token lexer.Token
	Body  []ListItem
	Var   string
	Start Expression
	Stop  Expression
}

func (ll *ListLoop) listItemNode()        {}
func (ll *ListLoop) TokenLiteral() string { return ll.Token.Literal }
func (ll *ListLoop) String() string {
	return "{" + joinItems(ll.Body) + "}{" + ll.Var + "=" + ll.Start.String() + " to " + ll.Stop.String() + "}"
}

// ---------------------------------------------------------------------------
// Control flow

// ForStatement is for VAR = start to stop: ... endfor
type ForStatement struct {
	Token lexer.Token
	Var   string
	Start Expression
	Stop  Expression
	Body  []Statement
}

func (fs *ForStatement) statementNode()       {}
func (fs *ForStatement) TokenLiteral() string { return fs.Token.Literal }
func (fs *ForStatement) String() string {
	return "for " + fs.Var + "=" + fs.Start.String() + " to " + fs.Stop.String() + ":"
}

// RepeatStatement is repeat [VAR = start]: ... until cond. The counter is
// optional and increments by one per pass.
type RepeatStatement struct {
	Token lexer.Token
	Var   string
	Start Expression
	Body  []Statement
	Until Condition
}

func (rs *RepeatStatement) statementNode()       {}
func (rs *RepeatStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *RepeatStatement) String() string {
	if rs.Var == "" {
		return "repeat:"
	}
	return "repeat [" + rs.Var + "=" + rs.Start.String() + "]:"
}

// IfBranch is one if or elif arm
type IfBranch struct {
	Token     lexer.Token
	Cond      Condition
	Lookahead Expression // nil unless [lookahead=N] was given
	Body      []Statement
}

func (ib *IfBranch) String() string {
	s := ib.Token.Literal + " " + ib.Cond.String()
	if ib.Lookahead != nil {
		s += " [lookahead=" + ib.Lookahead.String() + "]"
	}
	return s + ":"
}

// IfStatement is if ... elif ... else ... endif
type IfStatement struct {
	Token    lexer.Token
	Branches []*IfBranch
	Else     []Statement
	HasElse  bool
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Literal }
func (is *IfStatement) String() string {
	return is.Branches[0].String()
}

// SectionStatement is (name[i]) ... (/name[i])
type SectionStatement struct {
	Token lexer.Token
	Var   *Variable
	Body  []Statement
}

func (ss *SectionStatement) statementNode()       {}
func (ss *SectionStatement) TokenLiteral() string { return ss.Token.Literal }
func (ss *SectionStatement) String() string       { return "(" + ss.Var.String() + ")" }

// Abbreviation is NAME := expr
type Abbreviation struct {
	Token lexer.Token
	Name  string
	Value Expression
}

func (a *Abbreviation) statementNode()       {}
func (a *Abbreviation) TokenLiteral() string { return a.Token.Literal }
func (a *Abbreviation) String() string       { return a.Name + " := " + a.Value.String() }

// CommentBlock holds consecutive comment lines, each starting with '#'
type CommentBlock struct {
	Token lexer.Token
	Lines []string
}

func (cb *CommentBlock) statementNode()       {}
func (cb *CommentBlock) TokenLiteral() string { return cb.Token.Literal }
func (cb *CommentBlock) String() string       { return strings.Join(cb.Lines, "\n") }

func joinExprs(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func joinItems(items []ListItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.String()
	}
	return strings.Join(parts, ", ")
}
