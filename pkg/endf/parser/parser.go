package parser

import (
	"fmt"
	"strconv"

	"github.com/sambeau/endf/pkg/endf/ast"
	eerrors "github.com/sambeau/endf/pkg/endf/errors"
	"github.com/sambeau/endf/pkg/endf/lexer"
)

// Precedence levels for arithmetic operators
const (
	_ int = iota
	LOWEST
	SUM     // + -
	PRODUCT // * / %
	PREFIX  // -X
)

// precedences maps tokens to their precedence
var precedences = map[lexer.TokenType]int{
	lexer.PLUS:     SUM,
	lexer.MINUS:    SUM,
	lexer.ASTERISK: PRODUCT,
	lexer.SLASH:    PRODUCT,
	lexer.PERCENT:  PRODUCT,
}

var relations = map[lexer.TokenType]bool{
	lexer.EQ:     true,
	lexer.NOT_EQ: true,
	lexer.LT:     true,
	lexer.GT:     true,
	lexer.LTE:    true,
	lexer.GTE:    true,
}

// Number of expressions in the generic part of each record kind
var fieldCounts = map[string]int{
	"HEAD": 6,
	"CONT": 6,
	"DIR":  4,
	"INTG": 3,
	"TAB1": 6,
	"TAB2": 6,
	"LIST": 6,
}

// Parser represents the recipe parser
type Parser struct {
	l *lexer.Lexer

	structuredErrors []*eerrors.EndfError

	prevToken lexer.Token
	curToken  lexer.Token
	peekToken lexer.Token

	// a top-level '/' ends a record field instead of dividing
	slashEnds bool

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// New creates a new parser instance
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l: l,
	}

	p.prefixParseFns = make(map[lexer.TokenType]prefixParseFn)
	p.registerPrefix(lexer.IDENT, p.parseVariableExpression)
	p.registerPrefix(lexer.INT, p.parseNumberLiteral)
	p.registerPrefix(lexer.FLOAT, p.parseNumberLiteral)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpression)

	p.infixParseFns = make(map[lexer.TokenType]infixParseFn)
	p.registerInfix(lexer.PLUS, p.parseInfixExpression)
	p.registerInfix(lexer.MINUS, p.parseInfixExpression)
	p.registerInfix(lexer.ASTERISK, p.parseInfixExpression)
	p.registerInfix(lexer.SLASH, p.parseInfixExpression)
	p.registerInfix(lexer.PERCENT, p.parseInfixExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// Parse parses recipe source and returns the tree or the first error.
func Parse(source, filename string) (*ast.Recipe, error) {
	p := New(lexer.NewWithFilename(source, filename))
	recipe := p.ParseRecipe()
	if errs := p.StructuredErrors(); len(errs) > 0 {
		return nil, errs[0].WithFile(filename)
	}
	return recipe, nil
}

// Errors returns parser errors as strings (convenience method for tests).
func (p *Parser) Errors() []string {
	result := make([]string, len(p.structuredErrors))
	for i, err := range p.structuredErrors {
		if err.Line > 0 {
			result[i] = fmt.Sprintf("line %d, column %d: %s", err.Line, err.Column, err.Message)
		} else {
			result[i] = err.Message
		}
	}
	return result
}

// StructuredErrors returns parser errors as structured EndfError objects.
func (p *Parser) StructuredErrors() []*eerrors.EndfError {
	return p.structuredErrors
}

// addError adds a structured error from the catalog.
// Only the first error is recorded - subsequent errors are usually cascading noise.
func (p *Parser) addError(code string, line, column int, data map[string]any) {
	if len(p.structuredErrors) > 0 {
		return
	}
	p.structuredErrors = append(p.structuredErrors, eerrors.NewWithPosition(code, line, column, data))
}

func (p *Parser) addEndfError(err *eerrors.EndfError) {
	if len(p.structuredErrors) > 0 {
		return
	}
	p.structuredErrors = append(p.structuredErrors, err)
}

func (p *Parser) failed() bool {
	return len(p.structuredErrors) > 0
}

// registerPrefix registers a prefix parse function
func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

// registerInfix registers an infix parse function
func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// nextToken advances prevToken, curToken, and peekToken
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseRecipe parses the whole recipe and returns the AST
func (p *Parser) ParseRecipe() *ast.Recipe {
	recipe := &ast.Recipe{}
	for !p.curTokenIs(lexer.EOF) && !p.failed() {
		if p.curTokenIs(lexer.NEWLINE) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			recipe.Statements = append(recipe.Statements, stmt)
		}
		p.nextToken()
	}
	return recipe
}

// parseBlock parses statements until stop reports true for the current
// token. The caller's header ends at curToken.
func (p *Parser) parseBlock(what string, stop func() bool) []ast.Statement {
	var body []ast.Statement
	p.nextToken()
	for !stop() {
		if p.failed() {
			return body
		}
		if p.curTokenIs(lexer.EOF) {
			p.addError(eerrors.CodeRecipeSyntax, p.curToken.Line, p.curToken.Column,
				map[string]any{"Expected": what, "Got": "end of recipe"})
			return body
		}
		if p.curTokenIs(lexer.NEWLINE) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			body = append(body, stmt)
		}
		p.nextToken()
	}
	return body
}

func (p *Parser) until(types ...lexer.TokenType) func() bool {
	return func() bool {
		for _, t := range types {
			if p.curTokenIs(t) {
				return true
			}
		}
		return false
	}
}

// parseStatement parses statements
func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case lexer.LBRACKET:
		return p.parseRecordLine()
	case lexer.SEND:
		return &ast.SendRecord{Token: p.curToken}
	case lexer.STOP:
		return p.parseStopStatement()
	case lexer.FOR:
		return p.parseForStatement()
	case lexer.REPEAT:
		return p.parseRepeatStatement()
	case lexer.IF:
		return p.parseIfStatement()
	case lexer.LPAREN:
		return p.parseSectionStatement()
	case lexer.COMMENT:
		return p.parseCommentBlock()
	case lexer.IDENT:
		if p.peekTokenIs(lexer.DEFINE) {
			return p.parseAbbreviation()
		}
	}
	p.unexpected(p.curToken)
	return nil
}

func (p *Parser) unexpected(tok lexer.Token) {
	literal := tok.Literal
	if tok.Type == lexer.NEWLINE {
		literal = "end of line"
	} else if tok.Type == lexer.EOF {
		literal = "end of recipe"
	}
	p.addError(eerrors.CodeRecipeUnexpected, tok.Line, tok.Column, map[string]any{"Token": literal})
}

// ---------------------------------------------------------------------------
// Records

// recordKindAhead scans to the ']' matching the current '[' and returns the
// token that follows it, leaving the token stream untouched.
func (p *Parser) recordKindAhead() lexer.Token {
	state := p.l.SaveState()
	defer p.l.RestoreState(state)

	depth := 1
	tok := p.peekToken
	for tok.Type != lexer.EOF {
		switch tok.Type {
		case lexer.LBRACKET:
			depth++
		case lexer.RBRACKET:
			depth--
			if depth == 0 {
				return p.l.NextToken()
			}
		}
		tok = p.l.NextToken()
	}
	return tok
}

func (p *Parser) parseRecordLine() ast.Statement {
	open := p.curToken
	kindTok := p.recordKindAhead()

	ctrl, ok := p.parseCtrlSpec()
	if !ok {
		return nil
	}

	switch kindTok.Literal {
	case "TEXT":
		return p.parseTextRecord(open, ctrl)
	case "HEAD", "CONT":
		fields := p.parseRecordFields(kindTok.Literal)
		if fields == nil || !p.expectRecordEnd(kindTok.Literal) {
			return nil
		}
		return &ast.ContRecord{Token: open, Kind: kindTok.Literal, Ctrl: ctrl, Fields: fields}
	case "DIR":
		return p.parseDirRecord(open, ctrl)
	case "INTG":
		return p.parseIntgRecord(open, ctrl)
	case "TAB1":
		return p.parseTab1Record(open, ctrl)
	case "TAB2":
		return p.parseTab2Record(open, ctrl)
	case "LIST":
		return p.parseListRecord(open, ctrl)
	}

	if kindTok.Type == lexer.IDENT {
		p.addEndfError(eerrors.NewUnknownRecordKind(kindTok.Literal, kindTok.Line, kindTok.Column))
	} else {
		p.addError(eerrors.CodeRecipeSyntax, kindTok.Line, kindTok.Column,
			map[string]any{"Expected": "record kind after ']'", "Got": kindTok.Literal})
	}
	return nil
}

// parseCtrlSpec parses "MAT, MF, MT/" and leaves curToken on the '/'.
func (p *Parser) parseCtrlSpec() (ast.CtrlSpec, bool) {
	var spec ast.CtrlSpec
	names := []string{"MAT", "MF", "MT"}
	targets := []*ast.CtrlField{&spec.MAT, &spec.MF, &spec.MT}

	for i, name := range names {
		p.nextToken()
		field, ok := p.parseCtrlField(name)
		if !ok {
			return spec, false
		}
		*targets[i] = field
		sep := lexer.COMMA
		if i == len(names)-1 {
			sep = lexer.SLASH
		}
		if !p.expectPeek(sep) {
			return spec, false
		}
	}
	return spec, true
}

func (p *Parser) parseCtrlField(name string) (ast.CtrlField, bool) {
	tok := p.curToken
	negative := false
	if tok.Type == lexer.MINUS && p.peekTokenIs(lexer.INT) {
		negative = true
		p.nextToken()
		tok = p.curToken
	}
	switch {
	case tok.Type == lexer.INT:
		v, err := strconv.Atoi(tok.Literal)
		if err != nil {
			break
		}
		if negative {
			v = -v
		}
		return ast.CtrlField{Name: name, Value: v}, true
	case tok.Type == lexer.IDENT && tok.Literal == name:
		return ast.CtrlField{Name: name, Wildcard: true}, true
	}
	p.addError(eerrors.CodeRecipeSyntax, tok.Line, tok.Column,
		map[string]any{"Expected": name + " or an integer", "Got": tok.Literal})
	return ast.CtrlField{}, false
}

// parseRecordFields parses the comma-separated expressions following the
// current token. It stops before '/', ']' or '{'.
func (p *Parser) parseRecordFields(kind string) []ast.Expression {
	var fields []ast.Expression
	start := p.curToken

	p.slashEnds = true
	defer func() { p.slashEnds = false }()

	for {
		p.nextToken()
		expr := p.parseExpression(LOWEST)
		if expr == nil {
			return nil
		}
		fields = append(fields, expr)
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}

	if want := fieldCounts[kind]; len(fields) != want {
		p.addError(eerrors.CodeRecipeFieldCount, start.Line, start.Column,
			map[string]any{"Kind": kind, "Want": want, "Got": len(fields)})
		return nil
	}
	return fields
}

// expectRecordEnd consumes "]KIND".
func (p *Parser) expectRecordEnd(kind string) bool {
	if !p.expectPeek(lexer.RBRACKET) {
		return false
	}
	return p.expectKind(kind)
}

// expectKind consumes the record kind following ']'.
func (p *Parser) expectKind(kind string) bool {
	if p.peekTokenIs(lexer.IDENT) && p.peekToken.Literal == kind {
		p.nextToken()
		return true
	}
	p.peekErrorText(kind)
	return false
}

// parseOptionalName parses a "(name[i])" suffix when present.
func (p *Parser) parseOptionalName() (*ast.Variable, bool) {
	if !p.peekTokenIs(lexer.LPAREN) {
		return nil, true
	}
	p.nextToken()
	if !p.expectPeek(lexer.IDENT) {
		return nil, false
	}
	name := p.parseVariable()
	if name == nil || !p.expectPeek(lexer.RPAREN) {
		return nil, false
	}
	return name, true
}

func (p *Parser) parseTextRecord(open lexer.Token, ctrl ast.CtrlSpec) ast.Statement {
	rec := &ast.TextRecord{Token: open, Ctrl: ctrl}
	p.nextToken()
	for {
		ph := &ast.TextPlaceholder{Length: -1}
		if p.curTokenIs(lexer.IDENT) {
			ph.Var = p.parseVariable()
			if ph.Var == nil {
				return nil
			}
			p.nextToken()
		}
		if p.curTokenIs(lexer.LBRACE) {
			if !p.expectPeek(lexer.INT) {
				return nil
			}
			n, err := strconv.Atoi(p.curToken.Literal)
			if err != nil {
				p.unexpected(p.curToken)
				return nil
			}
			ph.Length = n
			if !p.expectPeek(lexer.RBRACE) {
				return nil
			}
			p.nextToken()
		}
		if ph.Var != nil || ph.Length >= 0 {
			rec.Fields = append(rec.Fields, ph)
		}
		if p.curTokenIs(lexer.COMMA) {
			p.nextToken()
			continue
		}
		if p.curTokenIs(lexer.RBRACKET) {
			break
		}
		p.unexpected(p.curToken)
		return nil
	}
	if !p.expectKind("TEXT") {
		return nil
	}
	return rec
}

func (p *Parser) parseDirRecord(open lexer.Token, ctrl ast.CtrlSpec) ast.Statement {
	for i := 0; i < 2; i++ {
		if !p.expectPeek(lexer.BLANK) || !p.expectPeek(lexer.COMMA) {
			return nil
		}
	}
	fields := p.parseRecordFields("DIR")
	if fields == nil || !p.expectRecordEnd("DIR") {
		return nil
	}
	return &ast.DirRecord{Token: open, Ctrl: ctrl, Fields: fields}
}

func (p *Parser) parseIntgRecord(open lexer.Token, ctrl ast.CtrlSpec) ast.Statement {
	fields := p.parseRecordFields("INTG")
	if fields == nil || !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	p.nextToken()
	ndigit := p.parseExpression(LOWEST)
	if ndigit == nil || !p.expectPeek(lexer.RBRACE) || !p.expectRecordEnd("INTG") {
		return nil
	}
	return &ast.IntgRecord{Token: open, Ctrl: ctrl, Fields: fields, Ndigit: ndigit}
}

func (p *Parser) parseTab1Record(open lexer.Token, ctrl ast.CtrlSpec) ast.Statement {
	fields := p.parseRecordFields("TAB1")
	if fields == nil || !p.expectPeek(lexer.SLASH) || !p.expectPeek(lexer.IDENT) {
		return nil
	}
	x := p.parseVariable()
	if x == nil || !p.expectPeek(lexer.SLASH) || !p.expectPeek(lexer.IDENT) {
		return nil
	}
	y := p.parseVariable()
	if y == nil || !p.expectRecordEnd("TAB1") {
		return nil
	}
	name, ok := p.parseOptionalName()
	if !ok {
		return nil
	}
	return &ast.Tab1Record{Token: open, Ctrl: ctrl, Fields: fields, X: x, Y: y, Name: name}
}

func (p *Parser) parseTab2Record(open lexer.Token, ctrl ast.CtrlSpec) ast.Statement {
	fields := p.parseRecordFields("TAB2")
	if fields == nil || !p.expectPeek(lexer.SLASH) || !p.expectPeek(lexer.IDENT) {
		return nil
	}
	z := p.parseVariable()
	if z == nil || !p.expectRecordEnd("TAB2") {
		return nil
	}
	name, ok := p.parseOptionalName()
	if !ok {
		return nil
	}
	return &ast.Tab2Record{Token: open, Ctrl: ctrl, Fields: fields, Z: z, Name: name}
}

func (p *Parser) parseListRecord(open lexer.Token, ctrl ast.CtrlSpec) ast.Statement {
	fields := p.parseRecordFields("LIST")
	if fields == nil || !p.expectPeek(lexer.SLASH) {
		return nil
	}
	p.nextToken()
	body := p.parseListBody(lexer.RBRACKET)
	if p.failed() {
		return nil
	}
	if !p.expectKind("LIST") {
		return nil
	}
	name, ok := p.parseOptionalName()
	if !ok {
		return nil
	}
	return &ast.ListRecord{Token: open, Ctrl: ctrl, Fields: fields, Body: body, Name: name}
}

// parseListBody parses list items starting at curToken up to the closing
// token, which is left as curToken. Items may be separated by commas or
// just whitespace.
func (p *Parser) parseListBody(end lexer.TokenType) []ast.ListItem {
	var items []ast.ListItem
	for !p.curTokenIs(end) {
		switch p.curToken.Type {
		case lexer.EOF:
			p.unexpected(p.curToken)
			return nil
		case lexer.COMMA:
			p.nextToken()
			continue
		case lexer.PADLINE:
			items = append(items, &ast.PadLine{Token: p.curToken})
		case lexer.LBRACE:
			loop := p.parseListLoop()
			if loop == nil {
				return nil
			}
			items = append(items, loop)
		default:
			expr := p.parseExpression(LOWEST)
			if expr == nil {
				return nil
			}
			items = append(items, &ast.ListValue{Value: expr})
		}
		p.nextToken()
	}
	return items
}

// parseListLoop parses {body}{VAR = start to stop}
func (p *Parser) parseListLoop() *ast.ListLoop {
	loop := &ast.ListLoop{Token: p.curToken}
	p.nextToken()
	loop.Body = p.parseListBody(lexer.RBRACE)
	if p.failed() {
		return nil
	}
	if !p.expectPeek(lexer.LBRACE) || !p.expectPeek(lexer.IDENT) {
		return nil
	}
	loop.Var = p.curToken.Literal
	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}
	p.nextToken()
	loop.Start = p.parseExpression(LOWEST)
	if loop.Start == nil || !p.expectPeek(lexer.TO) {
		return nil
	}
	p.nextToken()
	loop.Stop = p.parseExpression(LOWEST)
	if loop.Stop == nil || !p.expectPeek(lexer.RBRACE) {
		return nil
	}
	return loop
}

func (p *Parser) parseStopStatement() ast.Statement {
	stmt := &ast.StopStatement{Token: p.curToken}
	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	if p.peekTokenIs(lexer.STRING) {
		p.nextToken()
		stmt.Message = p.curToken.Literal
	}
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return stmt
}

// ---------------------------------------------------------------------------
// Control flow

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	stmt.Var = p.curToken.Literal
	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}
	p.nextToken()
	stmt.Start = p.parseExpression(LOWEST)
	if stmt.Start == nil || !p.expectPeek(lexer.TO) {
		return nil
	}
	p.nextToken()
	stmt.Stop = p.parseExpression(LOWEST)
	if stmt.Stop == nil || !p.expectPeek(lexer.COLON) {
		return nil
	}
	stmt.Body = p.parseBlock("endfor", p.until(lexer.ENDFOR))
	if p.failed() {
		return nil
	}
	return stmt
}

func (p *Parser) parseRepeatStatement() ast.Statement {
	stmt := &ast.RepeatStatement{Token: p.curToken}
	if p.peekTokenIs(lexer.LBRACKET) {
		p.nextToken()
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		stmt.Var = p.curToken.Literal
		if !p.expectPeek(lexer.ASSIGN) {
			return nil
		}
		p.nextToken()
		stmt.Start = p.parseExpression(LOWEST)
		if stmt.Start == nil || !p.expectPeek(lexer.RBRACKET) {
			return nil
		}
	}
	if !p.expectPeek(lexer.COLON) {
		return nil
	}
	stmt.Body = p.parseBlock("until", p.until(lexer.UNTIL))
	if p.failed() {
		return nil
	}
	p.nextToken()
	stmt.Until = p.parseDisjunction()
	if stmt.Until == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}
	for {
		branch := p.parseIfBranch()
		if branch == nil {
			return nil
		}
		stmt.Branches = append(stmt.Branches, branch)
		if !p.curTokenIs(lexer.ELIF) {
			break
		}
	}
	if p.curTokenIs(lexer.ELSE) {
		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		stmt.HasElse = true
		stmt.Else = p.parseBlock("endif", p.until(lexer.ENDIF))
		if p.failed() {
			return nil
		}
	}
	return stmt
}

// parseIfBranch parses "if|elif cond [lookahead=N]: body" and leaves
// curToken on the following elif, else or endif.
func (p *Parser) parseIfBranch() *ast.IfBranch {
	branch := &ast.IfBranch{Token: p.curToken}
	p.nextToken()
	branch.Cond = p.parseDisjunction()
	if branch.Cond == nil {
		return nil
	}
	if p.peekTokenIs(lexer.LBRACKET) {
		p.nextToken()
		if !p.expectPeek(lexer.LOOKAHEAD) || !p.expectPeek(lexer.ASSIGN) {
			return nil
		}
		p.nextToken()
		branch.Lookahead = p.parseExpression(LOWEST)
		if branch.Lookahead == nil || !p.expectPeek(lexer.RBRACKET) {
			return nil
		}
	}
	if !p.expectPeek(lexer.COLON) {
		return nil
	}
	branch.Body = p.parseBlock("endif", p.until(lexer.ELIF, lexer.ELSE, lexer.ENDIF))
	if p.failed() {
		return nil
	}
	return branch
}

func (p *Parser) parseSectionStatement() ast.Statement {
	stmt := &ast.SectionStatement{Token: p.curToken}
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	stmt.Var = p.parseVariable()
	if stmt.Var == nil || !p.expectPeek(lexer.RPAREN) {
		return nil
	}

	closing := func() bool {
		return p.curTokenIs(lexer.LPAREN) && p.peekTokenIs(lexer.SLASH)
	}
	stmt.Body = p.parseBlock("(/"+stmt.Var.String()+")", closing)
	if p.failed() {
		return nil
	}

	p.nextToken()
	tail := p.curToken
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	closeVar := p.parseVariable()
	if closeVar == nil || !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	if closeVar.String() != stmt.Var.String() {
		p.addError(eerrors.CodeRecipeBrackets, tail.Line, tail.Column,
			map[string]any{"Open": stmt.Var.String(), "Close": closeVar.String()})
		return nil
	}
	return stmt
}

func (p *Parser) parseAbbreviation() ast.Statement {
	stmt := &ast.Abbreviation{Token: p.curToken, Name: p.curToken.Literal}
	p.nextToken()
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	return stmt
}

// parseCommentBlock merges comment lines that follow each other directly.
func (p *Parser) parseCommentBlock() ast.Statement {
	block := &ast.CommentBlock{Token: p.curToken, Lines: []string{p.curToken.Literal}}
	for p.peekTokenIs(lexer.NEWLINE) && p.l.PeekToken().Type == lexer.COMMENT {
		p.nextToken()
		p.nextToken()
		block.Lines = append(block.Lines, p.curToken.Literal)
	}
	return block
}

// ---------------------------------------------------------------------------
// Conditions

func (p *Parser) parseDisjunction() ast.Condition {
	left := p.parseConjunction()
	for left != nil && p.peekTokenIs(lexer.OR) {
		p.nextToken()
		tok := p.curToken
		p.nextToken()
		right := p.parseConjunction()
		if right == nil {
			return nil
		}
		left = &ast.Logical{Token: tok, Left: left, Operator: "or", Right: right}
	}
	return left
}

func (p *Parser) parseConjunction() ast.Condition {
	left := p.parseComparison()
	for left != nil && p.peekTokenIs(lexer.AND) {
		p.nextToken()
		tok := p.curToken
		p.nextToken()
		right := p.parseComparison()
		if right == nil {
			return nil
		}
		left = &ast.Logical{Token: tok, Left: left, Operator: "and", Right: right}
	}
	return left
}

// parseComparison parses "expr REL expr" or a parenthesised disjunction.
// A leading '(' is ambiguous, so the bracketed condition is tried first and
// the parser backtracks to an arithmetic operand when that fails.
func (p *Parser) parseComparison() ast.Condition {
	if p.curTokenIs(lexer.LPAREN) {
		savedCur, savedPeek, savedPrev := p.curToken, p.peekToken, p.prevToken
		savedErrors := len(p.structuredErrors)
		savedLexer := p.l.SaveState()

		p.nextToken()
		cond := p.parseDisjunction()
		if cond != nil && len(p.structuredErrors) == savedErrors && p.peekTokenIs(lexer.RPAREN) {
			p.nextToken()
			if !relations[p.peekToken.Type] && precedences[p.peekToken.Type] == 0 {
				return cond
			}
		}

		p.curToken, p.peekToken, p.prevToken = savedCur, savedPeek, savedPrev
		p.structuredErrors = p.structuredErrors[:savedErrors]
		p.l.RestoreState(savedLexer)
	}

	left := p.parseExpression(LOWEST)
	if left == nil {
		return nil
	}
	if !relations[p.peekToken.Type] {
		p.peekErrorText("a comparison operator")
		return nil
	}
	p.nextToken()
	cmp := &ast.Comparison{Token: p.curToken, Left: left, Operator: p.curToken.Literal}
	p.nextToken()
	cmp.Right = p.parseExpression(LOWEST)
	if cmp.Right == nil {
		return nil
	}
	return cmp
}

// ---------------------------------------------------------------------------
// Expressions

// parseExpression parses expressions using Pratt parsing
func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.unexpected(p.curToken)
		return nil
	}

	leftExp := prefix()

	for leftExp != nil && precedence < p.peekPrecedence() {
		if p.slashEnds && p.peekTokenIs(lexer.SLASH) {
			return leftExp
		}
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}

	return leftExp
}

func (p *Parser) parseVariableExpression() ast.Expression {
	v := p.parseVariable()
	if v == nil {
		return nil
	}
	if p.peekTokenIs(lexer.QUESTION) {
		p.nextToken()
		return &ast.InconsistentVar{Token: v.Token, Var: v}
	}
	return v
}

// parseVariable parses NAME or NAME[i, j]. A '[' that opens a lookahead
// option is not an index.
func (p *Parser) parseVariable() *ast.Variable {
	v := &ast.Variable{Token: p.curToken, Name: p.curToken.Literal}
	if !p.peekTokenIs(lexer.LBRACKET) || p.l.PeekToken().Type == lexer.LOOKAHEAD {
		return v
	}
	p.nextToken()

	saved := p.slashEnds
	p.slashEnds = false
	defer func() { p.slashEnds = saved }()

	for {
		p.nextToken()
		idx := p.parseExpression(LOWEST)
		if idx == nil {
			return nil
		}
		v.Indices = append(v.Indices, idx)
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(lexer.RBRACKET) {
		return nil
	}
	return v
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	lit := &ast.NumberLiteral{Token: p.curToken}
	if p.curTokenIs(lexer.INT) {
		v, err := strconv.Atoi(p.curToken.Literal)
		if err != nil {
			p.addError(eerrors.CodeRecipeSyntax, p.curToken.Line, p.curToken.Column,
				map[string]any{"Expected": "an integer", "Got": p.curToken.Literal})
			return nil
		}
		lit.IsInt = true
		lit.Int = v
	} else {
		v, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.addError(eerrors.CodeRecipeSyntax, p.curToken.Line, p.curToken.Column,
				map[string]any{"Expected": "a number", "Got": p.curToken.Literal})
			return nil
		}
		lit.Float = v
	}
	if p.peekTokenIs(lexer.QUESTION) {
		p.nextToken()
		return &ast.DesiredNumber{Token: lit.Token, Number: lit}
	}
	return lit
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
	}
	p.nextToken()
	expression.Right = p.parseExpression(PREFIX)
	if expression.Right == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Literal,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	if expression.Right == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	saved := p.slashEnds
	p.slashEnds = false
	defer func() { p.slashEnds = saved }()

	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil || !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return exp
}

// ---------------------------------------------------------------------------
// Helper functions

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t lexer.TokenType) {
	p.peekErrorText("'" + t.String() + "'")
}

func (p *Parser) peekErrorText(expected string) {
	got := p.peekToken.Literal
	switch p.peekToken.Type {
	case lexer.NEWLINE:
		got = "end of line"
	case lexer.EOF:
		got = "end of recipe"
	}

	// Report error at the position after the last successfully parsed token
	line := p.curToken.Line
	column := p.curToken.Column + len(p.curToken.Literal)

	p.addError(eerrors.CodeRecipeSyntax, line, column, map[string]any{"Expected": expected, "Got": got})
}

func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}
	return LOWEST
}
