package lexer

import "fmt"

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF
	NEWLINE
	COMMENT // # to end of line

	// Identifiers and literals
	IDENT  // ZA, AWR, NBT, ...
	INT    // 451
	FLOAT  // 0.0, 1e-5
	STRING // "message"

	// Operators
	PLUS     // +
	MINUS    // -
	ASTERISK // *
	SLASH    // / (division, or field separator in records)
	PERCENT  // %
	ASSIGN   // =
	DEFINE   // :=
	QUESTION // ?

	EQ     // ==
	NOT_EQ // !=
	LT     // <
	GT     // >
	LTE    // <=
	GTE    // >=

	// Delimiters
	COMMA    // ,
	COLON    // :
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }

	// Keywords
	FOR
	TO
	ENDFOR
	REPEAT
	UNTIL
	IF
	ELIF
	ELSE
	ENDIF
	AND
	OR
	SEND
	STOP
	PADLINE
	BLANK
	LOOKAHEAD
)

// Token represents a single token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Line: %d, Column: %d}",
		t.Type.String(), t.Literal, t.Line, t.Column)
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	switch tt {
	case ILLEGAL:
		return "ILLEGAL"
	case EOF:
		return "EOF"
	case NEWLINE:
		return "NEWLINE"
	case COMMENT:
		return "COMMENT"
	case IDENT:
		return "IDENT"
	case INT:
		return "INT"
	case FLOAT:
		return "FLOAT"
	case STRING:
		return "STRING"
	case PLUS:
		return "+"
	case MINUS:
		return "-"
	case ASTERISK:
		return "*"
	case SLASH:
		return "/"
	case PERCENT:
		return "%"
	case ASSIGN:
		return "="
	case DEFINE:
		return ":="
	case QUESTION:
		return "?"
	case EQ:
		return "=="
	case NOT_EQ:
		return "!="
	case LT:
		return "<"
	case GT:
		return ">"
	case LTE:
		return "<="
	case GTE:
		return ">="
	case COMMA:
		return ","
	case COLON:
		return ":"
	case LPAREN:
		return "("
	case RPAREN:
		return ")"
	case LBRACKET:
		return "["
	case RBRACKET:
		return "]"
	case LBRACE:
		return "{"
	case RBRACE:
		return "}"
	case FOR:
		return "for"
	case TO:
		return "to"
	case ENDFOR:
		return "endfor"
	case REPEAT:
		return "repeat"
	case UNTIL:
		return "until"
	case IF:
		return "if"
	case ELIF:
		return "elif"
	case ELSE:
		return "else"
	case ENDIF:
		return "endif"
	case AND:
		return "and"
	case OR:
		return "or"
	case SEND:
		return "SEND"
	case STOP:
		return "stop"
	case PADLINE:
		return "PADLINE"
	case BLANK:
		return "blank"
	case LOOKAHEAD:
		return "lookahead"
	default:
		return "UNKNOWN"
	}
}

// Keywords map for identifying recipe keywords
var keywords = map[string]TokenType{
	"for":       FOR,
	"to":        TO,
	"endfor":    ENDFOR,
	"repeat":    REPEAT,
	"until":     UNTIL,
	"if":        IF,
	"elif":      ELIF,
	"else":      ELSE,
	"endif":     ENDIF,
	"and":       AND,
	"or":        OR,
	"SEND":      SEND,
	"stop":      STOP,
	"PADLINE":   PADLINE,
	"blank":     BLANK,
	"lookahead": LOOKAHEAD,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Lexer represents the lexical analyzer
type Lexer struct {
	filename     string
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // current line number
	column       int  // current column number
	depth        int  // nesting of [ and {; newlines inside are insignificant
}

// New creates a new lexer instance
func New(input string) *Lexer {
	return NewWithFilename(input, "<recipe>")
}

// NewWithFilename creates a new lexer instance with a specific filename
func NewWithFilename(input string, filename string) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    input,
		line:     1,
		column:   0,
	}
	l.readChar()
	return l
}

// Filename returns the name used in error positions.
func (l *Lexer) Filename() string {
	return l.filename
}

// LexerState captures the lexer position for backtracking
type LexerState struct {
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
	depth        int
}

// SaveState returns the current lexer state
func (l *Lexer) SaveState() LexerState {
	return LexerState{
		position:     l.position,
		readPosition: l.readPosition,
		ch:           l.ch,
		line:         l.line,
		column:       l.column,
		depth:        l.depth,
	}
}

// RestoreState rewinds the lexer to a saved state
func (l *Lexer) RestoreState(state LexerState) {
	l.position = state.position
	l.readPosition = state.readPosition
	l.ch = state.ch
	l.line = state.line
	l.column = state.column
	l.depth = state.depth
}

// PeekToken returns the next token without consuming it
func (l *Lexer) PeekToken() Token {
	state := l.SaveState()
	tok := l.NextToken()
	l.RestoreState(state)
	return tok
}

// readChar reads the next character and advances position.
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	l.ch = l.input[l.readPosition]
	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken scans the input and returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	line, col := l.line, l.column
	var tok Token

	switch l.ch {
	case 0:
		return Token{Type: EOF, Literal: "", Line: line, Column: col}
	case '\n':
		tok = Token{Type: NEWLINE, Literal: "\n", Line: line, Column: col}
		l.readChar()
		return tok
	case '#':
		return Token{Type: COMMENT, Literal: l.readComment(), Line: line, Column: col}
	case '"':
		str, ok := l.readString()
		if !ok {
			return Token{Type: ILLEGAL, Literal: "\"" + str, Line: line, Column: col}
		}
		return Token{Type: STRING, Literal: str, Line: line, Column: col}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: EQ, Literal: "==", Line: line, Column: col}
		} else {
			tok = newToken(ASSIGN, l.ch, line, col)
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: NOT_EQ, Literal: "!=", Line: line, Column: col}
		} else {
			tok = newToken(ILLEGAL, l.ch, line, col)
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: LTE, Literal: "<=", Line: line, Column: col}
		} else {
			tok = newToken(LT, l.ch, line, col)
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: GTE, Literal: ">=", Line: line, Column: col}
		} else {
			tok = newToken(GT, l.ch, line, col)
		}
	case ':':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: DEFINE, Literal: ":=", Line: line, Column: col}
		} else {
			tok = newToken(COLON, l.ch, line, col)
		}
	case '+':
		tok = newToken(PLUS, l.ch, line, col)
	case '-':
		tok = newToken(MINUS, l.ch, line, col)
	case '*':
		tok = newToken(ASTERISK, l.ch, line, col)
	case '/':
		tok = newToken(SLASH, l.ch, line, col)
	case '%':
		tok = newToken(PERCENT, l.ch, line, col)
	case '?':
		tok = newToken(QUESTION, l.ch, line, col)
	case ',':
		tok = newToken(COMMA, l.ch, line, col)
	case '(':
		tok = newToken(LPAREN, l.ch, line, col)
	case ')':
		tok = newToken(RPAREN, l.ch, line, col)
	case '[':
		l.depth++
		tok = newToken(LBRACKET, l.ch, line, col)
	case ']':
		if l.depth > 0 {
			l.depth--
		}
		tok = newToken(RBRACKET, l.ch, line, col)
	case '{':
		l.depth++
		tok = newToken(LBRACE, l.ch, line, col)
	case '}':
		if l.depth > 0 {
			l.depth--
		}
		tok = newToken(RBRACE, l.ch, line, col)
	default:
		if isLetter(l.ch) {
			literal := l.readIdentifier()
			return Token{Type: LookupIdent(literal), Literal: literal, Line: line, Column: col}
		}
		if isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
			literal, isFloat := l.readNumber()
			if isFloat {
				return Token{Type: FLOAT, Literal: literal, Line: line, Column: col}
			}
			return Token{Type: INT, Literal: literal, Line: line, Column: col}
		}
		tok = newToken(ILLEGAL, l.ch, line, col)
	}

	l.readChar()
	return tok
}

// newToken creates a new token with the given parameters
func newToken(tokenType TokenType, ch byte, line, column int) Token {
	return Token{Type: tokenType, Literal: string(ch), Line: line, Column: column}
}

// readIdentifier reads an identifier or keyword
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads a number (integer or float), including an exponent
func (l *Lexer) readNumber() (string, bool) {
	position := l.position
	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		after := byte(0)
		if l.readPosition+1 < len(l.input) {
			after = l.input[l.readPosition+1]
		}
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(after)) {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	return l.input[position:l.position], isFloat
}

// readString reads a double-quoted string without escapes
func (l *Lexer) readString() (string, bool) {
	l.readChar()
	position := l.position
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return l.input[position:l.position], false
		}
		l.readChar()
	}
	str := l.input[position:l.position]
	l.readChar()
	return str, true
}

// readComment reads from '#' to the end of the line, leaving the newline.
func (l *Lexer) readComment() string {
	position := l.position
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	text := l.input[position:l.position]
	if n := len(text); n > 0 && text[n-1] == '\r' {
		text = text[:n-1]
	}
	return text
}

// skipWhitespace skips blanks. Newlines are tokens unless inside [ ] or { },
// where comments are dropped as well.
func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '\n' && l.depth > 0:
			l.readChar()
		case l.ch == '#' && l.depth > 0:
			l.readComment()
		default:
			return
		}
	}
}

// isLetter checks if a byte represents a letter
func isLetter(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// isDigit checks if the character is a digit
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
