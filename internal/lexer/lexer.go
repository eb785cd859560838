// Package lexer tokenizes RQL source text.
//
// Scanning is longest-match and error-tolerant: on an invalid character or
// unterminated literal the lexer records a LexError, skips to the next
// whitespace or delimiter, and keeps going, so a single pass reports every
// lexical problem in the input.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/refineql/refineql/internal/token"
)

// LexError is a lexical error at a source position.
type LexError struct {
	Message string
	Pos     token.Position
}

// Error implements the error interface.
func (e *LexError) Error() string {
	return fmt.Sprintf("%s: lex error: %s", e.Pos, e.Message)
}

// Lexer scans a single source string.
type Lexer struct {
	src    string
	offset int // byte offset of the next rune
	line   int
	col    int

	tokens []token.Token
	errs   []*LexError
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Scan tokenizes the whole input. The token slice always ends with EOF.
// A non-empty error slice means some stretches of input were skipped; the
// surviving tokens are still usable for diagnostics but not for parsing.
func Scan(src string) ([]token.Token, []*LexError) {
	l := New(src)
	return l.scanAll()
}

func (l *Lexer) scanAll() ([]token.Token, []*LexError) {
	for {
		l.skipBlanks()
		if l.atEOF() {
			break
		}
		l.scanToken()
	}
	l.emit(token.Token{Kind: token.EOF, Pos: l.pos()})
	return l.tokens, l.errs
}

func (l *Lexer) pos() token.Position {
	return token.Position{Line: l.line, Column: l.col}
}

func (l *Lexer) atEOF() bool {
	return l.offset >= len(l.src)
}

// peek returns the current rune without consuming it.
func (l *Lexer) peek() rune {
	if l.atEOF() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.offset:])
	return r
}

// peekAt returns the rune n runes ahead of the current one.
func (l *Lexer) peekAt(n int) rune {
	off := l.offset
	for i := 0; i < n; i++ {
		if off >= len(l.src) {
			return 0
		}
		_, w := utf8.DecodeRuneInString(l.src[off:])
		off += w
	}
	if off >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[off:])
	return r
}

// next consumes and returns the current rune, updating line/column.
func (l *Lexer) next() rune {
	r, w := utf8.DecodeRuneInString(l.src[l.offset:])
	l.offset += w
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) emit(t token.Token) {
	l.tokens = append(l.tokens, t)
}

func (l *Lexer) errorf(pos token.Position, format string, args ...any) {
	l.errs = append(l.errs, &LexError{Message: fmt.Sprintf(format, args...), Pos: pos})
}

// skipBlanks consumes whitespace and comments. Block comments nest.
func (l *Lexer) skipBlanks() {
	for !l.atEOF() {
		r := l.peek()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.next()
		case r == '-' && l.peekAt(1) == '-':
			for !l.atEOF() && l.peek() != '\n' {
				l.next()
			}
		case r == '/' && l.peekAt(1) == '*':
			l.skipBlockComment()
		default:
			return
		}
	}
}

func (l *Lexer) skipBlockComment() {
	start := l.pos()
	l.next() // '/'
	l.next() // '*'
	depth := 1
	for depth > 0 {
		if l.atEOF() {
			l.errorf(start, "unterminated block comment")
			return
		}
		r := l.next()
		if r == '/' && l.peek() == '*' {
			l.next()
			depth++
		} else if r == '*' && l.peek() == '/' {
			l.next()
			depth--
		}
	}
}

// recover skips forward to the next whitespace or delimiter so scanning
// can continue after an error.
func (l *Lexer) recover() {
	for !l.atEOF() {
		r := l.peek()
		if unicode.IsSpace(r) || strings.ContainsRune("(),[]{}:;", r) {
			return
		}
		l.next()
	}
}

func (l *Lexer) scanToken() {
	pos := l.pos()
	r := l.peek()

	switch {
	case isIdentStart(r):
		l.scanWord(pos)
	case unicode.IsDigit(r):
		l.scanNumber(pos)
	case r == '\'' || r == '"':
		l.scanString(pos)
	default:
		l.scanOperator(pos)
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// scanWord reads an identifier or keyword. Keyword lookup precedes
// identifier classification.
func (l *Lexer) scanWord(pos token.Position) {
	start := l.offset
	for !l.atEOF() && isIdentPart(l.peek()) {
		l.next()
	}
	word := l.src[start:l.offset]
	kind := token.Lookup(word)

	t := token.Token{Kind: kind, Lexeme: word, Pos: pos}
	switch kind {
	case token.TRUE:
		t.Literal = true
	case token.FALSE:
		t.Literal = false
	}
	l.emit(t)
}

// scanNumber reads an integer or float literal, longest match. A trailing
// dot not followed by a digit is left for the next token.
func (l *Lexer) scanNumber(pos token.Position) {
	start := l.offset
	for !l.atEOF() && unicode.IsDigit(l.peek()) {
		l.next()
	}

	isFloat := false
	if l.peek() == '.' && unicode.IsDigit(l.peekAt(1)) {
		isFloat = true
		l.next()
		for !l.atEOF() && unicode.IsDigit(l.peek()) {
			l.next()
		}
	}
	if r := l.peek(); r == 'e' || r == 'E' {
		// Exponent needs at least one digit, optionally signed.
		i := 1
		if s := l.peekAt(1); s == '+' || s == '-' {
			i = 2
		}
		if unicode.IsDigit(l.peekAt(i)) {
			isFloat = true
			for j := 0; j < i; j++ {
				l.next()
			}
			for !l.atEOF() && unicode.IsDigit(l.peek()) {
				l.next()
			}
		}
	}

	lexeme := l.src[start:l.offset]

	// A number immediately followed by an identifier character is a
	// malformed literal, not two tokens.
	if !l.atEOF() && isIdentPart(l.peek()) {
		l.errorf(pos, "malformed numeric literal %q", lexeme)
		l.recover()
		return
	}

	if isFloat {
		f, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			l.errorf(pos, "invalid float literal %q", lexeme)
			return
		}
		l.emit(token.Token{Kind: token.FLOAT, Lexeme: lexeme, Literal: f, Pos: pos})
		return
	}

	n, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		l.errorf(pos, "integer literal %q out of range", lexeme)
		return
	}
	l.emit(token.Token{Kind: token.INT, Lexeme: lexeme, Literal: n, Pos: pos})
}

// scanString reads a single- or double-quoted string with backslash and
// Unicode code-point escapes.
func (l *Lexer) scanString(pos token.Position) {
	quote := l.next()
	var sb strings.Builder
	start := l.offset

	for {
		if l.atEOF() || l.peek() == '\n' {
			l.errorf(pos, "unterminated string literal")
			l.recover()
			return
		}
		r := l.next()
		if r == quote {
			break
		}
		if r != '\\' {
			sb.WriteRune(r)
			continue
		}

		if l.atEOF() {
			l.errorf(pos, "unterminated string literal")
			return
		}
		esc := l.next()
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\', '\'', '"':
			sb.WriteRune(esc)
		case 'u':
			r, ok := l.scanUnicodeEscape(pos)
			if !ok {
				l.recover()
				return
			}
			sb.WriteRune(r)
		default:
			l.errorf(pos, "unknown escape sequence \\%c", esc)
			l.recover()
			return
		}
	}

	lexeme := l.src[start-1 : l.offset]
	l.emit(token.Token{Kind: token.STRING, Lexeme: lexeme, Literal: sb.String(), Pos: pos})
}

// scanUnicodeEscape reads the "{XXXX}" tail of a \u escape.
func (l *Lexer) scanUnicodeEscape(pos token.Position) (rune, bool) {
	if l.peek() != '{' {
		l.errorf(pos, "expected '{' after \\u")
		return 0, false
	}
	l.next()
	start := l.offset
	for !l.atEOF() && l.peek() != '}' {
		l.next()
	}
	if l.atEOF() {
		l.errorf(pos, "unterminated \\u{...} escape")
		return 0, false
	}
	hex := l.src[start:l.offset]
	l.next() // '}'

	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || n > unicode.MaxRune {
		l.errorf(pos, "invalid Unicode code point %q", hex)
		return 0, false
	}
	return rune(n), true
}

// scanOperator reads delimiters and operators, longest match first.
func (l *Lexer) scanOperator(pos token.Position) {
	r := l.next()

	two := func(second rune, kind token.Kind, lexeme string) bool {
		if l.peek() == second {
			l.next()
			l.emit(token.Token{Kind: kind, Lexeme: lexeme, Pos: pos})
			return true
		}
		return false
	}

	switch r {
	case '(':
		l.emit(token.Token{Kind: token.LPAREN, Lexeme: "(", Pos: pos})
	case ')':
		l.emit(token.Token{Kind: token.RPAREN, Lexeme: ")", Pos: pos})
	case '[':
		l.emit(token.Token{Kind: token.LBRACKET, Lexeme: "[", Pos: pos})
	case ']':
		l.emit(token.Token{Kind: token.RBRACKET, Lexeme: "]", Pos: pos})
	case '{':
		l.emit(token.Token{Kind: token.LBRACE, Lexeme: "{", Pos: pos})
	case '}':
		l.emit(token.Token{Kind: token.RBRACE, Lexeme: "}", Pos: pos})
	case ',':
		l.emit(token.Token{Kind: token.COMMA, Lexeme: ",", Pos: pos})
	case ':':
		l.emit(token.Token{Kind: token.COLON, Lexeme: ":", Pos: pos})
	case ';':
		l.emit(token.Token{Kind: token.SEMI, Lexeme: ";", Pos: pos})
	case '.':
		l.emit(token.Token{Kind: token.DOT, Lexeme: ".", Pos: pos})
	case '=':
		l.emit(token.Token{Kind: token.EQ, Lexeme: "=", Pos: pos})
	case '+':
		l.emit(token.Token{Kind: token.PLUS, Lexeme: "+", Pos: pos})
	case '-':
		l.emit(token.Token{Kind: token.MINUS, Lexeme: "-", Pos: pos})
	case '*':
		l.emit(token.Token{Kind: token.STAR, Lexeme: "*", Pos: pos})
	case '/':
		l.emit(token.Token{Kind: token.SLASH, Lexeme: "/", Pos: pos})
	case '%':
		l.emit(token.Token{Kind: token.PERCENT, Lexeme: "%", Pos: pos})
	case '!':
		if !two('=', token.NEQ, "!=") {
			l.errorf(pos, "unexpected character '!'")
			l.recover()
		}
	case '<':
		if two('=', token.LTE, "<=") {
			return
		}
		if two('>', token.NEQ, "<>") {
			return
		}
		l.emit(token.Token{Kind: token.LT, Lexeme: "<", Pos: pos})
	case '>':
		if !two('=', token.GTE, ">=") {
			l.emit(token.Token{Kind: token.GT, Lexeme: ">", Pos: pos})
		}
	case '|':
		if !two('|', token.CONCAT, "||") {
			l.errorf(pos, "unexpected character '|'")
			l.recover()
		}
	default:
		l.errorf(pos, "invalid character %q", r)
		l.recover()
	}
}
