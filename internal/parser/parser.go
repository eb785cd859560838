// Package parser turns RQL tokens into untyped statement trees.
//
// One recursive-descent parser serves both front-end grammars. Explicit
// type annotations and proof clauses are recorded where written; the
// parser never resolves a type for an unannotated value. Parsing is
// fail-fast per statement; statements in a batch parse independently.
package parser

import (
	"fmt"
	"strings"

	"github.com/refineql/refineql/internal/ast"
	"github.com/refineql/refineql/internal/lexer"
	"github.com/refineql/refineql/internal/token"
)

// ParseError is a syntactic error at a source position.
type ParseError struct {
	Message string
	Pos     token.Position
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse error: %s", e.Pos, e.Message)
}

// Parser consumes one statement's tokens.
type Parser struct {
	toks []token.Token
	i    int

	// annotated flips when any value carries a ": Type" annotation or a
	// PROOF clause appears, switching the statement to explicit mode.
	annotated bool
}

// New creates a Parser over a token slice. The slice must end with EOF.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// ParseSource lexes and parses a single statement.
func ParseSource(src string) (ast.Statement, error) {
	toks, lexErrs := lexer.Scan(src)
	if len(lexErrs) > 0 {
		return nil, lexErrs[0]
	}
	return New(toks).ParseStatement()
}

// BatchResult is the outcome of parsing one statement in a batch.
type BatchResult struct {
	Source string // the statement's source text, semicolon excluded
	Stmt   ast.Statement
	Err    error
}

// ParseBatch lexes src and parses each semicolon-separated statement
// independently: a failure in one statement does not abort its neighbors.
func ParseBatch(src string) []BatchResult {
	toks, lexErrs := lexer.Scan(src)
	if len(lexErrs) > 0 {
		return []BatchResult{{Source: strings.TrimSpace(src), Err: lexErrs[0]}}
	}

	var results []BatchResult
	start := 0
	for i, t := range toks {
		if t.Kind != token.SEMI && t.Kind != token.EOF {
			continue
		}
		span := toks[start:i]
		start = i + 1
		if len(span) == 0 {
			continue
		}
		text := strings.TrimSpace(src[offsetAt(src, span[0].Pos):offsetAt(src, t.Pos)])
		// Each span gets its own terminator so sub-parsers see EOF.
		span = append(append([]token.Token{}, span...), token.Token{Kind: token.EOF, Pos: t.Pos})
		stmt, err := New(span).ParseStatement()
		results = append(results, BatchResult{Source: text, Stmt: stmt, Err: err})
	}
	return results
}

// offsetAt maps a line/column position back to a byte offset in src.
// Positions past the end of input map to len(src).
func offsetAt(src string, pos token.Position) int {
	line, col := 1, 1
	for i, r := range src {
		if line == pos.Line && col == pos.Column {
			return i
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return len(src)
}

// ParseStatement parses exactly one statement and requires EOF (or a
// trailing semicolon) after it.
func (p *Parser) ParseStatement() (ast.Statement, error) {
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == token.SEMI {
		p.next()
	}
	if p.cur().Kind != token.EOF {
		return nil, p.errorf("unexpected %s after statement", p.cur().Kind)
	}
	return stmt, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur().Kind {
	case token.SELECT:
		return p.parseSelect()
	case token.INSERT:
		return p.parseInsert()
	case token.UPDATE:
		return p.parseUpdate()
	case token.DELETE:
		return p.parseDelete()
	case token.CREATE:
		return p.parseCreate()
	case token.NORMALIZE:
		return p.parseNormalize()
	default:
		return nil, p.errorf("expected a statement keyword, found %s", p.cur().Kind)
	}
}

func (p *Parser) cur() token.Token {
	return p.toks[p.i]
}

func (p *Parser) peek() token.Token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() token.Token {
	t := p.toks[p.i]
	if t.Kind != token.EOF {
		p.i++
	}
	return t
}

func (p *Parser) accept(k token.Kind) bool {
	if p.cur().Kind == k {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, p.errorf("expected %s, found %s", k, p.cur().Kind)
	}
	return p.next(), nil
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Pos: p.cur().Pos}
}

// mode reports the statement mode given everything seen so far.
func (p *Parser) mode() ast.Mode {
	if p.annotated {
		return ast.ModeExplicit
	}
	return ast.ModeInferred
}

// expectIdent consumes an identifier and returns its spelling.
func (p *Parser) expectIdent(what string) (string, error) {
	if p.cur().Kind != token.IDENT {
		return "", p.errorf("expected %s, found %s", what, p.cur().Kind)
	}
	return p.next().Lexeme, nil
}

// expectString consumes a string literal and returns its decoded value.
func (p *Parser) expectString(what string) (string, error) {
	if p.cur().Kind != token.STRING {
		return "", p.errorf("expected %s, found %s", what, p.cur().Kind)
	}
	return p.next().Literal.(string), nil
}
