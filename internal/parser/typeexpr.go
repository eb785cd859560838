package parser

import (
	"github.com/refineql/refineql/internal/lexer"
	"github.com/refineql/refineql/internal/token"
	"github.com/refineql/refineql/internal/types"
)

// ParseTypeExprString parses a standalone type expression in the surface
// syntax, e.g. "BoundedNat[0,100]". Permission profiles and schema
// definitions use this to name catalogue types.
func ParseTypeExprString(s string) (types.TypeExpr, error) {
	toks, lexErrs := lexer.Scan(s)
	if len(lexErrs) > 0 {
		return nil, lexErrs[0]
	}
	p := New(toks)
	typ, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != token.EOF {
		return nil, p.errorf("unexpected %s after type expression", p.cur().Kind)
	}
	return typ, nil
}

// parseTypeExpr parses one catalogue type expression. Constructor names
// are case-sensitive keywords, so a misspelled case arrives here as an
// identifier and is rejected with a hint.
func (p *Parser) parseTypeExpr() (types.TypeExpr, error) {
	t := p.cur()
	switch t.Kind {
	case token.TYPE_NAT:
		p.next()
		return types.Primitive{Kind: types.Nat}, nil
	case token.TYPE_INT:
		p.next()
		return types.Primitive{Kind: types.Int}, nil
	case token.TYPE_TEXT:
		p.next()
		return types.Primitive{Kind: types.Text}, nil
	case token.TYPE_BOOL:
		p.next()
		return types.Primitive{Kind: types.Bool}, nil
	case token.TYPE_FLOAT:
		p.next()
		return types.Primitive{Kind: types.Float}, nil
	case token.TYPE_UUID:
		p.next()
		return types.Primitive{Kind: types.UUID}, nil
	case token.TYPE_TIMESTAMP:
		p.next()
		return types.Primitive{Kind: types.Timestamp}, nil
	case token.TYPE_NON_EMPTY_TEXT:
		p.next()
		return types.NonEmptyText{}, nil
	case token.TYPE_CONFIDENCE:
		p.next()
		return types.Confidence{}, nil
	case token.TYPE_BOUNDED_NAT:
		return p.parseBoundedNat()
	case token.TYPE_BOUNDED_FLOAT:
		return p.parseBoundedFloat()
	case token.TYPE_VECTOR:
		return p.parseVectorType()
	case token.TYPE_PROVENANCE:
		return p.parseProvenanceType()
	case token.TYPE_COMPOSITE_SCORE:
		return p.parseCompositeScoreType()
	case token.IDENT:
		if token.Lookup(canonicalTypeCase(t.Lexeme)) != token.IDENT {
			return nil, p.errorf("unknown type %q (type names are case-sensitive; did you mean %q?)",
				t.Lexeme, canonicalTypeCase(t.Lexeme))
		}
		return nil, p.errorf("unknown type %q", t.Lexeme)
	default:
		return nil, p.errorf("expected a type expression, found %s", t.Kind)
	}
}

// canonicalTypeCase maps a case-mangled spelling to the catalogue's
// spelling, for the error hint only.
func canonicalTypeCase(word string) string {
	for _, name := range []string{
		"Nat", "Int", "Text", "Bool", "Float", "UUID", "Timestamp",
		"BoundedNat", "BoundedFloat", "NonEmptyText", "Confidence",
		"Vector", "Provenance", "CompositeScore",
	} {
		if equalFold(word, name) {
			return name
		}
	}
	return word
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// parseBoundedNat = BoundedNat "[" int "," int "]"
func (p *Parser) parseBoundedNat() (types.TypeExpr, error) {
	p.next() // BoundedNat
	if _, err := p.expect(token.LBRACKET); err != nil {
		return nil, err
	}
	min, err := p.parseIntBound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	max, err := p.parseIntBound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	if min > max {
		return nil, p.errorf("BoundedNat bounds [%d,%d] are inverted", min, max)
	}
	if min < 0 {
		return nil, p.errorf("BoundedNat minimum %d is negative", min)
	}
	return types.BoundedNat{Min: min, Max: max}, nil
}

// parseBoundedFloat = BoundedFloat "[" num "," num "]"
func (p *Parser) parseBoundedFloat() (types.TypeExpr, error) {
	p.next() // BoundedFloat
	if _, err := p.expect(token.LBRACKET); err != nil {
		return nil, err
	}
	min, err := p.parseFloatBound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	max, err := p.parseFloatBound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	if min > max {
		return nil, p.errorf("BoundedFloat bounds [%g,%g] are inverted", min, max)
	}
	return types.BoundedFloat{Min: min, Max: max}, nil
}

// parseVectorType = Vector "[" type-expr "," int "]"
func (p *Parser) parseVectorType() (types.TypeExpr, error) {
	p.next() // Vector
	if _, err := p.expect(token.LBRACKET); err != nil {
		return nil, err
	}
	elem, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	n, err := p.parseIntBound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, p.errorf("Vector length must be positive, got %d", n)
	}
	return types.Vector{Elem: elem, Len: int(n)}, nil
}

// parseProvenanceType = Provenance "[" type-expr "]"
func (p *Parser) parseProvenanceType() (types.TypeExpr, error) {
	p.next() // Provenance
	if _, err := p.expect(token.LBRACKET); err != nil {
		return nil, err
	}
	inner, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return types.Provenance{Inner: inner}, nil
}

// parseCompositeScoreType = CompositeScore "[" int "]"
func (p *Parser) parseCompositeScoreType() (types.TypeExpr, error) {
	p.next() // CompositeScore
	if _, err := p.expect(token.LBRACKET); err != nil {
		return nil, err
	}
	n, err := p.parseIntBound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, p.errorf("CompositeScore dimension count must be positive, got %d", n)
	}
	return types.CompositeScore{Dims: int(n)}, nil
}

func (p *Parser) parseIntBound() (int64, error) {
	neg := p.accept(token.MINUS)
	t, err := p.expect(token.INT)
	if err != nil {
		return 0, err
	}
	n := t.Literal.(int64)
	if neg {
		n = -n
	}
	return n, nil
}

func (p *Parser) parseFloatBound() (float64, error) {
	neg := p.accept(token.MINUS)
	t := p.cur()
	var f float64
	switch t.Kind {
	case token.INT:
		p.next()
		f = float64(t.Literal.(int64))
	case token.FLOAT:
		p.next()
		f = t.Literal.(float64)
	default:
		return 0, p.errorf("expected a numeric bound, found %s", t.Kind)
	}
	if neg {
		f = -f
	}
	return f, nil
}
