package parser

import (
	"github.com/refineql/refineql/internal/ast"
	"github.com/refineql/refineql/internal/token"
)

// parseValueArg = value-expr [":" type-expr]
//
// The annotation is what separates the two front-end grammars; seeing one
// flips the whole statement to explicit mode.
func (p *Parser) parseValueArg() (ast.ValueArg, error) {
	expr, err := p.parseValueExpr()
	if err != nil {
		return ast.ValueArg{}, err
	}
	arg := ast.ValueArg{Expr: expr}

	if p.accept(token.COLON) {
		typ, err := p.parseTypeExpr()
		if err != nil {
			return ast.ValueArg{}, err
		}
		arg.Type = typ
		p.annotated = true
	}
	return arg, nil
}

// parseValueExpr = scalar-literal | "[" value-expr, ... "]"
//                | "{" ident ":" value-expr, ... "}"
func (p *Parser) parseValueExpr() (ast.ValueExpr, error) {
	switch p.cur().Kind {
	case token.LBRACKET:
		return p.parseList()
	case token.LBRACE:
		return p.parseRecord()
	default:
		return p.parseScalarLiteral()
	}
}

func (p *Parser) parseScalarLiteral() (ast.Literal, error) {
	t := p.cur()
	switch t.Kind {
	case token.INT:
		p.next()
		return ast.Literal{Kind: ast.LitInt, IntVal: t.Literal.(int64), Position: t.Pos}, nil
	case token.FLOAT:
		p.next()
		return ast.Literal{Kind: ast.LitFloat, FloatVal: t.Literal.(float64), Position: t.Pos}, nil
	case token.STRING:
		p.next()
		return ast.Literal{Kind: ast.LitString, StrVal: t.Literal.(string), Position: t.Pos}, nil
	case token.TRUE, token.FALSE:
		p.next()
		return ast.Literal{Kind: ast.LitBool, BoolVal: t.Kind == token.TRUE, Position: t.Pos}, nil
	case token.NULL:
		p.next()
		return ast.Literal{Kind: ast.LitNull, Position: t.Pos}, nil
	case token.MINUS:
		// Negative numeric literal.
		p.next()
		n := p.cur()
		switch n.Kind {
		case token.INT:
			p.next()
			return ast.Literal{Kind: ast.LitInt, IntVal: -n.Literal.(int64), Position: t.Pos}, nil
		case token.FLOAT:
			p.next()
			return ast.Literal{Kind: ast.LitFloat, FloatVal: -n.Literal.(float64), Position: t.Pos}, nil
		default:
			return ast.Literal{}, p.errorf("expected a number after '-', found %s", n.Kind)
		}
	default:
		return ast.Literal{}, p.errorf("expected a literal value, found %s", t.Kind)
	}
}

func (p *Parser) parseList() (ast.ValueExpr, error) {
	pos := p.cur().Pos
	p.next() // [
	list := ast.List{Position: pos}
	if p.accept(token.RBRACKET) {
		return list, nil
	}
	for {
		elem, err := p.parseValueExpr()
		if err != nil {
			return nil, err
		}
		list.Elems = append(list.Elems, elem)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *Parser) parseRecord() (ast.ValueExpr, error) {
	pos := p.cur().Pos
	p.next() // {
	rec := ast.Record{Position: pos}
	for {
		name, err := p.expectIdent("field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		val, err := p.parseValueExpr()
		if err != nil {
			return nil, err
		}
		rec.Fields = append(rec.Fields, ast.RecordField{Name: name, Value: val})
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return rec, nil
}

// parseExpr is a precedence-climbing parser over WHERE-clause expressions.
func (p *Parser) parseExpr(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op := p.cur().Kind
		prec := token.Precedence(op)
		if op == token.NOT && (p.peek().Kind == token.BETWEEN || p.peek().Kind == token.IN) {
			// x NOT BETWEEN / x NOT IN bind like their positive forms.
			prec = token.PrecRange
		}
		if prec == token.PrecLowest || prec < minPrec {
			return left, nil
		}

		switch op {
		case token.NOT:
			p.next() // NOT
			if p.cur().Kind == token.BETWEEN {
				left, err = p.parseBetween(left, true)
			} else {
				left, err = p.parseIn(left, true)
			}
		case token.BETWEEN:
			left, err = p.parseBetween(left, false)
		case token.IN:
			left, err = p.parseIn(left, false)
		case token.IS:
			left, err = p.parseIsNull(left)
		case token.LIKE:
			p.next()
			var right ast.Expr
			right, err = p.parseExpr(prec + 1)
			left = ast.Binary{Op: token.LIKE, Left: left, Right: right}
		default:
			p.next()
			var right ast.Expr
			right, err = p.parseExpr(prec + 1)
			left = ast.Binary{Op: op, Left: left, Right: right}
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	t := p.cur()
	switch t.Kind {
	case token.NOT:
		p.next()
		// NOT x BETWEEN ... parses as NOT (x BETWEEN ...).
		operand, err := p.parseExpr(token.PrecNot)
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: token.NOT, Operand: operand, Position: t.Pos}, nil
	case token.MINUS:
		p.next()
		operand, err := p.parseExpr(token.PrecUnary)
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: token.MINUS, Operand: operand, Position: t.Pos}, nil
	default:
		return p.parsePrimaryExpr()
	}
}

func (p *Parser) parsePrimaryExpr() (ast.Expr, error) {
	t := p.cur()
	switch t.Kind {
	case token.LPAREN:
		p.next()
		inner, err := p.parseExpr(token.PrecLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case token.IDENT:
		p.next()
		return ast.ColumnRef{Name: t.Lexeme, Position: t.Pos}, nil
	case token.INT, token.FLOAT, token.STRING, token.TRUE, token.FALSE, token.NULL:
		lit, err := p.parseScalarLiteral()
		if err != nil {
			return nil, err
		}
		return ast.LiteralExpr{Lit: lit}, nil
	default:
		return nil, p.errorf("expected an expression, found %s", t.Kind)
	}
}

// parseBetween continues "operand BETWEEN low AND high". The AND here
// belongs to BETWEEN, so the bounds parse above AND precedence.
func (p *Parser) parseBetween(operand ast.Expr, negated bool) (ast.Expr, error) {
	p.next() // BETWEEN
	low, err := p.parseExpr(token.PrecAdd)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.AND); err != nil {
		return nil, err
	}
	high, err := p.parseExpr(token.PrecAdd)
	if err != nil {
		return nil, err
	}
	return ast.Between{Operand: operand, Low: low, High: high, Negated: negated}, nil
}

func (p *Parser) parseIn(operand ast.Expr, negated bool) (ast.Expr, error) {
	p.next() // IN
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var set []ast.Expr
	for {
		e, err := p.parseExpr(token.PrecLowest)
		if err != nil {
			return nil, err
		}
		set = append(set, e)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return ast.In{Operand: operand, Set: set, Negated: negated}, nil
}

func (p *Parser) parseIsNull(operand ast.Expr) (ast.Expr, error) {
	p.next() // IS
	negated := p.accept(token.NOT)
	if _, err := p.expect(token.NULL); err != nil {
		return nil, err
	}
	return ast.IsNull{Operand: operand, Negated: negated}, nil
}
