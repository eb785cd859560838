package parser

import (
	"github.com/refineql/refineql/internal/ast"
	"github.com/refineql/refineql/internal/token"
)

// parseSelect = SELECT [DISTINCT] (* | col, ...) FROM ident
//               [WHERE expr] [ORDER BY key, ...] [LIMIT int]
func (p *Parser) parseSelect() (ast.Statement, error) {
	pos := p.cur().Pos
	p.next() // SELECT

	stmt := ast.Select{Position: pos, Limit: -1}
	stmt.Distinct = p.accept(token.DISTINCT)

	if p.accept(token.STAR) {
		// empty Columns = all
	} else {
		for {
			col, err := p.expectIdent("column name")
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if !p.accept(token.COMMA) {
				break
			}
		}
	}

	if _, err := p.expect(token.FROM); err != nil {
		return nil, err
	}
	table, err := p.expectIdent("table name")
	if err != nil {
		return nil, err
	}
	stmt.Table = table

	if p.accept(token.WHERE) {
		where, err := p.parseExpr(token.PrecLowest)
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.accept(token.ORDER) {
		if _, err := p.expect(token.BY); err != nil {
			return nil, err
		}
		for {
			col, err := p.expectIdent("ORDER BY column")
			if err != nil {
				return nil, err
			}
			key := ast.OrderKey{Column: col}
			if p.accept(token.DESC) {
				key.Desc = true
			} else {
				p.accept(token.ASC)
			}
			stmt.OrderBy = append(stmt.OrderBy, key)
			if !p.accept(token.COMMA) {
				break
			}
		}
	}

	if p.accept(token.LIMIT) {
		t, err := p.expect(token.INT)
		if err != nil {
			return nil, err
		}
		stmt.Limit = t.Literal.(int64)
	}

	stmt.Mode = p.mode()
	return stmt, nil
}

// parseInsert = INSERT INTO ident (col, ...) VALUES (arg, ...), ...
//               [RATIONALE str] [ACTOR str] [PROOF clause]
func (p *Parser) parseInsert() (ast.Statement, error) {
	pos := p.cur().Pos
	p.next() // INSERT
	if _, err := p.expect(token.INTO); err != nil {
		return nil, err
	}

	table, err := p.expectIdent("table name")
	if err != nil {
		return nil, err
	}
	stmt := ast.Insert{Table: table, Position: pos}

	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	for {
		col, err := p.expectIdent("column name")
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, col)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	if _, err := p.expect(token.VALUES); err != nil {
		return nil, err
	}
	for {
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		var row []ast.ValueArg
		for {
			arg, err := p.parseValueArg()
			if err != nil {
				return nil, err
			}
			row = append(row, arg)
			if !p.accept(token.COMMA) {
				break
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		if len(row) != len(stmt.Columns) {
			return nil, p.errorf("row has %d values for %d columns", len(row), len(stmt.Columns))
		}
		stmt.Rows = append(stmt.Rows, row)
		if !p.accept(token.COMMA) {
			break
		}
	}

	if stmt.Rationale, stmt.Actor, stmt.Proof, err = p.parseMutationTail(); err != nil {
		return nil, err
	}
	stmt.Mode = p.mode()
	return stmt, nil
}

// parseUpdate = UPDATE ident SET col = arg, ... [WHERE expr]
//               [RATIONALE str] [ACTOR str] [PROOF clause]
//
// WHERE is optional in the grammar; its absence marks the statement
// Unconditional so later stages flag it instead of running it silently.
func (p *Parser) parseUpdate() (ast.Statement, error) {
	pos := p.cur().Pos
	p.next() // UPDATE

	table, err := p.expectIdent("table name")
	if err != nil {
		return nil, err
	}
	stmt := ast.Update{Table: table, Position: pos}

	if _, err := p.expect(token.SET); err != nil {
		return nil, err
	}
	for {
		col, err := p.expectIdent("column name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.EQ); err != nil {
			return nil, err
		}
		arg, err := p.parseValueArg()
		if err != nil {
			return nil, err
		}
		stmt.Sets = append(stmt.Sets, ast.SetClause{Column: col, Value: arg})
		if !p.accept(token.COMMA) {
			break
		}
	}

	if p.accept(token.WHERE) {
		where, err := p.parseExpr(token.PrecLowest)
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	} else {
		stmt.Unconditional = true
	}

	if stmt.Rationale, stmt.Actor, stmt.Proof, err = p.parseMutationTail(); err != nil {
		return nil, err
	}
	stmt.Mode = p.mode()
	return stmt, nil
}

// parseDelete = DELETE FROM ident WHERE expr
//               [RATIONALE str] [ACTOR str] [PROOF clause]
//
// There is no WHERE-less production: an unconditional DELETE is a parse
// error, never a statement.
func (p *Parser) parseDelete() (ast.Statement, error) {
	pos := p.cur().Pos
	p.next() // DELETE
	if _, err := p.expect(token.FROM); err != nil {
		return nil, err
	}

	table, err := p.expectIdent("table name")
	if err != nil {
		return nil, err
	}

	if p.cur().Kind != token.WHERE {
		return nil, p.errorf("DELETE requires a WHERE clause; unconditional DELETE is not a statement")
	}
	p.next()
	where, err := p.parseExpr(token.PrecLowest)
	if err != nil {
		return nil, err
	}

	stmt := ast.Delete{Table: table, Where: where, Position: pos}
	if stmt.Rationale, stmt.Actor, stmt.Proof, err = p.parseMutationTail(); err != nil {
		return nil, err
	}
	stmt.Mode = p.mode()
	return stmt, nil
}

// parseCreate = CREATE TABLE ident (col Type [PRIMARY KEY|UNIQUE], ...)
//               [TO nf-tag]
func (p *Parser) parseCreate() (ast.Statement, error) {
	pos := p.cur().Pos
	p.next() // CREATE
	if _, err := p.expect(token.TABLE); err != nil {
		return nil, err
	}

	table, err := p.expectIdent("table name")
	if err != nil {
		return nil, err
	}
	stmt := ast.CreateTable{Table: table, Position: pos}

	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	for {
		name, err := p.expectIdent("column name")
		if err != nil {
			return nil, err
		}
		typ, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		def := ast.ColumnDef{Name: name, Type: typ}
		for {
			if p.accept(token.PRIMARY) {
				if _, err := p.expect(token.KEY); err != nil {
					return nil, err
				}
				def.PrimaryKey = true
				continue
			}
			if p.accept(token.UNIQUE) {
				def.Unique = true
				continue
			}
			break
		}
		stmt.Columns = append(stmt.Columns, def)
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	if p.accept(token.TO) {
		t, err := p.expect(token.NF_TAG)
		if err != nil {
			return nil, err
		}
		stmt.NormalForm = t.Lexeme
	}

	stmt.Mode = p.mode()
	return stmt, nil
}

// parseNormalize = NORMALIZE TABLE ident TO nf-tag
func (p *Parser) parseNormalize() (ast.Statement, error) {
	pos := p.cur().Pos
	p.next() // NORMALIZE
	if _, err := p.expect(token.TABLE); err != nil {
		return nil, err
	}
	table, err := p.expectIdent("table name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TO); err != nil {
		return nil, err
	}
	t, err := p.expect(token.NF_TAG)
	if err != nil {
		return nil, err
	}
	return ast.Normalize{Table: table, NormalForm: t.Lexeme, Mode: p.mode(), Position: pos}, nil
}

// parseMutationTail reads the trailing [RATIONALE str] [ACTOR str]
// [PROOF clause] shared by mutating statements.
func (p *Parser) parseMutationTail() (rationale, actor string, proof *ast.ProofClause, err error) {
	if p.accept(token.RATIONALE) {
		if rationale, err = p.expectString("rationale string"); err != nil {
			return "", "", nil, err
		}
	}
	if p.accept(token.ACTOR) {
		if actor, err = p.expectString("actor string"); err != nil {
			return "", "", nil, err
		}
	}
	if p.cur().Kind == token.PROOF {
		if proof, err = p.parseProofClause(); err != nil {
			return "", "", nil, err
		}
	}
	return rationale, actor, proof, nil
}

// parseProofClause = PROOF { name: (auto|manual), ... }
func (p *Parser) parseProofClause() (*ast.ProofClause, error) {
	pos := p.cur().Pos
	p.next() // PROOF
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}

	clause := &ast.ProofClause{Position: pos}
	for {
		name, err := p.expectIdent("obligation name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		var mode ast.DischargeMode
		switch p.cur().Kind {
		case token.AUTO:
			mode = ast.DischargeAuto
		case token.MANUAL:
			mode = ast.DischargeManual
		default:
			return nil, p.errorf("expected auto or manual, found %s", p.cur().Kind)
		}
		p.next()
		clause.Entries = append(clause.Entries, ast.ProofEntry{Name: name, Mode: mode})
		if !p.accept(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}

	// A proof clause is explicit-mode syntax.
	p.annotated = true
	return clause, nil
}
