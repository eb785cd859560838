package compile

import (
	"fmt"

	"github.com/refineql/refineql/internal/ast"
	"github.com/refineql/refineql/internal/infer"
	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/schema"
	"github.com/refineql/refineql/internal/token"
	"github.com/refineql/refineql/internal/types"
)

// AnnotationError reports an explicit type annotation that contradicts
// the column's declared type.
type AnnotationError struct {
	Column    string
	Declared  types.TypeExpr
	Annotated types.TypeExpr
	Pos       token.Position
}

// Error implements the error interface.
func (e *AnnotationError) Error() string {
	return fmt.Sprintf("%s: column %q is declared %s, annotation says %s",
		e.Pos, e.Column, e.Declared, e.Annotated)
}

var compareOps = map[token.Kind]ir.CompareOp{
	token.EQ:   ir.OpEq,
	token.NEQ:  ir.OpNeq,
	token.LT:   ir.OpLt,
	token.LTE:  ir.OpLte,
	token.GT:   ir.OpGt,
	token.GTE:  ir.OpGte,
	token.LIKE: ir.OpLike,
}

// lowerPredicate resolves a WHERE expression against the schema. Every
// comparison must be column-against-literal; the literal is typed by the
// column's declared type, so an out-of-range literal fails here with the
// same refinement error an INSERT would produce.
func (c *Compiler) lowerPredicate(sch *schema.Schema, e ast.Expr) (ir.Predicate, error) {
	switch expr := e.(type) {
	case ast.Binary:
		if op, ok := compareOps[expr.Op]; ok {
			return c.lowerCompare(sch, expr, op)
		}
		switch expr.Op {
		case token.AND, token.OR:
			left, err := c.lowerPredicate(sch, expr.Left)
			if err != nil {
				return nil, err
			}
			right, err := c.lowerPredicate(sch, expr.Right)
			if err != nil {
				return nil, err
			}
			if expr.Op == token.AND {
				return ir.And{Predicates: []ir.Predicate{left, right}}, nil
			}
			return ir.Or{Predicates: []ir.Predicate{left, right}}, nil
		default:
			return nil, fmt.Errorf("%s: operator %s is not a predicate", e.ExprPos(), expr.Op)
		}

	case ast.Unary:
		if expr.Op != token.NOT {
			return nil, fmt.Errorf("%s: operator %s is not a predicate", e.ExprPos(), expr.Op)
		}
		inner, err := c.lowerPredicate(sch, expr.Operand)
		if err != nil {
			return nil, err
		}
		return ir.Not{Predicate: inner}, nil

	case ast.Between:
		col, typ, err := operandColumn(sch, expr.Operand)
		if err != nil {
			return nil, err
		}
		low, err := c.literalValue(col, typ, expr.Low)
		if err != nil {
			return nil, err
		}
		high, err := c.literalValue(col, typ, expr.High)
		if err != nil {
			return nil, err
		}
		return ir.Between{Column: col, Low: low, High: high, Negated: expr.Negated}, nil

	case ast.In:
		col, typ, err := operandColumn(sch, expr.Operand)
		if err != nil {
			return nil, err
		}
		set := make([]types.TypedValue, len(expr.Set))
		for i, el := range expr.Set {
			set[i], err = c.literalValue(col, typ, el)
			if err != nil {
				return nil, err
			}
		}
		return ir.In{Column: col, Set: set, Negated: expr.Negated}, nil

	case ast.IsNull:
		col, _, err := operandColumn(sch, expr.Operand)
		if err != nil {
			return nil, err
		}
		return ir.IsNull{Column: col, Negated: expr.Negated}, nil

	default:
		return nil, fmt.Errorf("%s: expression is not a predicate", e.ExprPos())
	}
}

func (c *Compiler) lowerCompare(sch *schema.Schema, expr ast.Binary, op ir.CompareOp) (ir.Predicate, error) {
	col, typ, err := operandColumn(sch, expr.Left)
	if err != nil {
		return nil, err
	}
	if op == ir.OpLike && types.BaseOf(typ) != types.Text {
		return nil, fmt.Errorf("%s: LIKE requires a text column, %q is %s",
			expr.ExprPos(), col, typ)
	}
	v, err := c.literalValue(col, typ, expr.Right)
	if err != nil {
		return nil, err
	}
	return ir.Compare{Column: col, Op: op, Value: v}, nil
}

func operandColumn(sch *schema.Schema, e ast.Expr) (string, types.TypeExpr, error) {
	ref, ok := e.(ast.ColumnRef)
	if !ok {
		return "", nil, fmt.Errorf("%s: predicate operand must be a column reference", e.ExprPos())
	}
	col, ok := sch.Column(ref.Name)
	if !ok {
		return "", nil, fmt.Errorf("%s: unknown column %q in %q", ref.Position, ref.Name, sch.Name)
	}
	return ref.Name, col.Type, nil
}

func (c *Compiler) literalValue(col string, typ types.TypeExpr, e ast.Expr) (types.TypedValue, error) {
	lit, ok := e.(ast.LiteralExpr)
	if !ok {
		return types.TypedValue{}, fmt.Errorf("%s: comparison value must be a literal", e.ExprPos())
	}
	res, err := infer.Infer(col, typ, lit.Lit, c.now)
	if err != nil {
		return types.TypedValue{}, err
	}
	return res.Value, nil
}
