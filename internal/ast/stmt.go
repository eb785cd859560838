package ast

import (
	"github.com/refineql/refineql/internal/token"
	"github.com/refineql/refineql/internal/types"
)

// ColumnDef is one column in a CREATE TABLE statement. The type keyword
// class is case-sensitive, so Type is resolved at parse time.
type ColumnDef struct {
	Name       string
	Type       types.TypeExpr
	PrimaryKey bool
	Unique     bool
}

// CreateTable is CREATE TABLE name (col Type ..., ...) [TO NFx].
type CreateTable struct {
	Table      string
	Columns    []ColumnDef
	NormalForm string // "" when no TO clause was written
	Mode       Mode
	Position   token.Position
}

func (CreateTable) stmtNode() {}

// Pos implements Statement.
func (s CreateTable) Pos() token.Position { return s.Position }

// StmtMode implements Statement.
func (s CreateTable) StmtMode() Mode { return s.Mode }

// Insert is INSERT INTO table (cols) VALUES (...), ... with optional
// RATIONALE/ACTOR metadata and, in explicit mode, a PROOF clause.
type Insert struct {
	Table     string
	Columns   []string
	Rows      [][]ValueArg
	Rationale string
	Actor     string
	Proof     *ProofClause
	Mode      Mode
	Position  token.Position
}

func (Insert) stmtNode() {}

// Pos implements Statement.
func (s Insert) Pos() token.Position { return s.Position }

// StmtMode implements Statement.
func (s Insert) StmtMode() Mode { return s.Mode }

// Select is SELECT cols FROM table [WHERE ...] [ORDER BY ...] [LIMIT n].
// An empty Columns slice means SELECT *.
type Select struct {
	Table    string
	Columns  []string
	Distinct bool
	Where    Expr // nil when no WHERE clause
	OrderBy  []OrderKey
	Limit    int64 // -1 when absent
	Mode     Mode
	Position token.Position
}

// OrderKey is one ORDER BY column with its direction.
type OrderKey struct {
	Column string
	Desc   bool
}

func (Select) stmtNode() {}

// Pos implements Statement.
func (s Select) Pos() token.Position { return s.Position }

// StmtMode implements Statement.
func (s Select) StmtMode() Mode { return s.Mode }

// SetClause is one column = value assignment in UPDATE.
type SetClause struct {
	Column string
	Value  ValueArg
}

// Update is UPDATE table SET ... [WHERE ...] RATIONALE '...' [ACTOR '...'].
// WHERE is grammatically optional; Unconditional is set when it is absent
// so downstream stages can flag rather than silently accept it.
type Update struct {
	Table         string
	Sets          []SetClause
	Where         Expr // nil when unconditional
	Unconditional bool
	Rationale     string
	Actor         string
	Proof         *ProofClause
	Mode          Mode
	Position      token.Position
}

func (Update) stmtNode() {}

// Pos implements Statement.
func (s Update) Pos() token.Position { return s.Position }

// StmtMode implements Statement.
func (s Update) StmtMode() Mode { return s.Mode }

// Delete is DELETE FROM table WHERE ... RATIONALE '...' [ACTOR '...'].
// The grammar has no WHERE-less production: Where is never nil on a
// parsed Delete.
type Delete struct {
	Table     string
	Where     Expr
	Rationale string
	Actor     string
	Proof     *ProofClause
	Mode      Mode
	Position  token.Position
}

func (Delete) stmtNode() {}

// Pos implements Statement.
func (s Delete) Pos() token.Position { return s.Position }

// StmtMode implements Statement.
func (s Delete) StmtMode() Mode { return s.Mode }

// Normalize is NORMALIZE TABLE name TO NFx.
type Normalize struct {
	Table      string
	NormalForm string
	Mode       Mode
	Position   token.Position
}

func (Normalize) stmtNode() {}

// Pos implements Statement.
func (s Normalize) Pos() token.Position { return s.Position }

// StmtMode implements Statement.
func (s Normalize) StmtMode() Mode { return s.Mode }

// Expr is the sealed interface over WHERE-clause expressions.
type Expr interface {
	exprNode()
	ExprPos() token.Position
}

// ColumnRef references a column by name.
type ColumnRef struct {
	Name     string
	Position token.Position
}

func (ColumnRef) exprNode() {}

// ExprPos implements Expr.
func (e ColumnRef) ExprPos() token.Position { return e.Position }

// LiteralExpr wraps a scalar literal inside a predicate expression.
type LiteralExpr struct {
	Lit Literal
}

func (LiteralExpr) exprNode() {}

// ExprPos implements Expr.
func (e LiteralExpr) ExprPos() token.Position { return e.Lit.Position }

// Binary is an infix operation: comparisons, AND/OR, arithmetic, LIKE.
type Binary struct {
	Op    token.Kind
	Left  Expr
	Right Expr
}

func (Binary) exprNode() {}

// ExprPos implements Expr.
func (e Binary) ExprPos() token.Position { return e.Left.ExprPos() }

// Unary is a prefix operation: NOT or numeric negation.
type Unary struct {
	Op       token.Kind
	Operand  Expr
	Position token.Position
}

func (Unary) exprNode() {}

// ExprPos implements Expr.
func (e Unary) ExprPos() token.Position { return e.Position }

// Between is column BETWEEN low AND high.
type Between struct {
	Operand Expr
	Low     Expr
	High    Expr
	Negated bool
}

func (Between) exprNode() {}

// ExprPos implements Expr.
func (e Between) ExprPos() token.Position { return e.Operand.ExprPos() }

// In is operand IN (e1, e2, ...).
type In struct {
	Operand Expr
	Set     []Expr
	Negated bool
}

func (In) exprNode() {}

// ExprPos implements Expr.
func (e In) ExprPos() token.Position { return e.Operand.ExprPos() }

// IsNull is operand IS [NOT] NULL.
type IsNull struct {
	Operand Expr
	Negated bool
}

func (IsNull) exprNode() {}

// ExprPos implements Expr.
func (e IsNull) ExprPos() token.Position { return e.Operand.ExprPos() }
