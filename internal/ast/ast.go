// Package ast defines the untyped statement tree produced by the parser.
//
// Both front-end grammars converge on this one tree shape. Explicit-type
// syntax attaches type annotations and an optional proof clause; inferred
// syntax leaves them absent. The tree never carries resolved types beyond
// what was literally written: resolution happens downstream in the
// inference engine.
package ast

import (
	"github.com/refineql/refineql/internal/token"
	"github.com/refineql/refineql/internal/types"
)

// Mode records which front-end grammar produced a statement.
type Mode int

const (
	// ModeInferred means no value carried a type annotation.
	ModeInferred Mode = iota
	// ModeExplicit means at least one annotation or a proof clause was
	// written. Explicit statements default to the strict validation tier.
	ModeExplicit
)

// String renders the mode name.
func (m Mode) String() string {
	if m == ModeExplicit {
		return "explicit"
	}
	return "inferred"
}

// Statement is the sealed interface over statement nodes.
type Statement interface {
	stmtNode()

	// Pos returns the position of the statement's first token.
	Pos() token.Position

	// StmtMode reports which grammar produced the statement.
	StmtMode() Mode
}

// LiteralKind classifies a scalar literal.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitBool
	LitNull
)

// ValueExpr is the sealed interface over value expressions appearing in
// VALUES lists and SET clauses.
type ValueExpr interface {
	valueNode()
	ValuePos() token.Position
}

// Literal is a scalar literal value.
type Literal struct {
	Kind     LiteralKind
	IntVal   int64
	FloatVal float64
	StrVal   string
	BoolVal  bool
	Position token.Position
}

func (Literal) valueNode() {}

// ValuePos implements ValueExpr.
func (l Literal) ValuePos() token.Position { return l.Position }

// List is a bracketed value list, the surface form of vector literals and
// composite-score dimension lists.
type List struct {
	Elems    []ValueExpr
	Position token.Position
}

func (List) valueNode() {}

// ValuePos implements ValueExpr.
func (l List) ValuePos() token.Position { return l.Position }

// Record is a braced field list, the surface form of composite scores
// ({dims: [...], overall: n}) and provenance wrappers
// ({value: v, actor: 'a', rationale: 'r'}).
type Record struct {
	Fields   []RecordField
	Position token.Position
}

// RecordField is one name/value pair in a Record.
type RecordField struct {
	Name  string
	Value ValueExpr
}

func (Record) valueNode() {}

// ValuePos implements ValueExpr.
func (r Record) ValuePos() token.Position { return r.Position }

// Field returns the named field's value, or nil.
func (r Record) Field(name string) ValueExpr {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// ValueArg is a value expression with its optional explicit-syntax type
// annotation. Type is nil in inferred mode.
type ValueArg struct {
	Expr ValueExpr
	Type types.TypeExpr
}

// Annotated reports whether an explicit annotation was written.
func (a ValueArg) Annotated() bool { return a.Type != nil }

// DischargeMode is the declared discharge of one proof-clause obligation.
type DischargeMode int

const (
	// DischargeAuto requests automatic discharge by decision procedure.
	DischargeAuto DischargeMode = iota
	// DischargeManual declares the obligation externally established.
	DischargeManual
)

// String renders the discharge mode keyword.
func (m DischargeMode) String() string {
	if m == DischargeManual {
		return "manual"
	}
	return "auto"
}

// ProofClause is an explicit-syntax PROOF { name: auto|manual, ... } block.
type ProofClause struct {
	Entries  []ProofEntry
	Position token.Position
}

// ProofEntry names one obligation and its declared discharge.
type ProofEntry struct {
	Name string
	Mode DischargeMode
}

// Find returns the entry for an obligation name, or nil.
func (p *ProofClause) Find(name string) *ProofEntry {
	if p == nil {
		return nil
	}
	for i := range p.Entries {
		if p.Entries[i].Name == name {
			return &p.Entries[i]
		}
	}
	return nil
}
