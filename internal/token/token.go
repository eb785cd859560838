// Package token defines the lexical vocabulary of RQL.
//
// Two keyword classes exist with different case rules:
//   - Statement keywords (SELECT, INSERT, WHERE, ...) are case-insensitive
//     and folded to upper case during lookup.
//   - Type-catalogue keywords (BoundedNat, NonEmptyText, ...) are
//     case-sensitive capitalized constructor names. "boundednat" is an
//     identifier, not a type.
//
// This package contains definitions only; it imports nothing internal so
// every other package can depend on it without cycles.
package token

import "fmt"

// Kind classifies a token.
type Kind int

const (
	// Special
	EOF Kind = iota
	ILLEGAL

	// Literals and identifiers
	IDENT
	INT    // 42
	FLOAT  // 3.14
	STRING // 'abc' or "abc"

	// Delimiters
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }
	COMMA    // ,
	COLON    // :
	SEMI     // ;
	DOT      // .

	// Operators
	EQ      // =
	NEQ     // != or <>
	LT      // <
	LTE     // <=
	GT      // >
	GTE     // >=
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
	CONCAT  // ||

	// Statement keywords (case-insensitive)
	SELECT
	FROM
	WHERE
	INSERT
	INTO
	VALUES
	UPDATE
	SET
	DELETE
	CREATE
	TABLE
	NORMALIZE
	TO
	AND
	OR
	NOT
	IN
	IS
	NULL
	TRUE
	FALSE
	RATIONALE
	ACTOR
	PROOF
	AUTO
	MANUAL
	ORDER
	BY
	ASC
	DESC
	LIMIT
	DISTINCT
	AS
	PRIMARY
	KEY
	UNIQUE
	DEFAULT
	CHECK
	CONSTRAINT
	BETWEEN
	LIKE
	EXISTS

	// Type-catalogue keywords (case-sensitive)
	TYPE_NAT
	TYPE_INT
	TYPE_TEXT
	TYPE_BOOL
	TYPE_FLOAT
	TYPE_UUID
	TYPE_TIMESTAMP
	TYPE_BOUNDED_NAT
	TYPE_BOUNDED_FLOAT
	TYPE_NON_EMPTY_TEXT
	TYPE_CONFIDENCE
	TYPE_VECTOR
	TYPE_PROVENANCE
	TYPE_COMPOSITE_SCORE
	NF_TAG // NF1, NF2, NF3, BCNF
)

var kindNames = map[Kind]string{
	EOF:      "EOF",
	ILLEGAL:  "ILLEGAL",
	IDENT:    "IDENT",
	INT:      "INT",
	FLOAT:    "FLOAT",
	STRING:   "STRING",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACKET: "[",
	RBRACKET: "]",
	LBRACE:   "{",
	RBRACE:   "}",
	COMMA:    ",",
	COLON:    ":",
	SEMI:     ";",
	DOT:      ".",
	EQ:       "=",
	NEQ:      "!=",
	LT:       "<",
	LTE:      "<=",
	GT:       ">",
	GTE:      ">=",
	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	PERCENT:  "%",
	CONCAT:   "||",

	SELECT:     "SELECT",
	FROM:       "FROM",
	WHERE:      "WHERE",
	INSERT:     "INSERT",
	INTO:       "INTO",
	VALUES:     "VALUES",
	UPDATE:     "UPDATE",
	SET:        "SET",
	DELETE:     "DELETE",
	CREATE:     "CREATE",
	TABLE:      "TABLE",
	NORMALIZE:  "NORMALIZE",
	TO:         "TO",
	AND:        "AND",
	OR:         "OR",
	NOT:        "NOT",
	IN:         "IN",
	IS:         "IS",
	NULL:       "NULL",
	TRUE:       "TRUE",
	FALSE:      "FALSE",
	RATIONALE:  "RATIONALE",
	ACTOR:      "ACTOR",
	PROOF:      "PROOF",
	AUTO:       "AUTO",
	MANUAL:     "MANUAL",
	ORDER:      "ORDER",
	BY:         "BY",
	ASC:        "ASC",
	DESC:       "DESC",
	LIMIT:      "LIMIT",
	DISTINCT:   "DISTINCT",
	AS:         "AS",
	PRIMARY:    "PRIMARY",
	KEY:        "KEY",
	UNIQUE:     "UNIQUE",
	DEFAULT:    "DEFAULT",
	CHECK:      "CHECK",
	CONSTRAINT: "CONSTRAINT",
	BETWEEN:    "BETWEEN",
	LIKE:       "LIKE",
	EXISTS:     "EXISTS",

	TYPE_NAT:             "Nat",
	TYPE_INT:             "Int",
	TYPE_TEXT:            "Text",
	TYPE_BOOL:            "Bool",
	TYPE_FLOAT:           "Float",
	TYPE_UUID:            "UUID",
	TYPE_TIMESTAMP:       "Timestamp",
	TYPE_BOUNDED_NAT:     "BoundedNat",
	TYPE_BOUNDED_FLOAT:   "BoundedFloat",
	TYPE_NON_EMPTY_TEXT:  "NonEmptyText",
	TYPE_CONFIDENCE:      "Confidence",
	TYPE_VECTOR:          "Vector",
	TYPE_PROVENANCE:      "Provenance",
	TYPE_COMPOSITE_SCORE: "CompositeScore",
	NF_TAG:               "NF_TAG",
}

// String returns the canonical spelling of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsStatementKeyword reports whether the kind belongs to the
// case-insensitive statement keyword class.
func (k Kind) IsStatementKeyword() bool {
	return k >= SELECT && k <= EXISTS
}

// IsTypeKeyword reports whether the kind belongs to the case-sensitive
// type-catalogue keyword class.
func (k Kind) IsTypeKeyword() bool {
	return k >= TYPE_NAT && k <= NF_TAG
}

// Position is a line/column location in source text, both 1-based.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// String renders "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a classified lexeme with its source position.
//
// Literal holds the decoded value for literal tokens: int64 for INT,
// float64 for FLOAT, string (escapes resolved) for STRING. It is nil
// for every other kind.
type Token struct {
	Kind    Kind
	Lexeme  string
	Literal any
	Pos     Position
}

// String renders the token for diagnostics.
func (t Token) String() string {
	switch t.Kind {
	case IDENT, INT, FLOAT, STRING, ILLEGAL, NF_TAG:
		return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Pos)
	default:
		return fmt.Sprintf("%s@%s", t.Kind, t.Pos)
	}
}
