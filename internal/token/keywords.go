package token

import "strings"

// statementKeywords maps the upper-cased spelling of every statement
// keyword to its kind. Lookup callers must fold case first.
var statementKeywords = map[string]Kind{
	"SELECT":     SELECT,
	"FROM":       FROM,
	"WHERE":      WHERE,
	"INSERT":     INSERT,
	"INTO":       INTO,
	"VALUES":     VALUES,
	"UPDATE":     UPDATE,
	"SET":        SET,
	"DELETE":     DELETE,
	"CREATE":     CREATE,
	"TABLE":      TABLE,
	"NORMALIZE":  NORMALIZE,
	"TO":         TO,
	"AND":        AND,
	"OR":         OR,
	"NOT":        NOT,
	"IN":         IN,
	"IS":         IS,
	"NULL":       NULL,
	"TRUE":       TRUE,
	"FALSE":      FALSE,
	"RATIONALE":  RATIONALE,
	"ACTOR":      ACTOR,
	"PROOF":      PROOF,
	"AUTO":       AUTO,
	"MANUAL":     MANUAL,
	"ORDER":      ORDER,
	"BY":         BY,
	"ASC":        ASC,
	"DESC":       DESC,
	"LIMIT":      LIMIT,
	"DISTINCT":   DISTINCT,
	"AS":         AS,
	"PRIMARY":    PRIMARY,
	"KEY":        KEY,
	"UNIQUE":     UNIQUE,
	"DEFAULT":    DEFAULT,
	"CHECK":      CHECK,
	"CONSTRAINT": CONSTRAINT,
	"BETWEEN":    BETWEEN,
	"LIKE":       LIKE,
	"EXISTS":     EXISTS,
}

// typeKeywords maps the exact (case-sensitive) spelling of every
// type-catalogue constructor to its kind.
var typeKeywords = map[string]Kind{
	"Nat":            TYPE_NAT,
	"Int":            TYPE_INT,
	"Text":           TYPE_TEXT,
	"Bool":           TYPE_BOOL,
	"Float":          TYPE_FLOAT,
	"UUID":           TYPE_UUID,
	"Timestamp":      TYPE_TIMESTAMP,
	"BoundedNat":     TYPE_BOUNDED_NAT,
	"BoundedFloat":   TYPE_BOUNDED_FLOAT,
	"NonEmptyText":   TYPE_NON_EMPTY_TEXT,
	"Confidence":     TYPE_CONFIDENCE,
	"Vector":         TYPE_VECTOR,
	"Provenance":     TYPE_PROVENANCE,
	"CompositeScore": TYPE_COMPOSITE_SCORE,
}

// normalFormTags are the recognized normal-form names for CREATE/NORMALIZE
// targets. They are case-sensitive like the type keywords they sit beside.
var normalFormTags = map[string]bool{
	"NF1":  true,
	"NF2":  true,
	"NF3":  true,
	"BCNF": true,
}

// Lookup classifies an identifier-shaped lexeme.
//
// Type-catalogue lookup runs first and is exact-match, so "UUID" is a type
// keyword while "uuid" is an identifier. Statement lookup folds case, so
// "select", "Select" and "SELECT" all yield SELECT.
func Lookup(word string) Kind {
	if k, ok := typeKeywords[word]; ok {
		return k
	}
	if normalFormTags[word] {
		return NF_TAG
	}
	if k, ok := statementKeywords[strings.ToUpper(word)]; ok {
		return k
	}
	return IDENT
}

// Precedence levels for expression parsing, lowest binds weakest.
// The parser climbs these levels; PrecPrimary is never climbed past.
const (
	PrecLowest  = iota
	PrecOr      // OR
	PrecAnd     // AND
	PrecNot     // NOT
	PrecEq      // = != <>
	PrecCmp     // < <= > >=
	PrecRange   // BETWEEN, LIKE, IN, IS
	PrecAdd     // + - ||
	PrecMul     // * / %
	PrecUnary   // unary - NOT
	PrecPostfix // member access, index
	PrecPrimary
)

// Precedence returns the binding power of an infix operator kind, or
// PrecLowest when the kind is not an infix operator.
func Precedence(k Kind) int {
	switch k {
	case OR:
		return PrecOr
	case AND:
		return PrecAnd
	case EQ, NEQ:
		return PrecEq
	case LT, LTE, GT, GTE:
		return PrecCmp
	case BETWEEN, LIKE, IN, IS:
		return PrecRange
	case PLUS, MINUS, CONCAT:
		return PrecAdd
	case STAR, SLASH, PERCENT:
		return PrecMul
	case DOT, LBRACKET:
		return PrecPostfix
	default:
		return PrecLowest
	}
}
