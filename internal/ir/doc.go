// Package ir provides the canonical typed intermediate representation.
//
// IR is the sole statement form handed downstream: schema-bound, fully
// type-resolved, carrying proof audit blobs and permission metadata. The
// parser's AST never crosses this boundary.
//
// Statements are immutable once produced. Constructors enforce structural
// invariants rather than documenting them: a Delete or Update cannot be
// built without a row-selecting predicate and a non-empty rationale.
package ir
