// Package wire serializes typed values and compiled statements.
//
// Four formats exist, ordered from strict to lossy:
//
//   - Canonical binary: tagged CBOR with a deterministic byte form.
//     Carries the full type expression and the proof audit record.
//     The reference format for hashing and archival.
//   - Canonical JSON: the same document as readable JSON. Strings are
//     NFC normalized and object keys are emitted sorted, so equal
//     values produce equal bytes.
//   - Compact binary: a one-byte constructor discriminator and the raw
//     payload. No proof record and no type parameters; decoding needs
//     the declared type and re-runs its predicate.
//   - SQL text: a parameterized statement for the SQLite sink. Lossy:
//     refinements erase to their base storage class.
//
// Every decoder reconstructs values through the type constructors, so a
// byte stream that violates its declared refinement fails to decode.
package wire

import "fmt"

// SerializationError reports an encode or decode failure in one of the
// wire formats.
type SerializationError struct {
	Format string // "binary", "json", "compact", "sql"
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s encoding: %s: %v", e.Format, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s encoding: %s", e.Format, e.Detail)
}

// Unwrap exposes the underlying cause.
func (e *SerializationError) Unwrap() error { return e.Err }

func serr(format, detail string, args ...any) *SerializationError {
	return &SerializationError{Format: format, Detail: fmt.Sprintf(detail, args...)}
}

func swrap(format string, err error, detail string, args ...any) *SerializationError {
	return &SerializationError{Format: format, Detail: fmt.Sprintf(detail, args...), Err: err}
}
