package testutil

import (
	"fmt"

	"github.com/google/uuid"
)

// FixedCaller returns the same caller id every time.
//
// Compiled statements carry the caller id in their permission metadata,
// so tests that snapshot or compare IR need a stable one. The returned
// id is uuid 00000000-0000-0000-0000-000000000001.
func FixedCaller() uuid.UUID {
	return CallerN(1)
}

// CallerN returns the nth deterministic caller id, for scenarios that
// involve more than one caller.
func CallerN(n uint32) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012x", n))
}
