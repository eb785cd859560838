package proof

import "fmt"

// Tier is a validation tier governing how undischarged obligations are
// treated.
type Tier int

const (
	// TierNone performs no obligation enforcement. Values were still
	// validated at construction; only the obligation bookkeeping is off.
	TierNone Tier = iota

	// TierRuntime defers undischarged obligations to an immediate
	// pre-execution recheck; failure there aborts the whole statement
	// atomically.
	TierRuntime

	// TierCompile rejects undischarged obligations at compile time but
	// accepts manual declarations.
	TierCompile

	// TierStrict rejects any undischarged obligation outright; the
	// statement never reaches IR.
	TierStrict
)

var tierNames = map[Tier]string{
	TierNone:    "none",
	TierRuntime: "runtime",
	TierCompile: "compile",
	TierStrict:  "strict",
}

// String renders the tier name.
func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// ParseTier parses a tier name as written in permission profiles.
func ParseTier(s string) (Tier, error) {
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return TierNone, fmt.Errorf("unknown validation tier %q", s)
}

// Enforce applies a tier's policy to discharged-or-not obligations.
// It returns the obligations deferred to the runtime recheck (only ever
// non-empty for TierRuntime) or an *UnresolvedError for the compile-time
// tiers.
func Enforce(tier Tier, obs []Obligation) (deferred []Obligation, err error) {
	unresolved := Unresolved(obs)
	if len(unresolved) == 0 {
		return nil, nil
	}
	switch tier {
	case TierNone:
		return nil, nil
	case TierRuntime:
		return unresolved, nil
	default: // TierCompile, TierStrict
		return nil, &UnresolvedError{Obligations: unresolved}
	}
}
