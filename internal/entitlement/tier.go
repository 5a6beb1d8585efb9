package entitlement

import (
	"errors"
	"fmt"
)

// Tier is a subscription level. Tiers are totally ordered: Free < Premium.
// The zero value is not a valid tier so an unset field can never be mistaken
// for a real plan.
type Tier uint8

const (
	Free Tier = iota + 1
	Premium
)

// premiumPlan is the stored representation of a paid plan in user profiles.
const premiumPlan = "premium"

// ErrUnknownTier is wrapped by every ConfigurationError raised for a tier
// value outside the recognised enum.
var ErrUnknownTier = errors.New("unknown tier")

// Valid reports whether t is one of the recognised tiers.
func (t Tier) Valid() bool {
	return t == Free || t == Premium
}

func (t Tier) String() string {
	switch t {
	case Free:
		return "free"
	case Premium:
		return "premium"
	}
	return fmt.Sprintf("tier(%d)", uint8(t))
}

// ParseTier parses a tier name from configuration. Unlike NormalizePlan it is
// strict: anything other than "free" or "premium" is a configuration defect.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "free":
		return Free, nil
	case "premium":
		return Premium, nil
	}
	return 0, &ConfigurationError{Reason: fmt.Sprintf("unrecognised tier %q", s), Err: ErrUnknownTier}
}

// NormalizePlan maps the raw plan string from a viewer profile to a Tier.
// Only the exact literal "premium" grants Premium. A nil plan (no profile,
// anonymous or not yet loaded viewer) and every other value resolve to Free.
func NormalizePlan(raw *string) Tier {
	if raw != nil && *raw == premiumPlan {
		return Premium
	}
	return Free
}

// Viewer is the entitlement-relevant view of the person looking at a record.
// It is built per request and never stored.
type Viewer struct {
	Plan Tier
}

// ViewerFromPlan builds a Viewer from a raw profile plan.
func ViewerFromPlan(raw *string) Viewer {
	return Viewer{Plan: NormalizePlan(raw)}
}
