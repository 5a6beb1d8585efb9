package entitlement

import "fmt"

// Decision is the outcome of an entitlement check for one field.
// The zero value is Redact.
type Decision uint8

const (
	Redact Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "redact"
}

// ConfigurationError reports a code or configuration defect in the gating
// setup: an unrecognised tier, or a field spec the resolver has no rule for.
// It is never recovered into a visibility decision.
type ConfigurationError struct {
	FieldID string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.FieldID != "" {
		return fmt.Sprintf("entitlement configuration: field %q: %s", e.FieldID, e.Reason)
	}
	return "entitlement configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Resolve decides whether a viewer on tier viewer may see a field that
// requires tier required. Both tiers must be valid; an unrecognised value
// panics with a *ConfigurationError.
func Resolve(viewer, required Tier) Decision {
	mustBeValid(viewer, "viewer")
	mustBeValid(required, "required")
	if viewer >= required {
		return Allow
	}
	return Redact
}

func mustBeValid(t Tier, role string) {
	if t.Valid() {
		return
	}
	panic(&ConfigurationError{
		Reason: fmt.Sprintf("%s %s is not a recognised tier", role, t),
		Err:    ErrUnknownTier,
	})
}
