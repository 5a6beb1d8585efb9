// Package gating projects raw records into display records where every field
// is either its real value or a redaction marker, according to the viewer's
// tier and a field spec table.
package gating

import (
	"errors"
	"fmt"

	"github.com/propgate/propgate/internal/entitlement"
	"github.com/propgate/propgate/internal/fieldspec"
)

// Record is a raw resource record keyed by field id. The projector treats it
// as read-only.
type Record map[string]any

// RedactedMarker is the placeholder value of a gated field. It is distinct
// from nil and from the empty string so "no data" is never confused with
// "gated data".
type RedactedMarker struct{}

func (RedactedMarker) String() string { return "[redacted]" }

// Redacted is the only RedactedMarker value.
var Redacted = RedactedMarker{}

// ErrFieldAbsent is matched by every *FieldAbsentError.
var ErrFieldAbsent = errors.New("field absent")

// FieldAbsentError reports a declared field the record store did not supply.
type FieldAbsentError struct {
	FieldID string
}

func (e *FieldAbsentError) Error() string {
	return fmt.Sprintf("gating: field %q absent from record", e.FieldID)
}

func (e *FieldAbsentError) Is(target error) bool { return target == ErrFieldAbsent }

// State is how a field should be rendered.
type State uint8

const (
	// StateVisible fields carry their real value.
	StateVisible State = iota
	// StateRedacted fields carry the Redacted marker and need an upsell affordance.
	StateRedacted
	// StateAbsent fields were allowed but missing from the record; render a
	// neutral "unavailable" state, never an upsell prompt.
	StateAbsent
)

func (s State) String() string {
	switch s {
	case StateVisible:
		return "visible"
	case StateRedacted:
		return "redacted"
	case StateAbsent:
		return "absent"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// GatedField is one projected field.
type GatedField struct {
	FieldID string
	Value   any
	IsGated bool
	State   State
	Err     error
}

// Project builds the display record for viewer from record, field by field in
// table order. Fields of record not declared in table are dropped.
// An invalid viewer tier panics with *entitlement.ConfigurationError.
func Project(record Record, table fieldspec.Table, viewer entitlement.Tier) GatedRecord {
	// fail fast on an invalid viewer even when the table is empty
	entitlement.Resolve(viewer, entitlement.Free)
	specs := table.Specs()
	out := GatedRecord{
		fields: make([]GatedField, 0, len(specs)),
		index:  make(map[string]int, len(specs)),
	}
	for _, spec := range specs {
		out.index[spec.FieldID] = len(out.fields)
		out.fields = append(out.fields, projectField(record, spec, viewer))
	}
	return out
}

func projectField(record Record, spec fieldspec.FieldSpec, viewer entitlement.Tier) GatedField {
	// Gating is decided before the lookup: a premium field reads as redacted
	// to a free viewer whether or not the record carries it.
	if entitlement.Resolve(viewer, spec.Required) == entitlement.Redact {
		return GatedField{FieldID: spec.FieldID, Value: Redacted, IsGated: true, State: StateRedacted}
	}
	v, ok := record[spec.FieldID]
	if !ok {
		return GatedField{FieldID: spec.FieldID, State: StateAbsent, Err: &FieldAbsentError{FieldID: spec.FieldID}}
	}
	return GatedField{FieldID: spec.FieldID, Value: v, State: StateVisible}
}

// IsAnyFieldGated reports whether at least one field of gr is gated; the view
// layer uses it to decide on the aggregate "upgrade to unlock" panel.
func IsAnyFieldGated(gr GatedRecord) bool {
	for _, f := range gr.fields {
		if f.IsGated {
			return true
		}
	}
	return false
}
