package fieldspec

import (
	"fmt"

	"github.com/propgate/propgate/internal/entitlement"
)

// FieldSpec declares the minimum tier a viewer needs to see one field.
type FieldSpec struct {
	FieldID  string
	Required entitlement.Tier
}

// Table is an ordered, immutable set of field specs for one resource type.
// The zero Table is empty.
type Table struct {
	specs []FieldSpec
	index map[string]int
}

// NewTable validates specs and returns a Table preserving their order.
func NewTable(specs ...FieldSpec) (Table, error) {
	t := Table{
		specs: make([]FieldSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		if s.FieldID == "" {
			return Table{}, &entitlement.ConfigurationError{Reason: "field spec with empty field id"}
		}
		if _, dup := t.index[s.FieldID]; dup {
			return Table{}, &entitlement.ConfigurationError{FieldID: s.FieldID, Reason: "declared more than once"}
		}
		if !s.Required.Valid() {
			return Table{}, &entitlement.ConfigurationError{
				FieldID: s.FieldID,
				Reason:  fmt.Sprintf("required tier %s has no resolver rule", s.Required),
				Err:     entitlement.ErrUnknownTier,
			}
		}
		t.index[s.FieldID] = len(t.specs)
		t.specs = append(t.specs, s)
	}
	return t, nil
}

// MustTable is NewTable for package-level tables; it panics on invalid specs.
func MustTable(specs ...FieldSpec) Table {
	t, err := NewTable(specs...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Table) Len() int { return len(t.specs) }

// Specs returns a copy of the specs in declaration order.
func (t Table) Specs() []FieldSpec {
	out := make([]FieldSpec, len(t.specs))
	copy(out, t.specs)
	return out
}

func (t Table) FieldIDs() []string {
	out := make([]string, 0, len(t.specs))
	for _, s := range t.specs {
		out = append(out, s.FieldID)
	}
	return out
}

func (t Table) Lookup(fieldID string) (FieldSpec, bool) {
	i, ok := t.index[fieldID]
	if !ok {
		return FieldSpec{}, false
	}
	return t.specs[i], true
}

// Select returns a sub-table with the given fields, in the order given.
// Every id must be declared in t.
func (t Table) Select(fieldIDs ...string) (Table, error) {
	specs := make([]FieldSpec, 0, len(fieldIDs))
	for _, id := range fieldIDs {
		s, ok := t.Lookup(id)
		if !ok {
			return Table{}, &entitlement.ConfigurationError{FieldID: id, Reason: "not declared in source table"}
		}
		specs = append(specs, s)
	}
	return NewTable(specs...)
}
