package gating

import (
	"bytes"
	"encoding/json"
)

// GatedRecord is the ordered display record produced by Project. Its field set
// is exactly the field set of the table it was projected with.
type GatedRecord struct {
	fields []GatedField
	index  map[string]int
}

func (gr GatedRecord) Len() int { return len(gr.fields) }

// Fields returns the projected fields in table order.
func (gr GatedRecord) Fields() []GatedField {
	out := make([]GatedField, len(gr.fields))
	copy(out, gr.fields)
	return out
}

func (gr GatedRecord) FieldIDs() []string {
	out := make([]string, 0, len(gr.fields))
	for _, f := range gr.fields {
		out = append(out, f.FieldID)
	}
	return out
}

func (gr GatedRecord) Field(fieldID string) (GatedField, bool) {
	i, ok := gr.index[fieldID]
	if !ok {
		return GatedField{}, false
	}
	return gr.fields[i], true
}

// Value returns the real value of a visible field. Redacted, absent and
// undeclared fields report ok=false.
func (gr GatedRecord) Value(fieldID string) (any, bool) {
	f, ok := gr.Field(fieldID)
	if !ok || f.State != StateVisible {
		return nil, false
	}
	return f.Value, true
}

// IsAnyFieldGated is the method form of the package function.
func (gr GatedRecord) IsAnyFieldGated() bool { return IsAnyFieldGated(gr) }

// AbsentFields lists the allowed fields the record store did not supply.
func (gr GatedRecord) AbsentFields() []string {
	var out []string
	for _, f := range gr.fields {
		if f.State == StateAbsent {
			out = append(out, f.FieldID)
		}
	}
	return out
}

// GatedFields lists the redacted field ids.
func (gr GatedRecord) GatedFields() []string {
	var out []string
	for _, f := range gr.fields {
		if f.IsGated {
			out = append(out, f.FieldID)
		}
	}
	return out
}

// WithValue returns a copy of gr where the visible field fieldID carries v.
// Redacted, absent and undeclared fields are left untouched and ok is false,
// so post-processing can never un-redact a field.
func (gr GatedRecord) WithValue(fieldID string, v any) (GatedRecord, bool) {
	i, found := gr.index[fieldID]
	if !found || gr.fields[i].State != StateVisible {
		return gr, false
	}
	fields := make([]GatedField, len(gr.fields))
	copy(fields, gr.fields)
	fields[i].Value = v
	return GatedRecord{fields: fields, index: gr.index}, true
}

type fieldJSON struct {
	State string `json:"state"`
	Gated bool   `json:"gated"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// MarshalJSON encodes gr as an object keyed by field id, in table order.
// Redacted fields never carry a value.
func (gr GatedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range gr.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.FieldID)
		if err != nil {
			return nil, err
		}
		fj := fieldJSON{State: f.State.String(), Gated: f.IsGated}
		switch f.State {
		case StateVisible:
			fj.Value = f.Value
		case StateAbsent:
			if f.Err != nil {
				fj.Error = f.Err.Error()
			}
		}
		val, err := json.Marshal(fj)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
