package listing

import (
	"time"

	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/propgate/propgate/internal/gating"
)

// Status of a listing on the market. Only available listings are catalogued.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusUnderOffer Status = "under_offer"
	StatusSold       Status = "sold"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusUnderOffer, StatusSold:
		return true
	}
	return false
}

// Listing is a stored property record. Fields holds the raw listing data keyed
// by field id; it is never served directly, only through a gated projection.
type Listing struct {
	ID        string        `json:"id" bson:"id"`
	Status    Status        `json:"status" bson:"status"`
	Fields    gating.Record `json:"fields" bson:"fields"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a copy whose Fields map can be modified independently.
func (l *Listing) Clone() *Listing {
	out := *l
	out.Fields = make(gating.Record, len(l.Fields))
	for k, v := range l.Fields {
		out.Fields[k] = v
	}
	return &out
}

// AssetKeys returns the stored values of the asset fields, photos first.
func (l *Listing) AssetKeys() []string {
	var out []string
	for _, f := range fieldspec.AssetFields {
		for _, v := range Values(l.Fields[f]) {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Values returns a fresh list holding the elements of a stored list value. A
// scalar is a one-element list; nil and the empty string are empty.
func Values(v any) []any {
	switch t := v.(type) {
	case nil:
		return []any{}
	case []any:
		return append([]any(nil), t...)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case string:
		if t == "" {
			return []any{}
		}
	}
	return []any{v}
}
