package gating

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/propgate/propgate/internal/entitlement"
	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/stretchr/testify/require"
)

var scenarioTable = fieldspec.MustTable(
	fieldspec.FieldSpec{FieldID: "neighborhood", Required: entitlement.Free},
	fieldspec.FieldSpec{FieldID: "price", Required: entitlement.Free},
	fieldspec.FieldSpec{FieldID: "exact_address", Required: entitlement.Premium},
	fieldspec.FieldSpec{FieldID: "phone", Required: entitlement.Premium},
)

func scenarioRecord() Record {
	return Record{
		"neighborhood":  "Centre",
		"price":         900,
		"exact_address": "12 Rue X",
		"phone":         "0600000000",
	}
}

func TestProject_FreeViewer(t *testing.T) {
	gr := Project(scenarioRecord(), scenarioTable, entitlement.Free)

	n, _ := gr.Field("neighborhood")
	require.False(t, n.IsGated)
	require.Equal(t, "Centre", n.Value)
	p, _ := gr.Field("price")
	require.False(t, p.IsGated)
	require.Equal(t, 900, p.Value)

	for _, id := range []string{"exact_address", "phone"} {
		f, ok := gr.Field(id)
		require.True(t, ok)
		require.True(t, f.IsGated, id)
		require.Equal(t, StateRedacted, f.State)
		require.Equal(t, Redacted, f.Value)
		require.NotNil(t, f.Value)
		require.NotEqual(t, "", f.Value)
		_, visible := gr.Value(id)
		require.False(t, visible)
	}
	require.True(t, IsAnyFieldGated(gr))
	require.Equal(t, []string{"exact_address", "phone"}, gr.GatedFields())
}

func TestProject_PremiumViewer(t *testing.T) {
	gr := Project(scenarioRecord(), scenarioTable, entitlement.Premium)
	for _, f := range gr.Fields() {
		require.False(t, f.IsGated, f.FieldID)
		require.Equal(t, StateVisible, f.State)
		require.Equal(t, scenarioRecord()[f.FieldID], f.Value)
	}
	require.False(t, IsAnyFieldGated(gr))
	require.False(t, gr.IsAnyFieldGated())
}

func TestProject_MissingFieldIsAbsentNotRedacted(t *testing.T) {
	rec := scenarioRecord()
	delete(rec, "phone")

	gr := Project(rec, scenarioTable, entitlement.Premium)
	f, ok := gr.Field("phone")
	require.True(t, ok)
	require.Equal(t, StateAbsent, f.State)
	require.False(t, f.IsGated)
	require.NotEqual(t, Redacted, f.Value)
	require.True(t, errors.Is(f.Err, ErrFieldAbsent))
	var absent *FieldAbsentError
	require.ErrorAs(t, f.Err, &absent)
	require.Equal(t, "phone", absent.FieldID)
	require.Equal(t, []string{"phone"}, gr.AbsentFields())
	require.False(t, IsAnyFieldGated(gr))
}

func TestProject_MissingPremiumFieldStaysRedactedForFreeViewer(t *testing.T) {
	rec := scenarioRecord()
	delete(rec, "phone")

	withPhone := Project(scenarioRecord(), scenarioTable, entitlement.Free)
	withoutPhone := Project(rec, scenarioTable, entitlement.Free)

	f, _ := withoutPhone.Field("phone")
	require.Equal(t, StateRedacted, f.State)
	require.Nil(t, f.Err)
	require.Empty(t, withoutPhone.AbsentFields())
	require.Equal(t, withPhone.GatedFields(), withoutPhone.GatedFields())
}

func TestProject_KeySetMatchesTable(t *testing.T) {
	records := map[string]Record{
		"exact":   scenarioRecord(),
		"extra":   {"neighborhood": "Nord", "price": 1, "exact_address": "a", "phone": "b", "owner_email": "leak@example.com", "internal_notes": "x"},
		"missing": {"price": 700},
		"empty":   {},
		"nil":     nil,
	}
	want := scenarioTable.FieldIDs()
	for name, rec := range records {
		for _, tier := range []entitlement.Tier{entitlement.Free, entitlement.Premium} {
			gr := Project(rec, scenarioTable, tier)
			require.Equal(t, want, gr.FieldIDs(), "%s/%s", name, tier)
			_, leaked := gr.Field("owner_email")
			require.False(t, leaked)
		}
	}
}

func TestProject_IsIdempotent(t *testing.T) {
	rec := scenarioRecord()
	delete(rec, "neighborhood")
	for _, tier := range []entitlement.Tier{entitlement.Free, entitlement.Premium} {
		a := Project(rec, scenarioTable, tier)
		b := Project(rec, scenarioTable, tier)
		if diff := cmp.Diff(a, b, cmp.AllowUnexported(GatedRecord{})); diff != "" {
			t.Fatalf("projection differs (-first +second):\n%s", diff)
		}
	}
}

func TestProject_DoesNotMutateRecord(t *testing.T) {
	rec := scenarioRecord()
	rec["extra"] = "kept"
	before := map[string]any{}
	for k, v := range rec {
		before[k] = v
	}
	_ = Project(rec, scenarioTable, entitlement.Free)
	_ = Project(rec, scenarioTable, entitlement.Premium)
	require.Equal(t, before, map[string]any(rec))
}

func TestProject_InvalidViewerPanics(t *testing.T) {
	require.Panics(t, func() { Project(scenarioRecord(), scenarioTable, entitlement.Tier(0)) })
	require.Panics(t, func() { Project(scenarioRecord(), fieldspec.Table{}, entitlement.Tier(5)) })
}

func TestProject_GatingIndependentOfContent(t *testing.T) {
	a := Project(scenarioRecord(), fieldspec.Listing, entitlement.Free)
	b := Project(Record{"title": "other"}, fieldspec.Listing, entitlement.Free)
	require.Equal(t, a.GatedFields(), b.GatedFields())

	var free []string
	for _, s := range fieldspec.Listing.Specs() {
		if s.Required == entitlement.Free {
			free = append(free, s.FieldID)
		}
	}
	var ungated []string
	for _, f := range a.Fields() {
		if !f.IsGated {
			ungated = append(ungated, f.FieldID)
		}
	}
	sort.Strings(free)
	sort.Strings(ungated)
	require.Equal(t, free, ungated)
}

func TestWithValue(t *testing.T) {
	gr := Project(scenarioRecord(), scenarioTable, entitlement.Free)

	updated, ok := gr.WithValue("neighborhood", "Centre-Ville")
	require.True(t, ok)
	v, _ := updated.Value("neighborhood")
	require.Equal(t, "Centre-Ville", v)
	orig, _ := gr.Value("neighborhood")
	require.Equal(t, "Centre", orig)

	same, ok := gr.WithValue("phone", "0600000000")
	require.False(t, ok)
	f, _ := same.Field("phone")
	require.Equal(t, Redacted, f.Value)

	_, ok = gr.WithValue("unknown", 1)
	require.False(t, ok)
}

func TestMarshalJSON_OrderedAndRedacted(t *testing.T) {
	rec := scenarioRecord()
	delete(rec, "price")
	gr := Project(rec, scenarioTable, entitlement.Free)

	b, err := json.Marshal(gr)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"neighborhood": {"state":"visible","gated":false,"value":"Centre"},
		"price": {"state":"absent","gated":false,"error":"gating: field \"price\" absent from record"},
		"exact_address": {"state":"redacted","gated":true},
		"phone": {"state":"redacted","gated":true}
	}`, string(b))
	require.NotContains(t, string(b), "12 Rue X")
	require.NotContains(t, string(b), "0600000000")

	// key order follows the table
	s := string(b)
	require.Less(t, strings.Index(s, `"neighborhood"`), strings.Index(s, `"price"`))
	require.Less(t, strings.Index(s, `"exact_address"`), strings.Index(s, `"phone"`))
}

func TestState_String(t *testing.T) {
	require.Equal(t, "visible", StateVisible.String())
	require.Equal(t, "redacted", StateRedacted.String())
	require.Equal(t, "absent", StateAbsent.String())
	require.Equal(t, "[redacted]", Redacted.String())
}
