package service

import (
	"context"
	"testing"

	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/propgate/propgate/internal/gating"
	"github.com/propgate/propgate/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreateValidates(t *testing.T) {
	svc := NewMemoryService(fieldspec.Listing)
	ctx := context.Background()

	l, err := svc.Create(ctx, "", gating.Record{fieldspec.Title: "Loft", fieldspec.Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, listing.StatusAvailable, l.Status)
	assert.NotEmpty(t, l.ID)

	_, err = svc.Create(ctx, "draft", gating.Record{})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(ctx, listing.StatusAvailable, gating.Record{"owner_ssn": "x", "zzz": 1})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "owner_ssn, zzz")
}

func TestService_UpdateAndNotFound(t *testing.T) {
	svc := NewMemoryService(fieldspec.Listing)
	ctx := context.Background()
	l, err := svc.Create(ctx, listing.StatusAvailable, gating.Record{fieldspec.Title: "Loft"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateFields(ctx, l.ID, gating.Record{fieldspec.Charges: 90}, nil))
	require.ErrorIs(t, svc.UpdateFields(ctx, l.ID, nil, []string{"bogus"}), ErrInvalid)
	require.ErrorIs(t, svc.SetStatus(ctx, l.ID, "gone"), ErrInvalid)
	require.NoError(t, svc.SetStatus(ctx, l.ID, listing.StatusSold))

	list, err := svc.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	deleted, err := svc.Delete(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, deleted.ID)
	_, err = svc.Get(ctx, l.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Delete(ctx, l.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.UpdateFields(ctx, l.ID, gating.Record{fieldspec.Title: "x"}, nil), ErrNotFound)
}

func TestService_AppendAndReplaceField(t *testing.T) {
	svc := NewMemoryService(fieldspec.Listing)
	ctx := context.Background()
	l, err := svc.Create(ctx, listing.StatusAvailable, gating.Record{fieldspec.Title: "Loft"})
	require.NoError(t, err)

	require.NoError(t, svc.AppendField(ctx, l.ID, fieldspec.Photos, "a.jpg"))
	require.NoError(t, svc.AppendField(ctx, l.ID, fieldspec.Photos, "b.jpg"))
	prev, err := svc.ReplaceField(ctx, l.ID, fieldspec.PDFPlanURL, "plan.pdf")
	require.NoError(t, err)
	assert.Nil(t, prev)

	got, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, []any{"a.jpg", "b.jpg"}, got.Fields[fieldspec.Photos])
	assert.Equal(t, "plan.pdf", got.Fields[fieldspec.PDFPlanURL])

	require.ErrorIs(t, svc.AppendField(ctx, l.ID, "bogus", "x"), ErrInvalid)
	_, err = svc.ReplaceField(ctx, l.ID, "bogus", "x")
	require.ErrorIs(t, err, ErrInvalid)
	require.ErrorIs(t, svc.AppendField(ctx, "missing", fieldspec.Photos, "x"), ErrNotFound)
	_, err = svc.ReplaceField(ctx, "missing", fieldspec.PDFPlanURL, "x")
	require.ErrorIs(t, err, ErrNotFound)
}
