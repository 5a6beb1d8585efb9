package repository

import (
	"context"
	"errors"

	"github.com/propgate/propgate/internal/gating"
	"github.com/propgate/propgate/internal/listing"
)

var (
	ErrNotFound = errors.New("listing not found")
)

// Repository persists listings. Implementations return ErrNotFound for
// unknown ids and copies that callers may modify freely.
type Repository interface {
	Create(ctx context.Context, l *listing.Listing) (string, error)
	Get(ctx context.Context, id string) (*listing.Listing, error)
	// ListAvailable returns listings with status available, newest first.
	ListAvailable(ctx context.Context) ([]*listing.Listing, error)
	// UpdateFields merges set into the stored fields and removes unset keys.
	UpdateFields(ctx context.Context, id string, set gating.Record, unset []string) error
	// AppendField appends value to the list stored under field, creating it
	// when missing. Concurrent appends are never lost.
	AppendField(ctx context.Context, id, field string, value any) error
	// ReplaceField stores value under field and returns the value it
	// replaced, nil when there was none.
	ReplaceField(ctx context.Context, id, field string, value any) (any, error)
	SetStatus(ctx context.Context, id string, status listing.Status) error
	// Delete removes the listing and returns it as it was stored.
	Delete(ctx context.Context, id string) (*listing.Listing, error)
}
