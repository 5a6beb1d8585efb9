package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/propgate/propgate/internal/gating"
	"github.com/propgate/propgate/internal/listing"
	"github.com/propgate/propgate/internal/listing/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid listing")
)

// Service defines the listing store operations used by the handler and view layers.
type Service interface {
	Create(ctx context.Context, status listing.Status, fields gating.Record) (*listing.Listing, error)
	Get(ctx context.Context, id string) (*listing.Listing, error)
	ListAvailable(ctx context.Context) ([]*listing.Listing, error)
	UpdateFields(ctx context.Context, id string, set gating.Record, unset []string) error
	SetStatus(ctx context.Context, id string, status listing.Status) error
	AppendField(ctx context.Context, id, field string, value any) error
	ReplaceField(ctx context.Context, id, field string, value any) (any, error)
	Delete(ctx context.Context, id string) (*listing.Listing, error)
}

// NewMemoryService returns a Service backed by the in-memory repository.
// Field ids are validated against table.
func NewMemoryService(table fieldspec.Table) Service {
	return New(repository.NewMemoryRepo(), table)
}

// NewMongoService returns a Service backed by a MongoDB collection.
func NewMongoService(ctx context.Context, col *mongo.Collection, table fieldspec.Table) (Service, error) {
	repo, err := repository.NewMongoRepo(ctx, col)
	if err != nil {
		return nil, err
	}
	return New(repo, table), nil
}

// New wraps an arbitrary repository.
func New(repo repository.Repository, table fieldspec.Table) Service {
	return &service{repo: repo, table: table}
}

type service struct {
	repo  repository.Repository
	table fieldspec.Table
}

func (s *service) checkFields(ids ...string) error {
	var unknown []string
	for _, id := range ids {
		if _, ok := s.table.Lookup(id); !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: undeclared fields %s", ErrInvalid, strings.Join(unknown, ", "))
	}
	return nil
}

func keys(r gating.Record) []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}

func mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *service) Create(ctx context.Context, status listing.Status, fields gating.Record) (*listing.Listing, error) {
	if status == "" {
		status = listing.StatusAvailable
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalid, status)
	}
	if err := s.checkFields(keys(fields)...); err != nil {
		return nil, err
	}
	l := &listing.Listing{Status: status, Fields: fields}
	if _, err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *service) Get(ctx context.Context, id string) (*listing.Listing, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return l, nil
}

func (s *service) ListAvailable(ctx context.Context) ([]*listing.Listing, error) {
	return s.repo.ListAvailable(ctx)
}

func (s *service) UpdateFields(ctx context.Context, id string, set gating.Record, unset []string) error {
	if err := s.checkFields(append(keys(set), unset...)...); err != nil {
		return err
	}
	return mapErr(s.repo.UpdateFields(ctx, id, set, unset))
}

func (s *service) SetStatus(ctx context.Context, id string, status listing.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalid, status)
	}
	return mapErr(s.repo.SetStatus(ctx, id, status))
}

func (s *service) AppendField(ctx context.Context, id, field string, value any) error {
	if err := s.checkFields(field); err != nil {
		return err
	}
	return mapErr(s.repo.AppendField(ctx, id, field, value))
}

func (s *service) ReplaceField(ctx context.Context, id, field string, value any) (any, error) {
	if err := s.checkFields(field); err != nil {
		return nil, err
	}
	prev, err := s.repo.ReplaceField(ctx, id, field, value)
	return prev, mapErr(err)
}

// Delete removes the listing and returns it, so callers can release its assets.
func (s *service) Delete(ctx context.Context, id string) (*listing.Listing, error) {
	l, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return l, nil
}
