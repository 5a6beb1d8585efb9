// Package view joins the listing store and the viewer's profile into gated
// projections ready for rendering.
package view

import (
	"context"
	"errors"
	"fmt"

	"github.com/propgate/propgate/internal/entitlement"
	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/propgate/propgate/internal/gating"
	"github.com/propgate/propgate/internal/listing"
	"github.com/propgate/propgate/internal/listing/service"
	"github.com/propgate/propgate/pkg/logger"
	"github.com/propgate/propgate/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrListingNotFound     = errors.New("listing not found")
)

// Collaborator names for UpstreamError and metrics.
const (
	ListingStore = "listing_store"
	ProfileStore = "profile_store"
	AssetStore   = "asset_store"
)

// UpstreamError reports a failed collaborator fetch. It matches
// ErrUpstreamUnavailable.
type UpstreamError struct {
	Collaborator string
	Err          error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// Collaborator names the failed collaborator in err, or "" when err is not an
// UpstreamError.
func Collaborator(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Collaborator
	}
	return ""
}

func upstream(collaborator string, err error) error {
	metrics.UpstreamFailures.WithLabelValues(collaborator).Inc()
	return &UpstreamError{Collaborator: collaborator, Err: err}
}

// Store is the read side of the listing service.
type Store interface {
	Get(ctx context.Context, id string) (*listing.Listing, error)
	ListAvailable(ctx context.Context) ([]*listing.Listing, error)
}

// PlanSource returns the raw stored plan for a subject; nil when there is none.
type PlanSource interface {
	PlanFor(ctx context.Context, sub string) (*string, error)
}

// Presigner turns a stored asset key into a downloadable URL.
type Presigner interface {
	Presign(ctx context.Context, key string) (string, error)
}

// Service builds gated listing views.
type Service struct {
	store   Store
	plans   PlanSource
	signer  Presigner
	detail  fieldspec.Table
	summary fieldspec.Table
}

type Option func(*Service)

// WithPresigner signs visible asset fields.
func WithPresigner(p Presigner) Option { return func(s *Service) { s.signer = p } }

// WithTable replaces the detail field table; the catalogue table is derived from it.
func WithTable(t fieldspec.Table) Option { return func(s *Service) { s.detail = t } }

func New(store Store, plans PlanSource, opts ...Option) (*Service, error) {
	s := &Service{store: store, plans: plans, detail: fieldspec.Listing}
	for _, o := range opts {
		o(s)
	}
	summary, err := fieldspec.Summary(s.detail)
	if err != nil {
		return nil, err
	}
	s.summary = summary
	return s, nil
}

// DetailTable returns the table used for detail views.
func (s *Service) DetailTable() fieldspec.Table { return s.detail }

// DetailView is a listing projected for one viewer.
type DetailView struct {
	ID     string
	Status listing.Status
	Viewer entitlement.Viewer
	Record gating.GatedRecord
	// Upsell is set when at least one field was withheld from the viewer.
	Upsell bool
}

// Description returns the full description when the viewer may see it and
// the public teaser otherwise.
func (d DetailView) Description() (any, bool) {
	if v, ok := d.Record.Value(fieldspec.Description); ok {
		return v, true
	}
	return d.Record.Value(fieldspec.PublicDescription)
}

// Summary is one catalogue entry.
type Summary struct {
	ID     string
	Record gating.GatedRecord
}

// Catalogue is the projected list of available listings.
type Catalogue struct {
	Viewer  entitlement.Viewer
	Entries []Summary
}

// Viewer resolves the viewer for subject; anonymous subjects are free viewers.
func (s *Service) Viewer(ctx context.Context, subject string) (entitlement.Viewer, error) {
	plan, err := s.plan(ctx, subject)
	if err != nil {
		return entitlement.Viewer{}, err
	}
	return entitlement.ViewerFromPlan(plan), nil
}

func (s *Service) plan(ctx context.Context, subject string) (*string, error) {
	if subject == "" || s.plans == nil {
		return nil, nil
	}
	p, err := s.plans.PlanFor(ctx, subject)
	if err != nil {
		return nil, upstream(ProfileStore, err)
	}
	return p, nil
}

// Detail fetches the listing and the viewer's plan concurrently and projects
// the listing with the detail table.
func (s *Service) Detail(ctx context.Context, id, subject string) (DetailView, error) {
	var (
		l    *listing.Listing
		plan *string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		got, err := s.store.Get(gctx, id)
		if errors.Is(err, service.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrListingNotFound, id)
		}
		if err != nil {
			return upstream(ListingStore, err)
		}
		l = got
		return nil
	})
	g.Go(func() error {
		p, err := s.plan(gctx, subject)
		plan = p
		return err
	})
	if err := g.Wait(); err != nil {
		return DetailView{}, err
	}

	viewer := entitlement.ViewerFromPlan(plan)
	gr := gating.Project(l.Fields, s.detail, viewer.Plan)
	s.record(gr, viewer, "detail")

	gr, err := s.sign(ctx, gr)
	if err != nil {
		return DetailView{}, err
	}
	return DetailView{
		ID:     l.ID,
		Status: l.Status,
		Viewer: viewer,
		Record: gr,
		Upsell: gr.IsAnyFieldGated(),
	}, nil
}

// Catalogue projects every available listing with the summary table.
func (s *Service) Catalogue(ctx context.Context, subject string) (Catalogue, error) {
	var (
		list []*listing.Listing
		plan *string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		got, err := s.store.ListAvailable(gctx)
		if err != nil {
			return upstream(ListingStore, err)
		}
		list = got
		return nil
	})
	g.Go(func() error {
		p, err := s.plan(gctx, subject)
		plan = p
		return err
	})
	if err := g.Wait(); err != nil {
		return Catalogue{}, err
	}

	viewer := entitlement.ViewerFromPlan(plan)
	out := Catalogue{Viewer: viewer, Entries: make([]Summary, 0, len(list))}
	for _, l := range list {
		gr := gating.Project(l.Fields, s.summary, viewer.Plan)
		s.record(gr, viewer, "catalogue")
		gr, err := s.sign(ctx, gr)
		if err != nil {
			return Catalogue{}, err
		}
		out.Entries = append(out.Entries, Summary{ID: l.ID, Record: gr})
	}
	return out, nil
}

func (s *Service) record(gr gating.GatedRecord, viewer entitlement.Viewer, view string) {
	metrics.Projections.WithLabelValues(viewer.Plan.String(), view).Inc()
	for _, id := range gr.GatedFields() {
		metrics.FieldsRedacted.WithLabelValues(id).Inc()
	}
	for _, id := range gr.AbsentFields() {
		metrics.FieldsAbsent.WithLabelValues(id).Inc()
	}
}

// sign replaces visible asset keys with presigned URLs. Redacted and absent
// asset fields are left untouched, so their keys are never signed.
func (s *Service) sign(ctx context.Context, gr gating.GatedRecord) (gating.GatedRecord, error) {
	if s.signer == nil {
		return gr, nil
	}
	for _, id := range fieldspec.AssetFields {
		v, ok := gr.Value(id)
		if !ok {
			continue
		}
		signed, err := s.signValue(ctx, v)
		if err != nil {
			logger.Warnf("presign %s failed: %v", id, err)
			return gating.GatedRecord{}, upstream(AssetStore, err)
		}
		gr, _ = gr.WithValue(id, signed)
	}
	return gr, nil
}

func (s *Service) signValue(ctx context.Context, v any) (any, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return t, nil
		}
		return s.signer.Presign(ctx, t)
	case []string:
		out := make([]any, len(t))
		for i, k := range t {
			u, err := s.signer.Presign(ctx, k)
			if err != nil {
				return nil, err
			}
			out[i] = u
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			u, err := s.signValue(ctx, e)
			if err != nil {
				return nil, err
			}
			out[i] = u
		}
		return out, nil
	}
	return v, nil
}
