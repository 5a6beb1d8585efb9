package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/propgate/propgate/internal/models"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertFromClaims creates or updates a user using OIDC claims map.
// Returns (nil, nil) when the claims carry no subject.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return nil, nil
	}
	u := &models.User{
		Sub:   sub,
		Email: email,
		Name:  name,
	}
	return s.repo.UpsertBySub(ctx, u)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// PlanFor returns the raw stored plan for sub. An empty subject or a missing
// profile yields (nil, nil); only storage failures are errors.
func (s *Service) PlanFor(ctx context.Context, sub string) (*string, error) {
	if sub == "" {
		return nil, nil
	}
	u, err := s.repo.GetBySub(ctx, sub)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", sub, err)
	}
	return u.Plan, nil
}

// SetPlan records the raw plan for an existing profile.
func (s *Service) SetPlan(ctx context.Context, sub string, plan *string) error {
	return s.repo.SetPlan(ctx, sub, plan)
}
