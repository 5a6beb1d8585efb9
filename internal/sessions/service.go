package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Service wraps repository operations with session lifecycle rules
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service { return &Service{repo: r, now: time.Now} }

// CreateSession stores a new refresh session and returns the refresh token
func (s *Service) CreateSession(ctx context.Context, sub string, ttl time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	r := hex.EncodeToString(b)
	now := s.now().UTC()
	sess := &Session{
		RefreshToken: r,
		Sub:          sub,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return r, nil
}

// ValidateRefresh returns the session for a live refresh token, or ErrNotFound.
func (s *Service) ValidateRefresh(ctx context.Context, refresh string) (*Session, error) {
	sess, err := s.repo.GetByRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now().UTC()) {
		_ = s.repo.DeleteByRefresh(ctx, refresh)
		return nil, ErrNotFound
	}
	return sess, nil
}

// DeleteRefresh removes a refresh session; unknown tokens are not an error.
func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	err := s.repo.DeleteByRefresh(ctx, refresh)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
