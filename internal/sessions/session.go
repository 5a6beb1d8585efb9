package sessions

import (
	"errors"
	"time"
)

// ErrNotFound is returned for unknown or expired refresh tokens.
var ErrNotFound = errors.New("session not found")

// Session is a refresh session for a viewer subject.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	Sub          string    `bson:"sub" json:"sub"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool { return now.After(s.ExpiresAt) }
