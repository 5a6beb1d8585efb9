package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/propgate/propgate/internal/models"
	"github.com/propgate/propgate/pkg/middleware"
)

// Issuer is the iss claim stamped on locally issued access tokens.
const Issuer = "propgate"

// GenerateAccessToken creates a signed HS256 access token for the user.
// The token identifies the viewer only; entitlements are read from the
// profile store on every request.
func GenerateAccessToken(secret string, u *models.User, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("tokens: empty signing secret")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   Issuer,
		"sub":   u.Sub,
		"name":  u.Name,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verifier validates access tokens issued by GenerateAccessToken.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

type claimsToken struct {
	claims jwt.MapClaims
}

func (t *claimsToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Verify implements middleware.Verifier.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("tokens: verifier has no secret")
	}
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("access token: unexpected claims type")
	}
	return &claimsToken{claims: mc}, nil
}

// ExpiresAt returns the exp claim of a token without verifying its signature.
// Used to size blacklist entries on logout.
func ExpiresAt(raw string) (time.Time, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return time.Time{}, err
	}
	exp, err := mc.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("exp claim not present")
	}
	return exp.Time, nil
}
