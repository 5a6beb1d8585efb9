package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Revocations reports blacklisted access tokens.
type Revocations interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Chain tries each verifier in order and returns the first success.
type Chain []Verifier

func (ch Chain) Verify(ctx context.Context, raw string) (Token, error) {
	var lastErr error
	for _, v := range ch {
		if v == nil {
			continue
		}
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errNoVerifier
	}
	return nil, lastErr
}

type authError string

func (e authError) Error() string { return string(e) }

const errNoVerifier = authError("no token verifier configured")

// AuthMiddleware requires a valid, non-revoked Bearer token and stores its
// claims under "claims".
func AuthMiddleware(ver Verifier, rev Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		if !authenticate(c, ver, rev) {
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware lets anonymous requests through (they are treated as
// free viewers downstream), but a supplied token must be valid.
func OptionalAuthMiddleware(ver Verifier, rev Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if !authenticate(c, ver, rev) {
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, ver Verifier, rev Revocations) bool {
	token, ok := BearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
		return false
	}
	if ver == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication not configured"})
		return false
	}
	ctx := c.Request.Context()
	if rev != nil {
		revoked, err := rev.IsRevoked(ctx, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "token revocation check failed"})
			return false
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
			return false
		}
	}
	tok, err := ver.Verify(ctx, token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
		return false
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
		return false
	}
	c.Set(claimsKey, claims)
	return true
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// Claims returns the verified claims set by the auth middlewares.
func Claims(c *gin.Context) (map[string]interface{}, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	cm, ok := v.(map[string]interface{})
	return cm, ok
}

// Subject returns the authenticated subject, or "" for anonymous requests.
func Subject(c *gin.Context) string {
	cm, ok := Claims(c)
	if !ok {
		return ""
	}
	sub, _ := cm["sub"].(string)
	return sub
}
