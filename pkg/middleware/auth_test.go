package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier accepts exactly one token value
type fakeVerifier struct{ good string }

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw == f.good {
		return &fakeToken{data: map[string]interface{}{"sub": "user1", "email": "test@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	return f.revoked[token], f.err
}

func serve(t *testing.T, h gin.HandlerFunc, authz string) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	g.GET("/", h, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": Subject(c)})
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func subjectOf(t *testing.T, rw *httptest.ResponseRecorder) string {
	t.Helper()
	var got map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	return got["sub"]
}

func TestAuthMiddleware(t *testing.T) {
	ver := &fakeVerifier{good: "goodtoken"}
	tests := []struct {
		name  string
		authz string
		code  int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"bad header", "BadHeader", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer goodtoken", http.StatusOK},
		{"scheme case-insensitive", "bearer goodtoken", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rw := serve(t, AuthMiddleware(ver, nil), tc.authz)
			require.Equal(t, tc.code, rw.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "user1", subjectOf(t, rw))
			}
		})
	}
}

func TestAuthMiddleware_RejectsRevokedToken(t *testing.T) {
	rev := &fakeRevocations{revoked: map[string]bool{"goodtoken": true}}
	rw := serve(t, AuthMiddleware(&fakeVerifier{good: "goodtoken"}, rev), "Bearer goodtoken")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Contains(t, rw.Body.String(), "revoked")
}

func TestAuthMiddleware_RevocationStoreDown(t *testing.T) {
	rev := &fakeRevocations{err: errors.New("redis down")}
	rw := serve(t, AuthMiddleware(&fakeVerifier{good: "goodtoken"}, rev), "Bearer goodtoken")
	require.Equal(t, http.StatusServiceUnavailable, rw.Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	ver := &fakeVerifier{good: "goodtoken"}

	rw := serve(t, OptionalAuthMiddleware(ver, nil), "")
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "", subjectOf(t, rw), "anonymous viewers carry no subject")

	rw = serve(t, OptionalAuthMiddleware(ver, nil), "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "user1", subjectOf(t, rw))

	// a supplied but bad token is not silently downgraded to anonymous
	rw = serve(t, OptionalAuthMiddleware(ver, nil), "Bearer forged")
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw = serve(t, OptionalAuthMiddleware(nil, nil), "Bearer goodtoken")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestChain(t *testing.T) {
	ch := Chain{nil, &fakeVerifier{good: "a"}, &fakeVerifier{good: "b"}}
	_, err := ch.Verify(context.Background(), "b")
	require.NoError(t, err)
	_, err = ch.Verify(context.Background(), "c")
	require.Error(t, err)
	_, err = Chain{}.Verify(context.Background(), "a")
	require.ErrorIs(t, err, errNoVerifier)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	require.True(t, ok)
	require.Equal(t, "abc.def", tok)
	_, ok = BearerToken("Basic abc")
	require.False(t, ok)
	_, ok = BearerToken("Bearer")
	require.False(t, ok)
}
