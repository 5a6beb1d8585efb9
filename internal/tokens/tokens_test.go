package tokens

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/propgate/propgate/internal/models"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-32-bytes-should-be-long-enough"

func seg(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	u := &models.User{Sub: "user-123", Name: "Test User", Email: "test@example.com"}
	tokenStr, err := GenerateAccessToken(secret, u, 2*time.Minute)
	require.NoError(t, err)

	tok, err := NewVerifier(secret).Verify(context.Background(), tokenStr)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "user-123", claims["sub"])
	require.Equal(t, Issuer, claims["iss"])
	require.NotContains(t, claims, "plan")
}

func TestGenerateAccessToken_EmptySecret(t *testing.T) {
	_, err := GenerateAccessToken("", &models.User{Sub: "u"}, time.Minute)
	require.Error(t, err)
	_, err = NewVerifier("").Verify(context.Background(), "a.b.c")
	require.Error(t, err)
}

func TestVerify_Expired(t *testing.T) {
	tokenStr, err := GenerateAccessToken(secret, &models.User{Sub: "u2"}, -time.Second)
	require.NoError(t, err)
	_, err = NewVerifier(secret).Verify(context.Background(), tokenStr)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerify_WrongSecretFails(t *testing.T) {
	tokenStr, err := GenerateAccessToken(secret, &models.User{Sub: "u3"}, 2*time.Minute)
	require.NoError(t, err)
	_, err = NewVerifier("different-secret-xxxxxxxxxxxxxxxx").Verify(context.Background(), tokenStr)
	require.Error(t, err)
}

func TestVerify_Malformed(t *testing.T) {
	_, err := NewVerifier(secret).Verify(context.Background(), "not.a.jwt")
	require.Error(t, err)
}

func TestVerify_AlgNoneRejected(t *testing.T) {
	tok := seg(`{"alg":"none"}`) + "." + seg(`{"sub":"u-none","iss":"propgate","exp":9999999999}`) + "."
	_, err := NewVerifier(secret).Verify(context.Background(), tok)
	require.Error(t, err)
}

func TestVerify_ForeignIssuerRejected(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u", "iss": "someone-else", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = NewVerifier(secret).Verify(context.Background(), tok)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestVerify_TamperedPayload(t *testing.T) {
	tokenStr, err := GenerateAccessToken(secret, &models.User{Sub: "user-t"}, 5*time.Minute)
	require.NoError(t, err)
	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = seg(strings.Replace(string(payload), "user-t", "attacker", 1))
	_, err = NewVerifier(secret).Verify(context.Background(), strings.Join(parts, "."))
	require.Error(t, err)
}

func TestExpiresAt(t *testing.T) {
	tokenStr, err := GenerateAccessToken(secret, &models.User{Sub: "u"}, time.Hour)
	require.NoError(t, err)
	exp, err := ExpiresAt(tokenStr)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	_, err = ExpiresAt("garbage")
	require.Error(t, err)
}
