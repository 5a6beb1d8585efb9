package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/propgate/propgate/internal/config"
	"github.com/propgate/propgate/internal/entitlement"
	"github.com/propgate/propgate/internal/oidc"
	"github.com/propgate/propgate/internal/sessions"
	"github.com/propgate/propgate/internal/tokens"
	"github.com/propgate/propgate/internal/users"
	"github.com/propgate/propgate/pkg/logger"
	"github.com/propgate/propgate/pkg/middleware"
)

// LoginRequest used for password-mode login (dev/testing) and auth-code exchange
type LoginRequest struct {
	Mode        string `json:"mode" binding:"required"` // "password" | "auth_code"
	Username    string `json:"username"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg       *config.Config
	users     *users.Service
	sessions  *sessions.Service
	blacklist *sessions.Blacklist
	keycloak  *oidc.Client
	idTokens  middleware.Verifier
}

// NewAuthHandler wires the login flow. keycloak and idTokens may be nil when
// no identity provider is configured; login then answers 500.
func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, bl *sessions.Blacklist, kc *oidc.Client, idTokens middleware.Verifier) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: u, sessions: s, blacklist: bl, keycloak: kc, idTokens: idTokens}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

func (h *AuthHandler) accessTTL() time.Duration {
	if h.cfg.JWT.AccessTokenTTL > 0 {
		return h.cfg.JWT.AccessTokenTTL
	}
	return 15 * time.Minute
}

func (h *AuthHandler) refreshTTL() time.Duration {
	if h.cfg.JWT.RefreshTokenTTL > 0 {
		return h.cfg.JWT.RefreshTokenTTL
	}
	return 7 * 24 * time.Hour
}

// Login exchanges credentials or an authorization code with Keycloak,
// upserts the viewer profile and issues an access/refresh token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Mode != "password" && req.Mode != "auth_code" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported mode"})
		return
	}
	if h.keycloak == nil || h.idTokens == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Keycloak not configured"})
		return
	}
	ctx := c.Request.Context()

	var (
		tr  *oidc.TokenResponse
		err error
	)
	if req.Mode == "password" {
		tr, err = h.keycloak.PasswordGrant(ctx, req.Username, req.Password)
	} else {
		if req.Code == "" || req.RedirectURI == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code and redirect_uri required for auth_code mode"})
			return
		}
		tr, err = h.keycloak.ExchangeCode(ctx, req.Code, req.RedirectURI)
	}
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed", "details": err.Error()})
		return
	}

	claims, err := oidc.ClaimsOf(ctx, h.idTokens, tr.IDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id token", "details": err.Error()})
		return
	}
	u, err := h.users.UpsertFromClaims(ctx, claims)
	if err != nil {
		logger.Errorf("user upsert error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user upsert failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "id token has no subject"})
		return
	}
	rft, err := h.sessions.CreateSession(ctx, u.Sub, h.refreshTTL())
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg.JWT.Secret, u, h.accessTTL())
	if err != nil {
		logger.Errorf("failed to sign access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": rft,
		"expires_in":    int(h.accessTTL().Seconds()),
		"user":          u,
		"plan":          entitlement.NormalizePlan(u.Plan).String(),
	})
}

// Refresh accepts a refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	sess, err := h.sessions.ValidateRefresh(ctx, req.RefreshToken)
	if errors.Is(err, sessions.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	u, err := h.users.GetBySub(ctx, sess.Sub)
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg.JWT.Secret, u, h.accessTTL())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "expires_in": int(h.accessTTL().Seconds())})
}

// Logout invalidates the refresh token and blacklists the presented access
// token for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if at, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		if exp, err := tokens.ExpiresAt(at); err == nil {
			if err := h.blacklist.Revoke(ctx, at, time.Until(exp)); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
				return
			}
		}
	}
	if err := h.sessions.DeleteRefresh(ctx, req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated viewer's profile and normalised plan. It must
// run behind AuthMiddleware.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	u, err := h.users.UpsertFromClaims(c.Request.Context(), claims)
	if err != nil {
		logger.Warnf("profile upsert for /me failed: %v", err)
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profile temporarily unavailable"})
		return
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "plan": entitlement.NormalizePlan(u.Plan).String()})
}
