package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/propgate/propgate/pkg/logger"
)

// TokenResponse is the subset of the Keycloak token endpoint reply we use.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// Client talks to a Keycloak realm's token endpoint.
type Client struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTP         *http.Client
}

// NewClient builds a client for the realm at issuer.
func NewClient(issuer, clientID, clientSecret string) *Client {
	return &Client{
		TokenURL:     strings.TrimRight(issuer, "/") + "/protocol/openid-connect/token",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTP:         &http.Client{Timeout: 10 * time.Second},
	}
}

// PasswordGrant performs a resource-owner password grant (dev and testing).
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	return c.exchange(ctx, url.Values{
		"grant_type": {"password"},
		"scope":      {"openid"},
		"username":   {username},
		"password":   {password},
	})
}

// ExchangeCode redeems an authorization code.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	tr, err := c.exchange(ctx, form)
	if err != nil {
		logger.Warnf("auth-code exchange failed (redirect_uri=%q code_len=%d): %v", redirectURI, len(code), err)
	}
	return tr, err
}

func (c *Client) exchange(ctx context.Context, form url.Values) (*TokenResponse, error) {
	form.Set("client_id", c.ClientID)
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	if tr.IDToken == "" {
		return nil, fmt.Errorf("token endpoint returned no id_token")
	}
	return &tr, nil
}
