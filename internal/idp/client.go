// Package idp talks to the external identity provider's management and
// authentication APIs. Platform users are mirrored there so the provider
// owns credentials while the database owns everything else.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"counselflow.org/internal/domain"
	"counselflow.org/internal/obs"
)

// ErrUserExists reports that the provider already holds a user with the same
// email. Callers treat this as recoverable: the local record still wins.
var ErrUserExists = errors.New("identity provider user already exists")

// tokenSkew renews the management token slightly before its stated expiry so
// in-flight requests never carry a token that dies mid-call.
const tokenSkew = 30 * time.Second

// Client is a minimal management-API client. The management token is cached
// and refreshed under a mutex so concurrent callers trigger one refresh, not
// a stampede.
type Client struct {
	http         *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	audience     string
	connection   string
	now          func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// Config carries the provider settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Audience     string
	Connection   string
}

// NewClient builds a provider client from config.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		http:         httpClient,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		audience:     cfg.Audience,
		connection:   cfg.Connection,
		now:          time.Now,
	}
}

// User is the provider-side view of an account holder.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string
}

type providerUser struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

func (u providerUser) toUser() (User, error) {
	raw := u.UserID
	if i := strings.LastIndexByte(raw, '|'); i >= 0 {
		raw = raw[i+1:]
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return User{}, fmt.Errorf("%w: provider returned malformed user id %q", domain.ErrUpstream, u.UserID)
	}
	return User{ID: id, Email: u.Email, Name: u.Name}, nil
}

// managementToken returns a valid cached token, refreshing it when expired.
func (c *Client) managementToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenSkew).Before(c.tokenExp) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"audience":      c.audience,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request returned status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", domain.ErrUpstream, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", domain.ErrUpstream)
	}
	c.token = tok.AccessToken
	c.tokenExp = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	token, err := c.managementToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrUserExists
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned status %d: %s", domain.ErrUpstream, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s %s response: %v", domain.ErrUpstream, method, path, err)
		}
	}
	return nil
}

// CreateUser mirrors a platform user into the provider and returns the
// provider-assigned id. A conflict on email yields ErrUserExists.
func (c *Client) CreateUser(ctx context.Context, email, name, password string) (User, error) {
	payload := map[string]string{
		"email":      email,
		"name":       name,
		"password":   password,
		"connection": c.connection,
	}
	var pu providerUser
	if err := c.do(ctx, http.MethodPost, "/api/v2/users", payload, &pu); err != nil {
		return User{}, err
	}
	return pu.toUser()
}

// UpdateUser pushes profile changes for an existing provider user.
func (c *Client) UpdateUser(ctx context.Context, id uuid.UUID, email, name string) error {
	payload := map[string]string{}
	if email != "" {
		payload["email"] = email
	}
	if name != "" {
		payload["name"] = name
	}
	if len(payload) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch, "/api/v2/users/"+providerID(c.connection, id), payload, nil)
}

// DeleteUser removes the provider-side record. Missing users are tolerated so
// soft-deleted platform users can be purged idempotently.
func (c *Client) DeleteUser(ctx context.Context, id uuid.UUID) error {
	err := c.do(ctx, http.MethodDelete, "/api/v2/users/"+providerID(c.connection, id), nil, nil)
	if err != nil && strings.Contains(err.Error(), "status 404") {
		obs.Logger().Printf(`{"type":"idp","event":"delete_user_missing","user_id":%q}`, id)
		return nil
	}
	return err
}

// ListUsers fetches provider users matching an email, used by reconciliation.
func (c *Client) ListUsers(ctx context.Context, email string) ([]User, error) {
	q := url.Values{}
	if email != "" {
		q.Set("q", `email:"`+email+`"`)
	}
	path := "/api/v2/users"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var raw []providerUser
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	users := make([]User, 0, len(raw))
	for _, pu := range raw {
		u, err := pu.toUser()
		if err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// LoginResult is the token bundle returned by a password grant.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// PasswordLogin exchanges user credentials for an access token. Invalid
// credentials map to ErrUnauthorized; provider failures to ErrUpstream.
func (c *Client) PasswordLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type": "password",
		"client_id":  c.clientID,
		"username":   email,
		"password":   password,
		"audience":   c.audience,
		"realm":      c.connection,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: login request: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: login returned status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var out LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode login response: %v", domain.ErrUpstream, err)
	}
	return &out, nil
}

func providerID(connection string, id uuid.UUID) string {
	if connection == "" {
		return url.PathEscape(id.String())
	}
	return url.PathEscape(connection + "|" + id.String())
}
