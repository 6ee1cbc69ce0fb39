package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds every call to the authentication service.
const DefaultTimeout = 30 * time.Second

// Client is the HTTP client for the authentication service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client, e.g. to inject a
// custom transport in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client for the authentication service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("auth service base URL cannot be empty")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// TokenResponse is the token payload returned by login and refresh.
// RefreshToken may be empty on refresh when the server chose not to
// rotate it.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	TenantID     *int64 `json:"tenant_id"`
	Role         string `json:"role"`
}

// User is the account payload returned by registration.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	resp, err := c.postJSON(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var tr TokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return nil, fmt.Errorf("malformed login response: %w", err)
		}
		return &tr, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("invalid email or password: %w", ErrAuthRejected)
	case http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", errorDetail(resp.Body, "login forbidden"), ErrAuthRejected)
	default:
		return nil, fmt.Errorf("login failed: %s: %s", resp.Status, errorDetail(resp.Body, ""))
	}
}

// Refresh exchanges a refresh token for a new token pair. Every failure
// is reported as a *RefreshError so callers can branch on the wrapped
// cause: credential rejection, unreachable service, or a malformed
// response.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.postJSON(ctx, "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &RefreshError{Reason: "authentication service unreachable", Err: ErrNetworkUnavailable}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var tr TokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return nil, &RefreshError{Reason: "malformed refresh response", Err: err}
		}
		if tr.AccessToken == "" {
			return nil, &RefreshError{Reason: "refresh response missing access token"}
		}
		return &tr, nil
	case http.StatusUnauthorized:
		return nil, &RefreshError{Reason: "refresh token invalid or expired", Err: ErrAuthRejected}
	default:
		return nil, &RefreshError{Reason: fmt.Sprintf("unexpected status %s", resp.Status)}
	}
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.postJSON(ctx, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated:
		var u User
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, fmt.Errorf("malformed registration response: %w", err)
		}
		return &u, nil
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%s: %w", errorDetail(resp.Body, "registration failed"), ErrAuthRejected)
	default:
		return nil, fmt.Errorf("registration failed: %s: %s", resp.Status, errorDetail(resp.Body, ""))
	}
}

// Revoke invalidates a refresh token server-side. A 401 means the token
// was already dead, which is the outcome the caller wanted.
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	resp, err := c.postJSON(ctx, "/auth/logout", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusUnauthorized:
		return nil
	default:
		return fmt.Errorf("logout failed: %s: %s", resp.Status, errorDetail(resp.Body, ""))
	}
}

// postJSON sends a JSON request with a per-call request ID.
func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// User interruption aborts the call; don't dress it up as a
		// network failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return resp, nil
}

// errorDetail extracts the service's {"detail": ...} error message,
// falling back to the given default.
func errorDetail(r io.Reader, fallback string) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return fallback
}
