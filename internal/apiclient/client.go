package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/fincli/internal/session"
)

// DefaultTimeout bounds every call to the resource service.
const DefaultTimeout = 30 * time.Second

// batchChunkSize and batchConcurrency tune the batch import: chunks are
// posted concurrently but bounded, so a large import neither serializes
// nor floods the service.
const (
	batchChunkSize   = 100
	batchConcurrency = 4
)

// Client is the HTTP client for the resource service.
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

// WithBaseTransport replaces the innermost transport, e.g. for tests.
// Token injection and 401 retry still wrap it.
func WithBaseTransport(sessions *session.Manager, base http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = NewTransport(sessions, base)
	}
}

// New creates a Client for the resource service at baseURL, consuming
// tokens from the given session manager.
func New(baseURL string, sessions *session.Manager, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("resource service base URL cannot be empty")
	}
	if sessions == nil {
		return nil, fmt.Errorf("missing session manager")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: NewTransport(sessions, nil),
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// APIError is a non-2xx response from the resource service.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("resource service returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("resource service returned %d", e.Status)
}

// Account is a money account owned by the tenant.
type Account struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	AccountType string    `json:"account_type"`
	Balance     float64   `json:"balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAccount is the account creation payload.
type NewAccount struct {
	Name        string  `json:"name"`
	AccountType string  `json:"account_type"`
	Balance     float64 `json:"balance"`
}

// AccountUpdate is a partial account update. Nil fields are left
// untouched by the service.
type AccountUpdate struct {
	Name        *string  `json:"name,omitempty"`
	AccountType *string  `json:"account_type,omitempty"`
	Balance     *float64 `json:"balance,omitempty"`
}

// Transaction is a single ledger entry.
type Transaction struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	Amount      float64   `json:"amount"`
	Date        string    `json:"date"`
	Category    string    `json:"category,omitempty"`
	Merchant    string    `json:"merchant,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTransaction is the transaction creation payload.
type NewTransaction struct {
	AccountID   int64    `json:"account_id"`
	Amount      float64  `json:"amount"`
	Date        string   `json:"date"`
	Category    string   `json:"category,omitempty"`
	Merchant    string   `json:"merchant,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TransactionUpdate is a partial transaction update. Nil fields are
// left untouched by the service.
type TransactionUpdate struct {
	Amount      *float64 `json:"amount,omitempty"`
	Date        *string  `json:"date,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Merchant    *string  `json:"merchant,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TransactionList is a paginated transaction listing.
type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
	Total        int64         `json:"total"`
}

// BatchResult summarizes one batch creation call.
type BatchResult struct {
	Transactions   []Transaction `json:"transactions"`
	AccountBalance float64       `json:"account_balance"`
	TotalAmount    float64       `json:"total_amount"`
	Count          int           `json:"count"`
}

// Tenant is the tenant the current token is scoped to.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantMember is one membership row of the current tenant.
type TenantMember struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantSummary is one row of a user's tenant listing, carrying the
// caller's role within that tenant.
type TenantSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ListAccounts returns the tenant's accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	if err := c.do(ctx, http.MethodGet, "/api/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAccount creates an account.
func (c *Client) CreateAccount(ctx context.Context, acc NewAccount) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodPost, "/api/accounts", acc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccount returns a single account.
func (c *Client) GetAccount(ctx context.Context, id int64) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/accounts/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAccount applies a partial update to an account.
func (c *Client) UpdateAccount(ctx context.Context, id int64, upd AccountUpdate) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/accounts/%d", id), upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAccount removes an account.
func (c *Client) DeleteAccount(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/accounts/%d", id), nil, nil)
}

// ListTransactions returns transactions, optionally filtered by account.
func (c *Client) ListTransactions(ctx context.Context, accountID int64, limit int) (*TransactionList, error) {
	q := url.Values{}
	if accountID > 0 {
		q.Set("account_id", strconv.FormatInt(accountID, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out TransactionList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTransaction creates a single transaction.
func (c *Client) CreateTransaction(ctx context.Context, tx NewTransaction) (*Transaction, error) {
	var out Transaction
	if err := c.do(ctx, http.MethodPost, "/api/transactions", tx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransaction returns a single transaction.
func (c *Client) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	var out Transaction
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/transactions/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTransaction applies a partial update to a transaction.
func (c *Client) UpdateTransaction(ctx context.Context, id int64, upd TransactionUpdate) (*Transaction, error) {
	var out Transaction
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/transactions/%d", id), upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTransaction removes a transaction.
func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", id), nil, nil)
}

// BatchCreateTransactions imports transactions in chunks posted
// concurrently with bounded parallelism. Results are merged; the first
// failing chunk cancels the rest.
func (c *Client) BatchCreateTransactions(ctx context.Context, accountID int64, txs []NewTransaction) (*BatchResult, error) {
	type batchRequest struct {
		AccountID    int64            `json:"account_id"`
		Transactions []NewTransaction `json:"transactions"`
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	var mu sync.Mutex
	merged := &BatchResult{}

	for start := 0; start < len(txs); start += batchChunkSize {
		chunk := txs[start:min(start+batchChunkSize, len(txs))]
		g.Go(func() error {
			var res BatchResult
			err := c.do(gCtx, http.MethodPost, "/api/transactions/batch", batchRequest{
				AccountID:    accountID,
				Transactions: chunk,
			}, &res)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			merged.Transactions = append(merged.Transactions, res.Transactions...)
			merged.TotalAmount += res.TotalAmount
			merged.Count += res.Count
			merged.AccountBalance = res.AccountBalance
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}

// CurrentTenant returns the tenant the active token is scoped to.
func (c *Client) CurrentTenant(ctx context.Context) (*Tenant, error) {
	var out Tenant
	if err := c.do(ctx, http.MethodGet, "/api/tenants/current", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTenant renames the current tenant.
func (c *Client) UpdateTenant(ctx context.Context, name string) (*Tenant, error) {
	var out Tenant
	payload := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPatch, "/api/tenants/current", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUserTenants returns every tenant the authenticated user belongs
// to, with the user's role in each.
func (c *Client) ListUserTenants(ctx context.Context) ([]TenantSummary, error) {
	var out []TenantSummary
	if err := c.do(ctx, http.MethodGet, "/api/tenants", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTenantMembers returns the members of the current tenant.
func (c *Client) ListTenantMembers(ctx context.Context) ([]TenantMember, error) {
	var out []TenantMember
	if err := c.do(ctx, http.MethodGet, "/api/tenants/current/members", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InviteMember adds a user to the current tenant with the given role.
func (c *Client) InviteMember(ctx context.Context, authUserID, role string) (*TenantMember, error) {
	var out TenantMember
	payload := map[string]string{"auth_user_id": authUserID, "role": role}
	if err := c.do(ctx, http.MethodPost, "/api/tenants/current/members", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMemberRole changes a member's role in the current tenant.
func (c *Client) UpdateMemberRole(ctx context.Context, userID int64, role string) (*TenantMember, error) {
	var out TenantMember
	payload := map[string]string{"role": role}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/tenants/current/members/%d/role", userID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveMember removes a user from the current tenant.
func (c *Client) RemoveMember(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/tenants/current/members/%d", userID), nil, nil)
}

// do performs one JSON round trip. The transport owns authentication;
// this layer only shapes requests and maps non-2xx statuses.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
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
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: errorDetail(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorDetail extracts the service's {"detail": ...} error message.
func errorDetail(r io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err == nil {
		return payload.Detail
	}
	return ""
}
