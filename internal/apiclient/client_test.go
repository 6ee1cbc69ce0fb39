package apiclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/florianilch/fincli/internal/apiclient"
)

// recordedRequest captures what the resource service saw.
type recordedRequest struct {
	method string
	path   string
	body   string
}

func TestResourceOperations(t *testing.T) {
	tests := []struct {
		name     string
		call     func(ctx context.Context, c *apiclient.Client) error
		response string
		want     recordedRequest
	}{
		{
			name: "get account",
			call: func(ctx context.Context, c *apiclient.Client) error {
				account, err := c.GetAccount(ctx, 7)
				if err == nil {
					require.Equal(t, int64(7), account.ID)
				}
				return err
			},
			response: `{"id": 7, "name": "checking", "account_type": "checking", "balance": 10}`,
			want:     recordedRequest{method: http.MethodGet, path: "/api/accounts/7"},
		},
		{
			name: "update account partial",
			call: func(ctx context.Context, c *apiclient.Client) error {
				name := "renamed"
				_, err := c.UpdateAccount(ctx, 7, apiclient.AccountUpdate{Name: &name})
				return err
			},
			response: `{"id": 7, "name": "renamed", "account_type": "checking", "balance": 10}`,
			want: recordedRequest{
				method: http.MethodPatch,
				path:   "/api/accounts/7",
				// Unset fields stay out of the payload entirely.
				body: `{"name":"renamed"}`,
			},
		},
		{
			name: "get transaction",
			call: func(ctx context.Context, c *apiclient.Client) error {
				tx, err := c.GetTransaction(ctx, 31)
				if err == nil {
					require.Equal(t, int64(31), tx.ID)
				}
				return err
			},
			response: `{"id": 31, "account_id": 7, "amount": -4.5, "date": "2026-08-25"}`,
			want:     recordedRequest{method: http.MethodGet, path: "/api/transactions/31"},
		},
		{
			name: "update transaction partial",
			call: func(ctx context.Context, c *apiclient.Client) error {
				amount := -9.99
				category := "groceries"
				_, err := c.UpdateTransaction(ctx, 31, apiclient.TransactionUpdate{
					Amount:   &amount,
					Category: &category,
				})
				return err
			},
			response: `{"id": 31, "account_id": 7, "amount": -9.99, "date": "2026-08-25"}`,
			want: recordedRequest{
				method: http.MethodPatch,
				path:   "/api/transactions/31",
				body:   `{"amount":-9.99,"category":"groceries"}`,
			},
		},
		{
			name: "delete transaction",
			call: func(ctx context.Context, c *apiclient.Client) error {
				return c.DeleteTransaction(ctx, 31)
			},
			response: `{}`,
			want:     recordedRequest{method: http.MethodDelete, path: "/api/transactions/31"},
		},
		{
			name: "rename tenant",
			call: func(ctx context.Context, c *apiclient.Client) error {
				tenant, err := c.UpdateTenant(ctx, "household")
				if err == nil {
					require.Equal(t, "household", tenant.Name)
				}
				return err
			},
			response: `{"id": 1, "name": "household"}`,
			want: recordedRequest{
				method: http.MethodPatch,
				path:   "/api/tenants/current",
				body:   `{"name":"household"}`,
			},
		},
		{
			name: "list user tenants",
			call: func(ctx context.Context, c *apiclient.Client) error {
				tenants, err := c.ListUserTenants(ctx)
				if err == nil {
					require.Len(t, tenants, 2)
					require.Equal(t, "viewer", tenants[1].Role)
				}
				return err
			},
			response: `[{"id": 1, "name": "household", "role": "owner"}, {"id": 2, "name": "club", "role": "viewer"}]`,
			want:     recordedRequest{method: http.MethodGet, path: "/api/tenants"},
		},
		{
			name: "invite member",
			call: func(ctx context.Context, c *apiclient.Client) error {
				member, err := c.InviteMember(ctx, "auth-123", "member")
				if err == nil {
					require.Equal(t, "member", member.Role)
				}
				return err
			},
			response: `{"id": 5, "user_id": 12, "email": "b@x.com", "role": "member"}`,
			want: recordedRequest{
				method: http.MethodPost,
				path:   "/api/tenants/current/members",
				body:   `{"auth_user_id":"auth-123","role":"member"}`,
			},
		},
		{
			name: "update member role",
			call: func(ctx context.Context, c *apiclient.Client) error {
				member, err := c.UpdateMemberRole(ctx, 12, "admin")
				if err == nil {
					require.Equal(t, "admin", member.Role)
				}
				return err
			},
			response: `{"id": 5, "user_id": 12, "email": "b@x.com", "role": "admin"}`,
			want: recordedRequest{
				method: http.MethodPatch,
				path:   "/api/tenants/current/members/12/role",
				body:   `{"role":"admin"}`,
			},
		},
		{
			name: "remove member",
			call: func(ctx context.Context, c *apiclient.Client) error {
				return c.RemoveMember(ctx, 12)
			},
			response: `{"message": "removed", "removed_user_id": 12}`,
			want:     recordedRequest{method: http.MethodDelete, path: "/api/tenants/current/members/12"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got recordedRequest
			client := newTestClient(t, &fakeAuth{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				got = recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)}
				_, _ = w.Write([]byte(tt.response))
			}))

			require.NoError(t, tt.call(context.Background(), client))

			require.Equal(t, tt.want.method, got.method)
			require.Equal(t, tt.want.path, got.path)
			if tt.want.body == "" {
				require.Empty(t, got.body)
			} else {
				require.JSONEq(t, tt.want.body, got.body)
			}
		})
	}
}

func TestUpdateAccountNotFound(t *testing.T) {
	client := newTestClient(t, &fakeAuth{}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"detail": "account not found"}))
	}))

	balance := 100.0
	_, err := client.UpdateAccount(context.Background(), 404, apiclient.AccountUpdate{Balance: &balance})

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "account not found", apiErr.Detail)
}
