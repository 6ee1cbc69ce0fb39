package apiclient

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/florianilch/fincli/internal/session"
)

// Transport injects bearer tokens and performs the single sanctioned
// refresh-and-retry after a 401 from the resource service.
type Transport struct {
	base     http.RoundTripper // oauth2.Transport over the session manager
	sessions *session.Manager
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// NewTransport builds the transport composition
// retry(oauth2.Transport(sessions, base)).
func NewTransport(sessions *session.Manager, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base: &oauth2.Transport{
			Source: sessions.TokenSource(context.Background()),
			Base:   base,
		},
		sessions: sessions,
	}
}

// RoundTrip sends the request with a bearer token. On 401 it forces one
// token refresh and replays the request once; a second 401 is returned
// to the caller untouched.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// Bodies are replayable only through GetBody; without it the 401 is
	// the final answer.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if _, err := t.sessions.ForceRefresh(req.Context()); err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	// oauth2.Transport reads the fresh token from the session manager.
	return t.base.RoundTrip(retry)
}
