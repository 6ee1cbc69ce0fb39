// Package apiclient talks to the resource service on behalf of a
// logged-in identity.
//
// Bearer tokens are injected through oauth2.Transport backed by the
// session manager. A 401 response means "token invalid now" regardless
// of the locally cached expiry, so the transport forces one refresh and
// retries the call exactly once before propagating the failure. That is
// the only retry loop in the program.
package apiclient
