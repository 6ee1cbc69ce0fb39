// Package authclient talks to the authentication service.
//
// The service issues bearer access/refresh token pairs bound to a tenant
// and role. All endpoints speak JSON; every call is synchronous and
// bounded by the client timeout. The service may implicitly provision a
// new tenant with an owner role on the first login of an unseen account;
// the client simply stores whatever claims come back.
//
// Errors are narrowly typed so the session layer can tell a rejected
// credential (re-login required) from a transient network failure.
package authclient
