// Package session orchestrates the credential lifecycle: which identity
// is current, when its token is stale, and how it gets refreshed.
//
// Every operation that touches the credential document runs inside the
// store's lock-scoped critical section, so two CLI processes racing on
// one expired token perform at most one network refresh and both observe
// the resulting token.
//
// The per-identity state machine:
//
//	NoSession --login--> Active
//	Active --(access window elapses)--> Expired
//	Expired --(refresh succeeds)--> Active
//	Expired --(refresh rejected)--> LoggedOut (re-login required)
//	Active --(tenant-switch request)--> PendingTenantSwitch
//	PendingTenantSwitch --login--> Active (pending flag cleared)
//	any state --logout--> LoggedOut
//
// A tenant switch never mutates the token: tenant and role are claims
// minted by the authentication service at issuance, so the switch is
// recorded as pending and enforced by the next real login.
package session
