// Package bcfy provides a client for the unofficial Broadcastify Calls
// HTTP API.
//
// # Overview
//
// This package owns everything that touches the remote site: the
// cookie-based authentication lifecycle, the archived-block query
// endpoint, and the live call feed endpoint. Higher layers add caching
// (internal/cache) and dedup (internal/calls); this package stays a
// thin, typed transport.
//
// # Architecture
//
// The package is split across four files:
//
//   - session.go: credential storage, login/logout, and the
//     EnsureActive guard that re-authenticates on demand
//   - client.go: HTTP request plumbing for the archive and live
//     endpoints
//   - types.go: Call and the response schemas, with the ordering and
//     identity rules fetchers rely on
//   - errors.go: the error taxonomy (AuthError, FetchError, ParseError,
//     StateError)
//
// # Session lifecycle
//
// A Session moves between exactly two states, unauthenticated and
// authenticated. Login succeeds atomically or leaves the session
// untouched. When the site rejects a token mid-fetch the client calls
// Expire, and the next EnsureActive logs in again with the stored
// credentials:
//
//	session, _ := bcfy.NewSession("", username, password)
//	client, _ := bcfy.NewClient("", session, ratelimit.New())
//
//	if err := session.EnsureActive(ctx); err != nil {
//		var authErr *bcfy.AuthError
//		if errors.As(err, &authErr) {
//			// bad credentials or missing calls entitlement
//		}
//	}
//
// # API stability
//
// The endpoints are an undocumented contract. Responses that drift from
// the expected shape surface as ParseError at the decode boundary
// rather than failing unpredictably downstream.
package bcfy
