// Package middleware gates portal pages on the access-token cookie the
// client mirrors after sign-in.
//
// # Gates
//
//   - [RouteGate] decides per request whether a page is public, an auth
//     page or protected, and redirects accordingly.
//   - [RequireRole] rejects requests whose verified claims lack a role.
//
// # Verifiers
//
//   - [ExpiryOnly] reads claims without checking the signature. It matches
//     an edge deployment that never holds the signing key.
//   - [Signed] verifies the token with a [jwt.Manager].
//
// Verified claims are stored in the request context and read back with
// [ClaimsFromContext].
package middleware
