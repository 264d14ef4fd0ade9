// Package offline is a fake portal backend on an embedded SQLite catalog.
//
// A Backend implements api.DataSource directly and is also served over
// HTTP by the stubserver package. It is selected explicitly; nothing in
// goPortal falls back to it when the live API fails.
//
// The schema is applied with golang-migrate from embedded migrations and
// seeded with the demo accounts in DemoAccounts and five demo listings.
// Access tokens are HS256 JWTs; refresh tokens are opaque, stored hashed
// and rotated on every use. Mail that the portal would send (email
// verification, password reset, newsletter unsubscribe) is written to an
// outbox readable with Outbox and LatestToken.
package offline
