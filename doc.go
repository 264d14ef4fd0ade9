// Package goPortal provides the client-side session SDK of the real-estate
// portal: token storage, activity tracking, a session monitor and an HTTP
// client that attaches the bearer token and recovers from an expired one by
// refreshing exactly once.
//
// A [Client] is built once through [Builder.Build] and owns one user
// session. Client methods are safe to call from multiple goroutines.
//
// # Architecture boundaries
//
// goPortal is the public surface. It exposes [Client], [Builder], [Config]
// and value types (MetricsSnapshot, SessionEvent, LoginResult). Storage
// lives in session, the state machine in monitor, the retry adapter in
// transport and the backend contract in api. The offline package is a
// fake backend chosen explicitly through [DataSourceMock]; a live backend
// that fails is never replaced by it.
//
// # Lifecycle
//
// Call [Client.Restore] at start to resume a stored session and
// [Client.Close] at shutdown. Login and Restore start the monitor and the
// activity tracker; every logout path stops them.
//
// # Refresh contract
//
// Exactly one refresh runs at a time. The retry adapter, the monitor's
// poll and keep-alive loops and [Client.RefreshUserToken] all join the
// same in-flight refresh. A failed refresh ends the session silently.
package goPortal
