// Package transport provides the authenticated HTTP round tripper used by
// every portal API call.
//
// Transport attaches the current access token to outgoing requests. When
// a request that carried a token is answered with 401 Unauthorized, the
// transport asks its Refresher for a new token and replays the request
// exactly once. RefreshGroup is the Refresher shared by the transport and
// the session monitor: while a refresh is running every other caller waits
// for it and then either replays with its token or fails with a
// *RefreshError.
//
// Requests made with a context from WithoutAuth carry no token and are
// never replayed. The refresh endpoint itself is never intercepted.
package transport
