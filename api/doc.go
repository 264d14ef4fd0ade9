// Package api defines the DataSource the portal client talks to and its
// live implementation over the portal REST API.
//
// HTTPDataSource sends authenticated calls through the client it is given,
// normally one wrapped in a transport.Transport, and sends refresh and
// revoke calls through a separate direct client. Anonymous endpoints such
// as login and password reset never carry a bearer token.
//
// Every failure is an *Error. Its Kind classifies the HTTP status and its
// Message carries the server's user-facing text; UserMessage picks that
// text or a caller-supplied fallback.
package api
