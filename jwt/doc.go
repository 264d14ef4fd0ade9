// Package jwt issues and verifies portal access tokens, and inspects
// tokens received from the server without verifying them.
package jwt
