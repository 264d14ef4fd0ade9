// Package stubserver serves an offline.Backend over the portal REST API
// with gin, so the live HTTP data source can be exercised end to end
// without the real portal.
//
// Routes are mounted under Options.Prefix ("/api" by default). The bearer
// token from the Authorization header is passed to the backend through
// offline.WithBearer. Failures are written as api.ErrorBody.
package stubserver
