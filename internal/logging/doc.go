// Package logging builds the zap loggers used by the portal binaries and
// the Client when no logger is injected.
package logging
