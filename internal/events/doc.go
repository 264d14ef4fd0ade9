// Package events implements async dispatching of session lifecycle events.
//
//   - [Sink] receives events (channel, JSON writer, zap, no-op).
//   - [Dispatcher] is a buffered relay with drop-if-full or block-if-full
//     semantics.
//   - [Event] is the record: ULID id, timestamp, type, user, outcome.
//
// This package does not decide which events to emit; the Client does.
package events
