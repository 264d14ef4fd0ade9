// Package session provides the token store: persistence of the access
// token, refresh token, user record, token type, expiry and last-activity
// timestamp under fixed keys.
//
// # Implementations
//
// [MemoryStore] keeps one process's session. [RedisStore] keeps it in a
// Redis hash shared by every process of the same namespace and fans
// identity changes out over pub/sub, the way browser tabs share local
// storage.
//
// # What this package must NOT do
//
//   - Validate tokens or decide session policy; the owning client does.
//   - Import goPortal, transport or monitor (no upward imports).
package session
