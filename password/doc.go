// Package password hashes and verifies passwords with argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The portal client never sees plaintext hashes; this package serves the
// offline backend, which keeps demo accounts the same way a real server
// would.
package password
