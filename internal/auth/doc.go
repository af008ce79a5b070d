// Package auth provides authentication and authorisation for LunaSphere.
//
// It implements a multi-role account model over a nine-role catalog
// (super_admin → guest) with:
//   - Argon2id password hashing (OWASP 2025 recommendation) with a dummy
//     verification on unknown usernames so login latency does not leak
//     account existence
//   - Short-lived JWT access tokens carrying a role/status snapshot, and
//     long-lived refresh tokens signed with a separate secret
//   - A SQLite-backed refresh token store holding only SHA-256 hashes,
//     with atomic single-use rotation; store membership is the source of
//     truth for revocation
//   - Role-set mutations that can never empty an account's role set
//
// All writes go through the Service facade, which serialises mutations per
// username so concurrent role changes and login bookkeeping cannot interleave.
package auth
