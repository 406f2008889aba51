// Package authkit is the identity and session-security core for account-based
// services: credential authentication with automatic lockout, JWT access
// tokens, rotating refresh tokens with replay detection, email verification
// and password-reset flows, and permission resolution backed by a short-lived
// identity cache.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config],
// typed errors, collaborator interfaces ([IdentityStore], [Mailer],
// [IdentityCache], [AuditSink]) and value types. Transport concerns — HTTP
// routing, request validation, rate limiting — live outside this module and
// call into it.
//
// # What this package must NOT do
//
//   - Hand a raw refresh, verification, or reset token to the store or to an
//     audit sink. Only SHA-256 digests are persisted.
//   - Reveal through RequestEmailVerification or RequestPasswordReset whether
//     an email address is registered.
//   - Distinguish unknown-account failures from wrong-password failures in
//     returned errors.
package authkit
