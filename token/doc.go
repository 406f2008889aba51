// Package token issues and verifies the two JWT classes (access and refresh,
// each under its own key) and the opaque single-use tokens of the recovery
// flows, with strict validation semantics suitable for low-latency
// authentication paths.
package token
