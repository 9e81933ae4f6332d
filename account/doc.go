// Package account provides Redis-backed persistence for the mutable account
// record and its security fields: password hash, refresh-token hash, and the
// single-use verification/reset token pairs.
//
// # Storage layout
//
// Each account is one JSON document under <prefix>:acc:<id>, with unique
// secondary indexes <prefix>:idx:email:<email> and <prefix>:idx:phone:<phone>
// mapping back to the id. Index and record creation happen in one Lua script,
// so the storage layer — not the caller's pre-check — is the enforcement point
// for identity uniqueness.
//
// # Atomicity
//
// Every mutation is a single optimistic WATCH/MULTI transaction scoped to one
// account key. Refresh rotation is keyed on the previous token hash and token
// consumption clears the token pair in the same transaction that validates it,
// so two racing requests have at most one winner; the loser fails closed.
//
// # Architecture boundaries
//
// This package owns the [Record] and its persistence. It does NOT issue or
// parse tokens, send email, or decide authentication policy — those belong to
// the Engine.
//
// # What this package must NOT do
//
//   - Import doora, jwt, or upload (no upward imports).
//   - Store plaintext passwords or raw refresh tokens.
//   - Distinguish "wrong token" from "expired token" in its errors.
package account
