// Package password implements one-way credential hashing and verification with bcrypt.
//
// # Output format
//
// Hashes are encoded in the standard bcrypt modular crypt format:
//
//	$2a$<cost>$<salt+hash>
//
// The salt is generated per hash, so two hashes of the same plaintext never match
// byte-for-byte. Verification recomputes under the stored parameters and compares
// in constant time.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Where a hash lives on the
// account record, and when a new one replaces it, is decided by the credential
// store and the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other doora package.
//   - Log plaintext passwords at runtime.
package password
