// Package doora implements the credential and session lifecycle for the
// Doora marketplace backend: registration with avatar upload, login,
// access/refresh token issuance with rotation, email verification, and
// password reset.
//
// # Architecture boundaries
//
// The Engine is the only entry point. It owns policy: validation rules,
// token lifetimes, the registration compensation path, and the error
// taxonomy callers see. Persistence lives in the account package, token
// codecs in jwt and internal, password hashing in password, and the
// outward-facing collaborators (object storage, email) are injected behind
// the upload.Uploader and mail.Sender interfaces.
//
// Construction goes through the Builder:
//
//	engine, err := doora.New().
//		WithConfig(cfg).
//		WithRedis(client).
//		WithUploader(uploader).
//		WithMailer(sender).
//		Build()
//
// # Security model
//
// Refresh tokens rotate on every use: the server keeps only a SHA-256 hash
// of the current refresh token, and rotation is conditional on that hash,
// so a replayed (already rotated) token fails closed and revokes the
// session. Verification and reset tokens are single use, expire after a
// fixed TTL, and are likewise stored only as hashes.
//
// # What this package must NOT do
//
//   - Speak HTTP. Transport concerns (cookies, status codes, multipart
//     parsing) live in httpapi.
//   - Persist anything outside the account store.
package doora
