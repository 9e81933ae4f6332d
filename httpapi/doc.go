// Package httpapi exposes the doora engine over HTTP with a chi router.
//
// [NewServer] wraps a built [doora.Engine] and mounts the user lifecycle
// routes under /api/v1/user plus an admin-gated group under /api/v1/admin.
// All responses use the same JSON envelope:
//
//	{"code": 200, "message": "...", "data": {...}}
//
// Access and refresh tokens travel both in the response body and as
// HTTP-only cookies (accessToken, refreshToken). The refresh and logout
// endpoints accept the refresh token from the cookie or the request body.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself. All decisions are delegated to the
// engine; refresh reuse detection renders the same 401 body as an invalid
// refresh token so the distinction never leaks to callers.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Store plaintext credentials anywhere, including logs.
package httpapi
