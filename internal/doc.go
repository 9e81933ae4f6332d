// Package internal contains helper utilities that are intentionally private to doora:
// secure random generation and the opaque single-use token codec shared by the
// email-verification and password-reset flows.
//
// # What this package must NOT do
//
//   - Export types that appear in the public doora API.
//   - Be imported by any package outside the doora module.
package internal
