// Package jwt manages access- and refresh-token issuance and verification using
// separate HS256 secrets per token kind and strict validation semantics suitable
// for low-latency authentication paths.
package jwt
