package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	singleUseSecretSize   = 32
	singleUseTokenRawSize = 16 + singleUseSecretSize
)

// NewSingleUseSecret returns 32 bytes of fresh randomness for a verification or
// reset token. Only the SHA-256 of the secret is ever persisted.
func NewSingleUseSecret() ([singleUseSecretSize]byte, error) {
	var secret [singleUseSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSingleUseSecret is the digest stored on the account record and compared
// at consumption time.
func HashSingleUseSecret(secret [singleUseSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeSingleUseToken packs an account id and secret into the opaque token
// mailed to the user: base64url(16-byte uuid || 32-byte secret), no padding.
// The account id rides inside the token so consumption can address the record
// directly instead of maintaining a token index.
func EncodeSingleUseToken(accountID string, secret [singleUseSecretSize]byte) (string, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return "", err
	}

	var raw [singleUseTokenRawSize]byte
	copy(raw[:16], id[:])
	copy(raw[16:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeSingleUseToken splits a token back into account id and secret.
func DecodeSingleUseToken(token string) (string, [singleUseSecretSize]byte, error) {
	var secret [singleUseSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != singleUseTokenRawSize {
		return "", secret, errors.New("invalid single-use token size")
	}

	var id uuid.UUID
	copy(id[:], raw[:16])
	copy(secret[:], raw[16:])

	return id.String(), secret, nil
}

// HashRefreshToken is the digest the credential store keeps in place of the raw
// refresh token, so a store compromise does not leak usable session tokens.
func HashRefreshToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
