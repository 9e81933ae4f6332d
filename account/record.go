package account

import (
	"encoding/json"
	"strings"
)

// Role values stored on an account record.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Record is the persisted account document. Hash fields hold hex-encoded
// SHA-256 digests; plaintext secrets never reach storage. Expiry fields are
// Unix seconds and are meaningful only while the matching hash is set.
type Record struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	Firstname      string `json:"firstname"`
	Lastname       string `json:"lastname,omitempty"`
	PasswordHash   string `json:"password_hash"`
	Role           string `json:"role"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	AvatarPublicID string `json:"avatar_public_id,omitempty"`
	IsVerified     bool   `json:"is_verified"`

	RefreshTokenHash string `json:"refresh_token_hash,omitempty"`

	VerifyTokenHash   string `json:"verify_token_hash,omitempty"`
	VerifyTokenExpiry int64  `json:"verify_token_expiry,omitempty"`

	ResetTokenHash   string `json:"reset_token_hash,omitempty"`
	ResetTokenExpiry int64  `json:"reset_token_expiry,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Draft is the input to [Store.Create]. Password is plaintext; the store
// hashes it before the record is written.
type Draft struct {
	Firstname      string
	Lastname       string
	Email          string
	Phone          string
	Password       string
	Role           string
	AvatarURL      string
	AvatarPublicID string
}

// NormalizeEmail lowercases and trims an email so lookups and index keys
// agree regardless of how the caller typed it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone trims surrounding whitespace. Digits are kept as given.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

func encodeRecord(rec *Record) (string, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeRecord(raw string) (*Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
