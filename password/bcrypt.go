package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minCost      = bcrypt.MinCost
	maxCost      = bcrypt.MaxCost
	minPassBytes = 8
)

// ErrMalformedHash is returned by [Hasher.Verify] when the stored digest cannot
// be parsed as a bcrypt hash. A mismatching password is NOT an error; malformed
// storage is an internal-consistency fault the caller should escalate.
var ErrMalformedHash = errors.New("malformed password hash")

// Config defines the bcrypt parameters for a [Hasher].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Cost int
}

// Hasher hashes and verifies credentials with a fixed bcrypt cost factor.
//
// Hasher instances are intended to be configured during initialization and then treated as immutable.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a ready Hasher.
//
// NewHasher may return an error when the cost factor is outside the supported bcrypt range.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Cost < minCost || cfg.Cost > maxCost {
		return nil, errors.New("bcrypt cost out of range")
	}

	return &Hasher{config: cfg}, nil
}

// Hash produces a salted one-way digest of password.
//
// Hash may return an error when the password is too short or entropy generation fails.
// Hash does not mutate shared state and can be used concurrently.
func (h *Hasher) Hash(password string) (string, error) {
	// Raw string bytes exactly as provided (no Unicode normalization).
	if len(password) < minPassBytes {
		return "", errors.New("password must be at least 8 bytes")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.config.Cost)
	if err != nil {
		return "", err
	}

	return string(digest), nil
}

// Verify reports whether password matches encodedHash.
//
// A mismatch returns (false, nil); only an unparseable digest returns a non-nil
// error ([ErrMalformedHash]), so callers can distinguish bad credentials from
// corrupted storage.
func (h *Hasher) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrMalformedHash
	}
}

// NeedsRehash reports whether the stored digest was produced with a weaker cost
// than this Hasher is configured with.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	if !strings.HasPrefix(encodedHash, "$2") {
		return false, ErrMalformedHash
	}

	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, ErrMalformedHash
	}

	return cost < h.config.Cost, nil
}
