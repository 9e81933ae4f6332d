package password

import (
	"errors"
	"strings"
	"testing"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()

	// MinCost keeps the test fast; production cost is set by the engine config.
	h, err := NewHasher(Config{Cost: 4})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashAndVerifyRoundtrip(t *testing.T) {
	h := newTestHasher(t)

	digest, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$2") {
		t.Fatalf("unexpected digest format: %q", digest)
	}

	ok, err := h.Verify("correct-password-123", digest)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected password to verify")
	}
}

func TestVerifyMismatchIsNotAnError(t *testing.T) {
	h := newTestHasher(t)

	digest, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	ok, err := h.Verify("wrong-password-456", digest)
	if err != nil {
		t.Fatalf("mismatch must not surface an error, got: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := newTestHasher(t)

	for _, digest := range []string{"", "not-a-hash", "$argon2id$v=19$m=65536,t=3,p=2$x$y"} {
		ok, err := h.Verify("whatever-password", digest)
		if !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("digest %q: expected ErrMalformedHash, got %v", digest, err)
		}
		if ok {
			t.Fatalf("digest %q: malformed digest must never verify", digest)
		}
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := newTestHasher(t)

	if _, err := h.Hash("short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestHashSaltsEveryDigest(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same plaintext must differ")
	}
}

func TestNeedsRehash(t *testing.T) {
	low, err := NewHasher(Config{Cost: 4})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	high, err := NewHasher(Config{Cost: 6})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	digest, err := low.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	needs, err := high.NeedsRehash(digest)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if !needs {
		t.Fatal("expected rehash to be needed for lower-cost digest")
	}

	needs, err = low.NeedsRehash(digest)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if needs {
		t.Fatal("did not expect rehash for equal-cost digest")
	}
}

func TestNewHasherRejectsBadCost(t *testing.T) {
	if _, err := NewHasher(Config{Cost: 0}); err == nil {
		t.Fatal("expected error for cost below bcrypt minimum")
	}
	if _, err := NewHasher(Config{Cost: 99}); err == nil {
		t.Fatal("expected error for cost above bcrypt maximum")
	}
}
