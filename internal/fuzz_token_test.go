package internal

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzDecodeSingleUseToken exercises token decoding with arbitrary strings.
// Goal: no panics; invalid inputs should return errors cleanly.
func FuzzDecodeSingleUseToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("!!!not-base64!!!")
	f.Add("aGVsbG8")

	secret, err := NewSingleUseSecret()
	if err == nil {
		if token, err := EncodeSingleUseToken(uuid.NewString(), secret); err == nil {
			f.Add(token)
		}
	}

	f.Fuzz(func(t *testing.T, input string) {
		accountID, secret, err := DecodeSingleUseToken(input)
		if err != nil {
			return
		}

		reEncoded, err := EncodeSingleUseToken(accountID, secret)
		if err != nil {
			t.Fatalf("re-encode of decoded token failed: %v", err)
		}

		id2, secret2, err := DecodeSingleUseToken(reEncoded)
		if err != nil {
			t.Fatalf("roundtrip decode failed: %v", err)
		}
		if id2 != accountID {
			t.Errorf("roundtrip account id mismatch: %q vs %q", id2, accountID)
		}
		if secret2 != secret {
			t.Error("roundtrip secret mismatch")
		}
	})
}

func TestSingleUseTokenRoundtrip(t *testing.T) {
	secret, err := NewSingleUseSecret()
	if err != nil {
		t.Fatalf("NewSingleUseSecret failed: %v", err)
	}

	accountID := uuid.NewString()
	token, err := EncodeSingleUseToken(accountID, secret)
	if err != nil {
		t.Fatalf("EncodeSingleUseToken failed: %v", err)
	}

	gotID, gotSecret, err := DecodeSingleUseToken(token)
	if err != nil {
		t.Fatalf("DecodeSingleUseToken failed: %v", err)
	}
	if gotID != accountID {
		t.Fatalf("account id = %q, want %q", gotID, accountID)
	}
	if gotSecret != secret {
		t.Fatal("secret mismatch after roundtrip")
	}
	if HashSingleUseSecret(gotSecret) != HashSingleUseSecret(secret) {
		t.Fatal("hash mismatch after roundtrip")
	}
}

func TestEncodeRejectsBadAccountID(t *testing.T) {
	secret, err := NewSingleUseSecret()
	if err != nil {
		t.Fatalf("NewSingleUseSecret failed: %v", err)
	}

	if _, err := EncodeSingleUseToken("not-a-uuid", secret); err == nil {
		t.Fatal("expected error for malformed account id")
	}
}
