package upload

import (
	"strings"
	"testing"
)

func TestStorageKeyUnique(t *testing.T) {
	a := StorageKey()
	b := StorageKey()
	if a == b {
		t.Fatalf("consecutive keys collide: %q", a)
	}
	if !strings.HasPrefix(a, "avatars/") {
		t.Errorf("key %q not under avatars/", a)
	}
}

func TestNewS3UploaderValidation(t *testing.T) {
	if _, err := NewS3Uploader(t.Context(), Config{Region: "eu-west-1"}); err == nil {
		t.Error("missing bucket accepted")
	}
	if _, err := NewS3Uploader(t.Context(), Config{Bucket: "avatars"}); err == nil {
		t.Error("missing region accepted")
	}
}
