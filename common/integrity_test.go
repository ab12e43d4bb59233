package common

import "testing"

func TestHashBytes(t *testing.T) {
	// Known sha256 of "hello"
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := HashBytes([]byte("hello")); got != want {
		t.Errorf("HashBytes: got %s, want %s", got, want)
	}
}

func TestVerifyHash(t *testing.T) {
	data := []byte("payload under test")
	digest := HashBytes(data)

	if !VerifyHash(data, digest) {
		t.Error("expected matching digest to verify")
	}
	if VerifyHash([]byte("tampered"), digest) {
		t.Error("expected tampered payload to fail")
	}
	if VerifyHash(data, "") {
		t.Error("empty expected digest must never match")
	}
	if VerifyHash(data, digest[:32]) {
		t.Error("truncated digest must never match")
	}
}
