package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte("INSERT INTO chores VALUES (1, 'Dishes');")

	sealed, err := Encrypt(original, "test-passphrase-123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !IsEncrypted(sealed) {
		t.Error("sealed output should carry the header")
	}
	if bytes.Contains(sealed, original) {
		t.Error("ciphertext contains plaintext")
	}

	again, _ := Encrypt(original, "test-passphrase-123")
	if bytes.Equal(sealed, again) {
		t.Error("two encryptions should use different salt and nonce")
	}

	got, err := Decrypt(sealed, "test-passphrase-123")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("decrypted = %q, want %q", got, original)
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	sealed, err := Encrypt(nil, "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := Decrypt(sealed, "pass")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("decrypted %d bytes, want 0", len(got))
	}
}

func TestDecryptFailures(t *testing.T) {
	sealed, err := Encrypt([]byte("secret family data"), "right")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Decrypt(sealed, "wrong"); err == nil {
		t.Error("wrong passphrase should fail")
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	if _, err := Decrypt(tampered, "right"); err == nil {
		t.Error("tampered ciphertext should fail")
	}

	salted := append([]byte(nil), sealed...)
	salted[len(magic)] ^= 0xff
	if _, err := Decrypt(salted, "right"); err == nil {
		t.Error("modified salt should fail")
	}

	if _, err := Decrypt([]byte("SQLite format 3\x00"), "right"); !errors.Is(err, ErrNotEncrypted) {
		t.Errorf("plain data: err = %v, want ErrNotEncrypted", err)
	}
	if _, err := Decrypt(magic, "right"); err == nil {
		t.Error("truncated header should fail")
	}
	if _, err := Encrypt([]byte("x"), ""); err == nil {
		t.Error("empty passphrase should fail")
	}
}
