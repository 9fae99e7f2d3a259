package secretbox

import (
	"encoding/base64"
	"os"
	"strings"
	"testing"
)

func setTestKey(t *testing.T, seed byte) {
	t.Helper()
	UnsafeResetForTests()

	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	t.Setenv("SECRETBOX_MASTER_KEY", base64.StdEncoding.EncodeToString(raw))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	setTestKey(t, 1)

	msg := "api-key-super-secreta ✓"
	ct, err := Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !strings.HasPrefix(ct, "enc:") {
		t.Fatalf("ciphertext sin prefijo enc:: %q", ct)
	}
	pt, err := Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pt != msg {
		t.Fatalf("plaintext mismatch: got %q want %q", pt, msg)
	}
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	setTestKey(t, 100)

	ct, err := Encrypt("top secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	parts := strings.Split(ct, "|")
	if len(parts) != 2 {
		t.Fatalf("unexpected ct format: %q", ct)
	}
	bs, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(bs) == 0 {
		t.Fatalf("decode ct: %v", err)
	}
	bs[0] ^= 0x01
	corrupted := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)

	if _, err := Decrypt(corrupted); err == nil {
		t.Fatal("expected auth error, got nil")
	}
}

func TestDecryptIfNeeded_PassthroughWithoutPrefix(t *testing.T) {
	setTestKey(t, 7)

	plain, err := DecryptIfNeeded("valor-plano")
	if err != nil || plain != "valor-plano" {
		t.Fatalf("passthrough: got %q err=%v", plain, err)
	}

	ct, _ := Encrypt("cifrado")
	plain, err = DecryptIfNeeded(ct)
	if err != nil || plain != "cifrado" {
		t.Fatalf("decrypt: got %q err=%v", plain, err)
	}
}

func TestEncrypt_MissingKey(t *testing.T) {
	UnsafeResetForTests()
	os.Unsetenv("SECRETBOX_MASTER_KEY")

	if _, err := Encrypt("x"); err == nil {
		t.Fatal("expected error without master key")
	}
}
