package crypto

import (
	"errors"
	"testing"
)

func TestHashSecretRoundTrip(t *testing.T) {
	hash, err := HashSecret("hunter2")
	if err != nil {
		t.Fatalf("HashSecret: unexpected error: %v", err)
	}

	ok, err := VerifySecret(hash, "hunter2")
	if err != nil || !ok {
		t.Fatalf("VerifySecret: expected match, ok=%v err=%v", ok, err)
	}
	ok, err = VerifySecret(hash, "hunter3")
	if err != nil || ok {
		t.Fatalf("VerifySecret: expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestHashSecretSalted(t *testing.T) {
	a, _ := HashSecret("same")
	b, _ := HashSecret("same")
	if a == b {
		t.Errorf("HashSecret: expected distinct salts, got identical hashes")
	}
}

func TestVerifySecretInvalid(t *testing.T) {
	for name, hash := range map[string]string{
		"empty":      "",
		"wrong algo": "bcrypt$abc$def",
		"bad salt":   "argon2id$!!!$AAAA",
		"short key":  "argon2id$AAAAAAAAAAAAAAAAAAAAAA$AAAA",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := VerifySecret(hash, "x"); !errors.Is(err, ErrInvalidHash) {
				t.Errorf("VerifySecret: want ErrInvalidHash, got %v", err)
			}
		})
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: unexpected error: %v", err)
	}
	if len(tok) != 64 {
		t.Errorf("GenerateToken: want 64 hex chars, got %d", len(tok))
	}
}
