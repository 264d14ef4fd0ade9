package password

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(FastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("Admin123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if err := hasher.Verify("Admin123!", hash); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher, err := NewArgon2(FastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	hash, err := hasher.Hash("Agent123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if err := hasher.Verify("Agent124!", hash); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	hasher, err := NewArgon2(FastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, err := hasher.Hash("short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestSaltMakesHashesUnique(t *testing.T) {
	hasher, err := NewArgon2(FastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	a, _ := hasher.Hash("Client123!")
	b, _ := hasher.Hash("Client123!")
	if a == b {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	hasher, err := NewArgon2(FastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	cases := []string{
		"",
		"plain",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$aGFzaA",
	}
	for _, c := range cases {
		if err := hasher.Verify("whatever1", c); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("expected ErrInvalidHash for %q, got %v", c, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewArgon2(FastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	strong, err := NewArgon2(Config{Memory: 16 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	hash, err := weak.Hash("Admin123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if need, err := weak.NeedsRehash(hash); err != nil || need {
		t.Fatalf("same params must not need rehash: %v %v", need, err)
	}
	if need, err := strong.NeedsRehash(hash); err != nil || !need {
		t.Fatalf("stronger params must need rehash: %v %v", need, err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := FastConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
