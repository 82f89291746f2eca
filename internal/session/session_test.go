package session

import (
	"testing"

	"github.com/aesthetic-engine/grb/internal/registry"
)

func TestGenerateTokenEntropy(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatal(err)
	}
	if len(tok) != 24 {
		t.Fatalf("expected 24-char token, got %d", len(tok))
	}
	tok2, err := GenerateToken()
	if err != nil {
		t.Fatal(err)
	}
	if tok == tok2 {
		t.Fatal("two generated tokens collided, entropy source suspect")
	}
}

func TestTokenMatches(t *testing.T) {
	s := &Session{Token: "abcdef123456", Tier: registry.Control}
	if !s.TokenMatches("abcdef123456") {
		t.Fatal("expected exact match to succeed")
	}
	if s.TokenMatches("abcdef123457") {
		t.Fatal("expected mismatch to fail")
	}
	if s.TokenMatches("") {
		t.Fatal("empty candidate must never match")
	}
	if s.TokenMatches("short") {
		t.Fatal("different-length candidate must never match")
	}
}

func TestFingerprintStableAndDistinct(t *testing.T) {
	s1 := &Session{Token: "tokenA"}
	s2 := &Session{Token: "tokenB"}
	if s1.Fingerprint() != s1.Fingerprint() {
		t.Fatal("fingerprint should be deterministic for the same token")
	}
	if s1.Fingerprint() == s2.Fingerprint() {
		t.Fatal("different tokens should not collide")
	}
	if len(s1.Fingerprint()) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(s1.Fingerprint()))
	}
}
