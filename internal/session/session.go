// Package session holds the bridge's immutable identity: the shared-secret
// token, capability tier ceiling, danger flag, and input routing mode. It is
// built once at activation and never mutated afterward (spec.md §3, §5).
package session

import (
	"crypto/rand"
	"crypto/subtle"

	"github.com/aesthetic-engine/grb/internal/registry"
	"golang.org/x/crypto/blake2b"
)

// InputMode selects how injected input is routed.
type InputMode string

const (
	InputSynthetic InputMode = "synthetic"
	InputOS        InputMode = "os"
)

// tokenAlphabet is the URL-safe alphabet generated tokens are drawn from.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Session is the fixed-for-process-lifetime identity record.
type Session struct {
	Token         string
	Tier          registry.Tier
	DangerEnabled bool
	InputMode     InputMode
	BoundPort     uint16 // filled in once the listener binds
}

// GenerateToken produces 24 random bytes encoded over tokenAlphabet,
// giving >128 bits of entropy as required by spec.md §3.
func GenerateToken() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}

// TokenMatches reports whether candidate matches the session token using a
// constant-time comparison, so response-time differences can't leak the
// secret byte-by-byte to a probing client.
func (s *Session) TokenMatches(candidate string) bool {
	a := []byte(s.Token)
	b := []byte(candidate)
	if len(a) != len(b) {
		// Still compare against a same-length buffer so the cost of a
		// wrong-length guess isn't cheaper than a right-length one.
		b = make([]byte, len(a))
	}
	return subtle.ConstantTimeCompare(a, b) == 1 && len(candidate) == len(s.Token)
}

// Fingerprint returns a short, irreversible blake2b digest of the token
// suitable for log correlation — the raw token must never be logged.
func (s *Session) Fingerprint() string {
	sum := blake2b.Sum256([]byte(s.Token))
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 0; i < 8; i++ {
		out[i*2] = hexDigits[sum[i]>>4]
		out[i*2+1] = hexDigits[sum[i]&0xf]
	}
	return string(out)
}
