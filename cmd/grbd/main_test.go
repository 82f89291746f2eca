package main

import (
	"context"
	"testing"
	"time"

	"github.com/aesthetic-engine/grb/internal/enginehost"
)

// With no grb/debug/editor build tag set, internal/activation.FeatureGateOpen
// is compiled false, so Activate always returns a nil bridge regardless of
// env vars — run must still return cleanly once ctx is cancelled.
func TestRunGateClosedReturnsWhenContextCancelled(t *testing.T) {
	t.Setenv("GDRB_TOKEN", "test-token")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := run(ctx, enginehost.NewFakeEngine(), 60); err != nil {
		t.Fatalf("expected clean return when the gate is closed, got %v", err)
	}
}
