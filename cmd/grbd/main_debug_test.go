//go:build grb || debug || editor

package main

import (
	"context"
	"testing"
	"time"

	"github.com/aesthetic-engine/grb/internal/enginehost"
)

// Exercises the activated tick loop; only compiled with one of the
// activation build tags, since that's what opens internal/activation's
// feature gate.
func TestRunTicksEngineUntilCancelled(t *testing.T) {
	t.Setenv("GDRB_TOKEN", "test-token")
	t.Setenv("GDRB_PORT", "0")

	ctx, cancel := context.WithCancel(context.Background())
	engine := enginehost.NewFakeEngine()

	done := make(chan error, 1)
	go func() { done <- run(ctx, engine, 200) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after context cancellation")
	}

	if engine.RuntimeInfo().ProcessFrames == 0 {
		t.Fatal("expected at least one engine tick before cancellation")
	}
}
