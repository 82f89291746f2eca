package dispatch

import (
	"testing"
	"time"

	"github.com/aesthetic-engine/grb/internal/diagnostics"
	"github.com/aesthetic-engine/grb/internal/enginehost"
	"github.com/aesthetic-engine/grb/internal/protocol"
	"github.com/aesthetic-engine/grb/internal/registry"
	"github.com/aesthetic-engine/grb/internal/session"
)

func newTestDispatcher(tier registry.Tier, danger bool) *Dispatcher {
	eng := enginehost.NewFakeEngine()
	sess := &session.Session{Token: "tok", Tier: tier, DangerEnabled: danger}
	return New(eng, sess, diagnostics.New())
}

func drainOne(t *testing.T, d *Dispatcher) map[string]any {
	t.Helper()
	if d.Outbound.Len() != 1 {
		t.Fatalf("expected exactly one outbound response, got %d", d.Outbound.Len())
	}
	return d.Outbound.DrainAll()[0]
}

func TestUnknownCommand(t *testing.T) {
	d := newTestDispatcher(registry.Observe, false)
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "1", Cmd: "not_a_real_cmd", Token: "tok"}})
	d.Tick(time.Now())
	resp := drainOne(t, d)
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "unknown_cmd" {
		t.Fatalf("expected unknown_cmd, got %+v", resp)
	}
}

func TestBadToken(t *testing.T) {
	d := newTestDispatcher(registry.Control, false)
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "1", Cmd: "set_property", Token: "wrong", Args: map[string]any{}}})
	d.Tick(time.Now())
	resp := drainOne(t, d)
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "bad_token" {
		t.Fatalf("expected bad_token, got %+v", resp)
	}
}

func TestTokenExemptCommandsSkipAuth(t *testing.T) {
	d := newTestDispatcher(registry.Observe, false)
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "1", Cmd: "ping", Token: "wrong"}})
	d.Tick(time.Now())
	resp := drainOne(t, d)
	if resp["ok"] != true {
		t.Fatalf("expected ping to bypass token check, got %+v", resp)
	}
}

func TestTierDenied(t *testing.T) {
	d := newTestDispatcher(registry.Observe, false)
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "1", Cmd: "set_property", Token: "tok", Args: map[string]any{}}})
	d.Tick(time.Now())
	resp := drainOne(t, d)
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "tier_denied" {
		t.Fatalf("expected tier_denied, got %+v", resp)
	}
	if errObj["tier_required"] != int(registry.Control) {
		t.Fatalf("expected tier_required=%d, got %+v", registry.Control, errObj)
	}
}

func TestDangerDisabled(t *testing.T) {
	d := newTestDispatcher(registry.Danger, false)
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "1", Cmd: "eval", Token: "tok", Args: map[string]any{"expr": "1+1"}}})
	d.Tick(time.Now())
	resp := drainOne(t, d)
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "danger_disabled" {
		t.Fatalf("expected danger_disabled, got %+v", resp)
	}
}

func TestParseErrorPassthrough(t *testing.T) {
	d := newTestDispatcher(registry.Observe, false)
	d.Inbound.Push(InboundItem{ParseErr: &protocol.ParseError{ID: "xyz", Code: "bad_json", Message: "boom"}})
	d.Tick(time.Now())
	resp := drainOne(t, d)
	if resp["id"] != "xyz" {
		t.Fatalf("expected carried id, got %+v", resp)
	}
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "bad_json" {
		t.Fatalf("expected bad_json, got %+v", resp)
	}
}

func TestNoHandlerRegisteredIsInternalError(t *testing.T) {
	// This test runs in isolation from internal/handlers (which is never
	// imported here to avoid the import cycle its Register calls would
	// create), so every known command is expected to be unregistered and
	// must degrade to internal_error rather than panicking the dispatcher.
	d := newTestDispatcher(registry.Observe, false)
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "1", Cmd: "ping", Token: "tok"}})
	d.Tick(time.Now())
	resp := drainOne(t, d)
	if resp["ok"] == true {
		t.Skip("a handler package was imported by another test binary and registered ping")
	}
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "internal_error" {
		t.Fatalf("expected internal_error, got %+v", resp)
	}
}

func TestWaitForBadArgsIsImmediate(t *testing.T) {
	d := newTestDispatcher(registry.Observe, false)
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "w", Cmd: "wait_for", Token: "tok", Args: map[string]any{"node": "Foo"}}})
	d.Tick(time.Now())
	resp := drainOne(t, d)
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "bad_args" {
		t.Fatalf("expected bad_args, got %+v", resp)
	}
	if d.Waits.Len() != 0 {
		t.Fatalf("expected no wait enqueued, got %d", d.Waits.Len())
	}
}

func TestWaitForNotFoundIsImmediate(t *testing.T) {
	d := newTestDispatcher(registry.Observe, false)
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "w", Cmd: "wait_for", Token: "tok", Args: map[string]any{
		"node": "DoesNotExist", "property": "state", "value": "done",
	}}})
	d.Tick(time.Now())
	resp := drainOne(t, d)
	errObj := resp["error"].(map[string]any)
	if errObj["code"] != "not_found" {
		t.Fatalf("expected not_found, got %+v", resp)
	}
}

func TestWaitForValidEnqueuesAsync(t *testing.T) {
	d := newTestDispatcher(registry.Observe, false)
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "w", Cmd: "wait_for", Token: "tok", Args: map[string]any{
		"node": "Foo", "property": "state", "value": "done", "timeout_ms": float64(50),
	}}})
	d.Tick(time.Now())
	if d.Outbound.Len() != 0 {
		t.Fatalf("expected no immediate response for a valid wait_for, got %d", d.Outbound.Len())
	}
	if d.Waits.Len() != 1 {
		t.Fatalf("expected one pending wait, got %d", d.Waits.Len())
	}
}

func TestInputRateLimitingPreservesOrder(t *testing.T) {
	d := newTestDispatcher(registry.Input, false)
	d.limiter.AllowN(time.Now(), 50) // exhaust the burst

	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "a", Cmd: "click", Token: "tok", Args: map[string]any{
		"x": float64(1), "y": float64(1),
	}}})
	d.Inbound.Push(InboundItem{Request: &protocol.Request{ID: "b", Cmd: "click", Token: "tok", Args: map[string]any{
		"x": float64(2), "y": float64(2),
	}}})

	d.Tick(time.Now())
	if d.Outbound.Len() != 0 {
		t.Fatalf("expected both click requests to be rate-limited, got %d responses", d.Outbound.Len())
	}
	if d.Inbound.Len() != 2 {
		t.Fatalf("expected both requests requeued in order, got %d", d.Inbound.Len())
	}
}

func TestDeferredMouseReleaseAppliedNextTick(t *testing.T) {
	d := newTestDispatcher(registry.Observe, false)
	eng := d.Engine.(*enginehost.FakeEngine)

	ctx := &Context{Engine: d.Engine, d: d}
	ctx.ScheduleMouseRelease("left")

	d.Tick(time.Now())

	found := false
	for _, op := range eng.LastInputOps() {
		if op == "mouse_release(left)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected deferred mouse release to have fired, ops=%v", eng.LastInputOps())
	}
}

func TestGamepadAutoReleaseFiresAfterDelay(t *testing.T) {
	d := newTestDispatcher(registry.Observe, false)
	eng := d.Engine.(*enginehost.FakeEngine)
	start := time.Now()

	ctx := &Context{Engine: d.Engine, Now: start, d: d}
	ctx.ScheduleGamepadRelease("a", 100*time.Millisecond)

	d.Tick(start.Add(50 * time.Millisecond))
	for _, op := range eng.LastInputOps() {
		if op == "gamepad_button(a,false)" {
			t.Fatalf("release fired too early")
		}
	}

	d.Tick(start.Add(150 * time.Millisecond))
	found := false
	for _, op := range eng.LastInputOps() {
		if op == "gamepad_button(a,false)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected gamepad auto-release to have fired, ops=%v", eng.LastInputOps())
	}
}
