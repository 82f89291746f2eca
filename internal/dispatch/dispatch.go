// Package dispatch is the per-tick authority gate and command router run on
// the engine's main/tick thread: auth and tier checks, the deferred-release
// slot, rate shaping of injected input, and routing to the handler table
// registered by internal/handlers.
//
// Handlers register themselves by name at package init, the same
// register-by-name shape the corpus uses for its multi-runner tool dispatch
// (a map built from blank-imported side files), so this package never
// imports internal/handlers — that import runs the other way, avoiding a
// cycle.
package dispatch

import (
	"context"
	"time"

	"github.com/aesthetic-engine/grb/internal/diagnostics"
	"github.com/aesthetic-engine/grb/internal/enginehost"
	"github.com/aesthetic-engine/grb/internal/protocol"
	"github.com/aesthetic-engine/grb/internal/queue"
	"github.com/aesthetic-engine/grb/internal/registry"
	"github.com/aesthetic-engine/grb/internal/session"
	"github.com/aesthetic-engine/grb/internal/waits"
	"golang.org/x/time/rate"
)

// Error is a handler-level failure: an error code plus human message and
// optional structured extras, translated into a protocol.Err envelope by
// the dispatcher.
type Error struct {
	Code    string
	Message string
	Extra   map[string]any
}

// HandlerFunc is the shared signature every command handler implements.
type HandlerFunc func(ctx *Context, args map[string]any) (map[string]any, *Error)

var handlerTable = map[string]HandlerFunc{}

// Register installs a handler under name. Called from internal/handlers'
// package-init functions; panics on a duplicate registration since that can
// only be a programming error in the closed command vocabulary.
func Register(name string, fn HandlerFunc) {
	if _, exists := handlerTable[name]; exists {
		panic("dispatch: duplicate handler registration for " + name)
	}
	handlerTable[name] = fn
}

// Context is the per-invocation handle a handler uses to reach the engine,
// log diagnostics, and schedule deferred input release. It is cheap to
// construct and never retained past one handler call.
type Context struct {
	Engine      enginehost.Engine
	Session     *session.Session
	Diagnostics *diagnostics.Ring
	Now         time.Time

	d *Dispatcher
}

// ScheduleMouseRelease arms the single next-tick mouse-release slot,
// overwriting whatever was previously armed — spec.md §3 describes exactly
// one outstanding slot.
func (c *Context) ScheduleMouseRelease(button string) {
	c.d.pendingMouseRelease = &pendingRelease{button: button}
}

// ScheduleGamepadRelease arms an auto-release fired delay after now, used by
// the gamepad "button" action (~100 ms auto-release per spec.md §4.G). This
// is independent of the single mouse-release slot: several gamepad buttons
// can be held and released on their own schedules.
func (c *Context) ScheduleGamepadRelease(button string, delay time.Duration) {
	c.d.pendingGamepadReleases = append(c.d.pendingGamepadReleases, pendingGamepadRelease{
		button: button,
		at:     c.Now.Add(delay),
	})
}

type pendingRelease struct {
	button string
}

type pendingGamepadRelease struct {
	button string
	at     time.Time
}

// InboundItem is one line the I/O loop decoded off the wire: either a valid
// request or a framing-level parse failure that still carries a best-effort
// id to respond against.
type InboundItem struct {
	Request  *protocol.Request
	ParseErr *protocol.ParseError
}

// Dispatcher holds everything a single tick needs: the engine capability
// seam, the fixed session identity, the diagnostic sink, the wait scheduler,
// and the two request/response queues it drains and fills.
//
// Driven once per frame by whatever calls Tick — the reference host drives
// it off a time.Ticker standing in for a frame callback, the same
// ticker-per-iteration shape the corpus uses for its polling engine loop.
type Dispatcher struct {
	Engine      enginehost.Engine
	Session     *session.Session
	Diagnostics *diagnostics.Ring
	Waits       *waits.Scheduler
	Inbound     *queue.FIFO[InboundItem]
	Outbound    *queue.FIFO[map[string]any]

	limiter *rate.Limiter

	pendingMouseRelease    *pendingRelease
	pendingGamepadReleases []pendingGamepadRelease
}

// New builds a Dispatcher wired to engine and sess, with a fresh diagnostic
// ring, wait scheduler, and pair of queues. The Input-tier rate limiter
// defaults to spec.md's 250/sec sustained, burst 50.
func New(engine enginehost.Engine, sess *session.Session, diag *diagnostics.Ring) *Dispatcher {
	return &Dispatcher{
		Engine:      engine,
		Session:     sess,
		Diagnostics: diag,
		Waits:       waits.New(),
		Inbound:     &queue.FIFO[InboundItem]{},
		Outbound:    &queue.FIFO[map[string]any]{},
		limiter:     rate.NewLimiter(rate.Limit(250), 50),
	}
}

// Tick runs one full frame step: apply the deferred mouse release, fire any
// due gamepad auto-releases, drive the wait scheduler, then drain and
// process everything waiting in Inbound. All responses are pushed onto
// Outbound; nothing is returned.
func (d *Dispatcher) Tick(now time.Time) {
	d.applyDeferredMouseRelease()
	d.applyDueGamepadReleases(now)

	for _, resp := range d.Waits.Tick(d.Engine, now) {
		d.Outbound.Push(resp)
	}

	items := d.Inbound.DrainAll()
	for i, item := range items {
		if !d.handleOne(item, now) {
			// Rate-limited Input command: put it and everything still
			// unprocessed back at the head of Inbound, preserving FIFO
			// order across ticks, and stop processing this tick.
			d.Inbound.PushFront(items[i:])
			return
		}
	}
}

func (d *Dispatcher) applyDeferredMouseRelease() {
	if d.pendingMouseRelease == nil {
		return
	}
	d.Engine.MouseRelease(d.pendingMouseRelease.button)
	d.pendingMouseRelease = nil
}

func (d *Dispatcher) applyDueGamepadReleases(now time.Time) {
	if len(d.pendingGamepadReleases) == 0 {
		return
	}
	remaining := d.pendingGamepadReleases[:0]
	for _, r := range d.pendingGamepadReleases {
		if now.Before(r.at) {
			remaining = append(remaining, r)
			continue
		}
		d.Engine.GamepadButton(r.button, false)
	}
	d.pendingGamepadReleases = remaining
}

// handleOne processes a single inbound item, pushing exactly one response
// onto Outbound (wait_for aside, which enqueues zero and lets (H) resolve it
// later). Returns false if an Input-tier command was rate-limited and must
// be retried on a later tick without being consumed.
func (d *Dispatcher) handleOne(item InboundItem, now time.Time) bool {
	if item.ParseErr != nil {
		d.Outbound.Push(protocol.Err(item.ParseErr.ID, item.ParseErr.Code, item.ParseErr.Message, nil))
		return true
	}

	req := item.Request
	cmd, known := registry.Lookup(req.Cmd)
	if !known {
		d.Outbound.Push(protocol.Err(req.ID, "unknown_cmd", "unknown command: "+req.Cmd, nil))
		return true
	}
	if !cmd.TokenExempt && !d.Session.TokenMatches(req.Token) {
		d.Outbound.Push(protocol.Err(req.ID, "bad_token", "token does not match", nil))
		return true
	}
	if cmd.Tier > d.Session.Tier {
		d.Outbound.Push(protocol.Err(req.ID, "tier_denied", "command requires a higher capability tier", map[string]any{
			"tier_required": int(cmd.Tier),
		}))
		return true
	}
	if req.Cmd == "eval" && !d.Session.DangerEnabled {
		d.Outbound.Push(protocol.Err(req.ID, "danger_disabled", "danger tier commands are disabled for this session", nil))
		return true
	}

	if cmd.Tier == registry.Input && !d.limiter.AllowN(now, 1) {
		return false
	}

	if req.Cmd == "wait_for" {
		d.dispatchWaitFor(req, now)
		return true
	}

	handler, ok := handlerTable[req.Cmd]
	if !ok {
		d.Outbound.Push(protocol.Err(req.ID, "internal_error", "no handler registered for "+req.Cmd, nil))
		return true
	}

	d.Outbound.Push(d.invoke(handler, req, now))
	return true
}

// invoke runs handler, converting its return value (or an unexpected panic)
// into a response envelope. Handlers are trusted not to block or touch
// anything off the main thread, per spec.md §5.
func (d *Dispatcher) invoke(handler HandlerFunc, req *protocol.Request, now time.Time) (resp map[string]any) {
	ctx := &Context{
		Engine:      d.Engine,
		Session:     d.Session,
		Diagnostics: d.Diagnostics,
		Now:         now,
		d:           d,
	}

	defer func() {
		if r := recover(); r != nil {
			resp = protocol.Err(req.ID, "internal_error", "handler panicked", map[string]any{"recovered": toString(r)})
		}
	}()

	data, errv := handler(ctx, req.Args)
	if errv != nil {
		return protocol.Err(req.ID, errv.Code, errv.Message, errv.Extra)
	}
	return protocol.Ok(req.ID, data)
}

// dispatchWaitFor validates and enqueues a wait_for request. A missing node
// or missing required argument produces an immediate error response rather
// than an enqueue, per spec.md §4.H.
func (d *Dispatcher) dispatchWaitFor(req *protocol.Request, now time.Time) {
	nodePath, _ := req.Args["node"].(string)
	property, _ := req.Args["property"].(string)
	expected, hasValue := req.Args["value"]

	if nodePath == "" || property == "" || !hasValue {
		d.Outbound.Push(protocol.Err(req.ID, "bad_args", "wait_for requires node, property, and value", nil))
		return
	}
	node := d.Engine.FindNode(nodePath)
	if node == nil || !node.Valid() {
		d.Outbound.Push(protocol.Err(req.ID, "not_found", "node not found: "+nodePath, nil))
		return
	}

	timeoutMS := 5000.0
	if v, ok := req.Args["timeout_ms"].(float64); ok && v > 0 {
		timeoutMS = v
	}

	d.Waits.Add(req.ID, node, property, enginehost.Stringify(expected), time.Duration(timeoutMS)*time.Millisecond, now)
}

// RunCustomContext is the context.Context handlers pass through to
// Engine.RunCustomCommand/Eval. Handlers never create their own — they have
// no notion of request-scoped cancellation beyond "this tick."
func RunCustomContext() context.Context { return context.Background() }

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unrecoverable handler panic"
}
