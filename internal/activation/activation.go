// Package activation implements the startup/teardown gate: the two-factor
// check that keeps the bridge out of shipped builds, environment-driven
// session config, and the glue that wires internal/ioloop and
// internal/dispatch into a running bridge.
//
// Modeled directly on the corpus's daemon-run shape: open resources, spawn
// the background worker, install a per-tick hook, race a shutdown signal
// against a worker-error channel.
package activation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aesthetic-engine/grb/internal/dispatch"
	"github.com/aesthetic-engine/grb/internal/diagnostics"
	"github.com/aesthetic-engine/grb/internal/enginehost"
	"github.com/aesthetic-engine/grb/internal/grblog"
	"github.com/aesthetic-engine/grb/internal/ioloop"
	"github.com/aesthetic-engine/grb/internal/protocol"
	"github.com/aesthetic-engine/grb/internal/registry"
	"github.com/aesthetic-engine/grb/internal/session"
)

// config is the parsed activation-gate environment, pulled out of Activate
// so its logic is testable independent of the build-tag-gated constant.
type config struct {
	token         string
	tier          registry.Tier
	dangerEnabled bool
	inputMode     session.InputMode
	bindPort      int
	forceWindowed bool
}

// parseConfig reads the environment gate and config per spec.md §4.I steps
// 2-3. ok is false if neither the token nor the legacy flag is present,
// meaning activation must not proceed.
func parseConfig(getenv func(string) string) (cfg config, ok bool, err error) {
	token := getenv("GDRB_TOKEN")
	legacy := getenv("GODOT_DEBUG_SERVER") == "1"
	if token == "" && !legacy {
		return config{}, false, nil
	}
	if token == "" {
		token, err = session.GenerateToken()
		if err != nil {
			return config{}, false, fmt.Errorf("activation: generating token: %w", err)
		}
	}

	cfg = config{
		token:         token,
		tier:          registry.ParseTier(envInt(getenv, "GDRB_TIER", 1)),
		dangerEnabled: getenv("GDRB_ENABLE_DANGER") == "1",
		inputMode:     session.InputSynthetic,
		bindPort:      envInt(getenv, "GDRB_PORT", 0),
		forceWindowed: getenv("GDRB_FORCE_WINDOWED") == "1",
	}
	if getenv("GDRB_INPUT_MODE") == "os" {
		cfg.inputMode = session.InputOS
	}
	return cfg, true, nil
}

func envInt(getenv func(string) string, name string, def int) int {
	v := getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bridge is a fully activated, running instance: session identity, the
// dispatcher, and the background I/O worker. ForceWindowed is carried
// through as informational metadata — FakeEngine has no windowed/fullscreen
// presentation concept for it to drive, so a real host binding reads it off
// here instead.
type Bridge struct {
	Session       *session.Session
	Dispatcher    *dispatch.Dispatcher
	Diagnostics   *diagnostics.Ring
	ForceWindowed bool

	loop   *ioloop.Loop
	cancel context.CancelFunc
	loopErr chan error
}

// readyFileEnv names the env var carrying the optional headless banner
// fallback path (spec.md §9 open question; resolved in DESIGN.md).
const readyFileEnv = "GDRB_READY_FILE"

// Activate runs the full startup sequence of spec.md §4.I. It returns a nil
// Bridge and nil error when either gate fails closed — "return silently; the
// bridge does not start, no threads spawn, no port opens."
func Activate(ctx context.Context, engine enginehost.Engine) (*Bridge, error) {
	if !FeatureGateOpen {
		return nil, nil
	}
	cfg, ok, err := parseConfig(os.Getenv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	engine.DisableLowProcessorMode()
	raiseSchedulingPriority()

	diag := diagnostics.New()
	sess := &session.Session{
		Token:         cfg.token,
		Tier:          cfg.tier,
		DangerEnabled: cfg.dangerEnabled,
		InputMode:     cfg.inputMode,
	}
	d := dispatch.New(engine, sess, diag)

	loop, err := ioloop.Listen(fmt.Sprintf("127.0.0.1:%d", cfg.bindPort))
	if err != nil {
		return nil, err
	}
	sess.BoundPort = loop.Port()

	if err := writeReadinessBanner(sess); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(runCtx, d.Inbound, d.Outbound) }()

	grblog.Log.Info("grb bridge activated", "port", sess.BoundPort, "tier", sess.Tier.String(), "input_mode", string(sess.InputMode))

	return &Bridge{
		Session:       sess,
		Dispatcher:    d,
		Diagnostics:   diag,
		ForceWindowed: cfg.forceWindowed,
		loop:          loop,
		cancel:        cancel,
		loopErr:       errCh,
	}, nil
}

// readinessBanner mirrors the exact wire shape of spec.md §6:
// GDRB_READY:{"proto","port","token","tier_default","input_mode"}.
type readinessBanner struct {
	Proto       string `json:"proto"`
	Port        int    `json:"port"`
	Token       string `json:"token"`
	TierDefault int    `json:"tier_default"`
	InputMode   string `json:"input_mode"`
}

// writeReadinessBanner writes the banner line to stdout — the launcher's
// sole discovery mechanism — and, if GDRB_READY_FILE is set, additionally
// (never instead) truncates that path and appends the same line, per the
// headless fallback documented in SPEC_FULL.md §6.
func writeReadinessBanner(sess *session.Session) error {
	body, err := json.Marshal(readinessBanner{
		Proto:       protocol.ProtoVersion,
		Port:        int(sess.BoundPort),
		Token:       sess.Token,
		TierDefault: int(sess.Tier),
		InputMode:   string(sess.InputMode),
	})
	if err != nil {
		return fmt.Errorf("activation: marshalling readiness banner: %w", err)
	}
	line := "GDRB_READY:" + string(body) + "\n"

	if _, err := fmt.Fprint(os.Stdout, line); err != nil {
		return fmt.Errorf("activation: writing readiness banner to stdout: %w", err)
	}

	if path := os.Getenv(readyFileEnv); path != "" {
		if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
			grblog.Log.Warn("grb failed to write readiness banner fallback file", "path", path, "error", err)
		}
	}
	return nil
}

// Tick runs one frame step of the dispatcher. The host calls this from its
// main/tick thread once per frame (the reference host binary drives it off
// a time.Ticker standing in for a frame callback).
func (b *Bridge) Tick(now time.Time) {
	b.Dispatcher.Tick(now)
}

// Shutdown sets the shutdown flag and joins the I/O worker, per spec.md
// §4.I teardown.
func (b *Bridge) Shutdown() error {
	b.cancel()
	return <-b.loopErr
}
