// Package enginehost defines the small capability seam the bridge core
// dispatches through. The real host links an implementation against its
// actual scene graph (e.g. a GDExtension binding); this repository ships
// FakeEngine, a deterministic in-memory stand-in used by tests and by the
// reference host binary.
//
// Interface + concrete-impl pairing here follows the corpus's pattern for
// testable external capabilities (e.g. a FileSystem interface backed by an
// OSFileSystem), applied to the game engine instead of the OS.
package enginehost

import "context"

// Node is an opaque handle to a scene node. Never nil when valid; Valid()
// reports whether the underlying object has been freed.
type Node interface {
	Valid() bool
	Name() string
	TypeName() string
	Path() string
	Groups() []string
	Children() []Node
}

// Vibration request kinds accepted by Gamepad.Vibrate.
type VibrateStrength struct {
	Weak, Strong float64
	DurationMS   int
}

// InputTarget receives synthetic or OS-routed input events. Implementations
// decide whether to also warp the OS cursor (input_mode == "os").
type InputTarget interface {
	MouseMotion(x, y float64, relative bool, dx, dy float64)
	MousePress(button string)
	MouseRelease(button string)
	WheelPress(direction string, magnitude float64)
	WheelRelease(direction string)
	KeyPress(keycode int, action string)
	KeyRelease(keycode int, action string)
	GesturePinch(centerX, centerY, scale float64)
	GestureSwipe(centerX, centerY, dx, dy float64)
	GamepadButton(button string, pressed bool)
	GamepadAxis(axis string, value float64)
	GamepadVibrate(v VibrateStrength)
}

// Engine is the full capability surface the command handlers dispatch
// against. All methods are called from the main/tick thread only.
type Engine interface {
	InputTarget

	// Root returns the scene root, or nil if no scene is loaded.
	Root() Node
	// FindNode resolves a "/"-separated hierarchical path to a node.
	FindNode(path string) Node
	// FindNodes performs a breadth-first scan matching the given predicates.
	// At least one predicate must be non-empty; callers enforce that.
	FindNodes(name, typeName, group string, limit int) []Node

	// GetProperty reads a property off node by name.
	GetProperty(n Node, property string) (any, bool)
	// SetProperty writes a property on node by name.
	SetProperty(n Node, property string, value any) bool
	// CallMethod invokes a method on node with positional args.
	CallMethod(n Node, method string, args []any) (any, bool, error)
	// InvokeButton activates a button-typed node's registered listeners
	// directly (see design notes: a documented compatibility shim).
	InvokeButton(n Node) bool
	// RunCustomCommand consults a host-registered registry of game-defined
	// callables.
	RunCustomCommand(ctx context.Context, name string, args []any) (any, bool, error)
	// Eval compiles and evaluates expr against the scene root.
	Eval(ctx context.Context, expr string) (string, error)

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) (width, height int, png []byte, err error)

	// RuntimeInfo reports engine telemetry.
	RuntimeInfo() RuntimeInfo
	// AudioState, NetworkState, GRBPerformance report host telemetry with an
	// implementer-documented shape (see SPEC_FULL.md §4.G).
	AudioState() map[string]any
	NetworkState() map[string]any
	GRBPerformance() map[string]any

	// RequestQuit asks the host to terminate on the next safe tick.
	RequestQuit()

	// DisableLowProcessorMode is called once at activation so automation
	// runs at full frame rate (spec.md §4.I step 4).
	DisableLowProcessorMode()
}

// RuntimeInfo mirrors the runtime_info response shape (minus the
// bridge-owned fields: input_mode, error_count, warning_count, which the
// dispatcher fills in from session/diagnostics state).
type RuntimeInfo struct {
	EngineVersion     string
	FPS               float64
	ProcessFrames      int64
	TimeScale         float64
	CurrentScene      string
	CurrentSceneName  string
	NodeCount         int
}
