package enginehost

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"time"
)

// FakeNode is an in-memory scene node used by FakeEngine and tests.
type FakeNode struct {
	mu       sync.RWMutex
	name     string
	typeName string
	parent   *FakeNode
	children []*FakeNode
	groups   []string
	props    map[string]any
	valid    bool
	listeners []func()
}

func newFakeNode(name, typeName string) *FakeNode {
	return &FakeNode{
		name:     name,
		typeName: typeName,
		props:    map[string]any{},
		valid:    true,
	}
}

func (n *FakeNode) Valid() bool { n.mu.RLock(); defer n.mu.RUnlock(); return n.valid }
func (n *FakeNode) Name() string { return n.name }
func (n *FakeNode) TypeName() string { return n.typeName }

func (n *FakeNode) Groups() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, len(n.groups))
	copy(out, n.groups)
	return out
}

func (n *FakeNode) Path() string {
	if n.parent == nil {
		return "/" + n.name
	}
	return n.parent.Path() + "/" + n.name
}

func (n *FakeNode) Children() []Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// AddChild attaches a new child node and returns it.
func (n *FakeNode) AddChild(name, typeName string) *FakeNode {
	c := newFakeNode(name, typeName)
	c.parent = n
	n.mu.Lock()
	n.children = append(n.children, c)
	n.mu.Unlock()
	return c
}

// SetGroups assigns group membership.
func (n *FakeNode) SetGroups(groups ...string) *FakeNode {
	n.mu.Lock()
	n.groups = groups
	n.mu.Unlock()
	return n
}

// SetProp sets a property value directly (test/setup helper).
func (n *FakeNode) SetProp(key string, value any) *FakeNode {
	n.mu.Lock()
	n.props[key] = value
	n.mu.Unlock()
	return n
}

// Invalidate marks the node as freed; FindNode/FindNodes will no longer see it.
func (n *FakeNode) Invalidate() {
	n.mu.Lock()
	n.valid = false
	n.mu.Unlock()
}

// OnPress registers a listener invoked directly by InvokeButton — the
// documented press_button compatibility shim from spec.md §9.
func (n *FakeNode) OnPress(fn func()) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

// FakeEngine is a deterministic in-memory Engine used for tests and the
// reference host.
type FakeEngine struct {
	mu      sync.Mutex
	root    *FakeNode
	frames  int64
	fps     float64
	scale   float64
	version string
	scene   string
	sceneName string

	lowProcessor bool
	quitRequested bool

	lastInput []string // log of injected input ops, for assertions in tests
}

// NewFakeEngine builds a small default scene tree that handler tests and the
// reference host exercise against.
func NewFakeEngine() *FakeEngine {
	root := newFakeNode("Main", "Node2D")
	foo := root.AddChild("Foo", "Node2D")
	foo.SetProp("state", "idle")

	gestureTest := root.AddChild("GestureTest", "Node2D")
	gestureTest.SetProp("zoom", 1.0)

	button := root.AddChild("StartButton", "Button")
	button.SetGroups("ui")
	button.SetProp("pressed_count", 0)
	button.OnPress(func() {
		button.mu.Lock()
		n, _ := button.props["pressed_count"].(int)
		button.props["pressed_count"] = n + 1
		button.mu.Unlock()
	})

	return &FakeEngine{
		root:      root,
		fps:       60,
		scale:     1.0,
		version:   "grb-fake-engine/1.0",
		scene:     "res://main.tscn",
		sceneName: "Main",
		lowProcessor: true,
	}
}

func (e *FakeEngine) Root() Node { return e.root }

func (e *FakeEngine) FindNode(path string) Node {
	path = strings.Trim(path, "/")
	if path == "" {
		return e.root
	}
	parts := strings.Split(path, "/")
	cur := e.root
	// Allow the path to optionally start with the root's own name.
	if parts[0] == cur.name {
		parts = parts[1:]
	}
	for _, part := range parts {
		found := findChild(cur, part)
		if found == nil {
			return nil
		}
		cur = found
	}
	if !cur.Valid() {
		return nil
	}
	return cur
}

func findChild(n *FakeNode, name string) *FakeNode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (e *FakeEngine) FindNodes(name, typeName, group string, limit int) []Node {
	var out []Node
	var walk func(n *FakeNode)
	nameLower := strings.ToLower(name)
	walk = func(n *FakeNode) {
		if len(out) >= limit {
			return
		}
		if n.Valid() && matches(n, nameLower, typeName, group) {
			out = append(out, n)
		}
		for _, c := range n.Children() {
			walk(c.(*FakeNode))
			if len(out) >= limit {
				return
			}
		}
	}
	walk(e.root)
	return out
}

func matches(n *FakeNode, nameLower, typeName, group string) bool {
	if nameLower != "" && nameLower != "*" {
		if !strings.Contains(strings.ToLower(n.name), nameLower) {
			return false
		}
	}
	if typeName != "" && n.TypeName() != typeName {
		return false
	}
	if group != "" {
		found := false
		for _, g := range n.Groups() {
			if g == group {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (e *FakeEngine) GetProperty(n Node, property string) (any, bool) {
	fn, ok := n.(*FakeNode)
	if !ok || !fn.Valid() {
		return nil, false
	}
	fn.mu.RLock()
	defer fn.mu.RUnlock()
	v, ok := fn.props[property]
	return v, ok
}

func (e *FakeEngine) SetProperty(n Node, property string, value any) bool {
	fn, ok := n.(*FakeNode)
	if !ok || !fn.Valid() {
		return false
	}
	fn.mu.Lock()
	fn.props[property] = value
	fn.mu.Unlock()
	return true
}

func (e *FakeEngine) CallMethod(n Node, method string, args []any) (any, bool, error) {
	fn, ok := n.(*FakeNode)
	if !ok || !fn.Valid() {
		return nil, false, nil
	}
	switch method {
	case "get_name":
		return fn.Name(), true, nil
	case "get_path":
		return fn.Path(), true, nil
	case "add_child_count":
		return len(fn.Children()), true, nil
	default:
		return nil, false, nil
	}
}

func (e *FakeEngine) InvokeButton(n Node) bool {
	fn, ok := n.(*FakeNode)
	if !ok || !fn.Valid() {
		return false
	}
	fn.mu.RLock()
	listeners := append([]func(){}, fn.listeners...)
	fn.mu.RUnlock()
	for _, l := range listeners {
		l()
	}
	return true
}

func (e *FakeEngine) RunCustomCommand(ctx context.Context, name string, args []any) (any, bool, error) {
	switch name {
	case "echo":
		if len(args) > 0 {
			return args[0], true, nil
		}
		return nil, true, nil
	default:
		return nil, false, nil
	}
}

func (e *FakeEngine) Eval(ctx context.Context, expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("empty expression")
	}
	// The fake engine only supports trivial arithmetic of the form "a+b" so
	// handler tests can exercise both success and failure paths without a
	// real scripting runtime.
	if idx := strings.IndexByte(expr, '+'); idx > 0 {
		var a, b float64
		if _, err := fmt.Sscanf(expr, "%f+%f", &a, &b); err == nil {
			return fmt.Sprintf("%v", a+b), nil
		}
	}
	return "", fmt.Errorf("cannot evaluate expression: %q", expr)
}

func (e *FakeEngine) Screenshot(ctx context.Context) (int, int, []byte, error) {
	const w, h = 64, 36
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 7), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, 0, nil, err
	}
	return w, h, buf.Bytes(), nil
}

func (e *FakeEngine) RuntimeInfo() RuntimeInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return RuntimeInfo{
		EngineVersion:    e.version,
		FPS:              e.fps,
		ProcessFrames:    e.frames,
		TimeScale:        e.scale,
		CurrentScene:     e.scene,
		CurrentSceneName: e.sceneName,
		NodeCount:        countNodes(e.root),
	}
}

func countNodes(n *FakeNode) int {
	count := 1
	for _, c := range n.Children() {
		count += countNodes(c.(*FakeNode))
	}
	return count
}

func (e *FakeEngine) AudioState() map[string]any {
	return map[string]any{
		"bus_count":        2,
		"master_volume_db": 0.0,
		"buses": []any{
			map[string]any{"name": "Master", "volume_db": 0.0, "muted": false},
			map[string]any{"name": "SFX", "volume_db": -6.0, "muted": false},
		},
	}
}

func (e *FakeEngine) NetworkState() map[string]any {
	return map[string]any{
		"mode":       "offline",
		"peer_count": 0,
		"rtt_ms":     0.0,
	}
}

func (e *FakeEngine) GRBPerformance() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]any{
		"fps":                 e.fps,
		"frame_time_ms":       1000.0 / e.fps,
		"physics_time_ms":     2.5,
		"draw_calls":          42,
		"object_count":        countNodes(e.root),
		"static_memory_bytes": 16 * 1024 * 1024,
	}
}

func (e *FakeEngine) RequestQuit() {
	e.mu.Lock()
	e.quitRequested = true
	e.mu.Unlock()
}

// QuitRequested reports whether RequestQuit has been called (test helper).
func (e *FakeEngine) QuitRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quitRequested
}

func (e *FakeEngine) DisableLowProcessorMode() {
	e.mu.Lock()
	e.lowProcessor = false
	e.mu.Unlock()
}

// Tick advances the fake engine's frame counter; the reference host calls
// this once per tick alongside dispatch.Dispatcher.Tick.
func (e *FakeEngine) Tick() {
	e.mu.Lock()
	e.frames++
	e.mu.Unlock()
}

func (e *FakeEngine) logInput(op string) {
	e.mu.Lock()
	e.lastInput = append(e.lastInput, op)
	if len(e.lastInput) > 64 {
		e.lastInput = e.lastInput[len(e.lastInput)-64:]
	}
	e.mu.Unlock()
}

// LastInputOps returns a snapshot of recently injected input operations, for
// assertions in tests (input isolation property).
func (e *FakeEngine) LastInputOps() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.lastInput))
	copy(out, e.lastInput)
	return out
}

func (e *FakeEngine) MouseMotion(x, y float64, relative bool, dx, dy float64) {
	e.logInput(fmt.Sprintf("mouse_motion(%v,%v,relative=%v)", x, y, relative))
}
func (e *FakeEngine) MousePress(button string)   { e.logInput("mouse_press(" + button + ")") }
func (e *FakeEngine) MouseRelease(button string)  { e.logInput("mouse_release(" + button + ")") }
func (e *FakeEngine) WheelPress(direction string, magnitude float64) {
	e.logInput(fmt.Sprintf("wheel_press(%s,%v)", direction, magnitude))
}
func (e *FakeEngine) WheelRelease(direction string) { e.logInput("wheel_release(" + direction + ")") }
func (e *FakeEngine) KeyPress(keycode int, action string) {
	e.logInput(fmt.Sprintf("key_press(%d,%s)", keycode, action))
}
func (e *FakeEngine) KeyRelease(keycode int, action string) {
	e.logInput(fmt.Sprintf("key_release(%d,%s)", keycode, action))
}
func (e *FakeEngine) GesturePinch(centerX, centerY, scale float64) {
	e.logInput(fmt.Sprintf("pinch(%v,%v,%v)", centerX, centerY, scale))
	// Drive the demo GestureTest.zoom property so scenario 5 in spec.md §8
	// ("input → state change") is directly observable against this fake.
	if node := e.FindNode("GestureTest"); node != nil {
		if fn, ok := node.(*FakeNode); ok {
			fn.mu.Lock()
			z, _ := fn.props["zoom"].(float64)
			fn.props["zoom"] = z * scale
			fn.mu.Unlock()
		}
	}
}
func (e *FakeEngine) GestureSwipe(centerX, centerY, dx, dy float64) {
	e.logInput(fmt.Sprintf("swipe(%v,%v,%v,%v)", centerX, centerY, dx, dy))
}
func (e *FakeEngine) GamepadButton(button string, pressed bool) {
	e.logInput(fmt.Sprintf("gamepad_button(%s,%v)", button, pressed))
}
func (e *FakeEngine) GamepadAxis(axis string, value float64) {
	e.logInput(fmt.Sprintf("gamepad_axis(%s,%v)", axis, value))
}
func (e *FakeEngine) GamepadVibrate(v VibrateStrength) {
	e.logInput(fmt.Sprintf("gamepad_vibrate(%+v)", v))
}

// SortedChildNames is a small test/demo helper for deterministic tree dumps.
func SortedChildNames(n Node) []string {
	children := n.Children()
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name()
	}
	sort.Strings(names)
	return names
}

var _ Engine = (*FakeEngine)(nil)

// now is a seam so tests can avoid relying on wall-clock time; handlers pass
// real time.Now() in production.
var now = time.Now
