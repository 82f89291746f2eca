package handlers

import (
	"math"
	"time"

	"github.com/aesthetic-engine/grb/internal/dispatch"
	"github.com/aesthetic-engine/grb/internal/enginehost"
)

func init() {
	dispatch.Register("click", handleClick)
	dispatch.Register("key", handleKey)
	dispatch.Register("press_button", handlePressButton)
	dispatch.Register("drag", handleDrag)
	dispatch.Register("scroll", handleScroll)
	dispatch.Register("gesture", handleGesture)
	dispatch.Register("gamepad", handleGamepad)
}

func handleClick(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	x, xok := requiredFloat(args, "x")
	y, yok := requiredFloat(args, "y")
	if !xok || !yok {
		return nil, badArgs("click requires numeric x and y")
	}
	ctx.Engine.MouseMotion(x, y, false, 0, 0)
	ctx.Engine.MousePress("left")
	ctx.ScheduleMouseRelease("left")
	return map[string]any{}, nil
}

func handleDrag(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	fromX, fromY, fromOK := requiredPoint(args, "from")
	toX, toY, toOK := requiredPoint(args, "to")
	if !fromOK || !toOK {
		return nil, badArgs("drag requires two-element numeric arrays from and to")
	}
	dx, dy := toX-fromX, toY-fromY

	ctx.Engine.MouseMotion(fromX, fromY, false, 0, 0)
	ctx.Engine.MousePress("left")
	ctx.Engine.MouseMotion(toX, toY, true, dx, dy)
	ctx.ScheduleMouseRelease("left")
	return map[string]any{}, nil
}

func handleScroll(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	x, xok := requiredFloat(args, "x")
	y, yok := requiredFloat(args, "y")
	if !xok || !yok {
		return nil, badArgs("scroll requires numeric x and y")
	}
	delta := optionalFloat(args, "delta", -3)

	direction := "up"
	if delta < 0 {
		direction = "down"
	}
	magnitude := math.Abs(delta)

	ctx.Engine.MouseMotion(x, y, false, 0, 0)
	ctx.Engine.WheelPress(direction, magnitude)
	ctx.Engine.WheelRelease(direction)
	return map[string]any{}, nil
}

func handleKey(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	if action, ok := requiredString(args, "action"); ok {
		ctx.Engine.KeyPress(0, action)
		ctx.Engine.KeyRelease(0, action)
		return map[string]any{}, nil
	}
	if keycode, ok := requiredFloat(args, "keycode"); ok && keycode >= 0 {
		ctx.Engine.KeyPress(int(keycode), "")
		ctx.Engine.KeyRelease(int(keycode), "")
		return map[string]any{}, nil
	}
	return nil, badArgs("key requires a non-empty action or a non-negative keycode")
}

// handlePressButton locates a button-typed node by name via a recursive
// scan and activates its listeners directly. spec.md §9 documents this
// direct-listener call as a deliberate compatibility shim, not a general
// dispatch policy: the reimplementation's source occasionally bypasses the
// engine's own press-signal path because it is unreliable under certain
// viewport configurations, so FakeNode exposes OnPress/InvokeButton instead
// of a generic signal bus.
func handlePressButton(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	name, ok := requiredString(args, "name")
	if !ok {
		return nil, badArgs("press_button requires name")
	}

	matches := ctx.Engine.FindNodes(name, "", "", 64)
	var target enginehost.Node
	for _, n := range matches {
		if n.Name() == name {
			target = n
			break
		}
	}
	if target == nil {
		return nil, notFound("button node not found: %s", name)
	}
	if !ctx.Engine.InvokeButton(target) {
		return nil, notFound("node is not a button or has no listeners: %s", name)
	}
	return map[string]any{}, nil
}

func handleGesture(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	kind, ok := requiredString(args, "type")
	if !ok {
		return nil, badArgs("gesture requires type")
	}
	params, _ := args["params"].(map[string]any)
	if params == nil {
		params = args
	}

	cx, cy, centerOK := requiredPoint(params, "center")
	if !centerOK {
		return nil, badArgs("gesture requires a two-element numeric center")
	}

	switch kind {
	case "pinch":
		scale, ok := requiredFloat(params, "scale")
		if !ok {
			return nil, badArgs("pinch gesture requires scale")
		}
		ctx.Engine.GesturePinch(cx, cy, scale)
	case "swipe":
		dx, dy, ok := requiredPoint(params, "delta")
		if !ok {
			return nil, badArgs("swipe gesture requires a two-element numeric delta")
		}
		ctx.Engine.GestureSwipe(cx, cy, dx, dy)
	default:
		return nil, badArgs("unknown gesture type: %s", kind)
	}
	return map[string]any{}, nil
}

const gamepadAutoReleaseDelay = 100 * time.Millisecond

func handleGamepad(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	action, ok := requiredString(args, "action")
	if !ok {
		return nil, badArgs("gamepad requires action")
	}

	switch action {
	case "button":
		button, ok := requiredString(args, "button")
		if !ok {
			return nil, badArgs("gamepad button action requires button")
		}
		ctx.Engine.GamepadButton(button, true)
		ctx.ScheduleGamepadRelease(button, gamepadAutoReleaseDelay)
	case "axis":
		axis, ok := requiredString(args, "axis")
		value, valOK := requiredFloat(args, "value")
		if !ok || !valOK {
			return nil, badArgs("gamepad axis action requires axis and value")
		}
		ctx.Engine.GamepadAxis(axis, value)
	case "vibrate":
		ctx.Engine.GamepadVibrate(enginehost.VibrateStrength{
			Weak:       optionalFloat(args, "weak", 0),
			Strong:     optionalFloat(args, "strong", 0),
			DurationMS: optionalInt(args, "duration_ms", 200),
		})
	default:
		return nil, badArgs("unknown gamepad action: %s", action)
	}
	return map[string]any{}, nil
}
