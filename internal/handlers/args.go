// Package handlers implements the command bodies behind every entry in the
// closed registry, grouped by tier into observe.go/input.go/control.go/
// danger.go. Each file registers its commands into internal/dispatch's
// lookup table from an init(), the register-by-name shape the corpus uses
// for its multi-runner tool dispatch, adapted here to the fixed command
// vocabulary instead of an open tool set.
package handlers

import (
	"fmt"

	"github.com/aesthetic-engine/grb/internal/dispatch"
	"github.com/aesthetic-engine/grb/internal/enginehost"
)

func badArgs(format string, a ...any) *dispatch.Error {
	return &dispatch.Error{Code: "bad_args", Message: fmt.Sprintf(format, a...)}
}

func notFound(format string, a ...any) *dispatch.Error {
	return &dispatch.Error{Code: "not_found", Message: fmt.Sprintf(format, a...)}
}

func internalError(format string, a ...any) *dispatch.Error {
	return &dispatch.Error{Code: "internal_error", Message: fmt.Sprintf(format, a...)}
}

func requiredString(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok && v != ""
}

func optionalString(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func requiredFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func optionalFloat(args map[string]any, key string, def float64) float64 {
	if v, ok := requiredFloat(args, key); ok {
		return v
	}
	return def
}

func optionalInt(args map[string]any, key string, def int) int {
	if v, ok := requiredFloat(args, key); ok {
		return int(v)
	}
	return def
}

// requiredPoint reads a two-element [x, y] numeric array.
func requiredPoint(args map[string]any, key string) (x, y float64, ok bool) {
	arr, isArr := args[key].([]any)
	if !isArr || len(arr) != 2 {
		return 0, 0, false
	}
	xf, xok := toFloat(arr[0])
	yf, yok := toFloat(arr[1])
	if !xok || !yok {
		return 0, 0, false
	}
	return xf, yf, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func argsSlice(args map[string]any, key string) []any {
	if v, ok := args[key].([]any); ok {
		return v
	}
	return nil
}

// resolveNode reads a "node" string argument and resolves it against the
// engine, producing the bad_args/not_found errors the registry expects.
func resolveNode(ctx *dispatch.Context, args map[string]any) (enginehost.Node, *dispatch.Error) {
	path, ok := requiredString(args, "node")
	if !ok {
		return nil, badArgs("missing required argument: node")
	}
	n := ctx.Engine.FindNode(path)
	if n == nil || !n.Valid() {
		return nil, notFound("node not found: %s", path)
	}
	return n, nil
}

