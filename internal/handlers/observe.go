package handlers

import (
	"encoding/base64"

	"github.com/aesthetic-engine/grb/internal/dispatch"
	"github.com/aesthetic-engine/grb/internal/enginehost"
	"github.com/aesthetic-engine/grb/internal/protocol"
	"github.com/aesthetic-engine/grb/internal/registry"
)

func init() {
	dispatch.Register("ping", handlePing)
	dispatch.Register("auth_info", handleAuthInfo)
	dispatch.Register("capabilities", handleCapabilities)
	dispatch.Register("screenshot", handleScreenshot)
	dispatch.Register("scene_tree", handleSceneTree)
	dispatch.Register("get_property", handleGetProperty)
	dispatch.Register("runtime_info", handleRuntimeInfo)
	dispatch.Register("get_errors", handleGetErrors)
	dispatch.Register("find_nodes", handleFindNodes)
	dispatch.Register("audio_state", handleAudioState)
	dispatch.Register("network_state", handleNetworkState)
	dispatch.Register("grb_performance", handleGRBPerformance)
}

func handlePing(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	return map[string]any{"pong": true}, nil
}

func handleAuthInfo(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	return map[string]any{
		"proto":          protocol.ProtoVersion,
		"tier":           int(ctx.Session.Tier),
		"danger_enabled": ctx.Session.DangerEnabled,
	}, nil
}

func handleCapabilities(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	return map[string]any{
		"tier":     int(ctx.Session.Tier),
		"commands": registry.CommandsForTier(ctx.Session.Tier),
	}, nil
}

func handleScreenshot(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	w, h, png, err := ctx.Engine.Screenshot(dispatch.RunCustomContext())
	if err != nil {
		return nil, internalError("screenshot capture failed: %v", err)
	}
	return map[string]any{
		"width":      w,
		"height":     h,
		"png_base64": base64.StdEncoding.EncodeToString(png),
	}, nil
}

func handleSceneTree(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	maxDepth := optionalInt(args, "max_depth", 10)
	root := ctx.Engine.Root()
	if root == nil {
		return map[string]any{"name": nil, "type": nil, "children": []any{}}, nil
	}
	return dumpNode(root, 0, maxDepth), nil
}

func dumpNode(n enginehost.Node, depth, maxDepth int) map[string]any {
	out := map[string]any{
		"name": n.Name(),
		"type": n.TypeName(),
	}
	if depth >= maxDepth {
		out["children"] = []any{}
		return out
	}
	children := n.Children()
	kids := make([]any, len(children))
	for i, c := range children {
		kids[i] = dumpNode(c, depth+1, maxDepth)
	}
	out["children"] = kids
	return out
}

func handleGetProperty(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	node, errv := resolveNode(ctx, args)
	if errv != nil {
		return nil, errv
	}
	property, ok := requiredString(args, "property")
	if !ok {
		return nil, badArgs("missing required argument: property")
	}
	value, ok := ctx.Engine.GetProperty(node, property)
	if !ok {
		return nil, notFound("property not found: %s", property)
	}
	return map[string]any{"value": enginehost.Marshal(value)}, nil
}

func handleRuntimeInfo(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	info := ctx.Engine.RuntimeInfo()
	errorCount, warningCount := ctx.Diagnostics.Totals()
	return map[string]any{
		"engine_version":     info.EngineVersion,
		"fps":                info.FPS,
		"process_frames":     info.ProcessFrames,
		"time_scale":         info.TimeScale,
		"current_scene":      info.CurrentScene,
		"current_scene_name": info.CurrentSceneName,
		"node_count":         info.NodeCount,
		"input_mode":         string(ctx.Session.InputMode),
		"error_count":        errorCount,
		"warning_count":      warningCount,
	}, nil
}

func handleGetErrors(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	since := int64(optionalFloat(args, "since_index", 0))
	entries, nextIndex, errorCount, warningCount := ctx.Diagnostics.Since(since)
	return map[string]any{
		"errors":        entries,
		"next_index":    nextIndex,
		"error_count":   errorCount,
		"warning_count": warningCount,
	}, nil
}

func handleFindNodes(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	name := optionalString(args, "name", "")
	typeName := optionalString(args, "type", "")
	group := optionalString(args, "group", "")
	if name == "" && typeName == "" && group == "" {
		return nil, badArgs("find_nodes requires at least one of name, type, group")
	}
	limit := optionalInt(args, "limit", 50)

	matches := ctx.Engine.FindNodes(name, typeName, group, limit)
	out := make([]any, len(matches))
	for i, n := range matches {
		out[i] = map[string]any{
			"name":   n.Name(),
			"type":   n.TypeName(),
			"path":   n.Path(),
			"groups": n.Groups(),
		}
	}
	return map[string]any{"matches": out, "count": len(out)}, nil
}

func handleAudioState(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	return ctx.Engine.AudioState(), nil
}

func handleNetworkState(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	return ctx.Engine.NetworkState(), nil
}

func handleGRBPerformance(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	return ctx.Engine.GRBPerformance(), nil
}
