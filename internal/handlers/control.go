package handlers

import (
	"github.com/aesthetic-engine/grb/internal/dispatch"
	"github.com/aesthetic-engine/grb/internal/enginehost"
)

func init() {
	dispatch.Register("set_property", handleSetProperty)
	dispatch.Register("call_method", handleCallMethod)
	dispatch.Register("quit", handleQuit)
	dispatch.Register("run_custom_command", handleRunCustomCommand)
}

func handleSetProperty(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	node, errv := resolveNode(ctx, args)
	if errv != nil {
		return nil, errv
	}
	property, ok := requiredString(args, "property")
	if !ok {
		return nil, badArgs("set_property requires property")
	}
	value, hasValue := args["value"]
	if !hasValue {
		return nil, badArgs("set_property requires value")
	}
	if !ctx.Engine.SetProperty(node, property, value) {
		return nil, notFound("property not found: %s", property)
	}
	return map[string]any{}, nil
}

func handleCallMethod(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	node, errv := resolveNode(ctx, args)
	if errv != nil {
		return nil, errv
	}
	method, ok := requiredString(args, "method")
	if !ok {
		return nil, badArgs("call_method requires method")
	}
	callArgs := argsSlice(args, "args")

	result, ok, err := ctx.Engine.CallMethod(node, method, callArgs)
	if err != nil {
		return nil, internalError("call_method failed: %v", err)
	}
	if !ok {
		return nil, notFound("method not found: %s", method)
	}
	return map[string]any{"result": enginehost.Marshal(result)}, nil
}

func handleQuit(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	ctx.Engine.RequestQuit()
	return map[string]any{}, nil
}

func handleRunCustomCommand(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	name, ok := requiredString(args, "name")
	if !ok {
		return nil, badArgs("run_custom_command requires name")
	}
	callArgs := argsSlice(args, "args")

	result, ok, err := ctx.Engine.RunCustomCommand(dispatch.RunCustomContext(), name, callArgs)
	if err != nil {
		return nil, internalError("run_custom_command failed: %v", err)
	}
	if !ok {
		return nil, notFound("custom command not found: %s", name)
	}
	return map[string]any{"result": enginehost.Marshal(result)}, nil
}
