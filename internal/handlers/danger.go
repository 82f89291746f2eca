package handlers

import "github.com/aesthetic-engine/grb/internal/dispatch"

func init() {
	dispatch.Register("eval", handleEval)
}

func handleEval(ctx *dispatch.Context, args map[string]any) (map[string]any, *dispatch.Error) {
	expr, ok := requiredString(args, "expr")
	if !ok {
		return nil, badArgs("eval requires expr")
	}
	result, err := ctx.Engine.Eval(dispatch.RunCustomContext(), expr)
	if err != nil {
		return nil, internalError("eval failed: %v", err)
	}
	return map[string]any{"result": result}, nil
}
