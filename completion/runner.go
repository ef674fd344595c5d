package completion

import (
	"encoding/json"

	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// RemoteToolResolver reports whether name carries a registered remote-tool
// prefix (spec.md §4.10's RT_<peer>_<tool> scheme) and, if so, the peer
// endpoint to dispatch to and the tool name with the prefix stripped.
// federation.Registry implements this; Runner is parameterized over it
// rather than importing federation, so neither package imports the other.
type RemoteToolResolver func(name string) (endpoint, stripped string, ok bool)

// Runner wraps a raw Model with the auto tool execution contract of
// spec.md §4.8.3, implementing engine/context.CompletionModel.
type Runner struct {
	Model             Model
	ResolveRemoteTool RemoteToolResolver
}

func NewRunner(model Model) *Runner { return &Runner{Model: model} }

// Complete issues one model turn, then executes every resulting tool call
// in listed order: known local tools dispatch through ctx.ToolCall, names
// carrying the remote-tool prefix dispatch through ctx.RemoteToolCall, and
// a failing or unresolvable call is converted into a {"error": ...}
// tool-output message rather than aborting the turn.
func (r *Runner) Complete(ctx *ectx.AgentCtx, req types.CompletionRequest) (types.AgentOutput, error) {
	out, err := r.Model.Complete(ctx, req)
	if err != nil {
		return types.AgentOutput{}, err
	}

	for i := range out.ToolCalls {
		tc := &out.ToolCalls[i]
		result, execErr := r.executeOne(ctx, *tc)
		if execErr != nil {
			payload, _ := json.Marshal(map[string]string{"error": execErr.Error()})
			result = string(payload)
		}
		tc.Result = result
		out.FullHistory = append(out.FullHistory, types.Message{
			Role:       types.RoleTool,
			ToolCallID: tc.ID,
			Content: []types.ContentPart{{
				Kind:     types.PartToolOutput,
				Output:   result,
				RemoteID: tc.ID,
			}},
		})
	}
	return out, nil
}

func (r *Runner) executeOne(ctx *ectx.AgentCtx, tc types.ToolCall) (string, error) {
	logger := ctx.Logger().Named("completion")
	if r.ResolveRemoteTool != nil {
		if endpoint, stripped, ok := r.ResolveRemoteTool(tc.Name); ok {
			logger.Debug("dispatching remote tool call", "tool", tc.Name, "endpoint", endpoint)
			out, err := ctx.RemoteToolCall(endpoint, stripped, []byte(tc.Args), nil)
			if err != nil {
				logger.Warn("remote tool call failed", "tool", tc.Name, "error", err)
				return "", err
			}
			return string(out.Output), nil
		}
	}
	out, err := ctx.ToolCall(tc.Name, []byte(tc.Args), nil)
	if err != nil {
		logger.Warn("tool call failed", "tool", tc.Name, "error", err)
		return "", err
	}
	return string(out.Output), nil
}
