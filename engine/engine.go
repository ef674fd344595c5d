package engine

import (
	"context"
	"time"

	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/management"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Engine is a fully wired, immutable runtime: a shared AgentCtx plus the
// advertised Information card every RPC and the well-known endpoint serve
// from. The registries and components it wraps do not change after Build,
// per spec.md's "registries are immutable after build".
type Engine struct {
	ctx        *ectx.AgentCtx
	info       types.Information
	management *management.Service
}

// Information returns the engine's advertised identity and capability
// list, the response to the `information` RPC method and one entry of the
// /.well-known/information aggregate.
func (e *Engine) Information() types.Information { return e.info }

// AgentRun dispatches the `agent_run` RPC method: caller is the principal
// on whose behalf the request runs (the request signer once verified, or
// the engine's own id for locally-originated calls).
func (e *Engine) AgentRun(caller types.Principal, user string, in types.AgentInput) (types.AgentOutput, error) {
	child, err := e.ctx.ChildWith("agent_run/"+in.Name, caller, user, in.Meta)
	if err != nil {
		return types.AgentOutput{}, err
	}
	if err := e.checkUserCanAct(child, user); err != nil {
		return types.AgentOutput{}, err
	}
	return child.AgentRun(in.Name, in.Prompt, in.Resources)
}

// ToolCall dispatches the `tool_call` RPC method with the same caller
// scoping AgentRun uses.
func (e *Engine) ToolCall(caller types.Principal, user string, in types.ToolInput) (types.ToolOutput, error) {
	child, err := e.ctx.ChildWith("tool_call/"+in.Name, caller, user, in.Meta)
	if err != nil {
		return types.ToolOutput{}, err
	}
	if err := e.checkUserCanAct(child, user); err != nil {
		return types.ToolOutput{}, err
	}
	return child.ToolCall(in.Name, in.Args, in.Resources)
}

// checkUserCanAct enforces spec.md §3's access predicate on the
// bearer-resolved user riding on this call, when both a management.Service
// and a non-empty user are present. Engine-to-engine calls with no
// resolved user (user == "") are never gated here; only an authenticated
// end user can be banned, suspended, or run out of credit.
func (e *Engine) checkUserCanAct(ctx context.Context, user string) error {
	if e.management == nil || user == "" {
		return nil
	}
	return e.management.CheckUserCanAct(ctx, user, time.Now().UnixMilli())
}

// Cancel fires the engine's root cancellation token; every context derived
// from it observes the cancellation, per spec.md §5's hierarchical token.
func (e *Engine) Cancel() { e.ctx.Cancel() }

// Management exposes the engine's management.Service, if one was
// configured, so a server layer can offer thread/user admin endpoints
// beyond the tool-call surface.
func (e *Engine) Management() *management.Service { return e.management }
