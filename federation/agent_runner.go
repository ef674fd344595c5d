package federation

import (
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// AgentRunner composes a local agent dispatcher with this registry's
// RA_<alias>_<agent> resolution: a prefixed name proxies to the owning
// peer via remote_agent_run, anything else falls through to local.
// It implements engine/context.AgentRunner, so an engine can wire it
// directly as AgentComponents.Agents.
type AgentRunner struct {
	Local    ectx.AgentRunner
	Registry *Registry
}

// NewAgentRunner wraps local behind this registry's remote-prefix check.
func NewAgentRunner(local ectx.AgentRunner, registry *Registry) *AgentRunner {
	return &AgentRunner{Local: local, Registry: registry}
}

// Run dispatches in.Name to a peer if it carries this registry's remote
// agent prefix, otherwise delegates to the local runner.
func (a *AgentRunner) Run(ctx *ectx.AgentCtx, in types.AgentInput) (types.AgentOutput, error) {
	if endpoint, stripped, ok := a.Registry.ResolveAgent(in.Name); ok {
		return ctx.RemoteAgentRun(endpoint, stripped, in.Prompt, in.Resources)
	}
	return a.Local.Run(ctx, in)
}
