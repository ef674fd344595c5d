// Package engine implements the C11 engine assembly and server: the
// EngineBuilder that wires every lower layer into a shared AgentCtx, and
// the HTTP server that exposes agent_run/tool_call/information over the
// signed CBOR-RPC wire protocol of spec.md §4.11-4.12.
package engine

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/xiaoyuanxun/anda-sub000/agent"
	"github.com/xiaoyuanxun/anda-sub000/cache"
	"github.com/xiaoyuanxun/anda-sub000/completion"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/federation"
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/management"
	"github.com/xiaoyuanxun/anda-sub000/store"
	"github.com/xiaoyuanxun/anda-sub000/tool"
	"github.com/xiaoyuanxun/anda-sub000/transport"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Builder collects an engine's identity, persistence, transport, and
// domain components, mirroring hector's ComponentManager aggregation
// (spec.md §4.12's "EngineBuilder collects...").
type Builder struct {
	ID       types.Principal
	Name     string
	Endpoint string

	Store      store.Store
	Vectors    ectx.VectorSearcher
	Completion completion.Model
	Embedder   ectx.Embedder

	Tools      *tool.Registry
	Agents     *agent.Registry
	Federation *federation.Registry // optional
	Management *management.Service  // optional

	Keys     keys.Service
	Outer    *transport.Outer
	Inner    *transport.Inner
	Identity transport.Signer

	CacheCapacity int
}

// checkToolDependencies fails the build early if any registered agent
// declares a ToolDependencies entry that isn't a registered local tool,
// rather than letting the gap surface only as a runtime error on first run.
func (b *Builder) checkToolDependencies() error {
	for _, def := range b.Agents.Descriptors() {
		for _, dep := range def.ToolDependencies {
			if !b.Tools.Contains(dep) {
				return errs.Validation("engine.Builder.Build", "agent "+def.Name+" declares an unregistered tool dependency: "+dep, nil)
			}
		}
	}
	return nil
}

// Build finalizes the builder into an Engine: it verifies defaultAgent is
// registered, attaches the management-backed built-in tools (if a
// management.Service was supplied), constructs the shared capability
// context, and assembles the engine's advertised Information card.
func (b *Builder) Build(ctx context.Context, defaultAgent string) (*Engine, error) {
	if b.Agents == nil || !b.Agents.Contains(defaultAgent) {
		return nil, errs.Validation("engine.Builder.Build", "default agent is not registered", nil)
	}
	if b.Tools == nil {
		b.Tools = tool.NewRegistry()
	}
	if b.Management != nil {
		if err := registerManagementTools(b.Tools, b.Management); err != nil {
			return nil, err
		}
	}
	if err := b.checkToolDependencies(); err != nil {
		return nil, err
	}

	cacheCap := b.CacheCapacity
	if cacheCap == 0 {
		cacheCap = cache.DefaultMaxCapacity
	}
	cacheSvc, err := cache.New(cacheCap)
	if err != nil {
		return nil, err
	}

	services := ectx.Services{
		Keys:     b.Keys,
		Store:    b.Store,
		Cache:    cacheSvc,
		Outer:    b.Outer,
		Inner:    b.Inner,
		Identity: b.Identity,
		Logger:   hclog.New(&hclog.LoggerOptions{Name: "engine", Level: hclog.Info}),
	}
	base := ectx.New(ctx, b.ID, b.Name, services)

	var runner *completion.Runner
	if b.Completion != nil {
		runner = completion.NewRunner(b.Completion)
		if b.Federation != nil {
			runner.ResolveRemoteTool = b.Federation.ResolveTool
		}
	}

	var agents ectx.AgentRunner = b.Agents
	if b.Federation != nil {
		agents = federation.NewAgentRunner(b.Agents, b.Federation)
	}

	components := ectx.AgentComponents{
		Tools:    b.Tools,
		Agents:   agents,
		Embedder: b.Embedder,
		Vectors:  b.Vectors,
	}
	if runner != nil {
		components.Completion = runner
	}
	agentCtx := ectx.NewAgent(base, components)

	info := types.Information{
		ID:               b.ID,
		Name:             b.Name,
		DefaultAgent:     defaultAgent,
		AgentDefinitions: b.Agents.Descriptors(),
		ToolDefinitions:  b.Tools.Definitions(nil),
		Endpoint:         b.Endpoint,
	}
	if b.Federation != nil {
		info.AgentDefinitions = append(info.AgentDefinitions, b.Federation.AgentDefinitions()...)
		info.ToolDefinitions = append(info.ToolDefinitions, b.Federation.ToolDefinitions()...)
	}

	return &Engine{ctx: agentCtx, info: info, management: b.Management}, nil
}
