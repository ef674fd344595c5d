// Package agent implements the C7 agent registry and descriptor: the
// richer counterpart to tool.Registry, keyed over AgentCtx instead of
// BaseCtx (spec.md §4.7).
package agent

import (
	"github.com/xiaoyuanxun/anda-sub000/errs"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/internal/registry"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Descriptor is the introspection record an agent exports, mirroring
// types.AgentDefinition.
type Descriptor struct {
	Name                  string
	Description           string
	ToolDependencies      []string
	SupportedResourceTags []string
}

func (d Descriptor) AgentDefinition() types.AgentDefinition {
	return types.AgentDefinition{
		Name:                  d.Name,
		Description:           d.Description,
		ToolDependencies:      d.ToolDependencies,
		SupportedResourceTags: d.SupportedResourceTags,
	}
}

// Agent is the C7 contract: a named, described worker over a prompt and an
// optional set of resources.
type Agent interface {
	Descriptor() Descriptor
	Run(ctx *ectx.AgentCtx, prompt string, resources []types.Resource) (types.AgentOutput, error)
}

// Registry stores agents under their names and implements
// engine/context.AgentRunner so AgentCtx.AgentRun can reach it without an
// import cycle.
type Registry struct {
	base *registry.Base[Agent]
}

func NewRegistry() *Registry {
	return &Registry{base: registry.New[Agent]("agent.Registry")}
}

func (r *Registry) Add(a Agent) error {
	return r.base.Add(a.Descriptor().Name, a)
}

func (r *Registry) Contains(name string) bool { return r.base.Contains(name) }

func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	a, ok := r.base.Get(name)
	if !ok {
		return Descriptor{}, false
	}
	return a.Descriptor(), true
}

func (r *Registry) Descriptors() []types.AgentDefinition {
	out := make([]types.AgentDefinition, 0, r.base.Count())
	for _, a := range r.base.List() {
		out = append(out, a.Descriptor().AgentDefinition())
	}
	return out
}

// Run implements engine/context.AgentRunner. Resource tags outside an
// agent's declared supported set are rejected up front, and unknown tool
// dependencies are refused before the agent body ever runs, matching the
// registry-level validation style of tool.Registry.Call.
func (r *Registry) Run(ctx *ectx.AgentCtx, in types.AgentInput) (types.AgentOutput, error) {
	a, ok := r.base.Get(in.Name)
	if !ok {
		return types.AgentOutput{}, errs.Resource("agent.Registry.Run", "unknown agent: "+in.Name, nil)
	}
	desc := a.Descriptor()
	if err := checkResourceTags(desc, in.Resources); err != nil {
		return types.AgentOutput{}, err
	}
	if err := checkToolDependencies(ctx, desc); err != nil {
		return types.AgentOutput{}, err
	}
	return a.Run(ctx, in.Prompt, in.Resources)
}

func checkToolDependencies(ctx *ectx.AgentCtx, desc Descriptor) error {
	for _, dep := range desc.ToolDependencies {
		if !ctx.HasTool(dep) {
			return errs.Resource("agent.Registry.Run", "agent "+desc.Name+" declares an unregistered tool dependency: "+dep, nil)
		}
	}
	return nil
}

func checkResourceTags(desc Descriptor, resources []types.Resource) error {
	if len(desc.SupportedResourceTags) == 0 {
		if len(resources) > 0 {
			return errs.Validation("agent.Registry.Run", "agent "+desc.Name+" does not accept resources", nil)
		}
		return nil
	}
	allowed := make(map[string]bool, len(desc.SupportedResourceTags))
	for _, t := range desc.SupportedResourceTags {
		allowed[t] = true
	}
	for _, r := range resources {
		if !allowed[r.Tag] {
			return errs.Validation("agent.Registry.Run", "agent "+desc.Name+" does not support resource tag: "+r.Tag, nil)
		}
	}
	return nil
}
