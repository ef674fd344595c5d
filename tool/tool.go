// Package tool implements the C6 tool registry: typed tools declared with a
// JSON-schema input, dispatched by name, with JSON args decoding delegated
// to each tool's declared input type (spec.md §4.6).
package tool

import (
	"encoding/json"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/internal/registry"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Definition is the introspection record a tool exports for LLM prompting.
type Definition struct {
	Name            string
	Description     string
	ParametersJSON  []byte // raw JSON schema
	Strict          bool
	AcceptsResources bool
}

func (d Definition) FunctionDefinition() types.FunctionDefinition {
	return types.FunctionDefinition{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.ParametersJSON,
		Strict:      d.Strict,
	}
}

// Tool is the C6 contract: a typed, callable function with a declared
// JSON-schema input.
type Tool interface {
	Definition() Definition
	Call(ctx *ectx.BaseCtx, argsJSON []byte, resources []types.Resource) (json.RawMessage, []types.Resource, error)
}

// Registry stores tools under their names in a dynamic-dispatch map and
// implements engine/context.ToolCaller so AgentCtx.ToolCall can reach it
// without an import cycle.
type Registry struct {
	base *registry.Base[Tool]
}

func NewRegistry() *Registry {
	return &Registry{base: registry.New[Tool]("tool.Registry")}
}

// Add inserts a tool, returning an error on duplicate or malformed name.
func (r *Registry) Add(t Tool) error {
	return r.base.Add(t.Definition().Name, t)
}

func (r *Registry) Contains(name string) bool { return r.base.Contains(name) }

func (r *Registry) Definition(name string) (Definition, bool) {
	t, ok := r.base.Get(name)
	if !ok {
		return Definition{}, false
	}
	return t.Definition(), true
}

// Definitions returns every registered tool's definition, optionally
// narrowed by filter (nil means "all").
func (r *Registry) Definitions(filter func(Definition) bool) []types.FunctionDefinition {
	var out []types.FunctionDefinition
	for _, t := range r.base.List() {
		d := t.Definition()
		if filter == nil || filter(d) {
			out = append(out, d.FunctionDefinition())
		}
	}
	return out
}

// Call implements engine/context.ToolCaller: deserializes JSON args into
// the tool's declared input type, invokes it, and serializes the output.
// Deserialization never reaches the tool body; resources are rejected up
// front for tools that did not opt into accepting them.
func (r *Registry) Call(ctx *ectx.BaseCtx, in types.ToolInput) (types.ToolOutput, error) {
	t, ok := r.base.Get(in.Name)
	if !ok {
		return types.ToolOutput{}, errs.Resource("tool.Registry.Call", "unknown tool: "+in.Name, nil)
	}
	def := t.Definition()
	if len(in.Resources) > 0 && !def.AcceptsResources {
		return types.ToolOutput{}, errs.Validation("tool.Registry.Call", "tool "+in.Name+" does not accept resources", nil)
	}
	if !json.Valid(in.Args) {
		return types.ToolOutput{}, errs.Validation("tool.Registry.Call", "invalid args: malformed JSON", nil)
	}
	out, artifacts, err := t.Call(ctx, in.Args, in.Resources)
	if err != nil {
		return types.ToolOutput{}, err
	}
	return types.ToolOutput{Output: out, Artifacts: artifacts}, nil
}
