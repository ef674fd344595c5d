package context

import (
	"context"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// ToolCaller dispatches a named local tool call. Implemented by
// tool.Registry; declared here (rather than imported) so engine/context
// never depends on the tool package, avoiding an import cycle since the
// tool package imports engine/context for *BaseCtx.
type ToolCaller interface {
	Call(ctx *BaseCtx, in types.ToolInput) (types.ToolOutput, error)
	Contains(name string) bool
}

// AgentRunner dispatches a named local agent run. Implemented by
// agent.Registry, for the same reason ToolCaller is declared here.
type AgentRunner interface {
	Run(ctx *AgentCtx, in types.AgentInput) (types.AgentOutput, error)
}

// CompletionModel invokes the attached completion model for one turn.
// Implemented by completion.Runner.
type CompletionModel interface {
	Complete(ctx *AgentCtx, req types.CompletionRequest) (types.AgentOutput, error)
}

// Embedder batches text embedding for retrieval, per spec.md §5's "Embedding
// is batched at 16 texts per provider call."
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorSearcher performs a top-n similarity search scoped to the calling
// context's namespace. The core engine never implements this itself (vector
// indexing is an explicit Non-goal); a consumer supplies its own backend.
type VectorSearcher interface {
	TopN(ctx context.Context, namespace types.Path, query []float32, n int) ([]VectorHit, error)
}

// VectorHit is one result of a VectorSearcher.TopN call.
type VectorHit struct {
	ID    string
	Score float32
	Value []byte
}

// AgentComponents bundles the dispatch targets an AgentCtx proxies to,
// beyond the capability Services every BaseCtx already carries.
type AgentComponents struct {
	Tools      ToolCaller
	Agents     AgentRunner
	Completion CompletionModel
	Embedder   Embedder
	Vectors    VectorSearcher
}

// AgentCtx extends BaseCtx with tool/agent dispatch, completion, embedding,
// and vector search, per spec.md §4.7.
type AgentCtx struct {
	*BaseCtx
	components AgentComponents
}

// NewAgent wraps a root BaseCtx as an AgentCtx.
func NewAgent(base *BaseCtx, components AgentComponents) *AgentCtx {
	return &AgentCtx{BaseCtx: base, components: components}
}

// childAgent wraps a derived BaseCtx (from Child/ChildWith) back into an
// AgentCtx sharing the same dispatch targets.
func (a *AgentCtx) childAgent(base *BaseCtx) *AgentCtx {
	return &AgentCtx{BaseCtx: base, components: a.components}
}

// Child spawns a child AgentCtx, overriding BaseCtx.Child's return type.
func (a *AgentCtx) Child(pathSegment string) (*AgentCtx, error) {
	base, err := a.BaseCtx.Child(pathSegment)
	if err != nil {
		return nil, err
	}
	return a.childAgent(base), nil
}

// ChildWith spawns a child AgentCtx with caller/user/meta overrides.
func (a *AgentCtx) ChildWith(pathSegment string, caller types.Principal, user string, meta types.RequestMeta) (*AgentCtx, error) {
	base, err := a.BaseCtx.ChildWith(pathSegment, caller, user, meta)
	if err != nil {
		return nil, err
	}
	return a.childAgent(base), nil
}

// HasTool reports whether name is registered in the attached tool
// registry, letting agent.Registry validate an agent's declared
// ToolDependencies before running it.
func (a *AgentCtx) HasTool(name string) bool {
	return a.components.Tools != nil && a.components.Tools.Contains(name)
}

// ToolCall invokes a known local tool; unknown names are refused, per
// spec.md §4.7.
func (a *AgentCtx) ToolCall(name string, args []byte, resources []types.Resource) (types.ToolOutput, error) {
	if a.components.Tools == nil {
		return types.ToolOutput{}, errs.Internal("AgentCtx.ToolCall", "no tool registry attached", nil)
	}
	return a.components.Tools.Call(a.BaseCtx, types.ToolInput{Name: name, Args: args, Resources: resources, Meta: a.Meta()})
}

// RemoteToolCall dispatches name via HTTPSSignedRPC against endpoint. name
// is sent as given: the caller strips its registered remote prefix first
// (completion.Runner does so through its RemoteToolResolver), per spec.md
// §4.7 ("Remote variants strip the name's prefix and dispatch via
// https_signed_rpc").
func (a *AgentCtx) RemoteToolCall(endpoint, name string, args []byte, resources []types.Resource) (types.ToolOutput, error) {
	var out types.ToolOutput
	in := types.ToolInput{Name: name, Args: args, Resources: resources, Meta: a.Meta()}
	if err := a.HTTPSSignedRPC(endpoint, "tool_call", in, &out); err != nil {
		return types.ToolOutput{}, err
	}
	return out, nil
}

// AgentRun invokes a known local agent; unknown names are refused.
func (a *AgentCtx) AgentRun(name, prompt string, resources []types.Resource) (types.AgentOutput, error) {
	if a.components.Agents == nil {
		return types.AgentOutput{}, errs.Internal("AgentCtx.AgentRun", "no agent registry attached", nil)
	}
	return a.components.Agents.Run(a, types.AgentInput{Name: name, Prompt: prompt, Resources: resources, Meta: a.Meta()})
}

// RemoteAgentRun proxies an agent_run call to a remote engine.
func (a *AgentCtx) RemoteAgentRun(endpoint, name, prompt string, resources []types.Resource) (types.AgentOutput, error) {
	var out types.AgentOutput
	in := types.AgentInput{Name: name, Prompt: prompt, Resources: resources, Meta: a.Meta()}
	if err := a.HTTPSSignedRPC(endpoint, "agent_run", in, &out); err != nil {
		return types.AgentOutput{}, err
	}
	return out, nil
}

// Completion invokes the attached completion model for one turn, per
// spec.md §4.7 ("invokes the attached completion model, then auto-schedules
// tool calls"); auto tool scheduling itself lives in completion.Runner,
// which is what Components.Completion is expected to be.
func (a *AgentCtx) Completion(req types.CompletionRequest) (types.AgentOutput, error) {
	if a.components.Completion == nil {
		return types.AgentOutput{}, errs.Internal("AgentCtx.Completion", "no completion model attached", nil)
	}
	return a.components.Completion.Complete(a, req)
}

// embedBatchSize is spec.md §5's "Embedding is batched at 16 texts per
// provider call" — chunked here so callers never have to think about
// provider batch limits.
const embedBatchSize = 16

// Embed batches text embedding, splitting texts into chunks of
// embedBatchSize before calling the attached provider, and concatenating
// the per-chunk results back into one slice in input order.
func (a *AgentCtx) Embed(texts []string) ([][]float32, error) {
	if a.components.Embedder == nil {
		return nil, errs.Internal("AgentCtx.Embed", "no embedder attached", nil)
	}
	vecs := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := a.components.Embedder.Embed(a.Context, texts[start:end])
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, chunk...)
	}
	return vecs, nil
}

// EmbedQuery embeds a single query string.
func (a *AgentCtx) EmbedQuery(text string) ([]float32, error) {
	vecs, err := a.Embed([]string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errs.Internal("AgentCtx.EmbedQuery", "embedder returned no vectors", nil)
	}
	return vecs[0], nil
}

// TopN performs a vector search scoped to this context's namespace.
func (a *AgentCtx) TopN(query []float32, n int) ([]VectorHit, error) {
	if a.components.Vectors == nil {
		return nil, errs.Internal("AgentCtx.TopN", "no vector searcher attached", nil)
	}
	return a.components.Vectors.TopN(a.Context, a.StoreNamespace(), query, n)
}

// TopNIDs is TopN but returns only the hit identifiers.
func (a *AgentCtx) TopNIDs(query []float32, n int) ([]string, error) {
	hits, err := a.TopN(query, n)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}
