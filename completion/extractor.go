package completion

import (
	"encoding/json"

	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/tool"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Extractor wraps a completion request that forces the model to call a
// single submit_<Name> tool declaring T's JSON schema, giving an LLM a
// schema-obedient output channel (spec.md §4.8.5). The submit tool is an
// identity function — calling it just hands back its own (now validated
// and canonically re-serialized) arguments — and is never registered in
// any tool.Registry; Extractor reads the model's tool-call args directly
// rather than relying on the context's normal auto-tool-execution path.
type Extractor[T any] struct {
	submitTool *tool.TypedTool[T, T]
	system     string
	maxTokens  *int
}

// NewExtractor builds an extractor for T, exposed to the model as
// submit_<typeName>.
func NewExtractor[T any](typeName, system string, maxTokens *int) (*Extractor[T], error) {
	submitTool, err := tool.NewTypedTool[T, T]("submit_"+typeName,
		"Submit the final structured result.", true, false,
		func(_ *ectx.BaseCtx, args T, _ []types.Resource) (T, []types.Resource, error) {
			return args, nil, nil
		})
	if err != nil {
		return nil, err
	}
	return &Extractor[T]{submitTool: submitTool, system: system, maxTokens: maxTokens}, nil
}

// Extract submits prompt with tool_choice_required forcing exactly the
// submit tool, and returns the first tool call's args decoded into T
// alongside the turn's AgentOutput.
func (e *Extractor[T]) Extract(ctx *ectx.AgentCtx, prompt string) (T, types.AgentOutput, error) {
	var zero T
	def := e.submitTool.Definition()
	req := types.CompletionRequest{
		System:             e.system,
		Prompt:             prompt,
		Tools:              []types.FunctionDefinition{def.FunctionDefinition()},
		ToolChoiceRequired: true,
		MaxTokens:          e.maxTokens,
	}

	out, err := ctx.Completion(req)
	if err != nil {
		return zero, types.AgentOutput{}, err
	}
	if len(out.ToolCalls) == 0 {
		return zero, out, errs.Provider("completion.Extractor", "model returned no tool call", nil)
	}

	call := out.ToolCalls[0]
	raw, _, err := e.submitTool.Call(ctx.BaseCtx, []byte(call.Args), nil)
	if err != nil {
		return zero, out, errs.Validation("completion.Extractor", "invalid extraction args: "+err.Error(), nil)
	}
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return zero, out, errs.Internal("completion.Extractor", "decoding extracted result", err)
	}
	out.ToolCalls[0].Result = string(raw)
	return result, out, nil
}
