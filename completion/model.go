// Package completion implements the C8 completion pipeline: the neutral
// CompletionRequest/AgentOutput contract every provider adapter speaks,
// automatic tool-call execution after each turn, multi-turn iteration, and
// the submit_<Name> structured-extraction helper (spec.md §4.8).
package completion

import (
	"context"

	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Model is the provider-adapter contract: it converts the neutral request
// into a provider's native schema (OpenAI Responses, Gemini GenerateContent,
// ...), issues the call, and converts the response back, preserving
// reasoning segments and tool-call/tool-output parts verbatim. It never
// sees tool execution — that is Runner's job, layered on top.
type Model interface {
	Complete(ctx context.Context, req types.CompletionRequest) (types.AgentOutput, error)
}
