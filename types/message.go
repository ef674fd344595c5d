package types

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind discriminates the variants of ContentPart.
type PartKind string

const (
	PartText       PartKind = "text"
	PartReasoning  PartKind = "reasoning"
	PartFileData   PartKind = "file_data"
	PartInlineData PartKind = "inline_data"
	PartToolCall   PartKind = "tool_call"
	PartToolOutput PartKind = "tool_output"
)

// ContentPart is a tagged union over the message content variants named in
// spec.md §3. Exactly the fields relevant to Kind are populated; the others
// are left zero. This mirrors how hector's ToolResult/ToolCall types carry
// optional fields rather than modeling each variant as a separate Go type,
// which keeps JSON/CBOR (de)serialization straightforward for provider
// adapters that must round-trip parts verbatim.
type ContentPart struct {
	Kind PartKind `json:"kind" cbor:"kind"`

	// PartText / PartReasoning
	Text string `json:"text,omitempty" cbor:"text,omitempty"`

	// PartFileData
	URI      string `json:"uri,omitempty" cbor:"uri,omitempty"`
	MimeType string `json:"mime_type,omitempty" cbor:"mime_type,omitempty"`

	// PartInlineData
	Bytes []byte `json:"bytes,omitempty" cbor:"bytes,omitempty"`

	// PartToolCall
	ToolName string `json:"tool_name,omitempty" cbor:"tool_name,omitempty"`
	Args     string `json:"args,omitempty" cbor:"args,omitempty"`
	CallID   string `json:"call_id,omitempty" cbor:"call_id,omitempty"`

	// PartToolOutput
	Output   string `json:"output,omitempty" cbor:"output,omitempty"`
	RemoteID string `json:"remote_id,omitempty" cbor:"remote_id,omitempty"`
}

func TextPart(s string) ContentPart      { return ContentPart{Kind: PartText, Text: s} }
func ReasoningPart(s string) ContentPart { return ContentPart{Kind: PartReasoning, Text: s} }

// Message is one turn of chat history.
type Message struct {
	Role        Role          `json:"role" cbor:"role"`
	Content     []ContentPart `json:"content" cbor:"content"`
	Name        string        `json:"name,omitempty" cbor:"name,omitempty"`
	ToolCallID  string        `json:"tool_call_id,omitempty" cbor:"tool_call_id,omitempty"`
	TimestampMs int64         `json:"timestamp_ms,omitempty" cbor:"timestamp_ms,omitempty"`
}

// Text concatenates all PartText segments of the message, the common case
// for providers/tests that only care about plain text.
func (m Message) Text() string {
	var out string
	for _, p := range m.Content {
		if p.Kind == PartText {
			out += p.Text
		}
	}
	return out
}

// FunctionDefinition describes a callable tool to the LLM.
type FunctionDefinition struct {
	Name        string `json:"name" cbor:"name"`
	Description string `json:"description" cbor:"description"`
	Parameters  []byte `json:"parameters" cbor:"parameters"` // raw JSON schema
	Strict      bool   `json:"strict,omitempty" cbor:"strict,omitempty"`
}

// Documents is a caller-supplied retrieval context attached to a request.
type Documents []Resource

// CompletionRequest is the neutral request submitted to a completion.Model.
type CompletionRequest struct {
	System              string               `json:"system,omitempty" cbor:"system,omitempty"`
	Prompt              string               `json:"prompt" cbor:"prompt"`
	PrompterName        string               `json:"prompter_name,omitempty" cbor:"prompter_name,omitempty"`
	ChatHistory         []Message            `json:"chat_history,omitempty" cbor:"chat_history,omitempty"`
	Documents           Documents            `json:"documents,omitempty" cbor:"documents,omitempty"`
	Tools               []FunctionDefinition `json:"tools,omitempty" cbor:"tools,omitempty"`
	ToolChoiceRequired  bool                 `json:"tool_choice_required,omitempty" cbor:"tool_choice_required,omitempty"`
	Temperature         *float64             `json:"temperature,omitempty" cbor:"temperature,omitempty"`
	MaxTokens           *int                 `json:"max_tokens,omitempty" cbor:"max_tokens,omitempty"`
	ResponseFormat      string               `json:"response_format,omitempty" cbor:"response_format,omitempty"`
	Stop                []string             `json:"stop,omitempty" cbor:"stop,omitempty"`
}

// ToolCall represents one model-requested tool invocation and, once
// executed, its JSON-serialized result.
type ToolCall struct {
	ID     string `json:"id" cbor:"id"`
	Name   string `json:"name" cbor:"name"`
	Args   string `json:"args" cbor:"args"`
	Result string `json:"result,omitempty" cbor:"result,omitempty"`
}

// Usage accumulates token/request accounting for one or more turns.
type Usage struct {
	InputTokens  int `json:"input_tokens" cbor:"input_tokens"`
	OutputTokens int `json:"output_tokens" cbor:"output_tokens"`
	Requests     int `json:"requests" cbor:"requests"`
}

// Add accumulates other into u in place.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Requests += other.Requests
}

// AgentOutput is the result of one agent_run call.
type AgentOutput struct {
	Content      string     `json:"content" cbor:"content"`
	FailedReason string     `json:"failed_reason,omitempty" cbor:"failed_reason,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty" cbor:"tool_calls,omitempty"`
	FullHistory  []Message  `json:"full_history" cbor:"full_history"`
	Conversation uint64     `json:"conversation,omitempty" cbor:"conversation,omitempty"`
	Artifacts    []Resource `json:"artifacts,omitempty" cbor:"artifacts,omitempty"`
	Usage        Usage      `json:"usage" cbor:"usage"`
}

// EvaluateTokens is the fixed char-to-token heuristic used to trim history
// to a configured budget before submission (spec.md §4.8.1). Four
// characters per token is the commonly used English-text approximation; it
// is a planning heuristic only, never billed accounting.
func EvaluateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}
