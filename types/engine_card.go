package types

// RequestMeta is opaque per-call metadata threaded through contexts and
// across the wire (AgentInput.meta / ToolInput.meta in spec.md §6).
type RequestMeta struct {
	TraceID    string            `json:"trace_id,omitempty" cbor:"trace_id,omitempty"`
	DeadlineMs int64             `json:"deadline_ms,omitempty" cbor:"deadline_ms,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" cbor:"extra,omitempty"`
}

// Information is the advertised identity of an engine, returned by the
// `information` RPC method and the /.well-known/information endpoint.
type Information struct {
	ID              Principal            `json:"id" cbor:"id"`
	Name            string               `json:"name" cbor:"name"`
	DefaultAgent    string               `json:"default_agent" cbor:"default_agent"`
	AgentDefinitions []AgentDefinition   `json:"agent_definitions" cbor:"agent_definitions"`
	ToolDefinitions []FunctionDefinition `json:"tool_definitions" cbor:"tool_definitions"`
	Endpoint        string               `json:"endpoint" cbor:"endpoint"`
}

// AgentDefinition is the introspection record exported for one agent.
type AgentDefinition struct {
	Name                string   `json:"name" cbor:"name"`
	Description         string   `json:"description" cbor:"description"`
	ToolDependencies    []string `json:"tool_dependencies,omitempty" cbor:"tool_dependencies,omitempty"`
	SupportedResourceTags []string `json:"supported_resource_tags,omitempty" cbor:"supported_resource_tags,omitempty"`
}

// ConversationStatus is the lifecycle state of a Conversation record.
type ConversationStatus int

const (
	ConversationWorking ConversationStatus = iota
	ConversationCompleted
	ConversationFailed
)

// Conversation is created when an agent begins handling a prompt and
// updated after each completion turn (spec.md §3 Lifecycles). Its _id is
// store-assigned, represented here as Conversation.ID once persisted (zero
// before the first save).
type Conversation struct {
	ID        uint64             `json:"_id,omitempty" cbor:"_id,omitempty"`
	Thread    Xid                `json:"thread" cbor:"thread"`
	Agent     string             `json:"agent" cbor:"agent"`
	Status    ConversationStatus `json:"status" cbor:"status"`
	Turns     []AgentOutput      `json:"turns,omitempty" cbor:"turns,omitempty"`
	Usage     Usage              `json:"usage" cbor:"usage"`
	CreatedAt int64              `json:"created_at" cbor:"created_at"`
	UpdatedAt int64              `json:"updated_at" cbor:"updated_at"`
}

// AgentInput is the agent_run RPC parameter.
type AgentInput struct {
	Name      string     `json:"name" cbor:"name"`
	Prompt    string     `json:"prompt" cbor:"prompt"`
	Resources []Resource `json:"resources,omitempty" cbor:"resources,omitempty"`
	Meta      RequestMeta `json:"meta,omitempty" cbor:"meta,omitempty"`
}

// ToolInput is the tool_call RPC parameter. Args is raw JSON so the tool
// registry can defer deserialization to the tool's declared input type.
type ToolInput struct {
	Name      string      `json:"name" cbor:"name"`
	Args      []byte      `json:"args" cbor:"args"` // raw JSON value
	Resources []Resource  `json:"resources,omitempty" cbor:"resources,omitempty"`
	Meta      RequestMeta `json:"meta,omitempty" cbor:"meta,omitempty"`
}

// ToolOutput is the tool_call RPC return value.
type ToolOutput struct {
	Output    []byte     `json:"output" cbor:"output"` // raw JSON value
	Artifacts []Resource `json:"artifacts,omitempty" cbor:"artifacts,omitempty"`
}
