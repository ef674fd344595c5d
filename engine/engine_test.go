package engine_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanxun/anda-sub000/agent"
	"github.com/xiaoyuanxun/anda-sub000/completion"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/management"
	"github.com/xiaoyuanxun/anda-sub000/state"
	"github.com/xiaoyuanxun/anda-sub000/store/memory"
	"github.com/xiaoyuanxun/anda-sub000/tool"
	"github.com/xiaoyuanxun/anda-sub000/types"

	"github.com/xiaoyuanxun/anda-sub000/engine"
)

// echoAgent is the "hello world" agent of spec.md §8.1: it never touches
// completion or tools, just reflects the prompt back.
type echoAgent struct{}

func (echoAgent) Descriptor() agent.Descriptor {
	return agent.Descriptor{Name: "echo", Description: "echoes the prompt back"}
}

func (echoAgent) Run(_ *ectx.AgentCtx, prompt string, _ []types.Resource) (types.AgentOutput, error) {
	return types.AgentOutput{Content: prompt}, nil
}

type pingArgs struct{}

type pingResult struct {
	Reply string `json:"reply"`
}

// scriptedModel cycles through a fixed list of scripted turns, repeating
// the last one once exhausted, standing in for a real LLM provider adapter.
type scriptedModel struct {
	outputs []types.AgentOutput
	calls   int
}

func (m *scriptedModel) Complete(_ context.Context, _ types.CompletionRequest) (types.AgentOutput, error) {
	i := m.calls
	if i >= len(m.outputs) {
		i = len(m.outputs) - 1
	}
	m.calls++
	return m.outputs[i], nil
}

// personRecord is the structured-extraction target of spec.md §8.2.
type personRecord struct {
	Name string `json:"name"`
	Age  int    `json:"age,omitempty"`
}

// extractAgent wraps completion.Extractor, forcing the model to call
// submit_personrecord exactly once.
type extractAgent struct{}

func (extractAgent) Descriptor() agent.Descriptor {
	return agent.Descriptor{Name: "extract_person", Description: "extracts a structured person record"}
}

func (extractAgent) Run(ctx *ectx.AgentCtx, prompt string, _ []types.Resource) (types.AgentOutput, error) {
	extractor, err := completion.NewExtractor[personRecord]("personrecord", "extract the person described", nil)
	if err != nil {
		return types.AgentOutput{}, err
	}
	person, out, err := extractor.Extract(ctx, prompt)
	if err != nil {
		return types.AgentOutput{}, err
	}
	data, err := json.Marshal(person)
	if err != nil {
		return types.AgentOutput{}, err
	}
	out.Content = string(data)
	return out, nil
}

// weatherAgent wraps completion.Iterator over a tool-call turn followed by
// a final-answer turn, the tool-invocation-loop scenario of spec.md §8.3.
type weatherAgent struct{}

func (weatherAgent) Descriptor() agent.Descriptor {
	return agent.Descriptor{Name: "weather_agent", Description: "answers weather questions", ToolDependencies: []string{"weather"}}
}

func (weatherAgent) Run(ctx *ectx.AgentCtx, prompt string, _ []types.Resource) (types.AgentOutput, error) {
	it := completion.NewIterator(ctx, types.CompletionRequest{Prompt: prompt}, 0)
	var last types.AgentOutput
	for {
		out, hasMore, err := it.Next()
		if err != nil {
			return types.AgentOutput{}, err
		}
		last = out
		if !hasMore {
			break
		}
	}
	return last, nil
}

type weatherArgs struct {
	City string `json:"city"`
}

type weatherResult struct {
	Temp int `json:"temp"`
}

func newWeatherTool(t *testing.T) tool.Tool {
	t.Helper()
	wt, err := tool.NewTypedTool("weather", "gets the current temperature for a city", false, false,
		func(_ *ectx.BaseCtx, _ weatherArgs, _ []types.Resource) (weatherResult, []types.Resource, error) {
			return weatherResult{Temp: 70}, nil, nil
		})
	require.NoError(t, err)
	return wt
}

func TestScenario_HelloWorldAgent(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(echoAgent{}))

	b := &engine.Builder{
		Name:   "eng1",
		Agents: agents,
		Keys:   testKeys(t, 10),
		Store:  memory.New(),
	}
	e, err := b.Build(context.Background(), "echo")
	require.NoError(t, err)

	out, err := e.AgentRun(types.Anonymous, "", types.AgentInput{Name: "echo", Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Content)
}

func TestScenario_SubmitToolExtractor(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(extractAgent{}))

	model := &scriptedModel{outputs: []types.AgentOutput{
		{ToolCalls: []types.ToolCall{{ID: "1", Name: "submit_personrecord", Args: `{"name":"John","age":42}`}}},
	}}

	b := &engine.Builder{
		Name:       "eng1",
		Agents:     agents,
		Completion: model,
		Keys:       testKeys(t, 11),
		Store:      memory.New(),
	}
	e, err := b.Build(context.Background(), "extract_person")
	require.NoError(t, err)

	out, err := e.AgentRun(types.Anonymous, "", types.AgentInput{Name: "extract_person", Prompt: "John is 42"})
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "submit_personrecord", out.ToolCalls[0].Name)
	assert.JSONEq(t, `{"name":"John","age":42}`, out.Content)
}

func TestScenario_ToolInvocationLoop(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(weatherAgent{}))

	tools := tool.NewRegistry()
	require.NoError(t, tools.Add(newWeatherTool(t)))

	model := &scriptedModel{outputs: []types.AgentOutput{
		{ToolCalls: []types.ToolCall{{ID: "1", Name: "weather", Args: `{"city":"NY"}`}}},
		{Content: "The weather in NY is 70 degrees."},
	}}

	b := &engine.Builder{
		Name:       "eng1",
		Agents:     agents,
		Tools:      tools,
		Completion: model,
		Keys:       testKeys(t, 12),
		Store:      memory.New(),
	}
	e, err := b.Build(context.Background(), "weather_agent")
	require.NoError(t, err)

	out, err := e.AgentRun(types.Anonymous, "", types.AgentInput{Name: "weather_agent", Prompt: "what's the weather in NY?"})
	require.NoError(t, err)
	assert.Equal(t, "The weather in NY is 70 degrees.", out.Content)
	assert.Empty(t, out.ToolCalls)
	assert.Equal(t, 2, model.calls)
}

func TestScenario_ThreadPermissionViaToolCall(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(echoAgent{}))

	threads := state.NewThreadStore(memory.New())
	users := state.NewUserStore(memory.New())
	svc := management.New(threads, users)

	var entropy [8]byte
	threadID := types.NewXid(1000, entropy)
	owner := types.Principal{1, 2, 3}
	outsider := types.Principal{9, 9, 9}
	_, err := svc.CreateThread(context.Background(), threadID, owner, 10, 1000000)
	require.NoError(t, err)

	b := &engine.Builder{
		Name:       "eng1",
		Agents:     agents,
		Tools:      tool.NewRegistry(),
		Management: svc,
		Keys:       testKeys(t, 13),
		Store:      memory.New(),
	}
	e, err := b.Build(context.Background(), "echo")
	require.NoError(t, err)

	// The owner can read their own thread.
	ownOut, err := e.ToolCall(owner, "", types.ToolInput{
		Name: "get_thread",
		Args: []byte(`{"thread_id":"` + threadID.String() + `"}`),
	})
	require.NoError(t, err)
	assert.Contains(t, string(ownOut.Output), "private")

	// A principal outside the roster is refused, even for a read.
	_, err = e.ToolCall(outsider, "", types.ToolInput{
		Name: "get_thread",
		Args: []byte(`{"thread_id":"` + threadID.String() + `"}`),
	})
	require.Error(t, err)

	// Making the thread public lets the outsider read it.
	_, err = e.ToolCall(owner, "", types.ToolInput{
		Name: "set_visibility",
		Args: []byte(`{"thread_id":"` + threadID.String() + `","visibility":"public"}`),
	})
	require.NoError(t, err)

	_, err = e.ToolCall(outsider, "", types.ToolInput{
		Name: "get_thread",
		Args: []byte(`{"thread_id":"` + threadID.String() + `"}`),
	})
	require.NoError(t, err)
}

func TestScenario_PromoteAndDemoteControllerViaToolCall(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(echoAgent{}))

	threads := state.NewThreadStore(memory.New())
	users := state.NewUserStore(memory.New())
	svc := management.New(threads, users)

	var entropy [8]byte
	threadID := types.NewXid(2000, entropy)
	owner := types.Principal{1, 2, 3}
	second := types.Principal{4, 5, 6}
	_, err := svc.CreateThread(context.Background(), threadID, owner, 10, 1000000)
	require.NoError(t, err)

	b := &engine.Builder{
		Name:       "eng1",
		Agents:     agents,
		Tools:      tool.NewRegistry(),
		Management: svc,
		Keys:       testKeys(t, 14),
		Store:      memory.New(),
	}
	e, err := b.Build(context.Background(), "echo")
	require.NoError(t, err)

	// A non-participant can't be promoted directly.
	_, err = e.ToolCall(owner, "", types.ToolInput{
		Name: "add_controller",
		Args: []byte(`{"thread_id":"` + threadID.String() + `","principal":"` + second.String() + `"}`),
	})
	require.Error(t, err)

	_, err = e.ToolCall(owner, "", types.ToolInput{
		Name: "add_participant",
		Args: []byte(`{"thread_id":"` + threadID.String() + `","principal":"` + second.String() + `","role":"member"}`),
	})
	require.NoError(t, err)

	// An ordinary participant lacks control permission to self-promote.
	_, err = e.ToolCall(second, "", types.ToolInput{
		Name: "add_controller",
		Args: []byte(`{"thread_id":"` + threadID.String() + `","principal":"` + second.String() + `"}`),
	})
	require.Error(t, err)

	_, err = e.ToolCall(owner, "", types.ToolInput{
		Name: "add_controller",
		Args: []byte(`{"thread_id":"` + threadID.String() + `","principal":"` + second.String() + `"}`),
	})
	require.NoError(t, err)

	meta, err := threads.Get(context.Background(), threadID)
	require.NoError(t, err)
	assert.True(t, meta.IsController(second))

	_, err = e.ToolCall(owner, "", types.ToolInput{
		Name: "remove_controller",
		Args: []byte(`{"thread_id":"` + threadID.String() + `","principal":"` + second.String() + `"}`),
	})
	require.NoError(t, err)

	meta, err = threads.Get(context.Background(), threadID)
	require.NoError(t, err)
	assert.False(t, meta.IsController(second))
}

func TestScenario_BannedUserRejectedFromAgentRunAndToolCall(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(echoAgent{}))

	threads := state.NewThreadStore(memory.New())
	users := state.NewUserStore(memory.New())
	svc := management.New(threads, users)

	banned, err := users.GetOrCreate(context.Background(), "banned-user")
	require.NoError(t, err)
	banned.Status = types.UserBanned
	require.NoError(t, users.Save(context.Background(), banned))

	b := &engine.Builder{
		Name:       "eng1",
		Agents:     agents,
		Tools:      tool.NewRegistry(),
		Management: svc,
		Keys:       testKeys(t, 15),
		Store:      memory.New(),
	}
	e, err := b.Build(context.Background(), "echo")
	require.NoError(t, err)

	_, err = e.AgentRun(types.Anonymous, "banned-user", types.AgentInput{Name: "echo", Prompt: "hi"})
	require.Error(t, err)

	_, err = e.ToolCall(types.Anonymous, "banned-user", types.ToolInput{Name: "get_thread", Args: []byte(`{"thread_id":"x"}`)})
	require.Error(t, err)

	// An anonymous caller (no bearer-resolved user) is never gated here.
	_, err = e.AgentRun(types.Anonymous, "", types.AgentInput{Name: "echo", Prompt: "hi"})
	require.NoError(t, err)
}

func TestScenario_CreditExhaustedUserRejectedButActiveSubscriberAllowed(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(echoAgent{}))

	threads := state.NewThreadStore(memory.New())
	users := state.NewUserStore(memory.New())
	svc := management.New(threads, users)

	exhausted, err := users.GetOrCreate(context.Background(), "no-credit")
	require.NoError(t, err)
	require.NoError(t, users.Save(context.Background(), exhausted))

	subscriber, err := users.GetOrCreate(context.Background(), "subscriber")
	require.NoError(t, err)
	subscriber.SubscriptionExpiryMs = time.Now().Add(time.Hour).UnixMilli()
	require.NoError(t, users.Save(context.Background(), subscriber))

	b := &engine.Builder{
		Name:       "eng1",
		Agents:     agents,
		Tools:      tool.NewRegistry(),
		Management: svc,
		Keys:       testKeys(t, 16),
		Store:      memory.New(),
	}
	e, err := b.Build(context.Background(), "echo")
	require.NoError(t, err)

	_, err = e.AgentRun(types.Anonymous, "no-credit", types.AgentInput{Name: "echo", Prompt: "hi"})
	require.Error(t, err)

	out, err := e.AgentRun(types.Anonymous, "subscriber", types.AgentInput{Name: "echo", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Content)
}
