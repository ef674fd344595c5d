package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanxun/anda-sub000/agent"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/management"
	"github.com/xiaoyuanxun/anda-sub000/state"
	"github.com/xiaoyuanxun/anda-sub000/store/memory"
	"github.com/xiaoyuanxun/anda-sub000/tool"
	"github.com/xiaoyuanxun/anda-sub000/types"

	"github.com/xiaoyuanxun/anda-sub000/engine"
)

func testKeys(t *testing.T, seed byte) *keys.LocalService {
	t.Helper()
	root := make([]byte, keys.RootLen)
	for i := range root {
		root[i] = seed + byte(i)
	}
	ks, err := keys.NewLocalService(root)
	require.NoError(t, err)
	return ks
}

func TestBuilder_RejectsMissingDefaultAgent(t *testing.T) {
	b := &engine.Builder{
		Name:   "eng1",
		Agents: agent.NewRegistry(),
		Keys:   testKeys(t, 1),
		Store:  memory.New(),
	}
	_, err := b.Build(context.Background(), "nope")
	require.Error(t, err)
}

func TestBuilder_BuildsMinimalEngine(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(echoAgent{}))

	b := &engine.Builder{
		Name:   "eng1",
		Agents: agents,
		Keys:   testKeys(t, 2),
		Store:  memory.New(),
	}
	e, err := b.Build(context.Background(), "echo")
	require.NoError(t, err)

	info := e.Information()
	assert.Equal(t, "eng1", info.Name)
	assert.Equal(t, "echo", info.DefaultAgent)
	require.Len(t, info.AgentDefinitions, 1)
	assert.Equal(t, "echo", info.AgentDefinitions[0].Name)
}

func TestBuilder_RegistersManagementTools(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(echoAgent{}))

	threads := state.NewThreadStore(memory.New())
	users := state.NewUserStore(memory.New())
	svc := management.New(threads, users)

	b := &engine.Builder{
		Name:       "eng1",
		Agents:     agents,
		Tools:      tool.NewRegistry(),
		Management: svc,
		Keys:       testKeys(t, 3),
		Store:      memory.New(),
	}
	e, err := b.Build(context.Background(), "echo")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, def := range e.Information().ToolDefinitions {
		names[def.Name] = true
	}
	for _, want := range []string{"get_thread", "add_participant", "remove_participant", "quit_controller", "add_controller", "remove_controller", "add_manager", "remove_manager", "set_visibility", "set_thread_status"} {
		assert.True(t, names[want], "expected management tool %q to be registered", want)
	}
	assert.NotNil(t, e.Management())
}

func TestBuilder_WithoutCompletionModel_ToolCallStillWorks(t *testing.T) {
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(echoAgent{}))

	tools := tool.NewRegistry()
	pingTool, err := tool.NewTypedTool("ping", "replies pong", false, false,
		func(_ *ectx.BaseCtx, _ pingArgs, _ []types.Resource) (pingResult, []types.Resource, error) {
			return pingResult{Reply: "pong"}, nil, nil
		})
	require.NoError(t, err)
	require.NoError(t, tools.Add(pingTool))

	b := &engine.Builder{
		Name:   "eng1",
		Agents: agents,
		Tools:  tools,
		Keys:   testKeys(t, 4),
		Store:  memory.New(),
	}
	e, err := b.Build(context.Background(), "echo")
	require.NoError(t, err)

	out, err := e.ToolCall(types.Anonymous, "", types.ToolInput{Name: "ping", Args: []byte("{}")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reply":"pong"}`, string(out.Output))
}
