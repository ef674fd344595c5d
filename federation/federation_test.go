package federation_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanxun/anda-sub000/cache"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/federation"
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/store/memory"
	"github.com/xiaoyuanxun/anda-sub000/transport"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

type stubSigner struct{}

func (stubSigner) SignDigest(_ context.Context, digest [32]byte) ([]byte, []byte, error) {
	return make([]byte, 64), make([]byte, 32), nil
}

func (stubSigner) Principal() (types.Principal, error) { return types.Principal{1}, nil }

type fakeDoer struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func rpcResponse(t *testing.T, v any) *http.Response {
	t.Helper()
	payload, err := cbor.Marshal(v)
	require.NoError(t, err)
	body, err := cbor.Marshal(transport.Result{Ok: payload})
	require.NoError(t, err)
	return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(body))}
}

func testBaseCtx(t *testing.T, doer transport.Doer) *ectx.BaseCtx {
	t.Helper()
	root := make([]byte, keys.RootLen)
	for i := range root {
		root[i] = byte(i + 1)
	}
	ks, err := keys.NewLocalService(root)
	require.NoError(t, err)
	c, err := cache.New(0)
	require.NoError(t, err)
	outer := transport.NewOuterWithDoer(doer, "anda-test/1.0")
	services := ectx.Services{Keys: ks, Store: memory.New(), Cache: c, Outer: outer, Identity: stubSigner{}}
	return ectx.New(context.Background(), types.Principal{9}, "eng1", services)
}

func peerInfo(toolName, agentName string) types.Information {
	return types.Information{
		ID:           types.Principal{2},
		Name:         "peer-engine",
		DefaultAgent: agentName,
		ToolDefinitions: []types.FunctionDefinition{
			{Name: toolName, Description: "a peer tool", Parameters: []byte(`{}`)},
		},
		AgentDefinitions: []types.AgentDefinition{
			{Name: agentName, Description: "a peer agent"},
		},
		Endpoint: "https://peer.example/e/peer2",
	}
}

func TestRegistry_RegisterFetchesAndResolvesPrefixedNames(t *testing.T) {
	var requestedMethod string
	doer := &fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(r.Body)
		var env transport.Envelope
		require.NoError(t, cbor.Unmarshal(body, &env))
		requestedMethod = env.Method
		return rpcResponse(t, peerInfo("search", "helper")), nil
	}}
	ctx := testBaseCtx(t, doer)

	reg := federation.NewRegistry(nil)
	info, err := reg.Register(ctx, "peer2", "https://peer.example/e/peer2")
	require.NoError(t, err)
	assert.Equal(t, "information", requestedMethod)
	assert.Equal(t, "peer-engine", info.Name)
	assert.Contains(t, reg.Peers(), "peer2")

	endpoint, stripped, ok := reg.ResolveTool("RT_peer2_search")
	require.True(t, ok)
	assert.Equal(t, "search", stripped)
	assert.Equal(t, "https://peer.example/e/peer2", endpoint)

	_, _, ok = reg.ResolveTool("RT_unknown_search")
	assert.False(t, ok)

	endpoint, stripped, ok = reg.ResolveAgent("RA_peer2_helper")
	require.True(t, ok)
	assert.Equal(t, "helper", stripped)
	assert.Equal(t, "https://peer.example/e/peer2", endpoint)
}

func TestRegistry_RejectsAliasWithUnderscore(t *testing.T) {
	reg := federation.NewRegistry(nil)
	ctx := testBaseCtx(t, &fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		t.Fatal("should not dial")
		return nil, nil
	}})
	_, err := reg.Register(ctx, "peer_2", "https://peer.example/e/peer2")
	require.Error(t, err)
}

func TestRegistry_ToolAndAgentDefinitionsArePrefixed(t *testing.T) {
	doer := &fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		return rpcResponse(t, peerInfo("search", "helper")), nil
	}}
	ctx := testBaseCtx(t, doer)
	reg := federation.NewRegistry(nil)
	_, err := reg.Register(ctx, "peer2", "https://peer.example/e/peer2")
	require.NoError(t, err)

	defs := reg.ToolDefinitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "RT_peer2_search", defs[0].Name)

	agentDefs := reg.AgentDefinitions()
	require.Len(t, agentDefs, 1)
	assert.Equal(t, "RA_peer2_helper", agentDefs[0].Name)
}

func TestRegistry_RefreshDedupsViaCache(t *testing.T) {
	calls := 0
	doer := &fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		calls++
		return rpcResponse(t, peerInfo("search", "helper")), nil
	}}
	ctx := testBaseCtx(t, doer)
	c, err := cache.New(0)
	require.NoError(t, err)
	reg := federation.NewRegistry(c)
	_, err = reg.Register(ctx, "peer2", "https://peer.example/e/peer2")
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	require.NoError(t, reg.Refresh(ctx, "peer2"))
	assert.Equal(t, 2, calls)
}

func TestRegistry_RefreshUnknownPeerIsError(t *testing.T) {
	reg := federation.NewRegistry(nil)
	ctx := testBaseCtx(t, &fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		t.Fatal("should not dial")
		return nil, nil
	}})
	err := reg.Refresh(ctx, "nope")
	require.Error(t, err)
}

type fakeLocalRunner struct {
	called bool
	out    types.AgentOutput
}

func (f *fakeLocalRunner) Run(ctx *ectx.AgentCtx, in types.AgentInput) (types.AgentOutput, error) {
	f.called = true
	return f.out, nil
}

func TestAgentRunner_DelegatesNonPrefixedNamesLocally(t *testing.T) {
	local := &fakeLocalRunner{out: types.AgentOutput{Content: "local reply"}}
	reg := federation.NewRegistry(nil)
	runner := federation.NewAgentRunner(local, reg)

	base := testBaseCtx(t, &fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		t.Fatal("should not dial")
		return nil, nil
	}})
	agentCtx := ectx.NewAgent(base, ectx.AgentComponents{Agents: runner})

	out, err := runner.Run(agentCtx, types.AgentInput{Name: "helper", Prompt: "hi"})
	require.NoError(t, err)
	assert.True(t, local.called)
	assert.Equal(t, "local reply", out.Content)
}

func TestAgentRunner_ProxiesPrefixedNamesRemotely(t *testing.T) {
	doer := &fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		var env transport.Envelope
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, cbor.Unmarshal(body, &env))
		if env.Method == "information" {
			return rpcResponse(t, peerInfo("search", "helper")), nil
		}
		return rpcResponse(t, types.AgentOutput{Content: "remote reply"}), nil
	}}
	base := testBaseCtx(t, doer)

	reg := federation.NewRegistry(nil)
	_, err := reg.Register(base, "peer2", "https://peer.example/e/peer2")
	require.NoError(t, err)

	local := &fakeLocalRunner{}
	runner := federation.NewAgentRunner(local, reg)
	agentCtx := ectx.NewAgent(base, ectx.AgentComponents{Agents: runner})

	out, err := runner.Run(agentCtx, types.AgentInput{Name: "RA_peer2_helper", Prompt: "hi"})
	require.NoError(t, err)
	assert.False(t, local.called)
	assert.Equal(t, "remote reply", out.Content)
}
