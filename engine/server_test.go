package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanxun/anda-sub000/agent"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/tool"
	"github.com/xiaoyuanxun/anda-sub000/transport"
	"github.com/xiaoyuanxun/anda-sub000/types"

	"github.com/xiaoyuanxun/anda-sub000/engine"
)

type whoamiResult struct {
	Caller string `json:"caller"`
}

func newWhoamiTool(t *testing.T) tool.Tool {
	t.Helper()
	wt, err := tool.NewTypedTool("whoami", "returns the calling principal", false, false,
		func(ctx *ectx.BaseCtx, _ struct{}, _ []types.Resource) (whoamiResult, []types.Resource, error) {
			return whoamiResult{Caller: ctx.Caller().String()}, nil, nil
		})
	require.NoError(t, err)
	return wt
}

func buildTestEngine(t *testing.T, seed byte, name string, tools *tool.Registry) (*engine.Engine, types.Principal) {
	t.Helper()
	agents := agent.NewRegistry()
	require.NoError(t, agents.Add(echoAgent{}))

	ks := testKeys(t, seed)
	identity := keys.NewIdentity(ks, keys.IdentityPath)
	principal, err := identity.Principal()
	require.NoError(t, err)

	b := &engine.Builder{
		ID:       principal,
		Name:     name,
		Agents:   agents,
		Tools:    tools,
		Keys:     ks,
		Identity: identity,
	}
	e, err := b.Build(context.Background(), "echo")
	require.NoError(t, err)
	return e, principal
}

func TestServer_WellKnownInformationAggregatesEngines(t *testing.T) {
	e1, _ := buildTestEngine(t, 20, "eng1", tool.NewRegistry())
	e2, _ := buildTestEngine(t, 21, "eng2", tool.NewRegistry())

	srv := engine.NewServer(":0", nil, nil, 0)
	srv.Register(e1)
	srv.Register(e2)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/.well-known/information")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var infos []types.Information
	require.NoError(t, cbor.Unmarshal(data, &infos))
	assert.Len(t, infos, 2)
}

func TestServer_RejectsUnsignedRPC(t *testing.T) {
	e1, _ := buildTestEngine(t, 22, "eng1", tool.NewRegistry())

	srv := engine.NewServer(":0", nil, nil, 0)
	srv.Register(e1)

	ts := httptest.NewTLSServer(srv.Handler())
	defer ts.Close()

	env := transport.Envelope{Method: "information"}
	body, err := cbor.Marshal(env)
	require.NoError(t, err)

	resp, err := ts.Client().Post(ts.URL+"/"+e1.Information().ID.String(), "application/cbor", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)
}

// TestScenario_SignedRPCRoundTrip is spec.md §8.6: E1 signs a tool_call
// request to E2, and E2 resolves E1's own principal as the caller from the
// envelope's signature headers, never trusting a caller claim out of band.
func TestScenario_SignedRPCRoundTrip(t *testing.T) {
	tools := tool.NewRegistry()
	require.NoError(t, tools.Add(newWhoamiTool(t)))
	e2, _ := buildTestEngine(t, 31, "eng2", tools)

	srv2 := engine.NewServer(":0", nil, nil, 0)
	srv2.Register(e2)

	ts := httptest.NewTLSServer(srv2.Handler())
	defer ts.Close()

	ks1 := testKeys(t, 30)
	identity1 := keys.NewIdentity(ks1, keys.IdentityPath)
	caller1, err := identity1.Principal()
	require.NoError(t, err)

	outer := transport.NewOuterWithDoer(ts.Client(), "anda-test/1.0")
	endpoint := ts.URL + "/" + e2.Information().ID.String()

	var out types.ToolOutput
	err = outer.HTTPSSignedRPC(context.Background(), identity1, endpoint, "tool_call",
		types.ToolInput{Name: "whoami", Args: []byte("{}")}, &out)
	require.NoError(t, err)

	var result whoamiResult
	require.NoError(t, json.Unmarshal(out.Output, &result))
	assert.Equal(t, caller1.String(), result.Caller)
}
