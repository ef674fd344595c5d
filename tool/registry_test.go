package tool_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanxun/anda-sub000/cache"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/store/memory"
	"github.com/xiaoyuanxun/anda-sub000/tool"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

type weatherArgs struct {
	City string `json:"city"`
}

type weatherOutput struct {
	TempC int `json:"temp_c"`
}

func testBaseCtx(t *testing.T) *ectx.BaseCtx {
	t.Helper()
	root := make([]byte, keys.RootLen)
	for i := range root {
		root[i] = byte(i + 1)
	}
	ks, err := keys.NewLocalService(root)
	require.NoError(t, err)
	c, err := cache.New(0)
	require.NoError(t, err)
	return ectx.New(context.Background(), types.Principal{9}, "eng1", ectx.Services{
		Keys: ks, Store: memory.New(), Cache: c,
	})
}

func weatherTool(t *testing.T) tool.Tool {
	t.Helper()
	wt, err := tool.NewTypedTool("get_weather", "Look up the current temperature for a city.",
		false, false,
		func(_ *ectx.BaseCtx, args weatherArgs, _ []types.Resource) (weatherOutput, []types.Resource, error) {
			if args.City == "" {
				return weatherOutput{}, nil, assertError("city is required")
			}
			return weatherOutput{TempC: 21}, nil, nil
		})
	require.NoError(t, err)
	return wt
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func assertError(msg string) error { return simpleErr(msg) }

func TestRegistry_AddAndCall(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Add(weatherTool(t)))
	assert.True(t, r.Contains("get_weather"))

	out, err := r.Call(testBaseCtx(t), types.ToolInput{Name: "get_weather", Args: []byte(`{"city":"Seoul"}`)})
	require.NoError(t, err)
	var parsed weatherOutput
	require.NoError(t, json.Unmarshal(out.Output, &parsed))
	assert.Equal(t, 21, parsed.TempC)
}

func TestRegistry_CallUnknownTool(t *testing.T) {
	r := tool.NewRegistry()
	_, err := r.Call(testBaseCtx(t), types.ToolInput{Name: "nope", Args: []byte(`{}`)})
	require.Error(t, err)
}

func TestRegistry_CallInvalidArgsNeverInvokesTool(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Add(weatherTool(t)))

	_, err := r.Call(testBaseCtx(t), types.ToolInput{Name: "get_weather", Args: []byte(`not json`)})
	require.Error(t, err)
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Add(weatherTool(t)))
	err := r.Add(weatherTool(t))
	require.Error(t, err)
}

func TestRegistry_RejectsResourcesForOptOutTool(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Add(weatherTool(t)))

	_, err := r.Call(testBaseCtx(t), types.ToolInput{
		Name:      "get_weather",
		Args:      []byte(`{"city":"Seoul"}`),
		Resources: []types.Resource{{Tag: "doc", Name: "x"}},
	})
	require.Error(t, err)
}

func TestRegistry_Definitions(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Add(weatherTool(t)))

	defs := r.Definitions(nil)
	require.Len(t, defs, 1)
	assert.Equal(t, "get_weather", defs[0].Name)
	assert.NotEmpty(t, defs[0].Parameters)
}
