package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/cunzhi/internal/interaction"
	"github.com/fyrsmithlabs/cunzhi/internal/search"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

func requireDispatchError(t *testing.T, err error, kind ErrorKind) *DispatchError {
	t.Helper()
	var de *DispatchError
	require.True(t, errors.As(err, &de), "error %v is not a DispatchError", err)
	assert.Equal(t, kind, de.Kind)
	return de
}

func TestNewDispatcher_Validation(t *testing.T) {
	f := newFixture(t, theme.Default())

	_, err := NewDispatcher(theme.Default(), nil, f.dispatcher.handlers)
	assert.Error(t, err)

	_, err = NewDispatcher(theme.Default(), f.store, Handlers{})
	assert.Error(t, err)

	broken := theme.Default()
	broken.ToolSearch.ID = broken.ToolMemory.ID
	_, err = NewDispatcher(broken, f.store, f.dispatcher.handlers)
	assert.ErrorIs(t, err, theme.ErrInvalidTheme)
}

func TestDispatcher_Info(t *testing.T) {
	f := newFixture(t, theme.Default())

	info := f.dispatcher.Info()
	assert.Equal(t, "Cybertron-MCP", info.Name)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, ProtocolVersion, info.ProtocolVersion)
	assert.Contains(t, info.Instructions, "赛博坦军团")
	require.NotNil(t, info.Capabilities)
	require.NotNil(t, info.Capabilities.Tools)
	assert.True(t, info.Capabilities.Tools.ListChanged)
	assert.Nil(t, info.Capabilities.Logging)
	assert.Nil(t, info.Capabilities.Prompts)
	assert.Nil(t, info.Capabilities.Resources)
}

func TestDispatcher_ListTools(t *testing.T) {
	ctx := context.Background()

	t.Run("empty map lists only the leader", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		tools := f.dispatcher.ListTools(ctx)
		require.Len(t, tools, 1)
		assert.Equal(t, "optimus", tools[0].Name)
		assert.Equal(t, "擎天柱", tools[0].Title)
		assert.NotEmpty(t, tools[0].Description)
		assert.NotNil(t, tools[0].InputSchema)
	})

	t.Run("enabled tools follow the leader in role order", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		f.enable(t, theme.RoleMemory)
		assert.Equal(t, []string{"optimus", "bumblebee"}, toolNames(f.dispatcher.ListTools(ctx)))

		f.enable(t, theme.RoleSearch)
		assert.Equal(t, []string{"optimus", "bumblebee", "megatron"}, toolNames(f.dispatcher.ListTools(ctx)))

		require.NoError(t, f.store.SetEnabled("bumblebee", false))
		assert.Equal(t, []string{"optimus", "megatron"}, toolNames(f.dispatcher.ListTools(ctx)))
	})

	t.Run("leader is listed even when stored as disabled", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		f.writeConfig(t, "mcp:\n  tools:\n    optimus: false\n    megatron: true\n")
		assert.Equal(t, []string{"optimus", "megatron"}, toolNames(f.dispatcher.ListTools(ctx)))
	})

	t.Run("ids from another theme are ignored", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		f.writeConfig(t, "mcp:\n  tools:\n    ji: true\n    sou: true\n")
		assert.Equal(t, []string{"optimus"}, toolNames(f.dispatcher.ListTools(ctx)))
	})

	t.Run("external edits are visible on the next listing", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		assert.Len(t, f.dispatcher.ListTools(ctx), 1)
		f.writeConfig(t, "mcp:\n  tools:\n    bumblebee: true\n")
		assert.Equal(t, []string{"optimus", "bumblebee"}, toolNames(f.dispatcher.ListTools(ctx)))
	})
}

func TestDispatcher_ListTools_EveryTheme(t *testing.T) {
	for _, choice := range theme.Available() {
		t.Run(choice.Name, func(t *testing.T) {
			th, ok := theme.Builtin(choice.Name)
			require.True(t, ok)
			f := newFixture(t, th)

			tools := f.dispatcher.ListTools(context.Background())
			require.Len(t, tools, 1)
			assert.Equal(t, th.Leader().ID, tools[0].Name)

			_, err := f.dispatcher.CallTool(context.Background(), "foo", nil)
			de := requireDispatchError(t, err, KindUnknownTool)
			assert.Equal(t, th.UnknownToolMessage("foo"), de.Message)

			_, err = f.dispatcher.CallTool(context.Background(), th.ToolSearch.ID, json.RawMessage(`{}`))
			de = requireDispatchError(t, err, KindToolDisabled)
			assert.Equal(t, th.ToolDisabledMessage(theme.RoleSearch), de.Message)
		})
	}
}

func TestDispatcher_CallTool_UnknownTool(t *testing.T) {
	f := newFixture(t, theme.Default())

	_, err := f.dispatcher.CallTool(context.Background(), "foo", json.RawMessage(`{}`))
	de := requireDispatchError(t, err, KindUnknownTool)
	assert.Equal(t, "未知的战士: foo，不属于赛博坦军团！", de.Message)
	assert.Equal(t, int64(jsonrpc.CodeInvalidRequest), de.WireError().Code)

	// ids of another theme are unknown here
	_, err = f.dispatcher.CallTool(context.Background(), "zhi", json.RawMessage(`{"message":"hi"}`))
	requireDispatchError(t, err, KindUnknownTool)
	assert.Empty(t, f.renderer.requests())
}

func TestDispatcher_CallTool_Disabled(t *testing.T) {
	f := newFixture(t, theme.Default())

	_, err := f.dispatcher.CallTool(context.Background(), "megatron",
		json.RawMessage(`{"project_root_path":"/src","query":"main"}`))
	de := requireDispatchError(t, err, KindToolDisabled)
	assert.Equal(t, "威震天正在休眠中，请先激活！", de.Message)
	assert.Equal(t, int64(jsonrpc.CodeInternalError), de.WireError().Code)
	assert.Zero(t, f.searcher.calls())
}

func TestDispatcher_CallTool_Leader(t *testing.T) {
	ctx := context.Background()

	t.Run("missing message is invalid params", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		_, err := f.dispatcher.CallTool(ctx, "optimus", json.RawMessage(`{}`))
		de := requireDispatchError(t, err, KindInvalidParams)
		assert.Contains(t, de.Message, "擎天柱无法解析指令")
		assert.Equal(t, int64(jsonrpc.CodeInvalidParams), de.WireError().Code)
		assert.Empty(t, f.renderer.requests())
	})

	t.Run("wrong types are invalid params", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		_, err := f.dispatcher.CallTool(ctx, "optimus", json.RawMessage(`{"message":5}`))
		requireDispatchError(t, err, KindInvalidParams)

		_, err = f.dispatcher.CallTool(ctx, "optimus", json.RawMessage(`[1,2]`))
		requireDispatchError(t, err, KindInvalidParams)
	})

	t.Run("markdown defaults to true", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		res, err := f.dispatcher.CallTool(ctx, "optimus", json.RawMessage(`{"message":"继续吗？"}`))
		require.NoError(t, err)
		require.Len(t, res.Content, 1)
		assert.Equal(t, "用户输入: 好的", textOf(t, res.Content[0]))

		reqs := f.renderer.requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "继续吗？", reqs[0].Message)
		assert.True(t, reqs[0].IsMarkdown)
		assert.Nil(t, reqs[0].PredefinedOptions)
	})

	t.Run("explicit fields pass through", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		f.renderer.resp = &interaction.Response{SelectedOptions: []string{"A"}}
		res, err := f.dispatcher.CallTool(ctx, "optimus",
			json.RawMessage(`{"message":"pick","predefined_options":["A","B"],"is_markdown":false}`))
		require.NoError(t, err)
		assert.Equal(t, "选择的选项: A", textOf(t, res.Content[0]))

		reqs := f.renderer.requests()
		require.Len(t, reqs, 1)
		assert.False(t, reqs[0].IsMarkdown)
		assert.Equal(t, []string{"A", "B"}, reqs[0].PredefinedOptions)
	})

	t.Run("front-end failure is a collaborator failure", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		f.renderer.resp = nil
		f.renderer.err = errors.New("popup crashed")
		_, err := f.dispatcher.CallTool(ctx, "optimus", json.RawMessage(`{"message":"hi"}`))
		de := requireDispatchError(t, err, KindCollaborator)
		assert.Contains(t, de.Message, "popup crashed")
		assert.Equal(t, int64(jsonrpc.CodeInternalError), de.WireError().Code)
	})

	t.Run("leader cannot be disabled by config", func(t *testing.T) {
		f := newFixture(t, theme.Default())
		f.writeConfig(t, "mcp:\n  tools:\n    optimus: false\n")
		_, err := f.dispatcher.CallTool(ctx, "optimus", json.RawMessage(`{"message":"hi"}`))
		require.NoError(t, err)
	})
}

func TestDispatcher_CallTool_Memory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, theme.Default())
	f.enable(t, theme.RoleMemory)
	project := t.TempDir()

	args := func(v map[string]any) json.RawMessage {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return data
	}

	res, err := f.dispatcher.CallTool(ctx, "bumblebee", args(map[string]any{
		"action":       "记忆",
		"project_path": project,
		"content":      "prefer table driven tests",
		"category":     "rule",
	}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res.Content[0]), "大黄蜂已存储记忆")

	res, err = f.dispatcher.CallTool(ctx, "bumblebee", args(map[string]any{
		"action":       "回忆",
		"project_path": project,
	}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res.Content[0]), "prefer table driven tests")

	_, err = f.dispatcher.CallTool(ctx, "bumblebee", args(map[string]any{
		"action":       "回忆",
		"project_path": "relative/dir",
	}))
	de := requireDispatchError(t, err, KindInvalidParams)
	assert.Contains(t, de.Message, "大黄蜂无法定位项目路径")

	_, err = f.dispatcher.CallTool(ctx, "bumblebee", args(map[string]any{"action": "回忆"}))
	de = requireDispatchError(t, err, KindInvalidParams)
	assert.Contains(t, de.Message, "大黄蜂无法解析指令")

	_, err = f.dispatcher.CallTool(ctx, "bumblebee", args(map[string]any{
		"action":       "忘记",
		"project_path": project,
	}))
	de = requireDispatchError(t, err, KindInvalidParams)
	assert.Contains(t, de.Message, "不理解这个指令")
}

func TestDispatcher_CallTool_Search(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, theme.Default())
	f.enable(t, theme.RoleSearch)
	f.searcher.results = []search.Result{
		{Path: "main.go", StartLine: 1, EndLine: 20, Snippet: "func main() {}", Score: 0.9},
	}

	res, err := f.dispatcher.CallTool(ctx, "megatron",
		json.RawMessage(`{"project_root_path":"/src/app","query":"entry point"}`))
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	assert.Contains(t, textOf(t, res.Content[0]), "main.go:1-20")

	f.searcher.results = nil
	f.searcher.err = errors.New("index corrupt")
	_, err = f.dispatcher.CallTool(ctx, "megatron",
		json.RawMessage(`{"project_root_path":"/src/app","query":"entry point"}`))
	requireDispatchError(t, err, KindCollaborator)

	_, err = f.dispatcher.CallTool(ctx, "megatron",
		json.RawMessage(`{"project_root_path":"/src/app","query":"   "}`))
	requireDispatchError(t, err, KindInvalidParams)
}

func TestDispatcher_CallTool_ReEnabledBetweenCalls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, theme.Default())
	args := json.RawMessage(`{"project_root_path":"/src","query":"x"}`)

	_, err := f.dispatcher.CallTool(ctx, "megatron", args)
	requireDispatchError(t, err, KindToolDisabled)

	f.writeConfig(t, "mcp:\n  tools:\n    megatron: true\n")
	_, err = f.dispatcher.CallTool(ctx, "megatron", args)
	require.NoError(t, err)

	f.writeConfig(t, "mcp:\n  tools:\n    megatron: false\n")
	_, err = f.dispatcher.CallTool(ctx, "megatron", args)
	requireDispatchError(t, err, KindToolDisabled)
}
