package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/cunzhi/internal/logging"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

type session struct {
	server  *Server
	client  *mcp.ClientSession
	changed chan struct{}
}

func connect(t *testing.T, f *fixture) *session {
	t.Helper()
	ctx := context.Background()

	srv, err := NewServer(f.dispatcher, logging.Nop())
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport)
	require.NoError(t, err)

	changed := make(chan struct{}, 8)
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, &mcp.ClientOptions{
		ToolListChangedHandler: func(context.Context, *mcp.ToolListChangedRequest) {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	})
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return &session{server: srv, client: cs, changed: changed}
}

// settle waits out the notification scheduled by the initial Sync and
// discards it.
func (s *session) settle() {
	time.Sleep(100 * time.Millisecond)
	for {
		select {
		case <-s.changed:
		default:
			return
		}
	}
}

func (s *session) listNames(t *testing.T) []string {
	t.Helper()
	res, err := s.client.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	return toolNames(res.Tools)
}

func requireWireError(t *testing.T, err error, code int64) *jsonrpc.Error {
	t.Helper()
	var wire *jsonrpc.Error
	require.True(t, errors.As(err, &wire), "error %v is not a JSON-RPC error", err)
	assert.Equal(t, code, wire.Code)
	return wire
}

func TestServer_Initialize(t *testing.T) {
	f := newFixture(t, theme.Default())
	s := connect(t, f)

	ir := s.client.InitializeResult()
	require.NotNil(t, ir)
	assert.Equal(t, "Cybertron-MCP", ir.ServerInfo.Name)
	assert.Equal(t, "1.2.3", ir.ServerInfo.Version)
	assert.Equal(t, f.theme.Messages.ServerIntro, ir.Instructions)
	require.NotNil(t, ir.Capabilities.Tools)
	assert.True(t, ir.Capabilities.Tools.ListChanged)
	assert.Nil(t, ir.Capabilities.Logging)
}

func TestServer_ListTools_ReadsCurrentConfig(t *testing.T) {
	f := newFixture(t, theme.Default())
	s := connect(t, f)

	assert.Equal(t, []string{"optimus"}, s.listNames(t))

	// no Sync: listings never depend on the mirror
	f.enable(t, theme.RoleMemory)
	assert.Equal(t, []string{"optimus", "bumblebee"}, s.listNames(t))

	f.writeConfig(t, "mcp:\n  tools:\n    bumblebee: false\n    megatron: true\n")
	assert.Equal(t, []string{"optimus", "megatron"}, s.listNames(t))
}

func TestServer_ListTools_Schemas(t *testing.T) {
	f := newFixture(t, theme.Default())
	s := connect(t, f)

	res, err := s.client.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, res.Tools, 1)

	schema, ok := res.Tools[0].InputSchema.(map[string]any)
	require.True(t, ok, "schema is %T", res.Tools[0].InputSchema)
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"message"}, schema["required"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "predefined_options")
	assert.Contains(t, props, "is_markdown")
}

func TestServer_CallTool_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, theme.Default())
	s := connect(t, f)

	_, err := s.client.CallTool(ctx, &mcp.CallToolParams{Name: "foo", Arguments: map[string]any{}})
	wire := requireWireError(t, err, jsonrpc.CodeInvalidRequest)
	assert.Equal(t, "未知的战士: foo，不属于赛博坦军团！", wire.Message)

	_, err = s.client.CallTool(ctx, &mcp.CallToolParams{
		Name:      "megatron",
		Arguments: map[string]any{"project_root_path": "/src", "query": "main"},
	})
	wire = requireWireError(t, err, jsonrpc.CodeInternalError)
	assert.Equal(t, "威震天正在休眠中，请先激活！", wire.Message)

	_, err = s.client.CallTool(ctx, &mcp.CallToolParams{Name: "optimus", Arguments: map[string]any{}})
	wire = requireWireError(t, err, jsonrpc.CodeInvalidParams)
	assert.Contains(t, wire.Message, "擎天柱")
}

func TestServer_CallTool_Success(t *testing.T) {
	f := newFixture(t, theme.Default())
	s := connect(t, f)

	res, err := s.client.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "optimus",
		Arguments: map[string]any{"message": "部署完成，继续？", "predefined_options": []string{"继续", "停止"}},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "用户输入: 好的", textOf(t, res.Content[0]))

	reqs := f.renderer.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"继续", "停止"}, reqs[0].PredefinedOptions)
	assert.True(t, reqs[0].IsMarkdown)
}

func TestServer_Sync_NotifiesListChanged(t *testing.T) {
	f := newFixture(t, theme.Default())
	s := connect(t, f)
	s.settle()
	assert.Equal(t, []string{"optimus"}, s.server.Advertised())

	f.enable(t, theme.RoleSearch)
	s.server.Sync(context.Background())
	assert.Equal(t, []string{"optimus", "megatron"}, s.server.Advertised())

	select {
	case <-s.changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no tools/list_changed notification")
	}

	require.NoError(t, f.store.SetEnabled("megatron", false))
	s.server.Sync(context.Background())
	assert.Equal(t, []string{"optimus"}, s.server.Advertised())
}

func TestServer_Sync_NoChangeIsQuiet(t *testing.T) {
	f := newFixture(t, theme.Default())
	s := connect(t, f)
	s.settle()

	s.server.Sync(context.Background())
	s.server.Sync(context.Background())

	select {
	case <-s.changed:
		t.Fatal("unexpected tools/list_changed notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewServer_RequiresDispatcher(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}
