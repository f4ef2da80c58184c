package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cunzhi/internal/logging"
)

const (
	methodListTools = "tools/list"
	methodCallTool  = "tools/call"
)

// Server exposes a Dispatcher over the MCP SDK.
//
// tools/list and tools/call are answered by the dispatcher on every request,
// so enablement changes made by another process are visible immediately.
// The SDK's own tool registry is kept as a mirror of the advertised set so
// that Sync can emit notifications/tools/list_changed.
type Server struct {
	mcp        *mcp.Server
	dispatcher *Dispatcher
	logger     *logging.Logger

	mu       sync.Mutex
	mirrored map[string]bool
}

// NewServer creates the SDK server for d.
func NewServer(d *Dispatcher, logger *logging.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("dispatcher is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	info := d.Info()
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    info.Name,
			Title:   info.Title,
			Version: info.Version,
		},
		&mcp.ServerOptions{
			Instructions: info.Instructions,
			Capabilities: info.Capabilities,
		},
	)

	s := &Server{
		mcp:        mcpServer,
		dispatcher: d,
		logger:     logger.Named("mcp"),
		mirrored:   make(map[string]bool),
	}
	mcpServer.AddReceivingMiddleware(s.route)
	s.Sync(context.Background())
	return s, nil
}

// route answers tool requests from the dispatcher and passes everything
// else to the SDK.
func (s *Server) route(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if session := req.GetSession(); session != nil {
			ctx = logging.WithSessionID(ctx, session.ID())
		}

		switch method {
		case methodListTools:
			return &mcp.ListToolsResult{Tools: s.dispatcher.ListTools(ctx)}, nil
		case methodCallTool:
			call, ok := req.(*mcp.CallToolRequest)
			if !ok || call.Params == nil {
				return next(ctx, method, req)
			}
			return s.callTool(ctx, call)
		default:
			return next(ctx, method, req)
		}
	}
}

func (s *Server) callTool(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.dispatcher.CallTool(ctx, req.Params.Name, req.Params.Arguments)
	if err != nil {
		var de *DispatchError
		if errors.As(err, &de) {
			return nil, de.WireError()
		}
		return nil, err
	}
	return res, nil
}

// Sync brings the SDK registry in line with the advertised tools. Connected
// clients receive a list_changed notification when the set differs.
func (s *Server) Sync(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool)
	var added []string
	for _, tool := range s.dispatcher.advertised() {
		want[tool.Name] = true
		if s.mirrored[tool.Name] {
			continue
		}
		s.mcp.AddTool(tool, s.mirrorHandler)
		added = append(added, tool.Name)
	}

	var removed []string
	for name := range s.mirrored {
		if !want[name] {
			removed = append(removed, name)
		}
	}
	if len(removed) > 0 {
		s.mcp.RemoveTools(removed...)
	}
	s.mirrored = want

	if len(added) > 0 || len(removed) > 0 {
		s.logger.Info(ctx, "advertised tools changed",
			zap.Strings("added", added),
			zap.Strings("removed", removed))
	}
}

// Advertised returns the mirrored tool names.
func (s *Server) Advertised() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.mirrored))
	for _, tool := range s.dispatcher.theme.IDs() {
		if s.mirrored[tool] {
			names = append(names, tool)
		}
	}
	return names
}

// mirrorHandler serves calls that reach the SDK registry directly.
func (s *Server) mirrorHandler(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.callTool(ctx, req)
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

// Run serves the stdio transport until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	info := s.dispatcher.Info()
	s.logger.Info(ctx, "starting MCP server on stdio transport",
		zap.String("server", info.Name),
		zap.String("version", info.Version),
		zap.String("theme", s.dispatcher.theme.Name))

	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
