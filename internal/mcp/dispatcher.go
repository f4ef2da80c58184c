package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cunzhi/internal/logging"
	"github.com/fyrsmithlabs/cunzhi/internal/mcp/handlers"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

// ProtocolVersion is the MCP revision reported in ServerInfo.
const ProtocolVersion = "2025-06-18"

// Enablement answers whether a tool id is currently enabled. Both methods
// must read the current configuration rather than a cached copy.
type Enablement interface {
	IsEnabled(id string) bool
	Status() map[string]bool
}

// Handlers are the per-role tool implementations.
type Handlers struct {
	Interaction *handlers.InteractionHandler
	Memory      *handlers.MemoryHandler
	Search      *handlers.SearchHandler
}

// ServerInfo is what the server announces during initialization.
type ServerInfo struct {
	Name            string
	Title           string
	Version         string
	Instructions    string
	ProtocolVersion string
	Capabilities    *mcp.ServerCapabilities
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithVersion sets the version reported in ServerInfo.
func WithVersion(v string) Option {
	return func(d *Dispatcher) {
		if v != "" {
			d.version = v
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics replaces the instruments created on the global meter.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracerProvider sets the provider spans are started on.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// Dispatcher is the transport independent core of the server. It decides
// which tools are advertised and routes calls to the role handlers.
type Dispatcher struct {
	theme      *theme.Theme
	enablement Enablement
	handlers   Handlers
	schemas    map[theme.Role]*argSchema
	version    string
	logger     *logging.Logger
	metrics    *Metrics
	tracer     trace.Tracer
}

// NewDispatcher validates its collaborators and builds the argument
// schemas for th.
func NewDispatcher(th *theme.Theme, enablement Enablement, h Handlers, opts ...Option) (*Dispatcher, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if enablement == nil {
		return nil, errors.New("enablement is required")
	}
	if h.Interaction == nil || h.Memory == nil || h.Search == nil {
		return nil, errors.New("interaction, memory and search handlers are required")
	}

	schemas, err := buildSchemas(th)
	if err != nil {
		return nil, fmt.Errorf("building tool schemas: %w", err)
	}

	d := &Dispatcher{
		theme:      th,
		enablement: enablement,
		handlers:   h,
		schemas:    schemas,
		version:    "dev",
		logger:     logging.Nop(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(d.logger.Underlying())
	}
	return d, nil
}

// Theme returns the active theme.
func (d *Dispatcher) Theme() *theme.Theme {
	return d.theme
}

// Info returns the themed server identity. Only the tools capability is
// declared.
func (d *Dispatcher) Info() ServerInfo {
	return ServerInfo{
		Name:            d.theme.Messages.ServerName,
		Title:           d.theme.Description,
		Version:         d.version,
		Instructions:    d.theme.Messages.ServerIntro,
		ProtocolVersion: ProtocolVersion,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: true},
		},
	}
}

// Tool returns the protocol descriptor for role.
func (d *Dispatcher) Tool(role theme.Role) *mcp.Tool {
	ident := d.theme.Identity(role)
	return &mcp.Tool{
		Name:        ident.ID,
		Title:       ident.DisplayName,
		Description: ident.Description,
		InputSchema: d.schemas[role].schema,
	}
}

// ListTools returns the leader followed by every enabled non-leader tool,
// in role order. Enablement is read once per listing.
func (d *Dispatcher) ListTools(ctx context.Context) []*mcp.Tool {
	tools := d.advertised()
	d.metrics.RecordListing(ctx, len(tools))
	d.logger.Debug(ctx, "listed tools", zap.Int("advertised", len(tools)))
	return tools
}

func (d *Dispatcher) advertised() []*mcp.Tool {
	status := d.enablement.Status()

	tools := make([]*mcp.Tool, 0, len(theme.Roles))
	for _, role := range theme.Roles {
		if role != theme.RoleLeader && !status[d.theme.Identity(role).ID] {
			continue
		}
		tools = append(tools, d.Tool(role))
	}
	return tools
}

// CallTool routes one invocation. Failures are returned as *DispatchError.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
	start := time.Now()
	ctx = logging.WithRequestID(ctx, ulid.Make().String())
	ctx = logging.WithTool(ctx, name)

	role, ok := d.theme.RoleOf(name)
	if !ok {
		err := &DispatchError{Kind: KindUnknownTool, Tool: name, Message: d.theme.UnknownToolMessage(name)}
		d.metrics.RecordInvocation(ctx, "unknown", name, time.Since(start), err)
		d.logger.Info(ctx, "call to unknown tool")
		return nil, err
	}

	ctx, span := d.tracer.Start(ctx, "mcp.tools.call", trace.WithAttributes(
		attribute.String("mcp.tool.name", name),
		attribute.String("mcp.tool.role", role.String()),
	))
	defer span.End()

	d.metrics.IncrementActive(ctx, role.String())
	defer d.metrics.DecrementActive(ctx, role.String())

	content, err := d.call(ctx, role, name, args)
	d.metrics.RecordInvocation(ctx, role.String(), name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
		d.logFailure(ctx, err)
		return nil, err
	}

	d.logger.Debug(ctx, "tool call completed", zap.Duration("duration", time.Since(start)))
	return &mcp.CallToolResult{Content: content}, nil
}

func (d *Dispatcher) call(ctx context.Context, role theme.Role, name string, args json.RawMessage) ([]mcp.Content, error) {
	if role != theme.RoleLeader && !d.enablement.IsEnabled(name) {
		return nil, &DispatchError{Kind: KindToolDisabled, Tool: name, Message: d.theme.ToolDisabledMessage(role)}
	}

	var (
		content []mcp.Content
		err     error
	)
	switch role {
	case theme.RoleLeader:
		content, err = invoke(ctx, d, role, name, args, d.handlers.Interaction.Handle)
	case theme.RoleMemory:
		content, err = invoke(ctx, d, role, name, args, d.handlers.Memory.Handle)
	case theme.RoleSearch:
		content, err = invoke(ctx, d, role, name, args, d.handlers.Search.Handle)
	default:
		return nil, &DispatchError{Kind: KindCollaborator, Tool: name, Message: fmt.Sprintf("no handler for role %s", role)}
	}
	if err != nil {
		return nil, d.handlerError(name, err)
	}
	return content, nil
}

// invoke decodes args into the handler's request type and runs it.
func invoke[T any](ctx context.Context, d *Dispatcher, role theme.Role, name string, args json.RawMessage,
	handle func(context.Context, T) ([]mcp.Content, error)) ([]mcp.Content, error) {
	var req T
	if err := d.schemas[role].decode(args, &req); err != nil {
		return nil, &DispatchError{
			Kind:    KindInvalidParams,
			Tool:    name,
			Message: d.theme.ParamParseErrorMessage(role, err),
			Err:     err,
		}
	}
	return handle(ctx, req)
}

func (d *Dispatcher) handlerError(name string, err error) error {
	var de *DispatchError
	if errors.As(err, &de) {
		return err
	}
	kind := KindCollaborator
	if errors.Is(err, handlers.ErrInvalidParams) {
		kind = KindInvalidParams
	}
	return &DispatchError{Kind: kind, Tool: name, Message: err.Error(), Err: err}
}

func (d *Dispatcher) logFailure(ctx context.Context, err error) {
	kind := KindOf(err)
	fields := []zap.Field{zap.String("kind", kind.String()), zap.Error(err)}
	if kind == KindCollaborator {
		d.logger.Warn(ctx, "tool call failed", fields...)
		return
	}
	d.logger.Info(ctx, "tool call rejected", fields...)
}
