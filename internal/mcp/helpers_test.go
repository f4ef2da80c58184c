package mcp

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/cunzhi/internal/capability"
	"github.com/fyrsmithlabs/cunzhi/internal/config"
	"github.com/fyrsmithlabs/cunzhi/internal/interaction"
	"github.com/fyrsmithlabs/cunzhi/internal/mcp/handlers"
	"github.com/fyrsmithlabs/cunzhi/internal/memory"
	"github.com/fyrsmithlabs/cunzhi/internal/search"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

type stubRenderer struct {
	mu    sync.Mutex
	resp  *interaction.Response
	err   error
	calls []*interaction.Request
}

func (r *stubRenderer) Show(_ context.Context, req *interaction.Request) (*interaction.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	return r.resp, r.err
}

func (r *stubRenderer) requests() []*interaction.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*interaction.Request(nil), r.calls...)
}

type stubSearcher struct {
	mu      sync.Mutex
	results []search.Result
	err     error
	queries []search.Query
}

func (s *stubSearcher) Search(_ context.Context, q search.Query) ([]search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	return s.results, s.err
}

func (s *stubSearcher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type fixture struct {
	theme      *theme.Theme
	configPath string
	store      *capability.Store
	renderer   *stubRenderer
	searcher   *stubSearcher
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, th *theme.Theme, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		theme:      th,
		configPath: filepath.Join(t.TempDir(), "config.yaml"),
		renderer:   &stubRenderer{resp: &interaction.Response{UserInput: "好的"}},
		searcher:   &stubSearcher{},
	}
	f.store = capability.NewStore(th, config.NewFileStore(f.configPath), nil)

	opener, err := memory.NewSQLiteOpener(".cunzhi-memory", nil)
	require.NoError(t, err)

	d, err := NewDispatcher(th, f.store, Handlers{
		Interaction: handlers.NewInteractionHandler(f.renderer, th, nil),
		Memory:      handlers.NewMemoryHandler(opener, th, nil),
		Search:      handlers.NewSearchHandler(f.searcher, th, nil),
	}, append([]Option{WithVersion("1.2.3")}, opts...)...)
	require.NoError(t, err)
	f.dispatcher = d
	return f
}

// writeConfig replaces the document behind the store, as another process would.
func (f *fixture) writeConfig(t *testing.T, yaml string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.configPath, []byte(yaml), 0o600))
}

func (f *fixture) enable(t *testing.T, role theme.Role) {
	t.Helper()
	require.NoError(t, f.store.SetEnabled(f.theme.Identity(role).ID, true))
}

func toolNames(tools []*mcp.Tool) []string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

func textOf(t *testing.T, c mcp.Content) string {
	t.Helper()
	tc, ok := c.(*mcp.TextContent)
	require.True(t, ok, "content %T is not text", c)
	return tc.Text
}
