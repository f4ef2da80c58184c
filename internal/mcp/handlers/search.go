package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cunzhi/internal/sanitize"
	"github.com/fyrsmithlabs/cunzhi/internal/search"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

// SearchRequest is the decoded argument of the search tool.
type SearchRequest struct {
	ProjectRootPath string `json:"project_root_path"`
	Query           string `json:"query"`
}

// SearchHandler forwards queries to the code search backend.
type SearchHandler struct {
	searcher search.Searcher
	theme    *theme.Theme
	logger   *zap.Logger
}

// NewSearchHandler creates the search tool handler.
func NewSearchHandler(searcher search.Searcher, th *theme.Theme, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{searcher: searcher, theme: th, logger: logger}
}

// Handle runs the query and returns one text item per matching chunk.
func (h *SearchHandler) Handle(ctx context.Context, req SearchRequest) ([]mcp.Content, error) {
	name := h.theme.ToolSearch.DisplayName

	root, err := sanitize.ValidateProjectPath(req.ProjectRootPath)
	if err != nil {
		return nil, invalidParams(err, "%s无法定位项目路径: %v\n原始路径: %s", name, err, req.ProjectRootPath)
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, invalidParams(nil, "%s需要搜索内容", name)
	}

	results, err := h.searcher.Search(ctx, search.Query{ProjectRoot: root, Text: query})
	if err != nil {
		return nil, collaboratorFailure(err, "search backend failed: %v", err)
	}
	h.logger.Debug("search completed",
		zap.String("root", root),
		zap.Int("results", len(results)),
	)

	if len(results) == 0 {
		return []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("未找到与 %q 相关的代码", query)}}, nil
	}
	content := make([]mcp.Content, 0, len(results))
	for _, r := range results {
		content = append(content, &mcp.TextContent{
			Text: fmt.Sprintf("%s:%d-%d (score %.3f)\n%s", r.Path, r.StartLine, r.EndLine, r.Score, r.Snippet),
		})
	}
	return content, nil
}
