package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cunzhi/internal/memory"
	"github.com/fyrsmithlabs/cunzhi/internal/sanitize"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

// Memory actions accepted by the memory tool.
const (
	ActionStore  = "记忆"
	ActionRecall = "回忆"
)

// MemoryRequest is the decoded argument of the memory tool.
type MemoryRequest struct {
	Action      string `json:"action"`
	ProjectPath string `json:"project_path"`
	Content     string `json:"content,omitempty"`
	Category    string `json:"category,omitempty"`
}

// MemoryHandler stores and recalls project memory.
type MemoryHandler struct {
	opener memory.Opener
	theme  *theme.Theme
	logger *zap.Logger
}

// NewMemoryHandler creates the memory tool handler.
func NewMemoryHandler(opener memory.Opener, th *theme.Theme, logger *zap.Logger) *MemoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryHandler{opener: opener, theme: th, logger: logger}
}

// Handle validates the project path before touching the store, then runs
// the requested action.
func (h *MemoryHandler) Handle(ctx context.Context, req MemoryRequest) ([]mcp.Content, error) {
	name := h.theme.ToolMemory.DisplayName

	projectPath, err := sanitize.ValidateProjectPath(req.ProjectPath)
	if err != nil {
		return nil, invalidParams(err,
			"%s无法定位项目路径: %v\n原始路径: %s\n请检查路径格式是否正确，特别是 Windows 路径应使用正确的盘符格式（如 C:\\path）",
			name, err, req.ProjectPath)
	}

	switch req.Action {
	case ActionStore:
		if strings.TrimSpace(req.Content) == "" {
			return nil, invalidParams(nil, "%s需要记忆内容才能存储", name)
		}
	case ActionRecall:
	default:
		return nil, invalidParams(nil, "%s不理解这个指令: %s", name, req.Action)
	}

	mgr, err := h.opener.Open(ctx, projectPath)
	if err != nil {
		return nil, collaboratorFailure(err, "%s记忆系统初始化失败: %v", name, err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			h.logger.Warn("closing memory store", zap.String("project", projectPath), zap.Error(err))
		}
	}()

	var text string
	if req.Action == ActionStore {
		category := memory.ParseCategory(req.Category)
		id, err := mgr.Add(ctx, req.Content, category)
		if err != nil {
			return nil, collaboratorFailure(err, "%s存储记忆失败: %v", name, err)
		}
		h.logger.Info("memory stored",
			zap.String("project", projectPath),
			zap.String("id", id),
			zap.String("category", string(category)),
		)
		text = fmt.Sprintf("%s已存储记忆\nID: %s\n内容: %s\n分类: %s", name, id, req.Content, category)
	} else {
		text, err = mgr.Summarize(ctx)
		if err != nil {
			return nil, collaboratorFailure(err, "%s提取记忆失败: %v", name, err)
		}
	}
	return []mcp.Content{&mcp.TextContent{Text: text}}, nil
}
