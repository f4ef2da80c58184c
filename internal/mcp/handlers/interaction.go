package handlers

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cunzhi/internal/interaction"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

// CancelledText is returned when the user dismisses the popup.
const CancelledText = "用户取消了操作"

// InteractionRequest is the decoded argument of the interaction tool.
type InteractionRequest struct {
	Message           string   `json:"message"`
	PredefinedOptions []string `json:"predefined_options,omitempty"`
	IsMarkdown        bool     `json:"is_markdown"`
}

// InteractionHandler forwards prompts to the human-interaction front-end.
type InteractionHandler struct {
	renderer interaction.Renderer
	theme    *theme.Theme
	logger   *zap.Logger
}

// NewInteractionHandler creates the leader tool handler.
func NewInteractionHandler(renderer interaction.Renderer, th *theme.Theme, logger *zap.Logger) *InteractionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InteractionHandler{renderer: renderer, theme: th, logger: logger}
}

// Handle shows the prompt and converts the user's answer into content: one
// text item, then one image item per attachment.
func (h *InteractionHandler) Handle(ctx context.Context, req InteractionRequest) ([]mcp.Content, error) {
	popup := interaction.NewRequest(req.Message, req.PredefinedOptions, req.IsMarkdown)

	resp, err := h.renderer.Show(ctx, popup)
	if err != nil {
		return nil, collaboratorFailure(err, "interaction front-end failed: %v", err)
	}
	h.logger.Debug("interaction answered",
		zap.String("request_id", popup.ID),
		zap.Bool("cancelled", resp.Cancelled),
		zap.Int("selected", len(resp.SelectedOptions)),
		zap.Int("images", len(resp.Images)),
	)
	return h.content(resp), nil
}

func (h *InteractionHandler) content(resp *interaction.Response) []mcp.Content {
	if resp.Cancelled {
		return []mcp.Content{&mcp.TextContent{Text: CancelledText}}
	}

	var parts []string
	if len(resp.SelectedOptions) > 0 {
		parts = append(parts, "选择的选项: "+strings.Join(resp.SelectedOptions, ", "))
	}
	if input := strings.TrimSpace(resp.UserInput); input != "" {
		parts = append(parts, "用户输入: "+input)
	}

	images := make([]mcp.Content, 0, len(resp.Images))
	for i, img := range resp.Images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			h.logger.Warn("dropping undecodable image attachment",
				zap.Int("index", i),
				zap.String("filename", img.Filename),
				zap.Error(err),
			)
			continue
		}
		mediaType := img.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		images = append(images, &mcp.ImageContent{Data: data, MIMEType: mediaType})
	}
	if len(images) > 0 {
		parts = append(parts, "附带图片: "+strconv.Itoa(len(images))+" 张")
	}

	text := strings.Join(parts, "\n\n")
	if text == "" {
		text = h.theme.Messages.ContinuePrompt
	}
	return append([]mcp.Content{&mcp.TextContent{Text: text}}, images...)
}
