package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

// argSchema is a resolved tool input schema.
type argSchema struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

func newArgSchema(s *jsonschema.Schema) (*argSchema, error) {
	resolved, err := s.Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
	if err != nil {
		return nil, err
	}
	return &argSchema{schema: s, resolved: resolved}, nil
}

// decode validates raw against the schema, fills in defaults, and decodes
// the result into v. Missing or mistyped fields fail without touching v.
func (a *argSchema) decode(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if err := a.resolved.ApplyDefaults(&args); err != nil {
		return fmt.Errorf("applying defaults: %w", err)
	}
	if err := a.resolved.Validate(&args); err != nil {
		return err
	}

	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func stringProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

// interactionSchema describes the leader tool arguments.
func interactionSchema(th *theme.Theme) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"message": stringProp(th.ToolInteraction.DisplayName + "要传达的信息"),
			"predefined_options": {
				Type:        "array",
				Description: "预设的选项列表（可选）",
				Items:       &jsonschema.Schema{Type: "string"},
			},
			"is_markdown": {
				Type:        "boolean",
				Description: "信息是否为Markdown格式，默认为true",
				Default:     json.RawMessage("true"),
			},
		},
		Required: []string{"message"},
	}
}

// memorySchema describes the memory tool arguments. Action values are
// checked by the handler so unsupported actions report a themed message.
func memorySchema(*theme.Theme) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"action":       stringProp("任务类型：记忆(存储), 回忆(提取)"),
			"project_path": stringProp("项目路径（必需）"),
			"content":      stringProp("内容（存储时必需）"),
			"category":     stringProp("分类：rule(规则), preference(偏好), pattern(模式), context(上下文)"),
		},
		Required: []string{"action", "project_path"},
	}
}

// searchSchema describes the search tool arguments.
func searchSchema(*theme.Theme) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"project_root_path": stringProp("项目根目录的绝对路径"),
			"query":             stringProp("要搜索的代码或自然语言描述"),
		},
		Required: []string{"project_root_path", "query"},
	}
}

func buildSchemas(th *theme.Theme) (map[theme.Role]*argSchema, error) {
	builders := map[theme.Role]func(*theme.Theme) *jsonschema.Schema{
		theme.RoleLeader: interactionSchema,
		theme.RoleMemory: memorySchema,
		theme.RoleSearch: searchSchema,
	}
	out := make(map[theme.Role]*argSchema, len(builders))
	for _, role := range theme.Roles {
		s, err := newArgSchema(builders[role](th))
		if err != nil {
			return nil, fmt.Errorf("%s schema: %w", role, err)
		}
		out[role] = s
	}
	return out, nil
}
