package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/cunzhi/internal/mcp/handlers"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

func TestBuildSchemas_EveryTheme(t *testing.T) {
	for _, choice := range theme.Available() {
		th, ok := theme.Builtin(choice.Name)
		require.True(t, ok)

		schemas, err := buildSchemas(th)
		require.NoError(t, err, choice.Name)
		for _, role := range theme.Roles {
			s, ok := schemas[role]
			require.True(t, ok, "%s: no schema for %s", choice.Name, role)
			assert.Equal(t, "object", s.schema.Type)
		}
		assert.Contains(t, schemas[theme.RoleLeader].schema.Properties["message"].Description,
			th.ToolInteraction.DisplayName)
	}
}

func TestArgSchema_Decode(t *testing.T) {
	schemas, err := buildSchemas(theme.Default())
	require.NoError(t, err)
	leader := schemas[theme.RoleLeader]

	tests := []struct {
		name    string
		raw     string
		want    handlers.InteractionRequest
		wantErr bool
	}{
		{name: "defaults applied", raw: `{"message":"hi"}`, want: handlers.InteractionRequest{Message: "hi", IsMarkdown: true}},
		{name: "explicit false kept", raw: `{"message":"hi","is_markdown":false}`, want: handlers.InteractionRequest{Message: "hi"}},
		{name: "options", raw: `{"message":"m","predefined_options":["a"]}`,
			want: handlers.InteractionRequest{Message: "m", PredefinedOptions: []string{"a"}, IsMarkdown: true}},
		{name: "empty", raw: ``, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "missing message", raw: `{"is_markdown":true}`, wantErr: true},
		{name: "wrong type", raw: `{"message":"m","predefined_options":"a"}`, wantErr: true},
		{name: "not an object", raw: `"message"`, wantErr: true},
		{name: "malformed", raw: `{"message":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got handlers.InteractionRequest
			err := leader.decode(json.RawMessage(tt.raw), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArgSchema_DecodeMemory(t *testing.T) {
	schemas, err := buildSchemas(theme.Default())
	require.NoError(t, err)

	var req handlers.MemoryRequest
	require.NoError(t, schemas[theme.RoleMemory].decode(
		json.RawMessage(`{"action":"记忆","project_path":"/p","content":"c"}`), &req))
	assert.Equal(t, handlers.MemoryRequest{Action: "记忆", ProjectPath: "/p", Content: "c"}, req)

	assert.Error(t, schemas[theme.RoleMemory].decode(json.RawMessage(`{"action":"记忆"}`), &req))
}
