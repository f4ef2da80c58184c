package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/cunzhi/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger.Underlying())
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_OTELOnlyWithoutProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}

	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Format = "xml" }},
		{"no output", func(c *Config) { c.Output = OutputConfig{} }},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }},
		{"empty field value", func(c *Config) { c.Fields = map[string]string{"k": ""} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "trace", Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	_, err = FromSettings(config.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("TRACE")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("Warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	_, err = LevelFromString("nope")
	assert.Error(t, err)
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithRequestID(ctx, "01HZX3")
	ctx = WithTool(ctx, "optimus")

	tl.Info(ctx, "tool called", zap.Int("args", 2))
	tl.Trace(ctx, "raw arguments")

	tl.AssertLogged(t, zapcore.InfoLevel, "tool called")
	tl.AssertField(t, "tool called", "session.id", "sess-1")
	tl.AssertField(t, "tool called", "request.id", "01HZX3")
	tl.AssertField(t, "tool called", "tool", "optimus")
	tl.AssertLogged(t, TraceLevel, "raw arguments")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "tool called")
}

func TestContext_InvalidIDsIgnored(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, ctx, WithSessionID(ctx, ""))
	assert.Equal(t, "", SessionIDFromContext(WithSessionID(ctx, "has space")))
	assert.Equal(t, "", RequestIDFromContext(WithRequestID(ctx, "")))
	assert.Equal(t, "", ToolFromContext(WithTool(ctx, "")))
	assert.Empty(t, ContextFields(ctx))
}

func TestFromContext(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)

	assert.Same(t, tl.Logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("mcp").With(zap.String("theme", "naruto"))
	child.Warn(context.Background(), "slow collaborator")

	entries := tl.FilterMessage("slow collaborator").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "mcp", entries[0].LoggerName)
	assert.Equal(t, "naruto", entries[0].ContextMap()["theme"])
}
