// Package config holds the cunzhi configuration document.
//
// The document lives at ~/.config/cunzhi/config.yaml (override with
// $CUNZHI_CONFIG). It carries the per-tool enablement map alongside the
// settings for logging, the interaction front-end, memory, search, telemetry
// and the ops HTTP surface. The file is owned by the user and by the
// management CLI; the MCP server only reads it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// EnvPath overrides the configuration file location.
	EnvPath = "CUNZHI_CONFIG"

	// EnvPrefix prefixes environment overrides, e.g. CUNZHI_LOGGING_LEVEL.
	EnvPrefix = "CUNZHI_"

	dirName  = "cunzhi"
	fileName = "config.yaml"
)

// Config is the complete cunzhi configuration document.
type Config struct {
	MCP         MCPConfig         `koanf:"mcp" yaml:"mcp"`
	Logging     LoggingConfig     `koanf:"logging" yaml:"logging"`
	Interaction InteractionConfig `koanf:"interaction" yaml:"interaction"`
	Memory      MemoryConfig      `koanf:"memory" yaml:"memory"`
	Search      SearchConfig      `koanf:"search" yaml:"search"`
	Telemetry   TelemetryConfig   `koanf:"telemetry" yaml:"telemetry"`
	HTTP        HTTPConfig        `koanf:"http" yaml:"http"`
}

// MCPConfig holds the tool enablement map keyed by themed tool id.
// Ids absent from the map fall back to the capability defaults.
type MCPConfig struct {
	Tools map[string]bool `koanf:"tools" yaml:"tools"`
}

// LoggingConfig selects the zap level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// InteractionConfig configures the external popup front-end.
// An empty Command runs "cunzhi popup", the bundled terminal popup.
type InteractionConfig struct {
	Command []string `koanf:"command" yaml:"command,omitempty"`
	// Timeout bounds one popup. Zero, the default, waits until the
	// client cancels the request.
	Timeout Duration `koanf:"timeout" yaml:"timeout,omitempty"`
}

// MemoryConfig configures the per-project memory store.
type MemoryConfig struct {
	// Dir is created inside each project root.
	Dir string `koanf:"dir" yaml:"dir"`
}

// SearchConfig configures the code search index.
type SearchConfig struct {
	IndexDir        string   `koanf:"index_dir" yaml:"index_dir"`
	IncludePatterns []string `koanf:"include_patterns" yaml:"include_patterns,omitempty"`
	ExcludePatterns []string `koanf:"exclude_patterns" yaml:"exclude_patterns,omitempty"`
	MaxFileSize     int64    `koanf:"max_file_size" yaml:"max_file_size"`
	ChunkLines      int      `koanf:"chunk_lines" yaml:"chunk_lines"`
	TopK            int      `koanf:"top_k" yaml:"top_k"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled" yaml:"enabled"`
	Endpoint       string   `koanf:"endpoint" yaml:"endpoint"`
	Protocol       string   `koanf:"protocol" yaml:"protocol"`
	Insecure       bool     `koanf:"insecure" yaml:"insecure"`
	ServiceName    string   `koanf:"service_name" yaml:"service_name"`
	ExportInterval Duration `koanf:"export_interval" yaml:"export_interval"`
}

// HTTPConfig configures the optional ops HTTP server.
type HTTPConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Host    string `koanf:"host" yaml:"host"`
	Port    int    `koanf:"port" yaml:"port"`
}

// Default returns a configuration with every default applied and an empty
// tool map.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.MCP.Tools = make(map[string]bool, len(c.MCP.Tools))
	for k, v := range c.MCP.Tools {
		out.MCP.Tools[k] = v
	}
	out.Interaction.Command = append([]string(nil), c.Interaction.Command...)
	out.Search.IncludePatterns = append([]string(nil), c.Search.IncludePatterns...)
	out.Search.ExcludePatterns = append([]string(nil), c.Search.ExcludePatterns...)
	return &out
}

func applyDefaults(cfg *Config) {
	if cfg.MCP.Tools == nil {
		cfg.MCP.Tools = make(map[string]bool)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Memory.Dir == "" {
		cfg.Memory.Dir = ".cunzhi-memory"
	}

	if cfg.Search.IndexDir == "" {
		if dir, err := Dir(); err == nil {
			cfg.Search.IndexDir = filepath.Join(dir, "index")
		}
	}
	if cfg.Search.MaxFileSize == 0 {
		cfg.Search.MaxFileSize = 512 * 1024
	}
	if cfg.Search.ChunkLines == 0 {
		cfg.Search.ChunkLines = 40
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 8
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "cunzhi-mcp"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = Duration(15 * time.Second)
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "127.0.0.1"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 9191
	}
}

// Validate checks the document for values the components cannot use.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format: must be json or console, got %q", c.Logging.Format))
	}

	if strings.ContainsAny(c.Memory.Dir, `/\`) || c.Memory.Dir == "." || c.Memory.Dir == ".." {
		errs = append(errs, fmt.Errorf("memory.dir: must be a single directory name, got %q", c.Memory.Dir))
	}

	if c.Search.MaxFileSize < 0 {
		errs = append(errs, errors.New("search.max_file_size: cannot be negative"))
	}
	if c.Search.ChunkLines < 1 {
		errs = append(errs, errors.New("search.chunk_lines: must be positive"))
	}
	if c.Search.TopK < 1 || c.Search.TopK > 100 {
		errs = append(errs, fmt.Errorf("search.top_k: must be between 1 and 100, got %d", c.Search.TopK))
	}

	switch c.Telemetry.Protocol {
	case "grpc", "http/protobuf":
	default:
		errs = append(errs, fmt.Errorf("telemetry.protocol: must be grpc or http/protobuf, got %q", c.Telemetry.Protocol))
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port: must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	return errors.Join(errs...)
}

// Dir returns the user configuration directory, ~/.config/cunzhi.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", dirName), nil
}

// DefaultPath returns the configuration file path, honoring $CUNZHI_CONFIG.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// EnsureDir creates the directory holding path with 0700 permissions.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}
