// Package capability tracks which themed tools are enabled.
//
// Enablement lives in the configuration document, which other processes
// (the management CLI, a settings UI) may rewrite at any time. Every read
// therefore goes back to the document; the only in-memory copy is the
// snapshot taken at construction, used when a read fails.
package capability

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cunzhi/internal/config"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

// ConfigStore loads and saves the whole configuration document.
// Load must read the backing document on every call.
type ConfigStore interface {
	Load() (*config.Config, error)
	Save(*config.Config) error
}

// Store answers enablement questions for the active theme.
type Store struct {
	theme   *theme.Theme
	backend ConfigStore
	logger  *zap.Logger

	snapshot map[string]bool

	// mu serializes read-modify-write cycles within this process. It is
	// never held across anything but the config collaborator.
	mu sync.Mutex
}

// NewStore creates a store and captures the fallback snapshot. A failing
// initial read leaves the snapshot empty, so fallbacks use the defaults.
func NewStore(th *theme.Theme, backend ConfigStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		theme:    th,
		backend:  backend,
		logger:   logger,
		snapshot: make(map[string]bool),
	}

	cfg, err := backend.Load()
	if err != nil {
		logger.Warn("initial capability read failed, using defaults",
			zap.Error(&PersistError{Op: "load", Err: err}))
		return s
	}
	for id, enabled := range cfg.MCP.Tools {
		s.snapshot[id] = enabled
	}
	return s
}

// Theme returns the theme the store was built for.
func (s *Store) Theme() *theme.Theme {
	return s.theme
}

// DefaultEnabled reports the enablement used when id has no stored flag:
// true for the leader, false for everything else.
func (s *Store) DefaultEnabled(id string) bool {
	return id == s.theme.Leader().ID
}

// IsEnabled reports whether id is currently enabled. The leader is always
// enabled. A failed read falls back to the construction-time snapshot.
func (s *Store) IsEnabled(id string) bool {
	if id == s.theme.Leader().ID {
		return true
	}
	return s.lookup(s.current(), id)
}

// Status returns the enablement of the three active tool ids from a single
// read.
func (s *Store) Status() map[string]bool {
	tools := s.current()
	out := make(map[string]bool, len(theme.Roles))
	for _, id := range s.theme.IDs() {
		out[id] = id == s.theme.Leader().ID || s.lookup(tools, id)
	}
	return out
}

// SetEnabled persists the flag for id. Disabling the leader fails with
// ErrLeaderImmutable before anything is read or written.
func (s *Store) SetEnabled(id string, enabled bool) error {
	if id == s.theme.Leader().ID && !enabled {
		return ErrLeaderImmutable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.backend.Load()
	if err != nil {
		return &PersistError{Op: "load", Err: err}
	}
	if cfg.MCP.Tools == nil {
		cfg.MCP.Tools = make(map[string]bool)
	}
	cfg.MCP.Tools[id] = enabled
	if err := s.backend.Save(cfg); err != nil {
		return &PersistError{Op: "save", Err: err}
	}

	s.logger.Info("tool enablement changed", zap.String("tool", id), zap.Bool("enabled", enabled))
	return nil
}

// ResetToDefaults clears every stored flag, including ids left over from
// other themes, and stores the defaults for the three active ids.
func (s *Store) ResetToDefaults() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.backend.Load()
	if err != nil {
		return &PersistError{Op: "load", Err: err}
	}
	cfg.MCP.Tools = make(map[string]bool, len(theme.Roles))
	for _, id := range s.theme.IDs() {
		cfg.MCP.Tools[id] = s.DefaultEnabled(id)
	}
	if err := s.backend.Save(cfg); err != nil {
		return &PersistError{Op: "save", Err: err}
	}

	s.logger.Info("tool enablement reset to defaults", zap.String("theme", s.theme.Name))
	return nil
}

// ToolConfig describes one active tool for management surfaces.
type ToolConfig struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	CanDisable  bool   `json:"can_disable"`
	Icon        string `json:"icon"`
	IconBg      string `json:"icon_bg"`
	DarkIconBg  string `json:"dark_icon_bg"`
	HasConfig   bool   `json:"has_config"`
}

// Tools lists the active tools, enabled ones first, otherwise in role order.
func (s *Store) Tools() []ToolConfig {
	status := s.Status()

	out := make([]ToolConfig, 0, len(theme.Roles))
	for _, role := range theme.Roles {
		ident := s.theme.Identity(role)
		out = append(out, ToolConfig{
			ID:          ident.ID,
			Role:        role.String(),
			Name:        ident.DisplayName,
			Description: ident.Description,
			Enabled:     status[ident.ID],
			CanDisable:  role != theme.RoleLeader,
			Icon:        ident.Icon,
			IconBg:      ident.IconBg,
			DarkIconBg:  ident.DarkIconBg(),
			HasConfig:   role == theme.RoleSearch,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Enabled && !out[j].Enabled
	})
	return out
}

// current reads the stored flags. A nil result means the read failed.
func (s *Store) current() map[string]bool {
	cfg, err := s.backend.Load()
	if err != nil {
		s.logger.Warn("capability read failed, using snapshot",
			zap.Error(&PersistError{Op: "load", Err: err}))
		return nil
	}
	if cfg.MCP.Tools == nil {
		return map[string]bool{}
	}
	return cfg.MCP.Tools
}

func (s *Store) lookup(tools map[string]bool, id string) bool {
	if tools == nil {
		tools = s.snapshot
	}
	if enabled, ok := tools[id]; ok {
		return enabled
	}
	return s.DefaultEnabled(id)
}
