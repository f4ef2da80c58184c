package theme

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

const (
	// FileName is the theme definition file looked up next to the
	// executable and in the user configuration directory.
	FileName = "theme.json"

	// EnvVar names a built-in theme.
	EnvVar = "CUNZHI_THEME"

	maxThemeFileSize = 256 * 1024
)

// Source records which resolution step produced the active theme.
type Source string

const (
	SourceExecutable Source = "executable"
	SourceUser       Source = "user"
	SourceEnv        Source = "env"
	SourceDefault    Source = "default"
)

// Resolver finds the active theme once and memoizes it.
//
// Resolution order, first success wins:
//  1. theme.json next to the running executable
//  2. theme.json in the user configuration directory, then in ~/.cunzhi
//  3. the built-in named by $CUNZHI_THEME
//  4. the default built-in
//
// A file that exists but cannot be parsed is logged and skipped.
type Resolver struct {
	executableDir string
	userDir       string
	legacyDir     string
	lookupEnv     func(string) (string, bool)
	logger        *zap.Logger

	mu       sync.Mutex
	resolved *Theme
	source   Source
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithExecutableDir overrides the directory searched in step 1.
func WithExecutableDir(dir string) Option {
	return func(r *Resolver) { r.executableDir = dir }
}

// WithUserDir overrides the directory searched in step 2.
func WithUserDir(dir string) Option {
	return func(r *Resolver) { r.userDir = dir }
}

// WithLegacyUserDir overrides the older user directory (~/.cunzhi) searched
// after the user configuration directory.
func WithLegacyUserDir(dir string) Option {
	return func(r *Resolver) { r.legacyDir = dir }
}

// WithLookupEnv overrides environment lookup.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.lookupEnv = fn
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver. Directories default to the executable's
// directory, ~/.config/cunzhi and ~/.cunzhi. The ~/.cunzhi default applies
// only when the user directory is not overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		lookupEnv: os.LookupEnv,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.executableDir == "" {
		if exe, err := os.Executable(); err == nil {
			r.executableDir = filepath.Dir(exe)
		}
	}
	if r.userDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			r.userDir = filepath.Join(home, ".config", "cunzhi")
			if r.legacyDir == "" {
				r.legacyDir = filepath.Join(home, ".cunzhi")
			}
		}
	}
	return r
}

// Resolve returns the active theme. The first call walks the resolution
// chain; later calls return the same value.
func (r *Resolver) Resolve() *Theme {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != nil {
		return r.resolved
	}

	t, src := r.walk()
	r.resolved, r.source = t, src
	r.logger.Info("theme resolved",
		zap.String("theme", t.Name),
		zap.String("source", string(src)),
		zap.String("description", t.Description),
	)
	return t
}

// Source reports where the resolved theme came from. It is empty before
// the first Resolve.
func (r *Resolver) Source() Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

func (r *Resolver) walk() (*Theme, Source) {
	for _, step := range []struct {
		dir    string
		source Source
	}{
		{r.executableDir, SourceExecutable},
		{r.userDir, SourceUser},
		{r.legacyDir, SourceUser},
	} {
		if step.dir == "" {
			continue
		}
		path := filepath.Join(step.dir, FileName)
		t, err := LoadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				r.logger.Warn("ignoring theme file",
					zap.String("path", path),
					zap.Error(err),
				)
			}
			continue
		}
		return t, step.source
	}

	if name, ok := r.lookupEnv(EnvVar); ok && name != "" {
		if t, found := Builtin(name); found {
			return t, SourceEnv
		}
		r.logger.Warn("unknown theme in environment",
			zap.String("env", EnvVar),
			zap.String("theme", name),
		)
	}

	return Default(), SourceDefault
}

// LoadFile reads and validates a theme definition file.
func LoadFile(path string) (*Theme, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxThemeFileSize {
		return nil, fmt.Errorf("theme file too large: %d bytes (max %d)", info.Size(), maxThemeFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Theme
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse theme file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
