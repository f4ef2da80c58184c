// Package memory stores categorized notes per project.
//
// Each project root gets its own store under a configurable directory
// name (".cunzhi-memory" by default). The MCP memory tool is the only
// writer; the management CLI reads it.
package memory

import (
	"context"
	"errors"
	"time"
)

// Category classifies a memory entry.
type Category string

const (
	CategoryRule       Category = "rule"
	CategoryPreference Category = "preference"
	CategoryPattern    Category = "pattern"
	CategoryContext    Category = "context"
)

// Categories lists every category in summary order.
var Categories = []Category{CategoryRule, CategoryPreference, CategoryPattern, CategoryContext}

// ParseCategory maps s to a category. Anything unrecognized, including the
// empty string, is CategoryContext.
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategoryRule, CategoryPreference, CategoryPattern, CategoryContext:
		return c
	default:
		return CategoryContext
	}
}

// Label is the heading used in summaries.
func (c Category) Label() string {
	switch c {
	case CategoryRule:
		return "规则"
	case CategoryPreference:
		return "偏好"
	case CategoryPattern:
		return "模式"
	default:
		return "上下文"
	}
}

// Entry is one stored note.
type Entry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrEmptyContent is returned when storing blank content.
var ErrEmptyContent = errors.New("memory content is empty")

// Manager reads and writes the memory of one project.
type Manager interface {
	Add(ctx context.Context, content string, category Category) (string, error)
	List(ctx context.Context) ([]Entry, error)
	Summarize(ctx context.Context) (string, error)
	Close() error
}

// Opener opens the memory store of a project root.
type Opener interface {
	Open(ctx context.Context, projectPath string) (Manager, error)
}
