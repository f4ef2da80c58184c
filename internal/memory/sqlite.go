package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// DBFile is the database file name inside the memory directory.
const DBFile = "memory.db"

// SQLiteOpener opens one SQLite database per project at
// <project>/<dir>/memory.db, creating it on first use.
type SQLiteOpener struct {
	dir    string
	logger *zap.Logger
}

// NewSQLiteOpener creates an opener that keeps stores in dir, a single
// directory name relative to each project root.
func NewSQLiteOpener(dir string, logger *zap.Logger) (*SQLiteOpener, error) {
	if dir == "" || strings.ContainsAny(dir, `/\`) || dir == "." || dir == ".." {
		return nil, fmt.Errorf("invalid memory directory name %q", dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteOpener{dir: dir, logger: logger}, nil
}

// Path returns the database path used for projectPath.
func (o *SQLiteOpener) Path(projectPath string) string {
	return filepath.Join(projectPath, o.dir, DBFile)
}

// Open implements Opener. The project root must already exist.
func (o *SQLiteOpener) Open(ctx context.Context, projectPath string) (Manager, error) {
	info, err := os.Stat(projectPath)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", projectPath)
	}

	dbPath := o.Path(projectPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create memory directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	o.logger.Debug("memory store opened", zap.String("path", dbPath))
	return &SQLiteManager{db: db, project: projectPath}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + filepath.ToSlash(path) + "?" + q.Encode()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category, created_at);
	`)
	if err != nil {
		return fmt.Errorf("create memory schema: %w", err)
	}
	return nil
}

// SQLiteManager is the Manager for one project database.
type SQLiteManager struct {
	db      *sql.DB
	project string
}

// Add stores content and returns the new entry id.
func (m *SQLiteManager) Add(ctx context.Context, content string, category Category) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	id := uuid.NewString()
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO memories (id, content, category, created_at) VALUES (?, ?, ?, ?)`,
		id, content, string(ParseCategory(string(category))), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}
	return id, nil
}

// List returns every entry, oldest first.
func (m *SQLiteManager) List(ctx context.Context) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, content, category, created_at FROM memories ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			category string
			created  sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Content, &category, &created); err != nil {
			return nil, err
		}
		e.Category = ParseCategory(category)
		if created.Valid {
			e.CreatedAt = created.Time
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Summarize renders every entry as markdown grouped by category.
func (m *SQLiteManager) Summarize(ctx context.Context) (string, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return "", err
	}
	return Summary(m.project, entries), nil
}

// Close releases the database.
func (m *SQLiteManager) Close() error {
	if m.db == nil {
		return errors.New("memory store already closed")
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// Summary renders entries for project as markdown.
func Summary(project string, entries []Entry) string {
	var b strings.Builder
	b.WriteString("# 项目记忆\n\n")
	fmt.Fprintf(&b, "项目: %s\n", project)
	fmt.Fprintf(&b, "总计: %d 条\n", len(entries))

	if len(entries) == 0 {
		b.WriteString("\n暂无项目记忆\n")
		return b.String()
	}

	grouped := make(map[Category][]Entry, len(Categories))
	for _, e := range entries {
		grouped[e.Category] = append(grouped[e.Category], e)
	}
	for _, c := range Categories {
		list := grouped[c]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s (%s) · %d\n\n", c.Label(), c, len(list))
		for _, e := range list {
			fmt.Fprintf(&b, "- %s\n", e.Content)
		}
	}
	return b.String()
}
