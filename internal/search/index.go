// Package search is the code search collaborator behind the search tool.
//
// Each project root gets a chromem-go collection holding line-window
// chunks of its text files. The collection is brought up to date on every
// query: files whose size or modification time changed are re-chunked,
// deleted files are purged, everything else is left alone.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/cunzhi/internal/config"
	"github.com/fyrsmithlabs/cunzhi/internal/sanitize"
)

var tracer = otel.Tracer("cunzhi.search")

// ErrEmptyQuery is returned for blank query text.
var ErrEmptyQuery = errors.New("search query is empty")

// Query asks for the chunks of a project most similar to Text.
type Query struct {
	ProjectRoot string
	Text        string
	// Limit overrides the configured top-k when positive.
	Limit int
}

// Result is one matching chunk.
type Result struct {
	Path      string  `json:"path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Snippet   string  `json:"snippet"`
	Score     float32 `json:"score"`
}

// Searcher answers search queries.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}

// Options configure an Index.
type Options struct {
	Dir             string
	IncludePatterns []string
	ExcludePatterns []string
	IgnoreFiles     []string
	MaxFileSize     int64
	ChunkLines      int
	TopK            int
	Compress        bool
}

// OptionsFromConfig converts the search section of the config document.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		Dir:             cfg.IndexDir,
		IncludePatterns: cfg.IncludePatterns,
		ExcludePatterns: cfg.ExcludePatterns,
		MaxFileSize:     cfg.MaxFileSize,
		ChunkLines:      cfg.ChunkLines,
		TopK:            cfg.TopK,
	}
}

func (o *Options) applyDefaults() {
	if o.MaxFileSize == 0 {
		o.MaxFileSize = 512 * 1024
	}
	if o.ChunkLines <= 0 {
		o.ChunkLines = 40
	}
	if o.TopK <= 0 {
		o.TopK = 8
	}
}

// SyncStats summarizes one sync.
type SyncStats struct {
	Indexed  int
	Removed  int
	Skipped  int
	Chunks   int
	Duration time.Duration
}

// Index is a persistent, incrementally updated project index.
type Index struct {
	db       *chromem.DB
	embedder Embedder
	ignore   *IgnoreParser
	opts     Options
	logger   *zap.Logger

	// locks serializes syncs per project.
	locks sync.Map
}

// NewIndex opens (or creates) the index under opts.Dir.
func NewIndex(opts Options, embedder Embedder, logger *zap.Logger) (*Index, error) {
	if opts.Dir == "" {
		return nil, errors.New("search index directory is required")
	}
	if embedder == nil {
		embedder = NewHashEmbedder(DefaultDimensions)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()

	if err := os.MkdirAll(filepath.Join(opts.Dir, "manifests"), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	db, err := chromem.NewPersistentDB(filepath.Join(opts.Dir, "chromem"), opts.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	logger.Info("search index opened",
		zap.String("path", opts.Dir),
		zap.Int("chunk_lines", opts.ChunkLines),
		zap.Int("top_k", opts.TopK),
	)
	return &Index{
		db:       db,
		embedder: embedder,
		ignore:   NewIgnoreParser(opts.IgnoreFiles),
		opts:     opts,
		logger:   logger,
	}, nil
}

// Search syncs the project index and returns the best matching chunks,
// most similar first.
func (ix *Index) Search(ctx context.Context, q Query) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Index.Search")
	defer span.End()

	results, err := ix.search(ctx, q)
	switch {
	case err != nil:
		QueriesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case len(results) == 0:
		QueriesTotal.WithLabelValues("empty").Inc()
	default:
		QueriesTotal.WithLabelValues("hit").Inc()
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, err
}

func (ix *Index) search(ctx context.Context, q Query) ([]Result, error) {
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}
	root, err := projectRoot(q.ProjectRoot)
	if err != nil {
		return nil, err
	}

	col, err := ix.collection(root)
	if err != nil {
		return nil, err
	}
	if _, err := ix.sync(ctx, root, col); err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	limit := ix.opts.TopK
	if q.Limit > 0 {
		limit = q.Limit
	}
	hits, err := col.Query(ctx, q.Text, min(limit, count), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		start, _ := strconv.Atoi(h.Metadata["start"])
		end, _ := strconv.Atoi(h.Metadata["end"])
		results = append(results, Result{
			Path:      h.Metadata["path"],
			StartLine: start,
			EndLine:   end,
			Snippet:   h.Content,
			Score:     h.Similarity,
		})
	}
	return results, nil
}

// Sync brings the index of root up to date without querying it.
func (ix *Index) Sync(ctx context.Context, root string) (*SyncStats, error) {
	root, err := projectRoot(root)
	if err != nil {
		return nil, err
	}
	col, err := ix.collection(root)
	if err != nil {
		return nil, err
	}
	return ix.sync(ctx, root, col)
}

func (ix *Index) collection(root string) (*chromem.Collection, error) {
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return ix.embedder.Embed(ctx, text)
	}
	col, err := ix.db.GetOrCreateCollection(sanitize.CollectionName(root), map[string]string{"root": root}, embed)
	if err != nil {
		return nil, fmt.Errorf("opening collection for %s: %w", root, err)
	}
	return col, nil
}

func (ix *Index) lock(root string) func() {
	v, _ := ix.locks.LoadOrStore(root, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (ix *Index) sync(ctx context.Context, root string, col *chromem.Collection) (*SyncStats, error) {
	ctx, span := tracer.Start(ctx, "Index.sync")
	defer span.End()

	unlock := ix.lock(root)
	defer unlock()

	start := time.Now()
	stats := &SyncStats{}

	ignored, err := ix.ignore.ParseProject(root)
	if err != nil {
		return nil, fmt.Errorf("reading ignore files: %w", err)
	}
	current, err := walkProject(ctx, root, walkOptions{
		Include:     ix.opts.IncludePatterns,
		Exclude:     append(append([]string(nil), ix.opts.ExcludePatterns...), ignored...),
		MaxFileSize: ix.opts.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	manifestPath := ix.manifestPath(root)
	previous, err := loadManifest(manifestPath)
	if err != nil {
		ix.logger.Warn("discarding unreadable index manifest",
			zap.String("path", manifestPath),
			zap.Error(err),
		)
		previous = map[string]fileState{}
	}

	next := make(map[string]fileState, len(current))
	var changed []string
	for rel, state := range current {
		if old, ok := previous[rel]; ok && old == state {
			next[rel] = state
			continue
		}
		changed = append(changed, rel)
	}
	for rel := range previous {
		if _, ok := current[rel]; ok {
			continue
		}
		if err := col.Delete(ctx, map[string]string{"path": rel}, nil); err != nil {
			return nil, fmt.Errorf("purging %s: %w", rel, err)
		}
		stats.Removed++
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, rel := range changed {
		g.Go(func() error {
			n, err := ix.indexFile(gctx, col, root, rel)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			next[rel] = current[rel]
			if n == 0 {
				stats.Skipped++
			} else {
				stats.Indexed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(changed) > 0 || stats.Removed > 0 {
		if err := saveManifest(manifestPath, next); err != nil {
			return nil, err
		}
	}

	stats.Chunks = col.Count()
	stats.Duration = time.Since(start)

	FilesSynced.WithLabelValues("indexed").Add(float64(stats.Indexed))
	FilesSynced.WithLabelValues("removed").Add(float64(stats.Removed))
	FilesSynced.WithLabelValues("skipped").Add(float64(stats.Skipped))
	SyncDuration.Observe(stats.Duration.Seconds())
	IndexedChunks.Set(float64(stats.Chunks))

	span.SetAttributes(
		attribute.Int("indexed", stats.Indexed),
		attribute.Int("removed", stats.Removed),
		attribute.Int("chunks", stats.Chunks),
	)
	if stats.Indexed+stats.Removed > 0 {
		ix.logger.Debug("search index synced",
			zap.String("root", root),
			zap.Int("indexed", stats.Indexed),
			zap.Int("removed", stats.Removed),
			zap.Int("skipped", stats.Skipped),
			zap.Duration("duration", stats.Duration),
		)
	}
	return stats, nil
}

// indexFile replaces the chunks of one file and returns how many it now
// has. Binary files yield zero chunks.
func (ix *Index) indexFile(ctx context.Context, col *chromem.Collection, root, rel string) (int, error) {
	if err := col.Delete(ctx, map[string]string{"path": rel}, nil); err != nil {
		return 0, fmt.Errorf("purging %s: %w", rel, err)
	}

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading %s: %w", rel, err)
	}
	if !utf8.Valid(content) {
		return 0, nil
	}

	chunks := chunkLines(string(content), ix.opts.ChunkLines)
	if len(chunks) == 0 {
		return 0, nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		vec, err := ix.embedder.Embed(ctx, rel+"\n"+c.Content)
		if err != nil {
			return 0, fmt.Errorf("embedding %s: %w", rel, err)
		}
		docs = append(docs, chromem.Document{
			ID: fmt.Sprintf("%s:%d", rel, c.Start),
			Metadata: map[string]string{
				"path":  rel,
				"start": strconv.Itoa(c.Start),
				"end":   strconv.Itoa(c.End),
			},
			Embedding: vec,
			Content:   c.Content,
		})
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return 0, fmt.Errorf("adding %s: %w", rel, err)
	}
	return len(docs), nil
}

func (ix *Index) manifestPath(root string) string {
	return filepath.Join(ix.opts.Dir, "manifests", sanitize.CollectionName(root)+".json")
}

func projectRoot(root string) (string, error) {
	clean, err := sanitize.ValidateProjectPath(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", clean)
	}
	return clean, nil
}

func loadManifest(path string) (map[string]fileState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]fileState{}, nil
		}
		return nil, err
	}
	m := map[string]fileState{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func saveManifest(path string, m map[string]fileState) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
