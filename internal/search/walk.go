package search

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// fileState is what the index remembers about a file between syncs.
type fileState struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mtime"`
}

// walkOptions filter the files considered for indexing.
type walkOptions struct {
	Include     []string
	Exclude     []string
	MaxFileSize int64
}

// walkProject lists the indexable files under root keyed by slash-separated
// relative path.
func walkProject(ctx context.Context, root string, opts walkOptions) (map[string]fileState, error) {
	files := make(map[string]fileState)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			// unreadable entries are skipped, not fatal
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if defaultSkipDirs[d.Name()] || matchesPattern(opts.Exclude, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !shouldIndex(rel, info.Size(), opts) {
			return nil
		}
		files[rel] = fileState{Size: info.Size(), ModTime: info.ModTime().UnixNano()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func shouldIndex(rel string, size int64, opts walkOptions) bool {
	if opts.MaxFileSize > 0 && size > opts.MaxFileSize {
		return false
	}
	if matchesPattern(opts.Exclude, rel) {
		return false
	}
	if len(opts.Include) == 0 {
		return true
	}
	return matchesPattern(opts.Include, rel)
}

// matchesPattern reports whether rel matches any pattern. Patterns without a
// slash are also tried against the base name.
func matchesPattern(patterns []string, rel string) bool {
	base := path.Base(rel)
	for _, p := range patterns {
		if matchGlob(p, rel) {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, _ := path.Match(p, base); ok {
				return true
			}
		}
	}
	return false
}
