package search

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// defaultSkipDirs are never walked.
var defaultSkipDirs = map[string]bool{
	".git":           true,
	".svn":           true,
	".hg":            true,
	"node_modules":   true,
	"vendor":         true,
	".venv":          true,
	"venv":           true,
	"__pycache__":    true,
	".idea":          true,
	".vscode":        true,
	".cache":         true,
	"dist":           true,
	"build":          true,
	".next":          true,
	"target":         true,
	".cunzhi-memory": true,
}

// DefaultIgnoreFiles are read from the project root, in order.
var DefaultIgnoreFiles = []string{".gitignore", ".cunzhiignore"}

// IgnoreParser reads gitignore-style files from a project root.
type IgnoreParser struct {
	files []string
}

// NewIgnoreParser creates a parser for the given ignore file names.
func NewIgnoreParser(files []string) *IgnoreParser {
	if len(files) == 0 {
		files = DefaultIgnoreFiles
	}
	return &IgnoreParser{files: files}
}

// ParseProject returns the glob patterns of every ignore file found in
// root. Missing files are skipped.
func (p *IgnoreParser) ParseProject(root string) ([]string, error) {
	var patterns []string
	for _, name := range p.files {
		filePatterns, err := parseIgnoreFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
	}
	return deduplicate(patterns), nil
}

func parseIgnoreFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if pattern := parseIgnoreLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// parseIgnoreLine converts one gitignore line to a slash-separated glob.
// Comments, blank lines and negations yield "".
func parseIgnoreLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	return toGlobPattern(line)
}

func toGlobPattern(pattern string) string {
	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	if strings.HasSuffix(pattern, "/") {
		pattern += "**"
	}

	// gitignore matches slash-free patterns at any depth
	if !anchored && !strings.Contains(strings.TrimSuffix(pattern, "/**"), "/") && !strings.HasPrefix(pattern, "**/") {
		pattern = "**/" + pattern
	}

	// bare names are treated as directories too
	if !strings.HasSuffix(pattern, "/**") && !strings.ContainsAny(path.Base(pattern), ".*?[") {
		pattern += "/**"
	}
	return pattern
}

// matchGlob reports whether the slash-separated rel matches pattern.
// "**" matches zero or more whole segments; other segments use path.Match.
func matchGlob(pattern, rel string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			if len(pat) == 1 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(pat[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], name[0]); !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

func deduplicate(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
