package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

const (
	// MaxIdentifierLength bounds collection names in the search index.
	MaxIdentifierLength = 64

	hashLength = 8
)

// Identifier lowercases s and replaces every run of characters outside
// [a-z0-9] with a single underscore. An empty result becomes "default".
func Identifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}

// CollectionName derives a stable index collection name for a validated
// project root: the sanitized base name followed by a short hash of the
// full path, so equally named projects in different places do not collide.
func CollectionName(projectRoot string) string {
	sum := sha256.Sum256([]byte(projectRoot))
	suffix := hex.EncodeToString(sum[:])[:hashLength]

	base := Identifier(path.Base(strings.ReplaceAll(projectRoot, `\`, "/")))
	if limit := MaxIdentifierLength - hashLength - len("project__"); len(base) > limit {
		base = strings.TrimRight(base[:limit], "_")
	}
	return "project_" + base + "_" + suffix
}
