package search

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is the vector size of HashEmbedder.
const DefaultDimensions = 384

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HashEmbedder is a local, deterministic embedder using signed feature
// hashing over lowercase word tokens, identifier parts and CJK runes. It
// needs no model download and works offline.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates an embedder producing dims-sized vectors.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions returns the vector size.
func (e *HashEmbedder) Dimensions() int {
	return e.dims
}

// Embed implements Embedder. The result is unit length; text without
// tokens maps to a fixed unit vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dims)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// tokenize splits text into lowercase words. camelCase and snake_case
// identifiers also contribute their parts; each Han rune is its own token.
func tokenize(text string) []string {
	var tokens []string
	var word []rune

	flush := func() {
		if len(word) == 0 {
			return
		}
		w := string(word)
		lower := strings.ToLower(w)
		tokens = append(tokens, lower)
		if parts := splitCamel(word); len(parts) > 1 {
			for _, p := range parts {
				tokens = append(tokens, strings.ToLower(p))
			}
		}
		word = word[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func splitCamel(word []rune) []string {
	var parts []string
	start := 0
	for i := 1; i < len(word); i++ {
		if unicode.IsUpper(word[i]) && unicode.IsLower(word[i-1]) {
			parts = append(parts, string(word[start:i]))
			start = i
		}
	}
	return append(parts, string(word[start:]))
}
