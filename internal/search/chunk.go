package search

import "strings"

// chunk is a contiguous line range of a file. Lines are 1-based and
// inclusive.
type chunk struct {
	Start   int
	End     int
	Content string
}

// chunkLines splits content into windows of size lines. Windows that are
// only whitespace are dropped.
func chunkLines(content string, size int) []chunk {
	if size <= 0 {
		size = 40
	}
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var chunks []chunk
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, chunk{Start: start + 1, End: end, Content: text})
	}
	return chunks
}
