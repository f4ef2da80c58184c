// Package sanitize validates and normalizes untrusted tool arguments.
package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPath indicates an empty or whitespace-only path.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrRelativePath indicates a path that is not absolute.
	ErrRelativePath = errors.New("path must be absolute")

	// ErrMalformedPath indicates a path with characters no file system accepts.
	ErrMalformedPath = errors.New("malformed path")
)

// driveLetter matches Windows drive-absolute paths such as C:\src or d:/src.
var driveLetter = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// ValidateProjectPath checks that path is a well-formed absolute path and
// returns it cleaned. POSIX paths, Windows drive paths and UNC shares are
// accepted on every platform. The path is not required to exist.
func ValidateProjectPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrEmptyPath
	}
	if strings.ContainsRune(trimmed, 0) {
		return "", fmt.Errorf("%w: contains NUL byte", ErrMalformedPath)
	}

	switch {
	case driveLetter.MatchString(trimmed):
		return cleanWindows(trimmed), nil
	case strings.HasPrefix(trimmed, `\\`):
		if len(strings.FieldsFunc(trimmed, isWindowsSep)) < 2 {
			return "", fmt.Errorf("%w: UNC path needs a server and a share", ErrMalformedPath)
		}
		return `\\` + strings.Join(strings.FieldsFunc(trimmed, isWindowsSep), `\`), nil
	case strings.HasPrefix(trimmed, "/"):
		return filepath.ToSlash(filepath.Clean(filepath.FromSlash(trimmed))), nil
	case len(trimmed) == 2 && trimmed[1] == ':':
		return "", fmt.Errorf("%w: drive %q has no root, use %s\\", ErrRelativePath, trimmed, trimmed)
	default:
		return "", fmt.Errorf("%w: %q", ErrRelativePath, trimmed)
	}
}

func isWindowsSep(r rune) bool {
	return r == '\\' || r == '/'
}

// cleanWindows collapses separators and dot segments of a drive path while
// keeping the drive root.
func cleanWindows(p string) string {
	drive := strings.ToUpper(p[:1]) + ":"
	var out []string
	for _, part := range strings.FieldsFunc(p[2:], isWindowsSep) {
		switch part {
		case ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	return drive + `\` + strings.Join(out, `\`)
}
