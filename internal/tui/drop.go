package tui

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// parseDrop turns pasted text into file paths. Terminals deliver a drop as
// the dragged paths, shell-quoted and space separated, sometimes as file://
// URLs.
func parseDrop(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	fields, err := shlex.Split(text)
	if err != nil {
		// Unbalanced quotes: fall back to one path per line.
		fields = strings.Split(text, "\n")
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.HasPrefix(f, "file://") {
			if u, err := url.Parse(f); err == nil {
				f = u.Path
			}
		}
		out = append(out, expandHome(f))
	}
	return out
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
