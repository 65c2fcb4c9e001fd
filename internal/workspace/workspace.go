// Package workspace stages changed-file contents into a disposable
// directory tree for one reviewer invocation.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

const dirPrefix = "azdo-review-"

// File is one entry to stage: a repository-relative path and its
// content.
type File struct {
	Path    string
	Content string
}

// Materialize writes every file with non-empty content under a fresh
// directory, preserving relative paths. It returns the directory root
// and how many files were written; zero written files means there is
// nothing to review, which is not an error.
func Materialize(files []File) (string, int, error) {
	root := filepath.Join(os.TempDir(), dirPrefix+strings.ToLower(ulid.Make().String()))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", 0, fmt.Errorf("create workspace: %w", err)
	}

	written := 0
	for _, file := range files {
		if file.Content == "" {
			continue
		}
		rel := strings.TrimLeft(file.Path, "/\\")
		if rel == "" {
			continue
		}
		dest := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return root, written, fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, []byte(file.Content), 0o644); err != nil {
			return root, written, fmt.Errorf("write %s: %w", rel, err)
		}
		written++
	}
	return root, written, nil
}

// Dispose removes the workspace tree. A directory that cannot be
// removed is a leak for external housekeeping, not a failure.
func Dispose(root string) {
	if strings.TrimSpace(root) == "" {
		return
	}
	if err := os.RemoveAll(root); err != nil {
		slog.Warn("workspace cleanup failed", "dir", root, "error", err)
	}
}
