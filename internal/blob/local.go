package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalDir stores blobs as files under a base directory, for development and
// tests. URLs are file:// paths unless a base URL is configured.
type LocalDir struct {
	dir     string
	baseURL string
}

var _ Uploader = (*LocalDir)(nil)

func NewLocalDir(dir, baseURL string) (*LocalDir, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &LocalDir{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (l *LocalDir) Upload(_ context.Context, name, _ string, content []byte) (string, error) {
	name = filepath.Base(name)
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", name, err)
	}
	if l.baseURL != "" {
		return l.baseURL + "/" + name, nil
	}
	return "file://" + path, nil
}
