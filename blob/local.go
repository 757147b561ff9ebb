package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// LocalStore keeps attachments in a directory and returns file:// URIs.
type LocalStore struct {
	root string
}

// NewLocal creates a LocalStore rooted at dir, creating it if needed.
func NewLocal(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

func (l *LocalStore) Upload(_ context.Context, data []byte, suggestedPath string) (string, error) {
	full := filepath.Join(l.root, filepath.FromSlash(objectName(suggestedPath)))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(full)}
	return u.String(), nil
}

var _ Store = (*LocalStore)(nil)
