package receipts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps receipts as flat files under a root directory.
type FSStore struct {
	root    string
	baseURL string
}

// NewFS returns a filesystem store rooted at root, creating it if needed.
// URLs are baseURL + "/" + key.
func NewFS(root, baseURL string) (*FSStore, error) {
	if root == "" {
		root = "./data/receipts"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create receipts dir: %w", err)
	}
	return &FSStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FSStore) Driver() Driver { return DriverFS }

func (s *FSStore) Put(ctx context.Context, key, _ string, body io.Reader) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.root, k)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", ErrExists
		}
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return s.baseURL + "/" + url.PathEscape(k), nil
}

// Open returns the stored receipt for serving. Callers close the file.
func (s *FSStore) Open(key string) (*os.File, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.root, k))
}
