package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/recipekeeper/internal/filex"
)

// LocalStorage keeps files below a media root on the local filesystem and
// serves them under a base URL.
type LocalStorage struct {
	root    string
	baseURL string
}

func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	base, name := "", root
	if filepath.IsAbs(root) {
		base, name = root, ""
	}
	dir, err := filex.EnsureSubdDir(base, name)
	if err != nil {
		return nil, err
	}
	return &LocalStorage{root: dir, baseURL: baseURL}, nil
}

// Root returns the absolute media directory.
func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, `\`) || clean != "/"+key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if _, err := filex.EnsureSubdDir(filepath.Dir(p), ""); err != nil {
		return err
	}
	return filex.WriteFileAtomic(p, r, 0o640)
}

func (s *LocalStorage) URL(ctx context.Context, key string) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	base := s.baseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return url.JoinPath(base, key)
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
