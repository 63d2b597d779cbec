package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Storage keeps normalized images and hands back a public URL for each.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type LocalStorage struct {
	dir       string
	publicURL string
}

// NewLocalStorage stores files under dir; publicURL is the prefix they are
// served from (the router mounts dir at /uploads).
func NewLocalStorage(dir, publicURL string) (*LocalStorage, error) {
	if dir == "" {
		dir = "./uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *LocalStorage) Dir() string { return s.dir }

func (s *LocalStorage) full(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.full(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	return s.publicURL + "/" + strings.TrimPrefix(path.Clean("/"+key), "/"), nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.full(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
