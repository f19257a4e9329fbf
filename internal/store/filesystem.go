package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Filesystem stores each object as a file under a root directory. Object keys
// map to slash-separated relative paths; URL-encoded key segments stay inside
// a single path element.
type Filesystem struct {
	root string
}

func NewFilesystem(dataDir string) (*Filesystem, error) {
	root := strings.TrimSpace(dataDir)
	if root == "" {
		return nil, fmt.Errorf("data dir is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", root, err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) List(ctx context.Context, prefix string) ([]Handle, error) {
	var handles []Handle
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			handles = append(handles, Handle{Key: key})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk data dir: %w", err)
	}

	sort.Slice(handles, func(i, j int) bool { return handles[i].Key < handles[j].Key })
	return handles, nil
}

func (f *Filesystem) Get(ctx context.Context, h Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.path(h.Key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", h.Key, err)
	}
	return data, nil
}

func (f *Filesystem) Put(ctx context.Context, key string, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	p, err := f.path(key)
	if err != nil {
		return Handle{}, err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Handle{}, fmt.Errorf("create object dir for %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return Handle{}, fmt.Errorf("write object %s: %w", key, err)
	}
	return Handle{Key: key}, nil
}

func (f *Filesystem) Delete(ctx context.Context, h Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(h.Key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove object %s: %w", h.Key, err)
	}
	return nil
}

func (f *Filesystem) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(f.root); err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	return nil
}

func (f *Filesystem) Close() error {
	return nil
}

func (f *Filesystem) path(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("object key is empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}
