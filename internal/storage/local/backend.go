// Package local implements a filesystem-backed origin store. It is the
// default backend for development and single-node deployments where the
// rendered artifacts live on local disk.
package local

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/rendercache/rendercache/internal/storage"
	"github.com/rendercache/rendercache/pkg/types"
)

// Backend serves origin fetches from a billy filesystem rooted at the
// artifact store directory.
type Backend struct {
	fs billy.Filesystem
}

// New creates a local backend rooted at dir.
func New(dir string) *Backend {
	return &Backend{fs: osfs.New(dir)}
}

// NewWithFilesystem creates a local backend on an existing filesystem.
// Tests use this with an in-memory filesystem.
func NewWithFilesystem(fs billy.Filesystem) *Backend {
	return &Backend{fs: fs}
}

// Fetch reads the object stored at key. A missing file maps to
// storage.ErrNotFound; the content type is derived from the key's
// extension.
func (b *Backend) Fetch(ctx context.Context, key string) (*storage.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := util.ReadFile(b.fs, key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	result := &storage.FetchResult{
		Content:       content,
		ContentType:   contentTypeForKey(key),
		ContentLength: int64(len(content)),
	}
	if info, err := b.fs.Stat(key); err == nil {
		result.LastModified = info.ModTime()
	}
	return result, nil
}

// Store writes the object at key, creating parent directories as needed.
func (b *Backend) Store(ctx context.Context, key string, content []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := path.Dir(key); dir != "." && dir != "/" {
		if err := b.fs.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", key, err)
		}
	}
	if err := util.WriteFile(b.fs, key, content, 0o640); err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	return nil
}

// Delete removes the object at key. Deleting an absent key is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func contentTypeForKey(key string) string {
	if ct, ok := types.ContentTypeForExtension(path.Ext(key)); ok {
		return string(ct)
	}
	return "application/octet-stream"
}
