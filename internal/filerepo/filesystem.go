package filerepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const metaSuffix = ".meta.json"

type sidecar struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

// Filesystem stores files under a root directory.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating file root: %w", err)
	}
	return &Filesystem{root: root}, nil
}

// Root returns the storage directory.
func (fs *Filesystem) Root() string {
	return fs.root
}

// Put writes the data file first and the sidecar second, each through a
// temporary file and rename.
func (fs *Filesystem) Put(ctx context.Context, key string, f File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	meta, err := json.Marshal(sidecar{Name: f.Name, ContentType: f.ContentType})
	if err != nil {
		return fmt.Errorf("encoding file metadata: %w", err)
	}
	if err := writeAtomic(fs.dataPath(key), f.Data); err != nil {
		return fmt.Errorf("writing file %s: %w", key, err)
	}
	if err := writeAtomic(fs.metaPath(key), meta); err != nil {
		return fmt.Errorf("writing file metadata %s: %w", key, err)
	}
	return nil
}

// Get reads the file and its sidecar.
func (fs *Filesystem) Get(ctx context.Context, key string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	if err := validateKey(key); err != nil {
		return File{}, err
	}

	data, err := os.ReadFile(fs.dataPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, fmt.Errorf("%w: %s", ErrFileNotFound, key)
		}
		return File{}, fmt.Errorf("reading file %s: %w", key, err)
	}

	f := File{Data: data}
	raw, err := os.ReadFile(fs.metaPath(key))
	switch {
	case err == nil:
		var meta sidecar
		if err := json.Unmarshal(raw, &meta); err != nil {
			return File{}, fmt.Errorf("decoding file metadata %s: %w", key, err)
		}
		f.Name, f.ContentType = meta.Name, meta.ContentType
	case !errors.Is(err, os.ErrNotExist):
		return File{}, fmt.Errorf("reading file metadata %s: %w", key, err)
	}
	return f, nil
}

// Delete removes the file and its sidecar.
func (fs *Filesystem) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	for _, p := range []string{fs.dataPath(key), fs.metaPath(key)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// Exists reports whether the data file is present.
func (fs *Filesystem) Exists(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	_, err := os.Stat(fs.dataPath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (fs *Filesystem) dataPath(key string) string { return filepath.Join(fs.root, key) }
func (fs *Filesystem) metaPath(key string) string { return filepath.Join(fs.root, key+metaSuffix) }

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
