package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists one file per document under
// <root>/<worldId>/configs/<name>. Each world folder also gets maps/,
// images/ and music/ subfolders for uploaded assets served statically.
type FileStore struct {
	root string
}

// NewFileStore creates a file-backed document store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileStore{root: dir}, nil
}

func validName(s string) bool {
	return s != "" && s != "." && s != ".." &&
		!strings.ContainsAny(s, "/\\") && s == filepath.Base(s)
}

func (fs *FileStore) documentPath(worldID, name string) (string, error) {
	if !validName(worldID) || !validName(name) {
		return "", fmt.Errorf("invalid document address %q/%q", worldID, name)
	}
	return filepath.Join(fs.root, worldID, "configs", name), nil
}

// GetDocument reads a document body. Missing files map to ErrNotFound.
func (fs *FileStore) GetDocument(_ context.Context, worldID, name string) (json.RawMessage, error) {
	path, err := fs.documentPath(worldID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s/%s: %w", worldID, name, err)
	}
	return data, nil
}

// PutDocument writes a document body, creating the world folder if needed.
func (fs *FileStore) PutDocument(_ context.Context, worldID, name string, body json.RawMessage) error {
	path, err := fs.documentPath(worldID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir for %s: %w", worldID, err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write document %s/%s: %w", worldID, name, err)
	}
	return nil
}

// DeleteDocument removes a document. Deleting a missing document is not an
// error; the caller only cares that it is gone.
func (fs *FileStore) DeleteDocument(_ context.Context, worldID, name string) error {
	path, err := fs.documentPath(worldID, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document %s/%s: %w", worldID, name, err)
	}
	return nil
}

// ListWorlds returns the ids of all world folders under the root.
func (fs *FileStore) ListWorlds(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list worlds: %w", err)
	}
	worlds := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			worlds = append(worlds, e.Name())
		}
	}
	return worlds, nil
}

// CreateWorld creates the folder layout for a new world.
func (fs *FileStore) CreateWorld(_ context.Context, worldID string) error {
	if !validName(worldID) {
		return fmt.Errorf("invalid world id %q", worldID)
	}
	for _, sub := range []string{"configs", "maps", "images", "music"} {
		if err := os.MkdirAll(filepath.Join(fs.root, worldID, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create world %s: %w", worldID, err)
		}
	}
	return nil
}

// DeleteWorld removes a world folder and everything in it.
func (fs *FileStore) DeleteWorld(_ context.Context, worldID string) error {
	if !validName(worldID) {
		return fmt.Errorf("invalid world id %q", worldID)
	}
	if err := os.RemoveAll(filepath.Join(fs.root, worldID)); err != nil {
		return fmt.Errorf("failed to delete world %s: %w", worldID, err)
	}
	return nil
}

// Close closes the store (no-op for the file store).
func (fs *FileStore) Close() error {
	return nil
}
