package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore serves files from directories under one root. Folder names
// map to subdirectories and file ids are paths relative to the root.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("file store root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file store root %s is not a directory", root)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) List(_ context.Context, folder string) ([]File, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, folder))
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, File{
			ID:   filepath.Join(folder, entry.Name()),
			Name: entry.Name(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *LocalStore) Read(_ context.Context, id string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, id))
}

func (s *LocalStore) Move(_ context.Context, id, folder string) error {
	target := filepath.Join(s.root, folder)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}
	return os.Rename(filepath.Join(s.root, id), filepath.Join(target, filepath.Base(id)))
}

func (s *LocalStore) Upload(_ context.Context, folder, name string, content []byte) (File, error) {
	target := filepath.Join(s.root, folder)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return File{}, err
	}
	if err := os.WriteFile(filepath.Join(target, name), content, 0o644); err != nil {
		return File{}, err
	}
	return File{ID: filepath.Join(folder, name), Name: name}, nil
}
