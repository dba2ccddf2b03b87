package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore keeps blobs as uuid-named files under a base directory,
// sharded by the first two characters of the id.
type LocalStore struct {
	basePath string
}

func NewLocalStore(basePath string) (*LocalStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (s *LocalStore) Put(ctx context.Context, r io.Reader) (string, error) {
	locator := uuid.NewString()
	path := s.pathFor(locator)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close blob file: %w", err)
	}
	return locator, nil
}

func (s *LocalStore) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	path, err := s.safePathFor(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Copy(ctx context.Context, locator string) (string, error) {
	src, err := s.Get(ctx, locator)
	if err != nil {
		return "", err
	}
	defer src.Close()
	return s.Put(ctx, src)
}

func (s *LocalStore) Delete(ctx context.Context, locator string) error {
	path, err := s.safePathFor(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, locator string) bool {
	path, err := s.safePathFor(locator)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

func (s *LocalStore) pathFor(locator string) string {
	return filepath.Join(s.basePath, locator[:2], locator)
}

func (s *LocalStore) safePathFor(locator string) (string, error) {
	if len(locator) < 2 || strings.ContainsAny(locator, `/\`) {
		return "", fmt.Errorf("invalid locator %q", locator)
	}
	return s.pathFor(locator), nil
}
