package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileStorage keeps one file per key under a data directory. A file
// lock guards the directory so that a second process cannot interleave
// writes with ours.
type FileStorage struct {
	dir string
	flk *flock.Flock
}

func NewFileStorage(dir string) (*FileStorage, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	return &FileStorage{
		dir: dir,
		flk: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStorage) Get(_ context.Context, key string) (string, bool, error) {
	err := s.flk.RLock()
	if err != nil {
		return "", false, fmt.Errorf("failed to lock data dir: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()

	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(b), true, nil
}

func (s *FileStorage) Set(_ context.Context, key, value string) error {
	err := s.flk.Lock()
	if err != nil {
		return fmt.Errorf("failed to lock data dir: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()

	// Write through a temp file so a crash mid-write cannot leave a
	// truncated entry behind.
	tmp := s.path(key) + ".tmp"
	err = os.WriteFile(tmp, []byte(value), 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	err = os.Rename(tmp, s.path(key))
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

func (s *FileStorage) Close() {}
