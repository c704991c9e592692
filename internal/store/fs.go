package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dshills/glyphcaster/internal/document"
)

// logName is the change log file inside each document directory.
const logName = "changes.jsonl"

// FS is a Store on the local file system. Each document is a directory
// under the root holding a JSON lines change log.
type FS struct {
	root string
	mu   sync.Mutex
}

// NewFS creates a file system store rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, errors.New("store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", dir, err)
	}
	return &FS{root: dir}, nil
}

// Root returns the store directory.
func (s *FS) Root() string {
	return s.root
}

func (s *FS) logPath(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return "", fmt.Errorf("store: invalid document id %q", id)
	}
	return filepath.Join(s.root, id, logName), nil
}

// Append implements Store. The changes are written with a single write and
// synced before Append returns.
func (s *FS) Append(ctx context.Context, id string, changes []document.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	path, err := s.logPath(id)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := document.EncodeChanges(&buf, changes); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("store: appending to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("store: syncing %s: %w", path, err)
	}
	return f.Close()
}

// Load implements Store.
func (s *FS) Load(ctx context.Context, id string) ([]document.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.logPath(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	data, err := os.ReadFile(path)
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	changes, err := document.DecodeChanges(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", path, err)
	}
	return changes, nil
}

// List implements Store.
func (s *FS) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), logName)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
