package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dshills/glyphcaster/internal/document"
	"github.com/dshills/glyphcaster/internal/repo"
)

// DefaultDelay is how long the file must be quiet before it is read.
const DefaultDelay = 100 * time.Millisecond

// Document is the replicated side of the mirror. *repo.Handle implements it.
type Document interface {
	WithDocument(fn func(doc *document.Document) error) error
	Changes(ctx context.Context) <-chan repo.ChangeEvent
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithKey selects the root key of the mirrored text object.
func WithKey(key string) Option {
	return func(m *Mirror) {
		if key != "" {
			m.key = key
		}
	}
}

// WithDelay sets the debounce delay for file events.
func WithDelay(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Mirror binds a file to a text object.
type Mirror struct {
	doc    Document
	path   string
	key    string
	delay  time.Duration
	logger *zap.Logger

	// mu serialises the two sync directions and guards last and base.
	mu sync.Mutex
	// last is the content the file and the document were last known to
	// agree on; it is the text of the document at base.
	last string
	base document.Heads
	obj  document.ObjID
}

// New creates a mirror of doc's text object at path.
func New(doc Document, path string, opts ...Option) *Mirror {
	m := &Mirror{
		doc:    doc,
		path:   path,
		key:    repo.DefaultTextKey,
		delay:  DefaultDelay,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("file", path))
	return m
}

// Path returns the mirrored file.
func (m *Mirror) Path() string {
	return m.path
}

// Run mirrors until ctx is done. If the file already exists its content is
// folded into the document first; otherwise the file is created from the
// document.
func (m *Mirror) Run(ctx context.Context) error {
	if err := m.resolve(); err != nil {
		return err
	}

	// Subscribe before the initial sync so no change is missed.
	events := m.doc.Changes(ctx)

	switch _, err := os.Stat(m.path); {
	case err == nil:
		if err := m.syncFromFile(); err != nil {
			return err
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := m.syncToFile(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("mirror: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	defer w.Close()
	// Watch the directory: atomic saves replace the file.
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("mirror: watch: %w", err)
	}

	deb := newDebouncer(m.delay)
	defer deb.stop()

	base := filepath.Base(m.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-events:
			if !ok {
				return nil
			}
			if err := m.syncToFile(); err != nil {
				return err
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				deb.trigger()
			}

		case <-deb.C:
			if err := m.syncFromFile(); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// Removed between the event and the read.
					continue
				}
				return err
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (m *Mirror) resolve() error {
	return m.doc.WithDocument(func(d *document.Document) error {
		obj, ok := d.Get(m.key)
		if !ok {
			return fmt.Errorf("mirror: root key %q: %w", m.key, document.ErrObjectNotFound)
		}
		text, err := d.Text(obj)
		if err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
		m.obj = obj
		m.last = text
		m.base = d.Heads()
		return nil
	})
}

// syncFromFile folds the file's content into the document.
func (m *Mirror) syncFromFile() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, err := m.readFile()
	if err != nil {
		return err
	}
	return m.fold(content)
}

// syncToFile writes the document's text to the file if it differs. A file
// edit not read yet is folded in first so it is not overwritten.
func (m *Mirror) syncToFile() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, err := m.readFile()
	switch {
	case err == nil && content != m.last:
		return m.fold(content)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return err
	}
	return m.write(err != nil)
}

func (m *Mirror) readFile() (string, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotRegular, m.path)
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// fold commits content as an edit made at base, the version the file last
// matched, so document changes made since then are merged rather than
// reverted. If the merge differs from content the file is rewritten.
func (m *Mirror) fold(content string) error {
	if content == m.last {
		return nil
	}

	var (
		hash      document.ChangeHash
		committed bool
		merged    bool
	)
	err := m.doc.WithDocument(func(d *document.Document) error {
		tx, err := d.TransactionAt(m.base)
		if err != nil {
			return err
		}
		if err := tx.UpdateText(m.obj, content); err != nil {
			tx.Rollback()
			return err
		}
		hash, committed = tx.CommitWith("mirror " + filepath.Base(m.path))
		merged = committed && !d.Heads().Equal(document.NewHeads(hash))
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror: update document: %w", err)
	}
	m.last = content
	if committed {
		m.base = document.NewHeads(hash)
	}
	m.logger.Debug("file read into document",
		zap.Bool("changed", committed),
		zap.Bool("merged", merged),
		zap.Int("bytes", len(content)))
	if merged {
		return m.write(false)
	}
	return nil
}

// write stores the document's current text in the file when it differs from
// last, or unconditionally when force is set.
func (m *Mirror) write(force bool) error {
	var (
		text  string
		heads document.Heads
	)
	err := m.doc.WithDocument(func(d *document.Document) error {
		var err error
		text, err = d.Text(m.obj)
		heads = d.Heads()
		return err
	})
	if err != nil {
		return fmt.Errorf("mirror: read document: %w", err)
	}
	if text != m.last || force {
		if err := writeFile(m.path, []byte(text)); err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
		m.logger.Debug("document written to file", zap.Int("bytes", len(text)))
	}
	m.last = text
	m.base = heads
	return nil
}

// writeFile replaces path with data through a temporary file in the same
// directory, so readers never see a partial write.
func writeFile(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
