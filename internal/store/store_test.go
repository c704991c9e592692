package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/glyphcaster/internal/document"
)

func sampleChanges(t *testing.T) []document.Change {
	t.Helper()
	d := document.New(document.WithActor("a"))
	tx := d.Transaction()
	obj, err := tx.PutText("content")
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.SpliceText(obj, 0, 0, "Hello"); err != nil {
		t.Fatal(err)
	}
	tx.Commit()
	tx = d.Transaction()
	if err := tx.SpliceText(obj, 5, 0, " World"); err != nil {
		t.Fatal(err)
	}
	tx.Commit()
	return d.Changes()
}

func hashes(changes []document.Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Hash().String()
	}
	return out
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFS(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
	}
}

func TestStore_AppendLoad(t *testing.T) {
	ctx := context.Background()
	changes := sampleChanges(t)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Append(ctx, "doc1", changes[:1]); err != nil {
				t.Fatal(err)
			}
			if err := s.Append(ctx, "doc1", changes[1:]); err != nil {
				t.Fatal(err)
			}

			got, err := s.Load(ctx, "doc1")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(hashes(changes), hashes(got)); diff != "" {
				t.Errorf("loaded changes mismatch (-want +got):\n%s", diff)
			}

			d := document.New()
			if err := d.ApplyChanges(got...); err != nil {
				t.Fatal(err)
			}
			obj, _ := d.Get("content")
			if text, _ := d.Text(obj); text != "Hello World" {
				t.Errorf("expected replayed text %q, got %q", "Hello World", text)
			}
		})
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	changes := sampleChanges(t)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"b", "a", "c"} {
				if err := s.Append(ctx, id, changes); err != nil {
					t.Fatal(err)
				}
			}
			got, err := s.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
				t.Errorf("List mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Append(ctx, "x", nil); !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})
	}
}

func TestFS_InvalidID(t *testing.T) {
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"", "..", "a/b", "../x"} {
		if err := s.Append(context.Background(), id, sampleChanges(t)); err == nil {
			t.Errorf("expected error for id %q", id)
		}
	}
}

func TestFS_IgnoresStrayEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no documents, got %v", got)
	}
}

func TestFS_CorruptLog(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "bad"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad", logName), []byte("{oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background(), "bad"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}
}
