package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/glyphcaster/internal/document"
	"github.com/dshills/glyphcaster/internal/store"
)

func readText(t *testing.T, h *Handle, key string) string {
	t.Helper()
	var text string
	err := h.WithDocument(func(doc *document.Document) error {
		obj, ok := doc.Get(key)
		if !ok {
			return errors.New("no text object")
		}
		var err error
		text, err = doc.Text(obj)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return text
}

func appendText(t *testing.T, h *Handle, s string) {
	t.Helper()
	err := h.WithDocument(func(doc *document.Document) error {
		obj, _ := doc.Get(DefaultTextKey)
		n, err := doc.Length(obj)
		if err != nil {
			return err
		}
		tx := doc.Transaction()
		if err := tx.SpliceText(obj, n, 0, s); err != nil {
			return err
		}
		tx.Commit()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestParseURL(t *testing.T) {
	id := NewDocumentID()

	tests := []struct {
		in      string
		wantErr bool
	}{
		{id.URL(), false},
		{id.String(), false},
		{"  " + id.URL() + "\n", false},
		{"glyph:nope", true},
		{"", true},
	}
	for _, tt := range tests {
		got, err := ParseURL(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("ParseURL(%q): expected ErrInvalidURL, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseURL(%q): %v", tt.in, err)
			continue
		}
		if got != id {
			t.Errorf("ParseURL(%q) = %s, want %s", tt.in, got, id)
		}
	}
}

func TestDocumentIDText(t *testing.T) {
	id := NewDocumentID()
	text, err := id.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var got DocumentID
	if err := got.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
	if !(DocumentID{}).IsZero() || id.IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestCreateTextDefaults(t *testing.T) {
	r := New()
	h, err := r.CreateText(context.Background(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := readText(t, h, DefaultTextKey); got != DefaultText {
		t.Errorf("expected %q, got %q", DefaultText, got)
	}
	if len(h.Heads()) != 1 {
		t.Errorf("expected one head, got %v", h.Heads())
	}
}

func TestFindOpenHandle(t *testing.T) {
	r := New()
	h, err := r.CreateText(context.Background(), "notes", "hi")
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Find(context.Background(), h.DocumentID())
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Error("expected the open handle")
	}
	if _, err := r.Find(context.Background(), NewDocumentID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistAndReload(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	r1 := New(WithStore(st))
	h, err := r1.CreateText(ctx, "", "Hello")
	if err != nil {
		t.Fatal(err)
	}
	appendText(t, h, " World")
	appendText(t, h, "!")

	changes, err := st.Load(ctx, h.DocumentID().String())
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 3 {
		t.Errorf("expected 3 stored changes without duplicates, got %d", len(changes))
	}

	r2 := New(WithStore(st))
	h2, err := r2.Find(ctx, h.DocumentID())
	if err != nil {
		t.Fatal(err)
	}
	if got := readText(t, h2, DefaultTextKey); got != "Hello World!" {
		t.Errorf("expected reloaded text, got %q", got)
	}
	if !h2.Heads().Equal(h.Heads()) {
		t.Error("reloaded heads differ")
	}

	// Reloading must not write the loaded changes again.
	appendText(t, h2, "?")
	changes, _ = st.Load(ctx, h.DocumentID().String())
	if len(changes) != 4 {
		t.Errorf("expected 4 stored changes, got %d", len(changes))
	}

	ids, err := r2.Stored(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != h.DocumentID() {
		t.Errorf("unexpected stored ids %v", ids)
	}
}

type mapFinder map[DocumentID][]document.Change

func (f mapFinder) FindDocument(ctx context.Context, id DocumentID) ([]document.Change, error) {
	changes, ok := f[id]
	if !ok {
		return nil, ErrNotFound
	}
	return changes, nil
}

func TestFindFromFinder(t *testing.T) {
	ctx := context.Background()
	src := New()
	h, err := src.CreateText(ctx, "", "remote")
	if err != nil {
		t.Fatal(err)
	}
	var changes []document.Change
	h.read(func(doc *document.Document) { changes = doc.Changes() })

	r := New()
	r.AddFinder(mapFinder{})
	r.AddFinder(mapFinder{h.DocumentID(): changes})

	got, err := r.Find(ctx, h.DocumentID())
	if err != nil {
		t.Fatal(err)
	}
	if text := readText(t, got, DefaultTextKey); text != "remote" {
		t.Errorf("expected %q, got %q", "remote", text)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	src := New(WithActor("src"))
	h, err := src.CreateText(ctx, "", "one")
	if err != nil {
		t.Fatal(err)
	}
	var first []document.Change
	h.read(func(doc *document.Document) { first = doc.Changes() })
	appendText(t, h, " two")
	var all []document.Change
	h.read(func(doc *document.Document) { all = doc.Changes() })

	dst := New(WithActor("dst"))
	got, err := dst.Import(ctx, h.DocumentID(), first)
	if err != nil {
		t.Fatal(err)
	}
	if text := readText(t, got, DefaultTextKey); text != "one" {
		t.Errorf("expected %q, got %q", "one", text)
	}

	again, err := dst.Import(ctx, h.DocumentID(), all[1:])
	if err != nil {
		t.Fatal(err)
	}
	if again != got {
		t.Error("expected the existing handle")
	}
	if text := readText(t, got, DefaultTextKey); text != "one two" {
		t.Errorf("expected %q, got %q", "one two", text)
	}
}

func TestHandleChanges(t *testing.T) {
	r := New()
	h, err := r.CreateText(context.Background(), "", "a")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := h.Changes(ctx)

	appendText(t, h, "b")
	select {
	case ev := <-events:
		if ev.DocumentID != h.DocumentID() {
			t.Errorf("unexpected document %s", ev.DocumentID)
		}
		if !ev.Heads.Equal(h.Heads()) {
			t.Errorf("expected heads %v, got %v", h.Heads(), ev.Heads)
		}
	case <-time.After(time.Second):
		t.Fatal("no change event")
	}

	// A read-only call does not produce an event.
	_ = h.WithDocument(func(doc *document.Document) error { return nil })
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestHandleChangesCoalesce(t *testing.T) {
	r := New()
	h, err := r.CreateText(context.Background(), "", "a")
	if err != nil {
		t.Fatal(err)
	}
	events := h.Changes(context.Background())

	for i := 0; i < 5; i++ {
		appendText(t, h, "x")
	}

	ev := <-events
	if !ev.Heads.Equal(h.Heads()) {
		t.Errorf("expected the latest heads, got %v", ev.Heads)
	}
	select {
	case ev := <-events:
		t.Fatalf("expected a single coalesced event, got another %v", ev)
	default:
	}
}

func TestHandleChangesEnd(t *testing.T) {
	r := New()
	h, err := r.CreateText(context.Background(), "", "a")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	byCtx := h.Changes(ctx)
	byClose := h.Changes(context.Background())
	cancel()

	select {
	case _, ok := <-byCtx:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not end on cancel")
	}

	r.Close()
	select {
	case _, ok := <-byClose:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not end on close")
	}

	if _, ok := <-h.Changes(context.Background()); ok {
		t.Error("stream of a closed handle should be closed")
	}
	if _, err := r.CreateText(context.Background(), "", ""); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestOnChange(t *testing.T) {
	r := New()
	var mu sync.Mutex
	var got []ChangeEvent
	cancel := r.OnChange(func(ev ChangeEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	h, err := r.CreateText(context.Background(), "", "a")
	if err != nil {
		t.Fatal(err)
	}
	appendText(t, h, "b")
	cancel()
	appendText(t, h, "c")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected open and change events, got %d", len(got))
	}
	for _, ev := range got {
		if ev.DocumentID != h.DocumentID() {
			t.Errorf("unexpected document %s", ev.DocumentID)
		}
	}
}

func TestHandles(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		if _, err := r.CreateText(context.Background(), "", ""); err != nil {
			t.Fatal(err)
		}
	}
	hs := r.Handles()
	if len(hs) != 3 {
		t.Fatalf("expected 3 handles, got %d", len(hs))
	}
	for i := 1; i < len(hs); i++ {
		if hs[i-1].DocumentID().String() > hs[i].DocumentID().String() {
			t.Error("handles not ordered")
		}
	}
}
