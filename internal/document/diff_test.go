package document

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// applyText folds text patches for obj onto s the way a buffer consumer
// does: indices are shifted by the net length of the patches already applied.
func applyText(t *testing.T, s string, obj ObjID, patches []Patch) string {
	t.Helper()
	g := Graphemes(s)
	adj := 0
	for _, p := range patches {
		if p.Obj != obj {
			continue
		}
		switch a := p.Action.(type) {
		case SpliceText:
			at := a.Index + adj
			ins := Graphemes(a.Value)
			g = append(g[:at], append(ins, g[at:]...)...)
			adj += len(ins)
		case DeleteSeq:
			at := a.Index + adj
			g = append(g[:at], g[at+a.Length:]...)
			adj -= a.Length
		}
	}
	return joinValues(g)
}

func TestDiffInsert(t *testing.T) {
	d, obj := newText(t, "a", "Hello")
	from := d.Heads()
	splice(t, d, obj, 5, 0, " World")

	got, err := d.Diff(from, d.Heads())
	if err != nil {
		t.Fatal(err)
	}
	want := []Patch{{Obj: obj, Action: SpliceText{Index: 5, Value: " World"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffDelete(t *testing.T) {
	d, obj := newText(t, "a", "Hello World")
	from := d.Heads()
	splice(t, d, obj, 0, 6, "")

	got, err := d.Diff(from, d.Heads())
	if err != nil {
		t.Fatal(err)
	}
	want := []Patch{{Obj: obj, Action: DeleteSeq{Index: 0, Length: 6}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffSameHeadsIsEmpty(t *testing.T) {
	d, _ := newText(t, "a", "Hello")
	got, err := d.Diff(d.Heads(), d.Heads())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no patches, got %v", got)
	}
}

func TestDiffNewObject(t *testing.T) {
	d, obj := newText(t, "a", "Hello")

	got, err := d.Diff(nil, d.Heads())
	if err != nil {
		t.Fatal(err)
	}
	want := []Patch{
		{Obj: Root, Action: PutObject{Key: "content", Value: obj}},
		{Obj: obj, Action: SpliceText{Index: 0, Value: "Hello"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", diff)
	}
}

// One change that inserts, deletes and inserts again yields patches in the
// coordinates of the starting text.
func TestDiffInsertDeleteInsertBatch(t *testing.T) {
	d, obj := newText(t, "a", "abcdef")
	from := d.Heads()

	tx := d.Transaction()
	for _, s := range []struct {
		pos, del int
		text     string
	}{
		{0, 0, "XY"},
		{5, 1, ""},
		{7, 0, "Z"},
	} {
		if err := tx.SpliceText(obj, s.pos, s.del, s.text); err != nil {
			t.Fatal(err)
		}
	}
	tx.Commit()

	got, err := d.Diff(from, d.Heads())
	if err != nil {
		t.Fatal(err)
	}
	want := []Patch{
		{Obj: obj, Action: SpliceText{Index: 0, Value: "XY"}},
		{Obj: obj, Action: DeleteSeq{Index: 3, Length: 1}},
		{Obj: obj, Action: SpliceText{Index: 6, Value: "Z"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Diff mismatch (-want +got):\n%s", diff)
	}
	if s := applyText(t, "abcdef", obj, got); s != "XYabcefZ" {
		t.Errorf("expected %q after applying, got %q", "XYabcefZ", s)
	}
}

func TestDiffReplaceAdjacent(t *testing.T) {
	d, obj := newText(t, "a", "one two three")
	from := d.Heads()
	splice(t, d, obj, 4, 3, "2")

	got, err := d.Diff(from, d.Heads())
	if err != nil {
		t.Fatal(err)
	}
	if s := applyText(t, "one two three", obj, got); s != "one 2 three" {
		t.Errorf("expected %q, got %q (patches %v)", "one 2 three", s, got)
	}
}

func TestDiffBackwards(t *testing.T) {
	d, obj := newText(t, "a", "Hello")
	from := d.Heads()
	splice(t, d, obj, 0, 1, "J")
	splice(t, d, obj, 5, 0, "!")
	to := d.Heads()

	got, err := d.Diff(to, from)
	if err != nil {
		t.Fatal(err)
	}
	if s := applyText(t, "Jello!", obj, got); s != "Hello" {
		t.Errorf("expected reverse diff to restore %q, got %q", "Hello", s)
	}
}

func TestDiffConcurrentMerge(t *testing.T) {
	a, obj := newText(t, "a", "The cat sat")
	b := a.Fork(WithActor("b"))

	splice(t, a, obj, 4, 3, "dog")
	splice(t, b, obj, 11, 0, " down")
	splice(t, b, obj, 0, 3, "A")

	before := a.Heads()
	beforeText := mustText(t, a, obj)
	if err := a.Merge(b); err != nil {
		t.Fatal(err)
	}

	got, err := a.Diff(before, a.Heads())
	if err != nil {
		t.Fatal(err)
	}
	want := mustText(t, a, obj)
	if want != "A dog sat down" {
		t.Fatalf("unexpected merge %q", want)
	}
	if s := applyText(t, beforeText, obj, got); s != want {
		t.Errorf("expected %q, got %q (patches %v)", want, s, got)
	}
}

func TestDiffRandomizedEdits(t *testing.T) {
	d, obj := newText(t, "a", "0123456789")
	from := d.Heads()
	edits := []struct {
		pos, del int
		text     string
	}{
		{2, 3, "ab"},
		{0, 1, ""},
		{8, 0, "xyz"},
		{4, 2, "é"},
		{1, 0, "🇩🇪"},
	}
	for _, e := range edits {
		splice(t, d, obj, e.pos, e.del, e.text)
	}

	got, err := d.Diff(from, d.Heads())
	if err != nil {
		t.Fatal(err)
	}
	if s := applyText(t, "0123456789", obj, got); s != mustText(t, d, obj) {
		t.Errorf("expected %q, got %q", mustText(t, d, obj), s)
	}
}
