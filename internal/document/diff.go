package document

import (
	"fmt"
	"sort"
	"strings"
)

// Patch is one localized change to one object.
type Patch struct {
	Obj    ObjID
	Action PatchAction
}

// String returns a compact description for logs.
func (p Patch) String() string {
	return fmt.Sprintf("%s %s", p.Obj, p.Action)
}

// PatchAction is one of SpliceText, DeleteSeq or PutObject.
type PatchAction interface {
	fmt.Stringer
	patchAction()
}

// SpliceText inserts Value at Index of a text object.
type SpliceText struct {
	Index int
	Value string
}

// DeleteSeq removes Length grapheme clusters at Index of a text object.
type DeleteSeq struct {
	Index  int
	Length int
}

// PutObject assigns an object to a root key.
type PutObject struct {
	Key   string
	Value ObjID
}

func (SpliceText) patchAction() {}
func (DeleteSeq) patchAction()  {}
func (PutObject) patchAction()  {}

func (a SpliceText) String() string { return fmt.Sprintf("splice(%d, %q)", a.Index, a.Value) }
func (a DeleteSeq) String() string  { return fmt.Sprintf("delete(%d, %d)", a.Index, a.Length) }
func (a PutObject) String() string  { return fmt.Sprintf("put(%s, %s)", a.Key, a.Value) }

// Diff returns the patches that turn the content at from into the content at
// to. Root key assignments come first, ordered by key, followed by the text
// patches of each object, ordered by object id.
//
// Text patch indices are in the coordinates of from (of the empty text, for
// objects that do not exist at from), ascending and non-overlapping.
func (d *Document) Diff(from, to Heads) ([]Patch, error) {
	fc, err := d.clockAt(from)
	if err != nil {
		return nil, fmt.Errorf("diff from %s: %w", from, err)
	}
	tc, err := d.clockAt(to)
	if err != nil {
		return nil, fmt.Errorf("diff to %s: %w", to, err)
	}

	var patches []Patch

	keys := make([]string, 0, len(d.keys))
	for k := range d.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		before, _ := d.lookup(k, fc)
		after, ok := d.lookup(k, tc)
		if ok && after != before {
			patches = append(patches, Patch{Obj: Root, Action: PutObject{Key: k, Value: after}})
		}
	}

	objs := make([]ObjID, 0, len(d.objects))
	for id, t := range d.objects {
		if tc.has(t.created) {
			objs = append(objs, id)
		}
	}
	sort.Slice(objs, func(i, j int) bool {
		return OpID(objs[i]).Compare(OpID(objs[j])) < 0
	})
	for _, id := range objs {
		patches = append(patches, diffText(d.objects[id], fc, tc)...)
	}
	return patches, nil
}

// diffText walks every element once in sequence order. Elements visible only
// at from form delete runs, elements visible only at to form insert runs,
// and the from index advances past every element visible at from.
func diffText(t *textObject, from, to clock) []Patch {
	var (
		patches []Patch
		index   int
		runKind int // 0 none, 1 insert, 2 delete
		runAt   int
		runLen  int
		runText strings.Builder
	)
	flush := func() {
		switch runKind {
		case 1:
			patches = append(patches, Patch{Obj: t.id, Action: SpliceText{Index: runAt, Value: runText.String()}})
		case 2:
			patches = append(patches, Patch{Obj: t.id, Action: DeleteSeq{Index: runAt, Length: runLen}})
		}
		runKind, runLen = 0, 0
		runText.Reset()
	}
	start := func(kind int) {
		if runKind != kind {
			flush()
			runKind, runAt = kind, index
		}
	}

	for _, e := range t.elems {
		inFrom, inTo := e.visible(from), e.visible(to)
		switch {
		case inFrom && inTo:
			flush()
			index++
		case inFrom:
			start(2)
			runLen++
			index++
		case inTo:
			start(1)
			runText.WriteString(e.value)
		}
	}
	flush()
	return patches
}
