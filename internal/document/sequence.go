package document

import (
	"fmt"
	"strings"
)

// clock is the set of change indices visible at a version. Changes are
// appended in causal order, so "everything applied so far" is the prefix
// [0, upto) and needs no set.
type clock struct {
	upto int
	set  []bool
}

func (c clock) has(i int) bool {
	if c.set == nil {
		return i < c.upto
	}
	return i < len(c.set) && c.set[i]
}

func (d *Document) currentClock() clock {
	return clock{upto: len(d.changes)}
}

// clockAt returns the ancestor closure of heads.
func (d *Document) clockAt(heads Heads) (clock, error) {
	heads = NewHeads(heads...)
	if heads.Equal(d.heads) {
		return d.currentClock(), nil
	}
	set := make([]bool, len(d.changes))
	stack := make([]int, 0, len(heads))
	for _, h := range heads {
		i, ok := d.byHash[h]
		if !ok {
			return clock{}, fmt.Errorf("%w: %s", ErrUnknownHead, h.Short())
		}
		stack = append(stack, i)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if set[i] {
			continue
		}
		set[i] = true
		stack = append(stack, d.changes[i].deps...)
	}
	return clock{set: set}, nil
}

// element is one grapheme cluster of a text object.
type element struct {
	id      OpID
	value   string
	change  int   // change that inserted it
	deletes []int // changes that deleted it
}

func (e *element) visible(c clock) bool {
	if !c.has(e.change) {
		return false
	}
	for _, d := range e.deletes {
		if c.has(d) {
			return false
		}
	}
	return true
}

// textObject holds every element ever inserted, in RGA order. The order of
// any causally closed subset of elements is the restriction of this order,
// which is what lets one list serve every version.
type textObject struct {
	id      ObjID
	created int
	elems   []*element
	byID    map[OpID]*element
	last    int // position of the latest insert, a search hint
}

func newTextObject(id ObjID, created int) *textObject {
	return &textObject{
		id:      id,
		created: created,
		byID:    make(map[OpID]*element),
	}
}

func (t *textObject) indexOf(id OpID) int {
	if t.last < len(t.elems) && t.elems[t.last].id == id {
		return t.last
	}
	for i, e := range t.elems {
		if e.id == id {
			return i
		}
	}
	return -1
}

// insert places e after ref, skipping concurrent siblings with greater ids.
func (t *textObject) insert(e *element, ref OpID) {
	pos := 0
	if !ref.IsZero() {
		pos = t.indexOf(ref) + 1
	}
	for pos < len(t.elems) && t.elems[pos].id.Compare(e.id) > 0 {
		pos++
	}
	t.elems = append(t.elems, nil)
	copy(t.elems[pos+1:], t.elems[pos:])
	t.elems[pos] = e
	t.byID[e.id] = e
	t.last = pos
}

func (t *textObject) text(c clock) string {
	var sb strings.Builder
	for _, e := range t.elems {
		if e.visible(c) {
			sb.WriteString(e.value)
		}
	}
	return sb.String()
}

// view returns the ids and values of the elements visible at c.
func (t *textObject) view(c clock) ([]OpID, []string) {
	var ids []OpID
	var values []string
	for _, e := range t.elems {
		if e.visible(c) {
			ids = append(ids, e.id)
			values = append(values, e.value)
		}
	}
	return ids, values
}
