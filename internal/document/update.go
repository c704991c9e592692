package document

import (
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Clusters are diffed as runes from the supplementary private use planes so
// that each cluster is one diff unit and survives the round trip through the
// diff's string form.
var clusterRuneRanges = [][2]rune{
	{0xF0000, 0xFFFFD},
	{0x100000, 0x10FFFD},
}

// UpdateText replaces the content of a text object with text using the
// smallest set of splices the diff finds, so concurrent edits to unchanged
// regions are preserved.
func (tx *Transaction) UpdateText(obj ObjID, text string) error {
	if tx.closed {
		return ErrTransactionClosed
	}
	v, err := tx.view(obj)
	if err != nil {
		return err
	}

	next := Graphemes(text)
	m := make(map[string]rune)
	fromRunes, ok := clusterRunes(m, v.values)
	if ok {
		var toRunes []rune
		toRunes, ok = clusterRunes(m, next)
		if ok {
			return tx.applyRuneDiff(obj, fromRunes, toRunes, next)
		}
	}
	// Too many distinct clusters to map; replace everything.
	return tx.SpliceText(obj, 0, len(v.ids), text)
}

func (tx *Transaction) applyRuneDiff(obj ObjID, from, to []rune, clusters []string) error {
	dmp := diffpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(from, to, false)

	pos, ti := 0, 0
	for i := range diffs {
		n := len([]rune(diffs[i].Text))
		switch diffs[i].Type {
		case diffpatch.DiffEqual:
			pos += n
			ti += n
		case diffpatch.DiffDelete:
			if err := tx.SpliceText(obj, pos, n, ""); err != nil {
				return err
			}
		case diffpatch.DiffInsert:
			if err := tx.SpliceText(obj, pos, 0, joinValues(clusters[ti:ti+n])); err != nil {
				return err
			}
			pos += n
			ti += n
		}
	}
	return nil
}

func clusterRunes(m map[string]rune, clusters []string) ([]rune, bool) {
	rs := make([]rune, len(clusters))
	for i, c := range clusters {
		r, ok := m[c]
		if !ok {
			r, ok = nthClusterRune(len(m))
			if !ok {
				return nil, false
			}
			m[c] = r
		}
		rs[i] = r
	}
	return rs, true
}

func nthClusterRune(n int) (rune, bool) {
	for _, rg := range clusterRuneRanges {
		size := int(rg[1]-rg[0]) + 1
		if n < size {
			return rg[0] + rune(n), true
		}
		n -= size
	}
	return 0, false
}
