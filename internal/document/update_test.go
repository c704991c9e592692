package document

import "testing"

func TestUpdateText(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantOps int
	}{
		{"insert", "hello world", "hello brave world", 6},
		{"delete", "hello brave world", "hello world", 6},
		{"unchanged", "same", "same", 0},
		{"from empty", "", "abc", 3},
		{"to empty", "abc", "", 3},
		{"graphemes", "a🇩🇪b", "a🇫🇷b", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, obj := newText(t, "a", tt.from)
			tx := d.Transaction()
			if err := tx.UpdateText(obj, tt.to); err != nil {
				t.Fatal(err)
			}
			if tx.Pending() != tt.wantOps {
				t.Errorf("expected %d ops, got %d", tt.wantOps, tx.Pending())
			}
			tx.Commit()
			if got := mustText(t, d, obj); got != tt.to {
				t.Errorf("expected %q, got %q", tt.to, got)
			}
		})
	}
}

func TestUpdateTextPreservesConcurrentEdits(t *testing.T) {
	a, obj := newText(t, "a", "hello world")
	b := a.Fork(WithActor("b"))

	tx := a.Transaction()
	if err := tx.UpdateText(obj, "hello brave world"); err != nil {
		t.Fatal(err)
	}
	tx.Commit()
	splice(t, b, obj, 11, 0, "!")

	if err := a.Merge(b); err != nil {
		t.Fatal(err)
	}
	if got := mustText(t, a, obj); got != "hello brave world!" {
		t.Errorf("expected both edits, got %q", got)
	}
}

func TestNthClusterRune(t *testing.T) {
	tests := []struct {
		n    int
		want rune
		ok   bool
	}{
		{0, 0xF0000, true},
		{0xFFFD, 0xFFFFD, true},
		{0xFFFE, 0x100000, true},
		{2 * 0xFFFE, 0, false},
	}
	for _, tt := range tests {
		got, ok := nthClusterRune(tt.n)
		if got != tt.want || ok != tt.ok {
			t.Errorf("nthClusterRune(%d) = %#x, %v; want %#x, %v", tt.n, got, ok, tt.want, tt.ok)
		}
	}
}
