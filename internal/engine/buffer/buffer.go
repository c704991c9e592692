package buffer

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rivo/uniseg"
)

// Errors returned by buffer operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrRangeInvalid     = errors.New("invalid range")
)

// Buffer is an editable text addressed by grapheme cluster.
// All methods are thread-safe.
type Buffer struct {
	mu         sync.RWMutex
	clusters   []string // never mutated in place; snapshots share it
	revisionID RevisionID

	obsMu     sync.Mutex
	observers []*observerEntry
}

// NewBuffer creates a new empty buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		revisionID: NewRevisionID(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NewBufferFromString creates a buffer with initial content.
// No observer is notified of the initial content.
func NewBufferFromString(s string, opts ...Option) *Buffer {
	b := NewBuffer(opts...)
	b.clusters = segment(s)
	return b
}

// NewBufferFromClusters creates a buffer whose clusters are exactly the
// given ones, without re-segmenting them. Empty strings are skipped.
func NewBufferFromClusters(clusters []string, opts ...Option) *Buffer {
	b := NewBuffer(opts...)
	b.clusters = make([]string, 0, len(clusters))
	for _, c := range clusters {
		if c != "" {
			b.clusters = append(b.clusters, c)
		}
	}
	return b
}

// NewBufferFromReader creates a buffer from an io.Reader.
func NewBufferFromReader(r io.Reader, opts ...Option) (*Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewBufferFromString(string(data), opts...), nil
}

// segment splits s into grapheme clusters.
func segment(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, len(s))
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

func join(clusters []string) string {
	var sb strings.Builder
	for _, c := range clusters {
		sb.WriteString(c)
	}
	return sb.String()
}

// Read Operations

// Text returns the full buffer content as a string.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return join(b.clusters)
}

// Slice returns the text in [start, end).
func (b *Buffer) Slice(start, end Offset) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if start < 0 || start > end || end > len(b.clusters) {
		return "", ErrRangeInvalid
	}
	return join(b.clusters[start:end]), nil
}

// Len returns the number of grapheme clusters in the buffer.
func (b *Buffer) Len() Offset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clusters)
}

// ClusterAt returns the grapheme cluster at offset.
func (b *Buffer) ClusterAt(offset Offset) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if offset < 0 || offset >= len(b.clusters) {
		return "", false
	}
	return b.clusters[offset], true
}

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return lineCount(b.clusters)
}

// LineText returns the text of a specific line (without line break).
func (b *Buffer) LineText(line int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return lineText(b.clusters, line)
}

// Write Operations

// Insert inserts text at the given offset.
// Returns the end position of the inserted text.
func (b *Buffer) Insert(offset Offset, text string) (Offset, error) {
	b.mu.Lock()
	if offset < 0 || offset > len(b.clusters) {
		b.mu.Unlock()
		return 0, ErrOffsetOutOfRange
	}
	ins := segment(text)
	if len(ins) == 0 {
		b.mu.Unlock()
		return offset, nil
	}
	b.clusters = splice(b.clusters, offset, offset, ins)
	b.revisionID = NewRevisionID()
	b.mu.Unlock()

	b.notifyInserted(offset, text)
	return offset + len(ins), nil
}

// Delete removes text in the given range.
func (b *Buffer) Delete(start, end Offset) error {
	b.mu.Lock()
	if start < 0 || start > end || end > len(b.clusters) {
		b.mu.Unlock()
		return ErrRangeInvalid
	}
	if start == end {
		b.mu.Unlock()
		return nil
	}
	b.clusters = splice(b.clusters, start, end, nil)
	b.revisionID = NewRevisionID()
	b.mu.Unlock()

	b.notifyDeleted(start, end)
	return nil
}

// Replace replaces text in the given range with new text.
// Observers see a deletion followed by an insertion.
// Returns the end position of the replacement text.
func (b *Buffer) Replace(start, end Offset, text string) (Offset, error) {
	b.mu.Lock()
	if start < 0 || start > end || end > len(b.clusters) {
		b.mu.Unlock()
		return 0, ErrRangeInvalid
	}
	ins := segment(text)
	if start == end && len(ins) == 0 {
		b.mu.Unlock()
		return start, nil
	}
	b.clusters = splice(b.clusters, start, end, ins)
	b.revisionID = NewRevisionID()
	b.mu.Unlock()

	if start < end {
		b.notifyDeleted(start, end)
	}
	if len(ins) > 0 {
		b.notifyInserted(start, text)
	}
	return start + len(ins), nil
}

// splice returns a new slice with s[start:end] replaced by ins.
func splice(s []string, start, end int, ins []string) []string {
	out := make([]string, 0, len(s)-(end-start)+len(ins))
	out = append(out, s[:start]...)
	out = append(out, ins...)
	out = append(out, s[end:]...)
	return out
}

// Buffer State

// RevisionID returns the current revision ID.
func (b *Buffer) RevisionID() RevisionID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revisionID
}

// IsEmpty returns true if the buffer is empty.
func (b *Buffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clusters) == 0
}

// Snapshot returns a read-only snapshot of the current buffer state.
// Safe for concurrent access from other goroutines.
func (b *Buffer) Snapshot() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return &Snapshot{
		clusters:   b.clusters, // replaced, never modified, on edit
		revisionID: b.revisionID,
	}
}

// Line helpers shared by Buffer and Snapshot.

func isLineBreak(c string) bool {
	return c == "\n" || c == "\r\n" || c == "\r"
}

func lineCount(clusters []string) int {
	n := 1
	for _, c := range clusters {
		if isLineBreak(c) {
			n++
		}
	}
	return n
}

func lineBounds(clusters []string, line int) (int, int) {
	start, cur := 0, 0
	for i, c := range clusters {
		if !isLineBreak(c) {
			continue
		}
		if cur == line {
			return start, i
		}
		cur++
		start = i + 1
	}
	if cur == line {
		return start, len(clusters)
	}
	return len(clusters), len(clusters)
}

func lineText(clusters []string, line int) string {
	start, end := lineBounds(clusters, line)
	return join(clusters[start:end])
}
