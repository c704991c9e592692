package buffer

// Snapshot provides a read-only view of a buffer at a specific point in time.
// It is safe for concurrent access and will not change even if the original
// buffer is modified.
type Snapshot struct {
	clusters   []string
	revisionID RevisionID
}

// Text returns the full snapshot content as a string.
func (s *Snapshot) Text() string {
	return join(s.clusters)
}

// Slice returns the text in [start, end), clamped to the snapshot.
func (s *Snapshot) Slice(start, end Offset) string {
	if start < 0 {
		start = 0
	}
	if end > len(s.clusters) {
		end = len(s.clusters)
	}
	if start >= end {
		return ""
	}
	return join(s.clusters[start:end])
}

// Clusters returns the snapshot's grapheme clusters. The slice must not be
// modified.
func (s *Snapshot) Clusters() []string {
	return s.clusters[:len(s.clusters):len(s.clusters)]
}

// Len returns the number of grapheme clusters in the snapshot.
func (s *Snapshot) Len() Offset {
	return len(s.clusters)
}

// LineCount returns the number of lines.
func (s *Snapshot) LineCount() int {
	return lineCount(s.clusters)
}

// LineText returns the text of a specific line (without line break).
func (s *Snapshot) LineText(line int) string {
	return lineText(s.clusters, line)
}

// RevisionID returns the revision ID of this snapshot.
func (s *Snapshot) RevisionID() RevisionID {
	return s.revisionID
}

// IsEmpty returns true if the snapshot is empty.
func (s *Snapshot) IsEmpty() bool {
	return len(s.clusters) == 0
}
