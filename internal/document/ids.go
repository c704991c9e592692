package document

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ActorID identifies the replica that authored a change.
type ActorID string

// NewActorID returns a random actor identifier.
func NewActorID() ActorID {
	u := uuid.New()
	return ActorID(hex.EncodeToString(u[:]))
}

// Short returns an abbreviated form for logs.
func (a ActorID) Short() string {
	if len(a) > 8 {
		return string(a[:8])
	}
	return string(a)
}

// OpID is a Lamport timestamp identifying a single operation.
// The zero OpID is never assigned to an operation.
type OpID struct {
	Counter uint64  `json:"c"`
	Actor   ActorID `json:"a"`
}

// IsZero returns true for the zero OpID.
func (id OpID) IsZero() bool {
	return id.Counter == 0 && id.Actor == ""
}

// Compare orders OpIDs by counter, then actor.
// Returns -1 if id < other, 0 if equal, 1 if id > other.
func (id OpID) Compare(other OpID) int {
	switch {
	case id.Counter < other.Counter:
		return -1
	case id.Counter > other.Counter:
		return 1
	}
	return strings.Compare(string(id.Actor), string(other.Actor))
}

// String returns "counter@actor".
func (id OpID) String() string {
	if id.IsZero() {
		return "_head"
	}
	return fmt.Sprintf("%d@%s", id.Counter, id.Actor.Short())
}

// ObjID identifies an object in the document. It is the OpID of the
// operation that created the object.
type ObjID OpID

// Root is the document's root map.
var Root = ObjID{}

// IsRoot reports whether the id refers to the root map.
func (o ObjID) IsRoot() bool {
	return OpID(o).IsZero()
}

// String returns a human-readable object id.
func (o ObjID) String() string {
	if o.IsRoot() {
		return "_root"
	}
	return OpID(o).String()
}

// ChangeHash is the SHA-256 of a change's canonical encoding.
type ChangeHash [32]byte

// String returns the hex form of the hash.
func (h ChangeHash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 8 hex digits.
func (h ChangeHash) Short() string {
	return h.String()[:8]
}

// MarshalText implements encoding.TextMarshaler.
func (h ChangeHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *ChangeHash) UnmarshalText(text []byte) error {
	parsed, err := ParseChangeHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseChangeHash parses the hex form of a change hash.
func ParseChangeHash(s string) (ChangeHash, error) {
	var h ChangeHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parsing change hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("parsing change hash %q: want %d bytes, got %d", s, len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Heads is a version: the sorted set of change hashes no other change depends on.
type Heads []ChangeHash

// NewHeads returns a sorted, de-duplicated copy of hashes.
func NewHeads(hashes ...ChangeHash) Heads {
	out := make(Heads, 0, len(hashes))
	seen := make(map[ChangeHash]struct{}, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// Equal reports whether both versions contain the same hashes.
func (h Heads) Equal(other Heads) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// Contains reports whether hash is one of the heads.
func (h Heads) Contains(hash ChangeHash) bool {
	for _, x := range h {
		if x == hash {
			return true
		}
	}
	return false
}

// Clone returns a copy of the heads.
func (h Heads) Clone() Heads {
	if h == nil {
		return nil
	}
	out := make(Heads, len(h))
	copy(out, h)
	return out
}

// String returns the short hashes joined by commas.
func (h Heads) String() string {
	parts := make([]string, len(h))
	for i, x := range h {
		parts[i] = x.Short()
	}
	return "[" + strings.Join(parts, ",") + "]"
}
