package repo

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// URLScheme prefixes document URLs.
const URLScheme = "glyph:"

// DocumentID identifies a document across peers.
type DocumentID uuid.UUID

// NewDocumentID returns a random document id.
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New())
}

// String returns the canonical uuid form.
func (id DocumentID) String() string {
	return uuid.UUID(id).String()
}

// URL returns the shareable form "glyph:<uuid>".
func (id DocumentID) URL() string {
	return URLScheme + id.String()
}

// IsZero reports whether id is the zero id.
func (id DocumentID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler.
func (id DocumentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *DocumentID) UnmarshalText(text []byte) error {
	parsed, err := ParseDocumentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseDocumentID parses the uuid form of a document id.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DocumentID{}, fmt.Errorf("%w: %q: %v", ErrInvalidURL, s, err)
	}
	return DocumentID(u), nil
}

// ParseURL parses "glyph:<uuid>". A bare uuid is accepted too.
func ParseURL(s string) (DocumentID, error) {
	return ParseDocumentID(strings.TrimPrefix(strings.TrimSpace(s), URLScheme))
}
