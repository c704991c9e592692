package peer

import (
	"github.com/dshills/glyphcaster/internal/document"
	"github.com/dshills/glyphcaster/internal/repo"
)

// JSON-RPC methods.
const (
	MethodHello   = "peer/hello"
	MethodHeads   = "doc/heads"
	MethodRequest = "doc/request"
	MethodChanges = "doc/changes"
)

// HelloParams opens a session. The reply carries the listener's id.
type HelloParams struct {
	PeerID string `json:"peerId"`
}

// HelloResult is the reply to peer/hello.
type HelloResult struct {
	PeerID string `json:"peerId"`
}

// HeadsParams announces the sender's heads for a document.
type HeadsParams struct {
	DocumentID repo.DocumentID `json:"documentId"`
	Heads      document.Heads  `json:"heads"`
}

// RequestParams asks for the changes of a document the sender does not have
// beyond Have.
type RequestParams struct {
	DocumentID repo.DocumentID `json:"documentId"`
	Have       document.Heads  `json:"have,omitempty"`
}

// RequestResult is the reply to doc/request.
type RequestResult struct {
	Found   bool              `json:"found"`
	Heads   document.Heads    `json:"heads,omitempty"`
	Changes []document.Change `json:"changes,omitempty"`
}

// ChangesParams pushes changes of a document.
type ChangesParams struct {
	DocumentID repo.DocumentID   `json:"documentId"`
	Changes    []document.Change `json:"changes"`
}
