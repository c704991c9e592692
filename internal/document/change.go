package document

import (
	"crypto/sha256"
	"fmt"

	"github.com/segmentio/encoding/json"
)

// Action is the kind of an operation.
type Action uint8

const (
	// ActionMakeText creates a text object under a root key.
	ActionMakeText Action = iota + 1
	// ActionInsert inserts one grapheme cluster after Ref.
	ActionInsert
	// ActionDelete tombstones the element Target.
	ActionDelete
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionMakeText:
		return "makeText"
	case ActionInsert:
		return "insert"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is a single operation within a change. The OpID of the i-th op of a
// change is {StartOp + i, Actor}.
type Op struct {
	Action Action `json:"action"`
	Obj    ObjID  `json:"obj"`
	Key    string `json:"key,omitempty"`
	Ref    OpID   `json:"ref"`
	Value  string `json:"value,omitempty"`
	Target OpID   `json:"target"`
}

// String returns a compact description of the op.
func (op Op) String() string {
	switch op.Action {
	case ActionMakeText:
		return fmt.Sprintf("makeText(%s)", op.Key)
	case ActionInsert:
		return fmt.Sprintf("insert(%s after %s, %q)", op.Obj, op.Ref, op.Value)
	case ActionDelete:
		return fmt.Sprintf("delete(%s, %s)", op.Obj, op.Target)
	default:
		return "op(?)"
	}
}

// Change is the unit of replication: the ops one actor committed in one
// transaction, together with the version they were based on.
type Change struct {
	Actor   ActorID      `json:"actor"`
	Seq     uint64       `json:"seq"`
	StartOp uint64       `json:"startOp"`
	Time    int64        `json:"time"`
	Message string       `json:"message,omitempty"`
	Deps    []ChangeHash `json:"deps"`
	Ops     []Op         `json:"ops"`
}

// Hash returns the SHA-256 of the change's JSON encoding.
func (c Change) Hash() ChangeHash {
	data, err := json.Marshal(c)
	if err != nil {
		// Change holds only strings, integers and TextMarshalers.
		panic(fmt.Sprintf("document: encoding change: %v", err))
	}
	return sha256.Sum256(data)
}

// OpID returns the id of the i-th op.
func (c Change) OpID(i int) OpID {
	return OpID{Counter: c.StartOp + uint64(i), Actor: c.Actor}
}

// MaxOp returns the counter of the change's last op, or StartOp-1 if it has none.
func (c Change) MaxOp() uint64 {
	if len(c.Ops) == 0 {
		if c.StartOp == 0 {
			return 0
		}
		return c.StartOp - 1
	}
	return c.StartOp + uint64(len(c.Ops)) - 1
}
