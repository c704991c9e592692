package document

import (
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"
)

// Save writes every applied change to w as one JSON object per line, in
// causal order.
func (d *Document) Save(w io.Writer) error {
	return EncodeChanges(w, d.Changes())
}

// Load reads changes written by Save or EncodeChanges and replays them into a
// new document.
func Load(r io.Reader, opts ...Option) (*Document, error) {
	changes, err := DecodeChanges(r)
	if err != nil {
		return nil, err
	}
	d := New(opts...)
	if err := d.ApplyChanges(changes...); err != nil {
		return nil, err
	}
	if n := d.PendingCount(); n > 0 {
		return nil, fmt.Errorf("load: %w: %d changes", ErrMissingDeps, n)
	}
	return d, nil
}

// EncodeChanges writes changes as JSON lines.
func EncodeChanges(w io.Writer, changes []Change) error {
	enc := json.NewEncoder(w)
	for i := range changes {
		if err := enc.Encode(&changes[i]); err != nil {
			return fmt.Errorf("encoding change %d: %w", i, err)
		}
	}
	return nil
}

// DecodeChanges reads JSON lines written by EncodeChanges.
func DecodeChanges(r io.Reader) ([]Change, error) {
	dec := json.NewDecoder(r)
	var out []Change
	for {
		var c Change
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding change %d: %w", len(out), err)
		}
		out = append(out, c)
	}
}
