package peer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/glyphcaster/internal/document"
	"github.com/dshills/glyphcaster/internal/repo"
)

func newNode(t *testing.T, name string) (*Node, *repo.Repo) {
	t.Helper()
	r := repo.New(repo.WithActor(document.ActorID(name)))
	n := New(r, WithPeerID(name))
	t.Cleanup(func() {
		n.Close()
		r.Close()
	})
	return n, r
}

func listen(t *testing.T, n *Node) string {
	t.Helper()
	if err := n.Listen(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	addr, err := n.Addr()
	if err != nil {
		t.Fatal(err)
	}
	return addr.String()
}

func connect(t *testing.T, a, b *Node) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := b.Dial(ctx, listen(t, a)); err != nil {
		t.Fatal(err)
	}
	if _, err := a.WhenConnected(ctx, b.ID()); err != nil {
		t.Fatal(err)
	}
}

func text(h *repo.Handle) string {
	var s string
	_ = h.WithDocument(func(doc *document.Document) error {
		obj, ok := doc.Get(repo.DefaultTextKey)
		if !ok {
			return nil
		}
		s, _ = doc.Text(obj)
		return nil
	})
	return s
}

func appendText(t *testing.T, h *repo.Handle, s string) {
	t.Helper()
	err := h.WithDocument(func(doc *document.Document) error {
		obj, _ := doc.Get(repo.DefaultTextKey)
		n, err := doc.Length(obj)
		if err != nil {
			return err
		}
		tx := doc.Transaction()
		if err := tx.SpliceText(obj, n, 0, s); err != nil {
			return err
		}
		tx.Commit()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandshake(t *testing.T) {
	a, _ := newNode(t, "alice")
	b, _ := newNode(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := b.Dial(ctx, listen(t, a))
	if err != nil {
		t.Fatal(err)
	}
	if c.PeerID() != "alice" {
		t.Errorf("expected remote alice, got %q", c.PeerID())
	}
	ac, err := a.WhenConnected(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if ac.PeerID() != "bob" {
		t.Errorf("expected remote bob, got %q", ac.PeerID())
	}
	if n := len(a.Conns()); n != 1 {
		t.Errorf("expected one connection, got %d", n)
	}
}

func TestAddrBeforeListen(t *testing.T) {
	n, _ := newNode(t, "x")
	if _, err := n.Addr(); !errors.Is(err, ErrNotListening) {
		t.Errorf("expected ErrNotListening, got %v", err)
	}
}

func TestFindThroughPeer(t *testing.T) {
	a, ra := newNode(t, "alice")
	b, rb := newNode(t, "bob")
	connect(t, a, b)

	ha, err := ra.CreateText(context.Background(), "", "shared")
	if err != nil {
		t.Fatal(err)
	}

	hb, err := rb.Find(context.Background(), ha.DocumentID())
	if err != nil {
		t.Fatal(err)
	}
	if got := text(hb); got != "shared" {
		t.Fatalf("expected %q, got %q", "shared", got)
	}

	appendText(t, ha, " by alice")
	eventually(t, "alice's edit at bob", func() bool {
		return text(hb) == "shared by alice"
	})

	appendText(t, hb, ", bob")
	eventually(t, "bob's edit at alice", func() bool {
		return text(ha) == "shared by alice, bob"
	})
	eventually(t, "heads to agree", func() bool {
		return ha.Heads().Equal(hb.Heads())
	})
}

func TestFindUnknownDocument(t *testing.T) {
	a, _ := newNode(t, "alice")
	b, rb := newNode(t, "bob")
	connect(t, a, b)

	_, err := rb.Find(context.Background(), repo.NewDocumentID())
	if !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncOnConnect(t *testing.T) {
	a, ra := newNode(t, "alice")
	b, rb := newNode(t, "bob")

	ha, err := ra.CreateText(context.Background(), "", "base")
	if err != nil {
		t.Fatal(err)
	}
	var base []document.Change
	_ = ha.WithDocument(func(doc *document.Document) error {
		base = doc.Changes()
		return nil
	})
	hb, err := rb.Import(context.Background(), ha.DocumentID(), base)
	if err != nil {
		t.Fatal(err)
	}

	// Both sides edit while disconnected.
	appendText(t, ha, " A")
	appendText(t, hb, " B")

	connect(t, a, b)
	eventually(t, "peers to converge", func() bool {
		return ha.Heads().Equal(hb.Heads()) && len(ha.Heads()) == 2
	})
	if text(ha) != text(hb) {
		t.Errorf("texts differ: %q vs %q", text(ha), text(hb))
	}
}

func TestUnsharedDocumentStaysLocal(t *testing.T) {
	a, ra := newNode(t, "alice")
	b, rb := newNode(t, "bob")
	connect(t, a, b)

	ha, err := ra.CreateText(context.Background(), "", "private")
	if err != nil {
		t.Fatal(err)
	}
	appendText(t, ha, "!")

	// Give any stray push time to arrive.
	time.Sleep(50 * time.Millisecond)
	if _, ok := rb.Handle(ha.DocumentID()); ok {
		t.Error("document should not be pushed to a peer that never asked for it")
	}
}

func TestClose(t *testing.T) {
	a, _ := newNode(t, "alice")
	b, _ := newNode(t, "bob")
	connect(t, a, b)

	conns := b.Conns()
	if len(conns) != 1 {
		t.Fatalf("expected one connection, got %d", len(conns))
	}
	a.Close()

	select {
	case <-conns[0].Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not end after the remote closed")
	}
	eventually(t, "connection to be removed", func() bool { return len(b.Conns()) == 0 })

	if _, err := a.WhenConnected(context.Background(), "bob"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := a.Dial(context.Background(), "127.0.0.1:1"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
