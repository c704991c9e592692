package peer

import (
	"context"
	"net"
	"sort"
	"sync"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/dshills/glyphcaster/internal/document"
	"github.com/dshills/glyphcaster/internal/repo"
)

// Conn is a session with one remote peer.
type Conn struct {
	node   *Node
	rpc    jsonrpc2.Conn
	remote net.Addr

	mu     sync.Mutex
	peerID string
	// theirs holds the last heads the peer reported per shared document.
	theirs map[repo.DocumentID]document.Heads

	// Outgoing work, drained by run.
	outMu    sync.Mutex
	push     map[repo.DocumentID]struct{}
	announce map[repo.DocumentID]struct{}
	wake     chan struct{}
}

func newConn(n *Node, nc net.Conn) *Conn {
	return &Conn{
		node:     n,
		rpc:      jsonrpc2.NewConn(jsonrpc2.NewStream(nc)),
		remote:   nc.RemoteAddr(),
		theirs:   make(map[repo.DocumentID]document.Heads),
		push:     make(map[repo.DocumentID]struct{}),
		announce: make(map[repo.DocumentID]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// PeerID returns the remote peer's id, empty before the handshake.
func (c *Conn) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.remote
}

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.rpc.Done()
}

// Close ends the connection.
func (c *Conn) Close() error {
	return c.rpc.Close()
}

func (c *Conn) setPeerID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerID = id
}

func (c *Conn) setTheirs(id repo.DocumentID, heads document.Heads) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theirs[id] = heads
}

func (c *Conn) getTheirs(id repo.DocumentID) document.Heads {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theirs[id]
}

// shares reports whether the peer has shown it holds the document.
func (c *Conn) shares(id repo.DocumentID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.theirs[id]
	return ok
}

// queue schedules pushing missing changes and/or announcing heads for id.
func (c *Conn) queue(id repo.DocumentID, push, announce bool) {
	c.outMu.Lock()
	if push {
		c.push[id] = struct{}{}
	}
	if announce {
		c.announce[id] = struct{}{}
	}
	c.outMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Conn) announceAll() {
	for _, h := range c.node.repo.Handles() {
		c.queue(h.DocumentID(), false, true)
	}
}

func (c *Conn) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.rpc.Done():
			return
		case <-c.wake:
		}

		c.outMu.Lock()
		push, announce := c.push, c.announce
		c.push = make(map[repo.DocumentID]struct{})
		c.announce = make(map[repo.DocumentID]struct{})
		c.outMu.Unlock()

		for _, id := range sortedIDs(push, announce) {
			h, ok := c.node.repo.Handle(id)
			if !ok {
				continue
			}
			// Changes go first so the heads that follow are already
			// satisfiable.
			if _, ok := push[id]; ok {
				c.sendChanges(ctx, h)
			}
			if _, ok := announce[id]; ok {
				c.sendHeads(ctx, h)
			}
		}
	}
}

func (c *Conn) sendChanges(ctx context.Context, h *repo.Handle) {
	have := c.getTheirs(h.DocumentID())
	var changes []document.Change
	_ = h.WithDocument(func(doc *document.Document) error {
		changes = doc.ChangesSince(have)
		return nil
	})
	if len(changes) == 0 {
		return
	}
	err := c.rpc.Notify(ctx, MethodChanges, ChangesParams{DocumentID: h.DocumentID(), Changes: changes})
	if err != nil {
		c.node.logger.Warn("push failed", zap.String("remote", c.PeerID()), zap.Error(err))
		return
	}
	c.node.logger.Debug("pushed changes",
		zap.String("remote", c.PeerID()),
		zap.Stringer("doc", h.DocumentID()),
		zap.Int("count", len(changes)))
}

func (c *Conn) sendHeads(ctx context.Context, h *repo.Handle) {
	err := c.rpc.Notify(ctx, MethodHeads, HeadsParams{DocumentID: h.DocumentID(), Heads: h.Heads()})
	if err != nil {
		c.node.logger.Warn("announce failed", zap.String("remote", c.PeerID()), zap.Error(err))
	}
}

func sortedIDs(sets ...map[repo.DocumentID]struct{}) []repo.DocumentID {
	seen := make(map[repo.DocumentID]struct{})
	var out []repo.DocumentID
	for _, set := range sets {
		for id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// handle serves requests from the remote peer. It runs on the connection's
// read goroutine and never waits on the remote side.
func (c *Conn) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case MethodHello:
		var p HelloParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, rpcError(jsonrpc2.InvalidParams, err))
		}
		c.setPeerID(p.PeerID)
		if err := reply(ctx, HelloResult{PeerID: c.node.id}, nil); err != nil {
			return err
		}
		c.node.add(c)
		c.announceAll()
		return nil

	case MethodHeads:
		var p HeadsParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, rpcError(jsonrpc2.InvalidParams, err))
		}
		c.receiveHeads(p)
		return reply(ctx, nil, nil)

	case MethodRequest:
		var p RequestParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, rpcError(jsonrpc2.InvalidParams, err))
		}
		return reply(ctx, c.serveRequest(p), nil)

	case MethodChanges:
		var p ChangesParams
		if err := json.Unmarshal(req.Params(), &p); err != nil {
			return reply(ctx, nil, rpcError(jsonrpc2.InvalidParams, err))
		}
		c.receiveChanges(ctx, p)
		return reply(ctx, nil, nil)
	}
	return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
}

func (c *Conn) receiveHeads(p HeadsParams) {
	h, ok := c.node.repo.Handle(p.DocumentID)
	if !ok {
		return
	}
	c.setTheirs(p.DocumentID, p.Heads)

	var missing, behind bool
	_ = h.WithDocument(func(doc *document.Document) error {
		missing = len(doc.Missing(p.Heads)) > 0
		behind = len(doc.ChangesSince(p.Heads)) > 0
		return nil
	})
	if missing || behind {
		c.queue(p.DocumentID, behind, missing)
	}
}

func (c *Conn) serveRequest(p RequestParams) RequestResult {
	h, ok := c.node.repo.Handle(p.DocumentID)
	if !ok {
		return RequestResult{}
	}
	c.setTheirs(p.DocumentID, p.Have)

	res := RequestResult{Found: true}
	_ = h.WithDocument(func(doc *document.Document) error {
		res.Heads = doc.Heads()
		res.Changes = doc.ChangesSince(p.Have)
		return nil
	})
	c.node.logger.Debug("served document",
		zap.String("remote", c.PeerID()),
		zap.Stringer("doc", p.DocumentID),
		zap.Int("changes", len(res.Changes)))
	return res
}

func (c *Conn) receiveChanges(ctx context.Context, p ChangesParams) {
	if _, ok := c.node.repo.Handle(p.DocumentID); !ok && !c.node.isWanted(p.DocumentID) {
		c.node.logger.Debug("ignoring changes for unknown document", zap.Stringer("doc", p.DocumentID))
		return
	}
	if _, err := c.node.repo.Import(ctx, p.DocumentID, p.Changes); err != nil {
		c.node.logger.Warn("import failed",
			zap.String("remote", c.PeerID()),
			zap.Stringer("doc", p.DocumentID),
			zap.Error(err))
		return
	}
	// Once the document is shared, later local changes are pushed back.
	if !c.shares(p.DocumentID) {
		c.setTheirs(p.DocumentID, nil)
	}
}
