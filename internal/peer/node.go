package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/dshills/glyphcaster/internal/document"
	"github.com/dshills/glyphcaster/internal/repo"
)

// Option configures a Node.
type Option func(*Node)

// WithPeerID sets the id the node introduces itself with.
func WithPeerID(id string) Option {
	return func(n *Node) {
		if id != "" {
			n.id = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// Node connects a repo to other peers.
type Node struct {
	id     string
	repo   *repo.Repo
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	unlisten func()

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	changed  chan struct{}
	wanted   map[repo.DocumentID]int
	closed   bool
}

// New creates a node for r and registers it as a finder of r.
func New(r *repo.Repo, opts ...Option) *Node {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		id:      uuid.NewString(),
		repo:    r,
		logger:  zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[*Conn]struct{}),
		changed: make(chan struct{}),
		wanted:  make(map[repo.DocumentID]int),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(zap.String("peer", n.id))

	r.AddFinder(n)
	n.unlisten = r.OnChange(n.localChange)
	return n
}

// ID returns the node's peer id.
func (n *Node) ID() string {
	return n.id
}

// Listen accepts connections on addr until the node is closed or ctx is
// done.
func (n *Node) Listen(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("peer: listen %s: %w", addr, err)
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		ln.Close()
		return ErrClosed
	}
	n.listener = ln
	n.mu.Unlock()

	n.logger.Info("listening", zap.Stringer("addr", ln.Addr()))

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-n.ctx.Done():
		}
		ln.Close()
	}()
	go func() {
		defer n.wg.Done()
		n.accept(ln)
	}()
	return nil
}

func (n *Node) accept(ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				n.logger.Warn("accept failed", zap.Error(err))
			}
			return
		}
		n.logger.Debug("accepted connection", zap.Stringer("remote", nc.RemoteAddr()))
		n.attach(nc)
	}
}

// Addr returns the address the node listens on.
func (n *Node) Addr() (net.Addr, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return nil, ErrNotListening
	}
	return n.listener.Addr(), nil
}

// Dial connects to the node listening on addr and completes the handshake.
func (n *Node) Dial(ctx context.Context, addr string) (*Conn, error) {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("peer: dial %s: %w", addr, err)
	}
	c := n.attach(nc)

	var res HelloResult
	if _, err := c.rpc.Call(ctx, MethodHello, HelloParams{PeerID: n.id}, &res); err != nil {
		c.Close()
		return nil, fmt.Errorf("peer: hello %s: %w", addr, err)
	}
	c.setPeerID(res.PeerID)
	n.add(c)
	c.announceAll()
	return c, nil
}

func (n *Node) attach(nc net.Conn) *Conn {
	c := newConn(n, nc)
	c.rpc.Go(n.ctx, c.handle)

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		c.run(n.ctx)
	}()
	go func() {
		defer n.wg.Done()
		select {
		case <-c.rpc.Done():
		case <-n.ctx.Done():
			c.rpc.Close()
			<-c.rpc.Done()
		}
		n.remove(c)
	}()
	return c
}

// add makes c visible once its handshake completed.
func (n *Node) add(c *Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.conns[c] = struct{}{}
	close(n.changed)
	n.changed = make(chan struct{})
	n.logger.Info("peer connected", zap.String("remote", c.PeerID()))
}

func (n *Node) remove(c *Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.conns[c]; !ok {
		return
	}
	delete(n.conns, c)
	close(n.changed)
	n.changed = make(chan struct{})
	n.logger.Info("peer disconnected", zap.String("remote", c.PeerID()))
}

// Conns returns the connected peers ordered by peer id.
func (n *Node) Conns() []*Conn {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sortedConns()
}

func (n *Node) sortedConns() []*Conn {
	out := make([]*Conn, 0, len(n.conns))
	for c := range n.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeerID() < out[j].PeerID()
	})
	return out
}

// WhenConnected waits until a peer with peerID is connected.
func (n *Node) WhenConnected(ctx context.Context, peerID string) (*Conn, error) {
	for {
		n.mu.Lock()
		if n.closed {
			n.mu.Unlock()
			return nil, ErrClosed
		}
		for c := range n.conns {
			if c.PeerID() == peerID {
				n.mu.Unlock()
				return c, nil
			}
		}
		changed := n.changed
		n.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// FindDocument asks the connected peers for id in peer id order.
func (n *Node) FindDocument(ctx context.Context, id repo.DocumentID) ([]document.Change, error) {
	n.want(id, 1)
	defer n.want(id, -1)

	for _, c := range n.Conns() {
		var res RequestResult
		if _, err := c.rpc.Call(ctx, MethodRequest, RequestParams{DocumentID: id}, &res); err != nil {
			n.logger.Warn("document request failed",
				zap.String("remote", c.PeerID()),
				zap.Stringer("doc", id),
				zap.Error(err))
			continue
		}
		if !res.Found {
			continue
		}
		c.setTheirs(id, res.Heads)
		n.logger.Debug("document found",
			zap.String("remote", c.PeerID()),
			zap.Stringer("doc", id),
			zap.Int("changes", len(res.Changes)))
		return res.Changes, nil
	}
	return nil, fmt.Errorf("%w: %s", repo.ErrNotFound, id)
}

func (n *Node) want(id repo.DocumentID, delta int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.wanted[id] += delta
	if n.wanted[id] <= 0 {
		delete(n.wanted, id)
	}
}

func (n *Node) isWanted(id repo.DocumentID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.wanted[id] > 0
}

// localChange pushes a heads move to the peers sharing the document.
func (n *Node) localChange(ev repo.ChangeEvent) {
	for _, c := range n.Conns() {
		if c.shares(ev.DocumentID) {
			c.queue(ev.DocumentID, true, true)
		}
	}
}

// Close disconnects every peer and stops listening.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	n.unlisten()
	n.cancel()
	n.wg.Wait()
	return nil
}

var _ repo.Finder = (*Node)(nil)

// rpcError converts err into a JSON-RPC error reply.
func rpcError(code jsonrpc2.Code, err error) error {
	return jsonrpc2.NewError(code, err.Error())
}
