package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dshills/glyphcaster/internal/config"
	"github.com/dshills/glyphcaster/internal/document"
	"github.com/dshills/glyphcaster/internal/logging"
	"github.com/dshills/glyphcaster/internal/peer"
	"github.com/dshills/glyphcaster/internal/repo"
	"github.com/dshills/glyphcaster/internal/store"
)

// loadConfig merges the global options over the config file and the
// environment.
func (cfg *MainConfig) loadConfig() (config.Config, error) {
	opts := []config.LoadOption{
		config.WithFile(cfg.ConfigFile),
		config.WithOverride("storage.dataDir", cfg.DataDir),
		config.WithOverride("peer.listen", cfg.Listen),
		config.WithOverride("peer.id", cfg.PeerID),
		config.WithOverride("peer.connect", cfg.Peers),
		config.WithOverride("log.level", cfg.LogLevel),
	}
	if cfg.Dev {
		opts = append(opts, config.WithOverride("log.development", true))
	}
	return config.Load(opts...)
}

// session is the repo and peer node a command works with.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	repo   *repo.Repo
	node   *peer.Node
}

// openSession loads the configuration, opens the document store and
// connects to the configured peers. Unreachable peers are logged, not fatal.
func (cfg *MainConfig) openSession(ctx context.Context) (*session, error) {
	c, err := cfg.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(c.Log.Level, c.Log.Development)
	if err != nil {
		return nil, err
	}

	ropts := []repo.Option{repo.WithLogger(logger.Named("repo"))}
	if c.Storage.DataDir != "" {
		fs, err := store.NewFS(c.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		ropts = append(ropts, repo.WithStore(fs))
	}
	r := repo.New(ropts...)
	node := peer.New(r, peer.WithPeerID(c.Peer.ID), peer.WithLogger(logger.Named("peer")))

	s := &session{cfg: c, logger: logger, repo: r, node: node}
	for _, addr := range c.Peer.Connect {
		if _, err := node.Dial(ctx, addr); err != nil {
			logger.Warn("peer unreachable", zap.String("addr", addr), zap.Error(err))
		}
	}
	return s, nil
}

// listen accepts peers if an address is configured.
func (s *session) listen(ctx context.Context) error {
	if s.cfg.Peer.Listen == "" {
		return nil
	}
	return s.node.Listen(ctx, s.cfg.Peer.Listen)
}

// find resolves a document URL.
func (s *session) find(ctx context.Context, url string) (*repo.Handle, error) {
	id, err := repo.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, id)
}

// text returns the document's configured text object.
func (s *session) text(h *repo.Handle) (string, error) {
	var text string
	err := h.WithDocument(func(doc *document.Document) error {
		obj, ok := doc.Get(s.cfg.Document.Key)
		if !ok {
			return fmt.Errorf("root key %q: %w", s.cfg.Document.Key, document.ErrObjectNotFound)
		}
		var err error
		text, err = doc.Text(obj)
		return err
	})
	return text, err
}

func (s *session) Close() {
	s.node.Close()
	s.repo.Close()
	_ = s.logger.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
