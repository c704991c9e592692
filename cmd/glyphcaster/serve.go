package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
	"go.uber.org/zap"
)

type ServeConfig struct {
	*MainConfig
	Serve *cli.Command
}

func ServeCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ServeConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Serve, "serve").
		WithSynopsis("serve").
		WithDescription("open every stored document and share it with peers until interrupted").
		WithRun(func(cc *cli.Context, args []string) error {
			return serve(cfg, cc, args)
		})
}

func serve(cfg *ServeConfig, cc *cli.Context, args []string) error {
	if _, err := cfg.Serve.Parse(cc, args); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	s, err := cfg.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.cfg.Peer.Listen == "" && len(s.cfg.Peer.Connect) == 0 {
		return fmt.Errorf("%w: serve needs -listen or -peer", cli.ErrUsage)
	}
	if err := s.listen(ctx); err != nil {
		return err
	}

	ids, err := s.repo.Stored(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	for _, id := range ids {
		if _, err := s.repo.Find(ctx, id); err != nil {
			s.logger.Warn("skipping document", zap.Stringer("doc", id), zap.Error(err))
		}
	}
	if addr, err := s.node.Addr(); err == nil {
		fmt.Fprintf(cc.Out, "serving %d documents on %s as %s\n", len(ids), addr, s.node.ID())
	} else {
		fmt.Fprintf(cc.Out, "serving %d documents as %s\n", len(ids), s.node.ID())
	}

	<-ctx.Done()
	s.logger.Info("shutting down")
	return nil
}
