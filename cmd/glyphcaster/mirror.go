package main

import (
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/dshills/glyphcaster/internal/mirror"
)

type MirrorConfig struct {
	*MainConfig
	Mirror *cli.Command
}

func MirrorCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &MirrorConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Mirror, "mirror").
		WithSynopsis("mirror <url> <file>").
		WithDescription("keep a file and a document in sync until interrupted").
		WithRun(func(cc *cli.Context, args []string) error {
			return runMirror(cfg, cc, args)
		})
}

func runMirror(cfg *MirrorConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Mirror.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: mirror requires a document URL and a file", cli.ErrUsage)
	}
	ctx, stop := signalContext()
	defer stop()

	s, err := cfg.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.listen(ctx); err != nil {
		return err
	}
	h, err := s.find(ctx, args[0])
	if err != nil {
		return err
	}
	delay, err := s.cfg.Mirror.DelayDuration()
	if err != nil {
		return err
	}

	m := mirror.New(h, args[1],
		mirror.WithKey(s.cfg.Document.Key),
		mirror.WithDelay(delay),
		mirror.WithLogger(s.logger.Named("mirror")))
	fmt.Fprintf(cc.Out, "mirroring %s to %s\n", h.URL(), m.Path())
	return m.Run(ctx)
}
