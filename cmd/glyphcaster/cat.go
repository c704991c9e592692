package main

import (
	"context"
	"fmt"
	"time"

	"github.com/scott-cotton/cli"
)

type CatConfig struct {
	*MainConfig
	Cat     *cli.Command
	Timeout int `cli:"name=timeout desc='seconds to wait for peers'"`
}

func CatCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &CatConfig{MainConfig: mainCfg, Timeout: 10}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Cat, "cat").
		WithSynopsis("cat [-timeout <seconds>] <url>").
		WithDescription("print a document, fetching it from peers if needed").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return cat(cfg, cc, args)
		})
}

func cat(cfg *CatConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Cat.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: cat requires one argument, a document URL", cli.ErrUsage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Timeout)*time.Second)
	defer cancel()
	s, err := cfg.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.find(ctx, args[0])
	if err != nil {
		return err
	}
	text, err := s.text(h)
	if err != nil {
		return err
	}
	fmt.Fprint(cc.Out, text)
	return nil
}
