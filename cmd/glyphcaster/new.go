package main

import (
	"context"
	"fmt"

	"github.com/scott-cotton/cli"
)

type NewConfig struct {
	*MainConfig
	New  *cli.Command
	Text string `cli:"name=text aliases=t desc='initial text (default from config)'"`
}

func NewCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &NewConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.New, "new").
		WithSynopsis("new [-text <text>]").
		WithDescription("create a document and print its URL").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return newDoc(cfg, cc, args)
		})
}

func newDoc(cfg *NewConfig, cc *cli.Context, args []string) error {
	args, err := cfg.New.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: new takes no arguments", cli.ErrUsage)
	}

	ctx := context.Background()
	s, err := cfg.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	text := cfg.Text
	if text == "" {
		text = s.cfg.Document.InitialText
	}
	h, err := s.repo.CreateText(ctx, s.cfg.Document.Key, text)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	fmt.Fprintln(cc.Out, h.URL())
	return nil
}
