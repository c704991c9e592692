package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/scott-cotton/cli"
)

const usageText = `glyphcaster keeps text documents in sync between peers.

Documents are addressed by URL (glyph:<uuid>). Every command loads its
settings from the config file, GLYPHCASTER_* environment variables and the
global options, in increasing priority.

Examples:
  glyphcaster new -text "hello"                 Create a document
  glyphcaster ls                                List stored documents
  glyphcaster cat glyph:...                     Print a document
  glyphcaster -listen :7420 serve               Share stored documents
  glyphcaster -peer host:7420 edit glyph:...    Edit with a remote peer
  glyphcaster mirror glyph:... notes.md         Keep a file in sync`

// MainConfig holds the global options shared by every subcommand.
type MainConfig struct {
	ConfigFile string `cli:"name=config aliases=c desc='configuration file (TOML)'"`
	DataDir    string `cli:"name=data desc='document directory'"`
	Listen     string `cli:"name=listen desc='address to accept peers on'"`
	PeerID     string `cli:"name=id desc='peer id to introduce this node with'"`
	LogLevel   string `cli:"name=log-level desc='log level: debug, info, warn, error'"`
	Dev        bool   `cli:"name=dev desc='human readable logs'"`

	Peers []string

	Main *cli.Command
}

func (cfg *MainConfig) peerOpt(_ *cli.Context, v string) (any, error) {
	if v == "" {
		return nil, fmt.Errorf("%w: empty peer address", cli.ErrUsage)
	}
	cfg.Peers = append(cfg.Peers, v)
	return v, nil
}

// MainCommand returns the root command.
func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	sOpts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	opts := append(sOpts, &cli.Opt{
		Name:        "peer",
		Aliases:     []string{"p"},
		Description: "peer address to connect to, may be repeated",
		Type:        cli.NamedFuncOpt(cfg.peerOpt, "(addr)"),
	})

	return cli.NewCommandAt(&cfg.Main, "glyphcaster").
		WithSynopsis("glyphcaster [opts] command [opts]").
		WithDescription(usageText).
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return glyphMain(cfg, cc, args)
		}).
		WithSubs(
			NewCommand(cfg),
			ListCommand(cfg),
			CatCommand(cfg),
			ServeCommand(cfg),
			EditCommand(cfg),
			MirrorCommand(cfg),
			ConfigCommand(cfg),
			VersionCommand(cfg))
}

func glyphMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	return err
}
