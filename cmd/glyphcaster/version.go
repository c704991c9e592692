package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
)

type VersionConfig struct {
	*MainConfig
	Version *cli.Command
}

func VersionCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &VersionConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Version, "version").
		WithSynopsis("version").
		WithDescription("print version information").
		WithRun(func(cc *cli.Context, args []string) error {
			if _, err := cfg.Version.Parse(cc, args); err != nil {
				return err
			}
			fmt.Fprintf(cc.Out, "glyphcaster %s\n", version)
			fmt.Fprintf(cc.Out, "Commit: %s\n", commit)
			fmt.Fprintf(cc.Out, "Built: %s\n", date)
			return nil
		})
}
