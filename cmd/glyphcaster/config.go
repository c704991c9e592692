package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
)

type ConfigConfig struct {
	*MainConfig
	Config *cli.Command
}

func ConfigCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ConfigConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Config, "config").
		WithSynopsis("config").
		WithDescription("print the effective configuration").
		WithRun(func(cc *cli.Context, args []string) error {
			return showConfig(cfg, cc, args)
		})
}

func showConfig(cfg *ConfigConfig, cc *cli.Context, args []string) error {
	if _, err := cfg.Config.Parse(cc, args); err != nil {
		return err
	}
	c, err := cfg.loadConfig()
	if err != nil {
		return err
	}
	for _, f := range c.Files {
		fmt.Fprintf(cc.Out, "# from %s\n", f)
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	_, err = cc.Out.Write(data)
	return err
}
