package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/scott-cotton/cli"
	"go.uber.org/zap"
)

type ListConfig struct {
	*MainConfig
	List *cli.Command
}

func ListCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ListConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.List, "ls").
		WithSynopsis("ls").
		WithDescription("list stored documents with their first line").
		WithRun(func(cc *cli.Context, args []string) error {
			return list(cfg, cc, args)
		})
}

func list(cfg *ListConfig, cc *cli.Context, args []string) error {
	if _, err := cfg.List.Parse(cc, args); err != nil {
		return err
	}
	ctx := context.Background()
	s, err := cfg.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	ids, err := s.repo.Stored(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(cc.Out, "No documents found")
		return nil
	}

	url := color.New(color.FgCyan).SprintFunc()
	for _, id := range ids {
		h, err := s.repo.Find(ctx, id)
		if err != nil {
			s.logger.Warn("skipping document", zap.Stringer("doc", id), zap.Error(err))
			continue
		}
		text, err := s.text(h)
		if err != nil {
			text = "(" + err.Error() + ")"
		}
		first, _, _ := strings.Cut(text, "\n")
		fmt.Fprintf(cc.Out, "%s  %s\n", url(h.URL()), first)
	}
	return nil
}
