package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"askrag/internal/scraper"
)

func newScrapeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <base-url>",
		Short: "Save the text of every same-site page linked from base-url into the source directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := scraper.New(a.cfg.Source.Dir, scraper.Config{
				Concurrency: a.cfg.Scrape.Concurrency,
				Timeout:     time.Duration(a.cfg.Scrape.TimeoutSecs) * time.Second,
				UserAgent:   a.cfg.Scrape.UserAgent,
			}, a.logger)

			res, err := s.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range res.Saved {
				fmt.Fprintf(out, "Saved: %s\n", name)
			}
			fmt.Fprintf(out, "%d pages saved in %s", len(res.Saved), a.cfg.Source.Dir)
			if len(res.Failed) > 0 {
				fmt.Fprintf(out, " (%d failed)", len(res.Failed))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
