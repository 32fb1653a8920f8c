package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// DefaultQuestion is asked when no question is given on the command line.
const DefaultQuestion = "what is occam"

func newAskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				question = DefaultQuestion
			}
			showSources, _ := cmd.Flags().GetBool("sources")

			p, err := WirePipeline(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			answer, err := p.Service.Ask(cmd.Context(), question)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)
			if showSources {
				for i, r := range answer.Sources {
					fmt.Fprintf(out, "[%d] %s (%.3f)\n", i+1, filepath.Base(r.Chunk.Source), r.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("sources", false, "list the chunks the answer was based on")
	return cmd
}
