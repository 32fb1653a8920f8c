package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"askrag/internal/tui"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask questions in an interactive terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := WirePipeline(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			idx, err := p.Manager.Ensure(cmd.Context())
			if err != nil {
				return err
			}
			subtitle := fmt.Sprintf("%d chunks from %s  |  %s", idx.Len(), a.cfg.Source.Dir, p.Generator.Model())
			_, err = tea.NewProgram(tui.New(cmd.Context(), p.Service, subtitle), tea.WithAltScreen()).Run()
			return err
		},
	}
}
