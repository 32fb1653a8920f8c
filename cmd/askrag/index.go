package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"askrag/internal/vectorstore"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the index if missing, or rebuild it with --force",
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")

			p, err := WirePipeline(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			var idx vectorstore.Index
			if force {
				idx, err = p.Manager.Rebuild(cmd.Context())
			} else {
				idx, err = p.Manager.Ensure(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d chunks indexed at %s\n", idx.Len(), a.cfg.Index.Path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "rebuild from the source directory even if an index exists")
	return cmd
}
