package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourabh1428/query-editor/internal/config"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "query-editor %s\n", config.Version)
			return nil
		},
	}
}
