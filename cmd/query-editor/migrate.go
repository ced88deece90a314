package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourabh1428/query-editor/internal/config"
	"github.com/sourabh1428/query-editor/internal/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Управление схемой базы данных",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Применить все миграции",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return fmt.Errorf("загрузка конфигурации: %w", err)
			}
			return database.Migrate(cfg, config.SetupLogger(cfg))
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Откатить последние миграции",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return fmt.Errorf("загрузка конфигурации: %w", err)
			}
			return database.MigrateDown(cfg, steps, config.SetupLogger(cfg))
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "количество откатываемых миграций")
	cmd.AddCommand(down)

	return cmd
}
