package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/chai-api/internal/config"
	"github.com/bigkaa/chai-api/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применение встроенных миграций схемы",
		Long: `Без флагов применяет все миграции вверх.
С --down N откатывает N последних миграций.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("загрузка конфигурации: %w", err)
			}
			logger := config.SetupLogger(cfg)

			if cmd.Flags().Changed("down") {
				return database.MigrateDown(cfg, down, logger)
			}
			return database.Migrate(cfg, logger)
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "откатить N последних миграций")
	return cmd
}
