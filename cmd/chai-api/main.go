// Точка входа chai-api — сервис ранжированных проектов CHAI.
// Команды: serve (HTTP API), migrate (миграции схемы), version.
// Конфигурация — переменные окружения (см. internal/config).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bigkaa/chai-api/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd собирает дерево команд.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chai-api",
		Short: "HTTP API ранжированных проектов CHAI",
		Long: `chai-api отдаёт рейтинг проектов CHAI поверх PostgreSQL.

Без подкоманды запускается HTTP-сервер (как serve).`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newMigrateCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Версия сборки",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version)
		},
	}
}
