// Package cli содержит команды служебной утилиты: миграции и ручной запуск фоновых задач.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// Migrator подмножество *migrate.Migrate, которое используют команды
type Migrator interface {
	Up() error
	Steps(n int) error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
	Close() (source error, database error)
}

// PracticeReleaser выполняет один проход отложенного возврата в практику
type PracticeReleaser interface {
	ReleaseDuePractice(ctx context.Context, now time.Time) (int, error)
}

// RootOptions глобальные флаги утилиты
type RootOptions struct {
	ConfigPath    string
	MigrationsDir string
}

// Deps открывает подключения для команд. Подменяется в тестах.
type Deps struct {
	OpenMigrator func(opts *RootOptions) (Migrator, error)
	OpenReleaser func(opts *RootOptions) (PracticeReleaser, func(), error)
	Now          func() time.Time
}

// NewRootCommand создает корневую команду утилиты
func NewRootCommand(deps Deps) *cobra.Command {
	opts := &RootOptions{}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	cmd := &cobra.Command{
		Use:           "maintenance",
		Short:         "Служебные операции турнирного движка",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config/config.yaml", "путь к файлу конфигурации")
	cmd.PersistentFlags().StringVar(&opts.MigrationsDir, "migrations", "migrations", "каталог SQL-миграций")

	cmd.AddCommand(newMigrateCommand(opts, deps))
	cmd.AddCommand(newReleasePracticeCommand(opts, deps))

	return cmd
}
