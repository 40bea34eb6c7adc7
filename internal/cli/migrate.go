package cli

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *RootOptions, deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Управление схемой базы данных",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Применить все новые миграции",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(opts, deps, func(m Migrator) error {
					err := m.Up()
					if errors.Is(err, migrateV4.ErrNoChange) {
						fmt.Fprintln(cmd.OutOrStdout(), "Схема уже актуальна")
						return nil
					}
					if err != nil {
						return fmt.Errorf("migrate up failed: %w", err)
					}
					return printVersion(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Откатить миграции (по умолчанию одну)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("invalid steps %q: must be a positive number", args[0])
					}
					steps = n
				}
				return withMigrator(opts, deps, func(m Migrator) error {
					if err := m.Steps(-steps); err != nil {
						return fmt.Errorf("migrate down failed: %w", err)
					}
					return printVersion(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Снять флаг dirty, установив версию схемы",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil || version < -1 {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withMigrator(opts, deps, func(m Migrator) error {
					if err := m.Force(version); err != nil {
						return fmt.Errorf("failed to force version %d: %w", version, err)
					}
					return printVersion(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Показать текущую версию схемы",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(opts, deps, func(m Migrator) error {
					return printVersion(cmd, m)
				})
			},
		},
	)
	return cmd
}

func withMigrator(opts *RootOptions, deps Deps, fn func(m Migrator) error) error {
	m, err := deps.OpenMigrator(opts)
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("[Maintenance] Ошибка закрытия migrate: source=%v db=%v", srcErr, dbErr)
		}
	}()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrateV4.ErrNilVersion) {
		fmt.Fprintln(cmd.OutOrStdout(), "Версия схемы: нет примененных миграций")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Версия схемы: %d (dirty=%t)\n", version, dirty)
	return nil
}
