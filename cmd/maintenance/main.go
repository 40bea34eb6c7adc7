package main

import (
	"fmt"
	"log"
	"os"

	"github.com/yourusername/bible-tournament-api/internal/cli"
	"github.com/yourusername/bible-tournament-api/internal/config"
	pgRepo "github.com/yourusername/bible-tournament-api/internal/repository/postgres"
	"github.com/yourusername/bible-tournament-api/internal/service"
	"github.com/yourusername/bible-tournament-api/pkg/database"
)

func main() {
	deps := cli.Deps{
		OpenMigrator: openMigrator,
		OpenReleaser: openReleaser,
	}
	if err := cli.NewRootCommand(deps).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

func openMigrator(opts *cli.RootOptions) (cli.Migrator, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), cfg.Database.LogLevel)
	if err != nil {
		return nil, err
	}
	return database.NewMigrator(db, opts.MigrationsDir)
}

func openReleaser(opts *cli.RootOptions) (cli.PracticeReleaser, func(), error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), cfg.Database.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	tx := pgRepo.NewTransactor(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	logRepo := pgRepo.NewLifecycleLogRepo(db)
	lifecycle := service.NewLifecycleService(tx, questionRepo, logRepo, nil, &service.LifecycleConfig{
		MinimumQuestionsPerCategory: cfg.Engine.Lifecycle.MinimumQuestionsPerCategory,
		HealthWindowDays:            cfg.Engine.Lifecycle.HealthWindowDays,
	})
	allocator := service.NewAllocatorService(tx, questionRepo, pgRepo.NewTournamentConfigRepo(db), lifecycle, nil, nil)

	closeFn := func() {
		if sqlDB, err := database.GetSQLDB(db); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("[Maintenance] Ошибка закрытия БД: %v", err)
			}
		}
	}
	return allocator, closeFn, nil
}
