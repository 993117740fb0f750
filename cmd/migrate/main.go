package main

import (
	"flag"
	"fmt"
	"os"

	"ledger/internal/config"
	"ledger/internal/db"
	"ledger/internal/logging"

	"go.uber.org/zap"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recently applied migration")
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	migrator := &migrator{db: database, dir: *dir, logger: logger}
	if err := migrator.ensureTable(); err != nil {
		logger.Fatal("failed to ensure schema_migrations", zap.Error(err))
	}
	if *down {
		if err := migrator.rollback(); err != nil {
			logger.Fatal("rollback failed", zap.Error(err))
		}
		return
	}
	if err := migrator.apply(); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}
