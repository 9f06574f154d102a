package main

import (
	"os"

	"workout/backend/internal/config"
	"workout/backend/internal/db"
	"workout/backend/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		logger.Error("run migrations", "dir", cfg.MigrationsDir, "error", err)
		database.Close()
		os.Exit(1)
	}

	mode, err := db.JournalMode(database)
	if err != nil {
		logger.Warn("read journal mode", "error", err)
	}
	logger.Info("migrations applied", "db", cfg.DBPath, "journal_mode", mode)
}
