package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/hr-optimizer/internal/models"
	"github.com/jstittsworth/hr-optimizer/pkg/config"
	"github.com/jstittsworth/hr-optimizer/pkg/database"
	"github.com/jstittsworth/hr-optimizer/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	migrateLog := logger.WithService("migrate")

	db, err := database.Open(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		migrateLog.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command := os.Args[1]; command {
	case "up":
		if err := runMigrations(db); err != nil {
			migrateLog.Fatalf("Failed to run migrations: %v", err)
		}
		migrateLog.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			migrateLog.Fatalf("Failed to drop tables: %v", err)
		}
		migrateLog.Info("Tables dropped successfully")

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func runMigrations(db *database.DB) error {
	if err := db.AutoMigrate(&models.Run{}); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	return nil
}

func dropTables(db *database.DB) error {
	if err := db.Migrator().DropTable(&models.Run{}); err != nil {
		return fmt.Errorf("failed to drop runs table: %w", err)
	}
	return nil
}
