package main

import (
	"vcoin/internal/config" // Custom import path (Config)
	"vcoin/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus"
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
	logrus.Info("Migration completed.")

	// Seed the first admin when credentials are configured
	if cfg.AdminPhone == "" {
		return
	}
	if cfg.AdminPassword == "" {
		logrus.Fatal("ADMIN_PASSWORD is required when ADMIN_PHONE is set")
	}
	if _, err := db.SeedAdmin(gdb, cfg.AdminName, cfg.AdminPhone, cfg.AdminPassword); err != nil {
		logrus.Fatalf("admin seeding failed: %v", err)
	}
}
