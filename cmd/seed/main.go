package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/terratrac/eudr-backend/internal/config"
	"github.com/terratrac/eudr-backend/internal/db"
	"github.com/terratrac/eudr-backend/internal/logging"
	"github.com/terratrac/eudr-backend/internal/seeds"
	"go.uber.org/zap"
)

func main() {
	password := flag.String("admin-password", os.Getenv("ADMIN_PASSWORD"), "password for the seeded admin account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Log.Level, "console", "seed")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	db.Connect(cfg.Database)
	if err := seeds.SeedAll(context.Background(), db.DB, *password, logger); err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}
}
