package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/terratrac/eudr-backend/internal/config"
	"github.com/terratrac/eudr-backend/internal/db"
	"github.com/terratrac/eudr-backend/internal/farms"
	"github.com/terratrac/eudr-backend/internal/logging"
	"go.uber.org/zap"
)

func main() {
	fileID := flag.Uint("file-id", 0, "uploaded file whose farms are re-analysed")
	flag.Parse()

	if *fileID == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Log.Level, "console", "revalidate")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db.Connect(cfg.Database)
	if err := farms.Init(ctx, cfg, logger); err != nil {
		logger.Fatal("init", zap.Error(err))
	}

	res, err := farms.Orchestrator.Revalidate(ctx, *fileID)
	if err != nil {
		logger.Fatal("revalidation failed", zap.Uint("file_id", *fileID), zap.Error(err))
	}
	logger.Info("revalidation finished", zap.Uint("file_id", res.FileID), zap.Int("records", len(res.Farms)))
}
