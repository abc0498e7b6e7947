package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/terratrac/eudr-backend/internal/config"
	"github.com/terratrac/eudr-backend/internal/db"
	"github.com/terratrac/eudr-backend/internal/farms"
	"github.com/terratrac/eudr-backend/internal/ingest"
	"github.com/terratrac/eudr-backend/internal/logging"
	"github.com/terratrac/eudr-backend/internal/utils"
	"go.uber.org/zap"
)

func main() {
	var (
		path     = flag.String("file", "", "path to a csv, geojson or xlsx upload")
		format   = flag.String("format", "", "upload format (default: from the file extension)")
		uploader = flag.String("uploaded-by", utils.DefaultUploader, "username recorded as the uploader")
	)
	flag.Parse()

	if *path == "" {
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
	logger, err := logging.New(cfg.Log.Level, "console", "farm-import")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	f := *format
	if f == "" {
		f = strings.TrimPrefix(filepath.Ext(*path), ".")
	}
	fmtName, err := ingest.ParseFormat(f)
	if err != nil {
		logger.Fatal("bad format", zap.Error(err))
	}
	body, err := os.ReadFile(*path)
	if err != nil {
		logger.Fatal("read upload", zap.Error(err))
	}

	ctx := context.Background()
	db.Connect(cfg.Database)
	if err := farms.Init(ctx, cfg, logger); err != nil {
		logger.Fatal("init", zap.Error(err))
	}

	name := filepath.Base(*path)
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	res, err := farms.Orchestrator.Create(ctx, ingest.Upload{
		FileName:   name,
		UploadedBy: *uploader,
		Format:     fmtName,
		Body:       body,
	})
	farms.Orchestrator.Wait()
	if err != nil {
		var ve *ingest.ValidationError
		if errors.As(err, &ve) {
			for _, msg := range ve.Errors {
				logger.Error("validation", zap.String("problem", msg))
			}
		}
		logger.Fatal("import failed", zap.Error(err))
	}
	logger.Info("import finished", zap.Uint("file_id", res.FileID), zap.Int("records", len(res.Farms)))
}
