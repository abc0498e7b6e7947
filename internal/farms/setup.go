package farms

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/terratrac/eudr-backend/internal/archive"
	"github.com/terratrac/eudr-backend/internal/backup"
	"github.com/terratrac/eudr-backend/internal/config"
	"github.com/terratrac/eudr-backend/internal/db"
	"github.com/terratrac/eudr-backend/internal/ingest"
	"github.com/terratrac/eudr-backend/internal/mapshare"
	"github.com/terratrac/eudr-backend/internal/reconcile"
	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/whisp"
	"go.uber.org/zap"
)

// Package state shared by the handlers. Set by Init or Wire.
var (
	Store         *store.Store
	Orchestrator  *ingest.Orchestrator
	Backups       *backup.Service
	Shares        *mapshare.Service
	Archive       archive.Archiver
	Cache         *redis.Client
	Logger        = zap.NewNop()
	PublicBaseURL string
)

// Deps are the collaborators the handlers run against.
type Deps struct {
	Store         *store.Store
	Analyzer      ingest.Analyzer
	Archive       archive.Archiver
	Cache         *redis.Client
	Logger        *zap.Logger
	PublicBaseURL string
	StrictCSV     bool
}

// Init migrates the farm tables on db.DB and builds the services from cfg.
func Init(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := store.Migrate(db.DB); err != nil {
		return fmt.Errorf("migrate farm tables: %w", err)
	}
	s := store.New(db.DB)

	var arc archive.Archiver = archive.Nop{}
	if cfg.Storage.Bucket != "" {
		s3, err := archive.NewS3(ctx, cfg.Storage.Region, cfg.Storage.Bucket)
		if err != nil {
			return err
		}
		arc = s3
		logger.Info("archiving uploads", zap.String("bucket", cfg.Storage.Bucket))
	}

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}

	Wire(Deps{
		Store:         s,
		Analyzer:      whisp.NewClient(cfg.Whisp.BaseURL, cfg.Whisp.APIKey, cfg.Whisp.RequestTimeout(), s, logger.Named("whisp")),
		Archive:       arc,
		Cache:         cache,
		Logger:        logger,
		PublicBaseURL: cfg.PublicBaseURL,
		StrictCSV:     cfg.StrictCSVPolygons,
	})
	return nil
}

// Wire sets the package state from d.
func Wire(d Deps) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Archive == nil {
		d.Archive = archive.Nop{}
	}
	Store = d.Store
	Archive = d.Archive
	Cache = d.Cache
	Logger = d.Logger
	PublicBaseURL = d.PublicBaseURL
	Orchestrator = ingest.New(ingest.Options{
		Files:      d.Store,
		Analyzer:   d.Analyzer,
		Reconciler: reconcile.NewEngine(d.Store, d.Logger.Named("reconcile")),
		Archive:    d.Archive,
		Logger:     d.Logger.Named("ingest"),
		StrictCSV:  d.StrictCSV,
	})
	Backups = backup.NewService(d.Store, d.Logger.Named("backup"))
	Shares = mapshare.NewService(d.Store, d.Cache, d.Logger.Named("mapshare"))
}
