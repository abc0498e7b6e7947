package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/terratrac/eudr-backend/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

// Open connects to the configured database. Postgres tables live in cfg.Schema
// (created when missing); sqlite has no schemas and uses plain table names.
func Open(cfg config.Database) (*gorm.DB, error) {
	lg := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	gcfg := &gorm.Config{Logger: lg, TranslateError: true}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.URL)
	case "postgres", "":
		dialector = postgres.Open(cfg.URL)
		if cfg.Schema != "" {
			gcfg.NamingStrategy = schema.NamingStrategy{TablePrefix: cfg.Schema + "."}
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	d, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if cfg.Driver != "sqlite" && cfg.Schema != "" {
		if err := EnsureSchema(d, cfg.Schema); err != nil {
			return nil, fmt.Errorf("ensure schema %s: %w", cfg.Schema, err)
		}
	}

	sqlDB, err := d.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return d, nil
}

// Connect opens the database and installs it as DB. It exits the process on
// failure, like the rest of startup.
func Connect(cfg config.Database) {
	d, err := Open(cfg)
	if err != nil {
		zap.L().Fatal("failed to connect to database", zap.Error(err))
	}
	DB = d
	zap.L().Info("connected to database", zap.String("driver", cfg.Driver))
}
