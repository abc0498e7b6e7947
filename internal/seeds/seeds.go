// Package seeds fills a fresh database with the rows a deployment needs
// before its first upload.
package seeds

import (
	"context"
	"errors"
	"fmt"

	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/users"
	"github.com/terratrac/eudr-backend/internal/utils"
	"github.com/terratrac/eudr-backend/internal/whisp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedAll migrates and seeds d. Existing rows are left untouched.
func SeedAll(ctx context.Context, d *gorm.DB, adminPassword string, logger *zap.Logger) error {
	if err := store.Migrate(d); err != nil {
		return fmt.Errorf("migrate farm tables: %w", err)
	}
	if err := users.Migrate(d); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	if err := SeedAdmin(ctx, users.NewStore(d), adminPassword, logger); err != nil {
		return err
	}
	return SeedWhispSettings(ctx, store.New(d), logger)
}

// SeedAdmin creates the default admin account when it does not exist.
func SeedAdmin(ctx context.Context, s *users.Store, password string, logger *zap.Logger) error {
	if _, err := s.RoleOf(ctx, utils.DefaultUploader); err == nil {
		logger.Info("admin exists, skipping", zap.String("username", utils.DefaultUploader))
		return nil
	} else if !errors.Is(err, users.ErrUserNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}
	if password == "" {
		return errors.New("admin password is required to seed the admin account")
	}

	u := users.User{Username: utils.DefaultUploader, Password: password, Role: utils.RoleAdmin}
	if err := s.Create(ctx, &u); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("seeded admin", zap.Uint("id", u.ID))
	return nil
}

// SeedWhispSettings stores the default chunk size when none is set.
func SeedWhispSettings(ctx context.Context, s *store.Store, logger *zap.Logger) error {
	n, err := s.ChunkSize(ctx)
	if err != nil {
		return fmt.Errorf("read whisp settings: %w", err)
	}
	if n > 0 {
		logger.Info("whisp settings exist, skipping", zap.Int("chunk_size", n))
		return nil
	}
	if _, err := s.SetChunkSize(ctx, whisp.DefaultChunkSize); err != nil {
		return fmt.Errorf("seed whisp settings: %w", err)
	}
	logger.Info("seeded whisp settings", zap.Int("chunk_size", whisp.DefaultChunkSize))
	return nil
}
