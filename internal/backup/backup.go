// Package backup keeps device-side farm data so a collection device can be
// restored. Backups are stored verbatim; they are never analysed.
package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/terratrac/eudr-backend/internal/saga"
	"github.com/terratrac/eudr-backend/internal/store"
	"go.uber.org/zap"
)

var (
	ErrMissingSiteName = errors.New("collection_site.name is required")
	ErrMissingRemoteID = errors.New("remote_id is required")
)

type Store interface {
	UpsertSite(ctx context.Context, site *store.CollectionSite) (bool, error)
	DeleteSite(ctx context.Context, id uint) error
	UpsertBackup(ctx context.Context, b *store.FarmBackup) error
	FindSites(ctx context.Context, q store.SiteQuery) ([]store.CollectionSite, error)
}

// SiteBackup is one device's collection site and the farms recorded there.
type SiteBackup struct {
	DeviceID       string               `json:"device_id"`
	CollectionSite store.CollectionSite `json:"collection_site"`
	Farms          []store.FarmBackup   `json:"farms"`
}

// RestoredSite is the restore payload for one site.
type RestoredSite struct {
	DeviceID       string               `json:"device_id"`
	CollectionSite store.CollectionSite `json:"collection_site"`
	Farms          []store.FarmBackup   `json:"farms"`
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(s Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, logger: logger}
}

// Sync upserts every site by name and every farm backup by remote id, and
// returns the synced remote ids in input order. Sites first created by this
// call are removed again when a later write fails.
func (s *Service) Sync(ctx context.Context, entries []SiteBackup) ([]string, error) {
	if err := check(entries); err != nil {
		return nil, err
	}

	sg := saga.New(s.logger)
	synced := []string{}
	for i := range entries {
		e := &entries[i]
		site := e.CollectionSite
		site.ID = 0
		site.Farms = nil
		site.DeviceID = e.DeviceID

		created, err := s.store.UpsertSite(ctx, &site)
		if err != nil {
			sg.Rollback(ctx)
			return nil, fmt.Errorf("upsert site %q: %w", site.Name, err)
		}
		if created {
			id := site.ID
			sg.Push("delete collection site "+site.Name, func(ctx context.Context) error {
				return s.store.DeleteSite(ctx, id)
			})
		}

		for j := range e.Farms {
			b := e.Farms[j]
			b.ID = 0
			b.SiteID = site.ID
			if err := s.store.UpsertBackup(ctx, &b); err != nil {
				sg.Rollback(ctx)
				return nil, fmt.Errorf("upsert backup %q: %w", b.RemoteID, err)
			}
			synced = append(synced, b.RemoteID)
		}
	}
	s.logger.Info("device data synced", zap.Int("sites", len(entries)), zap.Int("farms", len(synced)))
	return synced, nil
}

// Restore returns the sites selected by q with their backups. No match yields
// an empty list.
func (s *Service) Restore(ctx context.Context, q store.SiteQuery) ([]RestoredSite, error) {
	sites, err := s.store.FindSites(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find sites: %w", err)
	}
	out := make([]RestoredSite, 0, len(sites))
	for _, site := range sites {
		farms := site.Farms
		if farms == nil {
			farms = []store.FarmBackup{}
		}
		site.Farms = nil
		out = append(out, RestoredSite{DeviceID: site.DeviceID, CollectionSite: site, Farms: farms})
	}
	return out, nil
}

func check(entries []SiteBackup) error {
	for i, e := range entries {
		if strings.TrimSpace(e.CollectionSite.Name) == "" {
			return fmt.Errorf("entry %d: %w", i+1, ErrMissingSiteName)
		}
		for _, f := range e.Farms {
			if strings.TrimSpace(f.RemoteID) == "" {
				return fmt.Errorf("entry %d: %w", i+1, ErrMissingRemoteID)
			}
		}
	}
	return nil
}
