package store

import (
	"context"
	"errors"
)

// UpsertSite updates the site with site.Name or inserts it. site.ID is set in
// both cases; created reports an insert.
func (s *Store) UpsertSite(ctx context.Context, site *CollectionSite) (created bool, err error) {
	var existing CollectionSite
	err = s.conn(ctx).Where("name = ?", site.Name).First(&existing).Error
	switch {
	case err == nil:
		site.ID = existing.ID
		site.CreatedAt = existing.CreatedAt
		return false, s.conn(ctx).Omit("Farms").Save(site).Error
	case errors.Is(notFound(err), ErrNotFound):
		return true, s.conn(ctx).Omit("Farms").Create(site).Error
	default:
		return false, err
	}
}

// DeleteSite removes a site and, through the foreign key, its backups.
func (s *Store) DeleteSite(ctx context.Context, id uint) error {
	if err := s.conn(ctx).Where("site_id = ?", id).Delete(&FarmBackup{}).Error; err != nil {
		return err
	}
	return s.conn(ctx).Delete(&CollectionSite{}, id).Error
}

// UpsertBackup updates the backup with b.RemoteID or inserts it.
func (s *Store) UpsertBackup(ctx context.Context, b *FarmBackup) error {
	var existing FarmBackup
	err := s.conn(ctx).Where("remote_id = ?", b.RemoteID).First(&existing).Error
	switch {
	case err == nil:
		b.ID = existing.ID
		b.CreatedAt = existing.CreatedAt
		return s.conn(ctx).Save(b).Error
	case errors.Is(notFound(err), ErrNotFound):
		return s.conn(ctx).Create(b).Error
	default:
		return err
	}
}

// SiteQuery finds sites for restore by the first non-empty field, in the
// order DeviceID, PhoneNumber, Email.
type SiteQuery struct {
	DeviceID    string
	PhoneNumber string
	Email       string
}

// FindSites returns matching sites with their backups loaded. An empty query
// matches nothing.
func (s *Store) FindSites(ctx context.Context, q SiteQuery) ([]CollectionSite, error) {
	db := s.conn(ctx).Preload("Farms")
	switch {
	case q.DeviceID != "":
		db = db.Where("device_id = ?", q.DeviceID)
	case q.PhoneNumber != "":
		db = db.Where("phone_number = ?", q.PhoneNumber)
	case q.Email != "":
		db = db.Where("email = ?", q.Email)
	default:
		return []CollectionSite{}, nil
	}
	var sites []CollectionSite
	err := db.Order("id").Find(&sites).Error
	return sites, err
}

func (s *Store) ListSites(ctx context.Context) ([]CollectionSite, error) {
	var sites []CollectionSite
	err := s.conn(ctx).Order("name").Find(&sites).Error
	return sites, err
}

// ListBackups returns backups, optionally limited to one site.
func (s *Store) ListBackups(ctx context.Context, siteID uint) ([]FarmBackup, error) {
	q := s.conn(ctx).Order("id")
	if siteID != 0 {
		q = q.Where("site_id = ?", siteID)
	}
	var out []FarmBackup
	err := q.Find(&out).Error
	return out, err
}
