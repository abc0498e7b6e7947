package store

import (
	"context"
)

func (s *Store) AccessCodeForFile(ctx context.Context, fileID uint) (*MapAccessCode, error) {
	var c MapAccessCode
	if err := s.conn(ctx).Where("file_id = ?", fileID).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// SaveAccessCode inserts c, or updates it when c.ID is set.
func (s *Store) SaveAccessCode(ctx context.Context, c *MapAccessCode) error {
	return s.conn(ctx).Save(c).Error
}
