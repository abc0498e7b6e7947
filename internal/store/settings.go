package store

import (
	"context"
	"errors"
)

// ChunkSize returns the stored WHISP chunk size, or 0 when none is set.
func (s *Store) ChunkSize(ctx context.Context) (int, error) {
	var st WhispSetting
	err := s.conn(ctx).Order("id").First(&st).Error
	if errors.Is(notFound(err), ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return st.ChunkSize, nil
}

// SetChunkSize stores n in the settings row, creating it on first use.
func (s *Store) SetChunkSize(ctx context.Context, n int) (*WhispSetting, error) {
	var st WhispSetting
	err := s.conn(ctx).Order("id").First(&st).Error
	if err != nil && !errors.Is(notFound(err), ErrNotFound) {
		return nil, err
	}
	st.ChunkSize = n
	if err := s.conn(ctx).Save(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}
