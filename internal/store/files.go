package store

import (
	"context"
	"errors"
)

// FindOrCreateFile returns the file for (name, uploadedBy), creating it when
// absent. created reports whether this call inserted it. A concurrent insert
// of the same pair is resolved by reading the winner's row.
func (s *Store) FindOrCreateFile(ctx context.Context, name, uploadedBy string) (file *UploadedFile, created bool, err error) {
	var f UploadedFile
	err = s.conn(ctx).Where("file_name = ? AND uploaded_by = ?", name, uploadedBy).First(&f).Error
	if err == nil {
		return &f, false, nil
	}
	if !errors.Is(notFound(err), ErrNotFound) {
		return nil, false, err
	}

	f = UploadedFile{FileName: name, UploadedBy: uploadedBy}
	if err := s.conn(ctx).Create(&f).Error; err != nil {
		if !IsDuplicate(err) {
			return nil, false, err
		}
		if err := s.conn(ctx).Where("file_name = ? AND uploaded_by = ?", name, uploadedBy).First(&f).Error; err != nil {
			return nil, false, err
		}
		return &f, false, nil
	}
	return &f, true, nil
}

func (s *Store) GetFile(ctx context.Context, id uint) (*UploadedFile, error) {
	var f UploadedFile
	if err := s.conn(ctx).First(&f, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// ListFiles returns files newest first, optionally limited to one uploader.
func (s *Store) ListFiles(ctx context.Context, uploadedBy string) ([]UploadedFile, error) {
	q := s.conn(ctx).Order("updated_at DESC")
	if uploadedBy != "" {
		q = q.Where("uploaded_by = ?", uploadedBy)
	}
	var files []UploadedFile
	err := q.Find(&files).Error
	return files, err
}

// DeleteFile removes the file marker. Its farms are left in place.
func (s *Store) DeleteFile(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&UploadedFile{}, id).Error
}
