package store

import (
	"context"
)

// MatchKey selects candidate farms for reconciliation. FarmerName and
// CollectionSite always participate; RequirePolygon restricts to farms with a
// stored polygon; MatchCoordinates adds (latitude = Latitude OR longitude =
// Longitude).
type MatchKey struct {
	FarmerName       string
	CollectionSite   string
	RequirePolygon   bool
	MatchCoordinates bool
	Latitude         float64
	Longitude        float64
}

// FindFarm returns the oldest farm matching key, or ErrNotFound.
func (s *Store) FindFarm(ctx context.Context, key MatchKey) (*Farm, error) {
	q := s.conn(ctx).Where("farmer_name = ? AND collection_site = ?", key.FarmerName, key.CollectionSite)
	if key.RequirePolygon {
		q = q.Where("polygon IS NOT NULL AND polygon <> ?", EmptyRing)
	}
	if key.MatchCoordinates {
		q = q.Where("(latitude = ? OR longitude = ?)", key.Latitude, key.Longitude)
	}
	var f Farm
	if err := q.Order("id").First(&f).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (s *Store) CreateFarm(ctx context.Context, f *Farm) error {
	return s.conn(ctx).Create(f).Error
}

// UpdateFarm writes every column of f, keyed by its ID.
func (s *Store) UpdateFarm(ctx context.Context, f *Farm) error {
	return s.conn(ctx).Save(f).Error
}

func (s *Store) GetFarm(ctx context.Context, id uint) (*Farm, error) {
	var f Farm
	if err := s.conn(ctx).First(&f, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// FarmsByFile lists a file's farms, most recently updated first.
func (s *Store) FarmsByFile(ctx context.Context, fileID uint) ([]Farm, error) {
	var farms []Farm
	err := s.conn(ctx).Where("file_id = ?", fileID).Order("updated_at DESC").Order("id DESC").Find(&farms).Error
	return farms, err
}

// ListFarms returns every farm, or only those in files uploaded by uploadedBy
// when it is non-empty.
func (s *Store) ListFarms(ctx context.Context, uploadedBy string) ([]Farm, error) {
	q := s.conn(ctx).Order("updated_at DESC")
	if uploadedBy != "" {
		q = q.Where("file_id IN (?)", s.conn(ctx).Model(&UploadedFile{}).Select("id").Where("uploaded_by = ?", uploadedBy))
	}
	var farms []Farm
	err := q.Find(&farms).Error
	return farms, err
}
