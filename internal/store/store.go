package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

// Store issues the persistence operations used by the ingestion pipeline and
// the HTTP handlers. Each call is its own statement; callers compose them.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for listing queries in handlers.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates every table owned by this package.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UploadedFile{},
		&Farm{},
		&CollectionSite{},
		&FarmBackup{},
		&MapAccessCode{},
		&WhispSetting{},
	)
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// IsDuplicate reports a unique constraint violation from either driver.
func IsDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
