// Package mapshare issues and checks the access codes behind shared farm
// maps.
package mapshare

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/terratrac/eudr-backend/internal/metrics"
	"github.com/terratrac/eudr-backend/internal/store"
	"go.uber.org/zap"
)

// Validity is how long a freshly generated code stays usable.
const Validity = 90 * 24 * time.Hour

const cachePrefix = "eudr:mapshare:"

var ErrInvalidCode = errors.New("invalid or expired access code")

type Store interface {
	AccessCodeForFile(ctx context.Context, fileID uint) (*store.MapAccessCode, error)
	SaveAccessCode(ctx context.Context, c *store.MapAccessCode) error
}

type Link struct {
	AccessCode string `json:"access_code"`
	MapLink    string `json:"map_link"`
}

type Service struct {
	store  Store
	cache  *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewService returns a service over s. cache may be nil, in which case every
// check goes to the database.
func NewService(s Store, cache *redis.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, cache: cache, logger: logger, now: time.Now}
}

// Link returns the share link for fileID, reusing the stored code while it is
// still valid and generating a new one otherwise.
func (s *Service) Link(ctx context.Context, fileID uint, baseURL string) (*Link, error) {
	now := s.now()
	code, err := s.store.AccessCodeForFile(ctx, fileID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = &store.MapAccessCode{FileID: fileID}
	case err != nil:
		return nil, fmt.Errorf("load access code: %w", err)
	}

	if code.AccessCode == "" || code.ValidUntil.Before(now) {
		code.AccessCode = uuid.NewString()
		code.ValidUntil = now.Add(Validity)
		if err := s.store.SaveAccessCode(ctx, code); err != nil {
			return nil, fmt.Errorf("save access code: %w", err)
		}
		s.logger.Info("map access code issued", zap.Uint("file_id", fileID), zap.Time("valid_until", code.ValidUntil))
	}
	s.remember(ctx, code)

	q := url.Values{}
	q.Set("file-id", strconv.FormatUint(uint64(fileID), 10))
	q.Set("access-code", code.AccessCode)
	return &Link{
		AccessCode: code.AccessCode,
		MapLink:    strings.TrimRight(baseURL, "/") + "/map/share/?" + q.Encode(),
	}, nil
}

// Verify returns nil when accessCode currently grants access to fileID, and
// ErrInvalidCode otherwise.
func (s *Service) Verify(ctx context.Context, fileID uint, accessCode string) error {
	if accessCode == "" {
		return ErrInvalidCode
	}
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey(fileID)).Result()
		switch {
		case err == nil && cached == accessCode:
			metrics.AccessCodeCacheTotal.WithLabelValues("hit").Inc()
			return nil
		case err == nil, errors.Is(err, redis.Nil):
			metrics.AccessCodeCacheTotal.WithLabelValues("miss").Inc()
		default:
			metrics.AccessCodeCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn("access code cache unavailable", zap.Error(err))
		}
	}

	code, err := s.store.AccessCodeForFile(ctx, fileID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("load access code: %w", err)
	}
	if code.AccessCode != accessCode || code.ValidUntil.Before(s.now()) {
		return ErrInvalidCode
	}
	s.remember(ctx, code)
	return nil
}

// remember caches code until it expires.
func (s *Service) remember(ctx context.Context, code *store.MapAccessCode) {
	if s.cache == nil {
		return
	}
	ttl := code.ValidUntil.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(code.FileID), code.AccessCode, ttl).Err(); err != nil {
		s.logger.Warn("access code cache write failed", zap.Uint("file_id", code.FileID), zap.Error(err))
	}
}

func cacheKey(fileID uint) string {
	return cachePrefix + strconv.FormatUint(uint64(fileID), 10)
}
