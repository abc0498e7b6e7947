package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/terratrac/eudr-backend/internal/logging"
	"github.com/terratrac/eudr-backend/internal/metrics"
	"github.com/terratrac/eudr-backend/internal/store"
	"go.uber.org/zap"
)

// Store is the persistence the engine needs.
type Store interface {
	FindFarm(ctx context.Context, key store.MatchKey) (*store.Farm, error)
	CreateFarm(ctx context.Context, f *store.Farm) error
	UpdateFarm(ctx context.Context, f *store.Farm) error
}

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// FieldErrors maps a field name to what is wrong with it.
type FieldErrors map[string][]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fe[k], ", "))
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Check validates the shape of a record about to be stored.
func Check(f *store.Farm) error {
	fe := FieldErrors{}
	for field, v := range map[string]string{
		"farmer_name":   f.FarmerName,
		"farm_village":  f.FarmVillage,
		"farm_district": f.FarmDistrict,
	} {
		if strings.TrimSpace(v) == "" {
			fe.add(field, "This field may not be blank.")
		}
	}
	if f.FarmSize < 0 {
		fe.add("farm_size", "Ensure this value is greater than or equal to 0.")
	}
	switch f.PolygonType {
	case store.PolygonTypePoint:
		if len(f.Polygon) > 0 {
			fe.add("polygon", "A Point record cannot carry a polygon.")
		}
	case store.PolygonTypePolygon, store.PolygonTypeMultiPolygon:
		if len(f.Polygon) == 0 {
			fe.add("polygon", "A "+f.PolygonType+" record needs a polygon.")
		}
	default:
		fe.add("polygon_type", fmt.Sprintf("%q is not a valid choice.", f.PolygonType))
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

// KeyFor builds the candidate match for f: same farmer and site always; a
// stored polygon when f has one; and latitude OR longitude equality when
// either coordinate is non-zero.
func KeyFor(f *store.Farm) store.MatchKey {
	return store.MatchKey{
		FarmerName:       f.FarmerName,
		CollectionSite:   f.CollectionSite,
		RequirePolygon:   len(f.Polygon) > 0,
		MatchCoordinates: f.Latitude != 0 || f.Longitude != 0,
		Latitude:         f.Latitude,
		Longitude:        f.Longitude,
	}
}

// Engine upserts farm records against their fuzzy match key.
type Engine struct {
	store  Store
	logger *zap.Logger
}

func NewEngine(s Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, logger: logger}
}

// Upsert updates the matching farm with every mutable field of f, or inserts
// f when nothing matches. The stored id, creation time and geo-id of a
// matched farm are kept.
func (e *Engine) Upsert(ctx context.Context, f store.Farm) (*store.Farm, Action, error) {
	if err := Check(&f); err != nil {
		return nil, "", err
	}

	existing, err := e.store.FindFarm(ctx, KeyFor(&f))
	switch {
	case errors.Is(err, store.ErrNotFound):
		f.ID = 0
		if err := e.store.CreateFarm(ctx, &f); err != nil {
			return nil, "", fmt.Errorf("create farm: %w", err)
		}
		return &f, ActionCreated, nil
	case err != nil:
		return nil, "", fmt.Errorf("find farm: %w", err)
	}

	f.ID = existing.ID
	f.CreatedAt = existing.CreatedAt
	if f.GeoID == nil {
		f.GeoID = existing.GeoID
	}
	if err := e.store.UpdateFarm(ctx, &f); err != nil {
		return nil, "", fmt.Errorf("update farm %d: %w", f.ID, err)
	}
	return &f, ActionUpdated, nil
}

// UpsertAll reconciles farms in order and stops at the first failure. Farms
// written before the failure stay written.
func (e *Engine) UpsertAll(ctx context.Context, farms []store.Farm) ([]store.Farm, error) {
	start := time.Now()
	out := make([]store.Farm, 0, len(farms))
	var created, updated int
	for i, f := range farms {
		saved, action, err := e.Upsert(ctx, f)
		if err != nil {
			logging.LogError(e.logger, "reconcile", fmt.Sprintf("record %d", i+1), err)
			return out, err
		}
		metrics.RecordsReconciledTotal.WithLabelValues(string(action)).Inc()
		if action == ActionCreated {
			created++
		} else {
			updated++
		}
		out = append(out, *saved)
	}
	logging.LogUpsert(e.logger, created, updated, time.Since(start))
	return out, nil
}
