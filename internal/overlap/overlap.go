// Package overlap finds farm plots whose polygons share interior area.
package overlap

import (
	"encoding/json"
	"fmt"

	"github.com/terratrac/eudr-backend/internal/geojson"
	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/twpayne/go-geos"
	"go.uber.org/zap"
)

// Find returns the farms whose polygon overlaps, contains or lies within the
// polygon of another farm in farms, in input order. Point farms and polygons
// GEOS rejects as invalid are not considered.
func Find(farms []store.Farm, logger *zap.Logger) []store.Farm {
	if logger == nil {
		logger = zap.NewNop()
	}

	type shape struct {
		idx  int
		geom *geos.Geom
	}
	shapes := make([]shape, 0, len(farms))
	defer func() {
		for _, s := range shapes {
			s.geom.Destroy()
		}
	}()
	for i, f := range farms {
		g, err := polygon(f.Polygon)
		if err != nil {
			logger.Debug("farm skipped for overlap", zap.Uint("farm_id", f.ID), zap.Error(err))
			continue
		}
		shapes = append(shapes, shape{idx: i, geom: g})
	}

	hit := make([]bool, len(farms))
	for i := 0; i < len(shapes); i++ {
		for j := i + 1; j < len(shapes); j++ {
			a, b := shapes[i].geom, shapes[j].geom
			if a.Intersects(b) && !a.Touches(b) {
				hit[shapes[i].idx] = true
				hit[shapes[j].idx] = true
			}
		}
	}

	out := []store.Farm{}
	for i, f := range farms {
		if hit[i] {
			out = append(out, f)
		}
	}
	return out
}

// polygon builds a GEOS polygon from a stored ring, closing it when needed.
func polygon(r store.Ring) (*geos.Geom, error) {
	if len(r) == 0 {
		return nil, fmt.Errorf("no polygon")
	}
	ring := make([][]float64, len(r), len(r)+1)
	copy(ring, r)
	first, last := ring[0], ring[len(ring)-1]
	if len(first) < 2 || len(last) < 2 {
		return nil, fmt.Errorf("malformed coordinate")
	}
	if first[0] != last[0] || first[1] != last[1] {
		ring = append(ring, first)
	}
	if len(ring) < 4 {
		return nil, fmt.Errorf("ring has %d points", len(ring))
	}

	raw, err := json.Marshal(geojson.NewPolygon([][][]float64{ring}))
	if err != nil {
		return nil, err
	}
	g, err := geos.NewGeomFromGeoJSON(string(raw))
	if err != nil {
		return nil, err
	}
	if !g.IsValid() {
		reason := g.IsValidReason()
		g.Destroy()
		return nil, fmt.Errorf("invalid polygon: %s", reason)
	}
	return g, nil
}
