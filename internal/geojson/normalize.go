package geojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnparsedRows is returned in strict mode when CSV rows had to be dropped.
var ErrUnparsedRows = errors.New("rows with unparseable geometry")

// csvGeometryColumns are consumed into the geometry and not copied to
// properties.
var csvGeometryColumns = map[string]bool{"latitude": true, "longitude": true, "polygon": true}

// csvNumericColumns are typed as numbers in the emitted properties.
var csvNumericColumns = map[string]bool{"farm_size": true}

// NormalizeCSV turns header + data rows into a FeatureCollection. Rows without
// latitude or longitude are dropped. Rows with an empty polygon become Points
// at (longitude, latitude); otherwise the polygon cell must hold a JSON list of
// [lon, lat] pairs, or a list of such rings, and becomes a single-ring Polygon
// built from the outer ring. Rows whose coordinates or
// polygon cannot be parsed are skipped; with strict set they are reported
// instead, wrapped in ErrUnparsedRows.
func NormalizeCSV(rows [][]string, strict bool) (FeatureCollection, error) {
	fc := NewCollection(nil)
	if len(rows) == 0 {
		return fc, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	var bad []string
	for i, row := range rows[1:] {
		rec := zip(header, row)

		latS, okLat := rec["latitude"]
		lonS, okLon := rec["longitude"]
		if !okLat || !okLon || strings.TrimSpace(latS) == "" || strings.TrimSpace(lonS) == "" {
			continue
		}

		props, err := csvProperties(rec)
		if err != nil {
			bad = append(bad, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}

		var geom *Geometry
		if poly := strings.TrimSpace(rec["polygon"]); poly == "" {
			lat, err1 := strconv.ParseFloat(strings.TrimSpace(latS), 64)
			lon, err2 := strconv.ParseFloat(strings.TrimSpace(lonS), 64)
			if err1 != nil || err2 != nil {
				bad = append(bad, fmt.Sprintf("row %d: invalid coordinates", i+2))
				continue
			}
			geom = NewPoint(lon, lat)
		} else {
			ring, err := parseRing(poly)
			if err != nil {
				bad = append(bad, fmt.Sprintf("row %d: %v", i+2, err))
				continue
			}
			geom = NewPolygon([][][]float64{ring})
		}

		fc.Features = append(fc.Features, Feature{Type: TypeFeature, Properties: props, Geometry: geom})
	}

	if strict && len(bad) > 0 {
		return fc, fmt.Errorf("%w: %s", ErrUnparsedRows, strings.Join(bad, "; "))
	}
	return fc, nil
}

// Flatten rewrites every MultiPolygon feature as a Polygon whose only ring is
// the concatenation of each member polygon's outer ring, in order. Holes are
// dropped. Other features are returned unchanged.
func Flatten(fc FeatureCollection) (FeatureCollection, error) {
	out := fc
	out.Features = make([]Feature, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry != nil && f.Geometry.Type == TypeMultiPolygon {
			polys, err := f.Geometry.MultiPolygon()
			if err != nil {
				return fc, fmt.Errorf("feature %d: %w", i+1, err)
			}
			ring := [][]float64{}
			for _, p := range polys {
				if len(p) > 0 {
					ring = append(ring, p[0]...)
				}
			}
			f.Geometry = NewPolygon([][][]float64{ring})
		}
		out.Features[i] = f
	}
	return out, nil
}

// zip pairs header names with row cells, stopping at the shorter of the two.
func zip(header, row []string) map[string]string {
	n := min(len(header), len(row))
	rec := make(map[string]string, n)
	for i := 0; i < n; i++ {
		rec[header[i]] = row[i]
	}
	return rec
}

func csvProperties(rec map[string]string) (Properties, error) {
	var p Properties
	for k, v := range rec {
		if csvGeometryColumns[k] {
			continue
		}
		if csvNumericColumns[k] {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				if err := p.Set(k, f); err != nil {
					return p, err
				}
				continue
			}
		}
		if err := p.Set(k, v); err != nil {
			return p, err
		}
	}
	return p, nil
}

// parseRing reads a polygon cell holding either one ring of [lon, lat] pairs
// or a list of rings. Only the outer ring of a ring list is kept.
func parseRing(s string) ([][]float64, error) {
	var ring [][]float64
	if err := json.Unmarshal([]byte(s), &ring); err != nil {
		var rings [][][]float64
		if err := json.Unmarshal([]byte(s), &rings); err != nil || len(rings) == 0 {
			return nil, fmt.Errorf("polygon is not a list of coordinate pairs")
		}
		ring = rings[0]
	}
	for _, pt := range ring {
		if len(pt) != 2 {
			return nil, fmt.Errorf("polygon point must have 2 coordinates")
		}
	}
	return ring, nil
}
