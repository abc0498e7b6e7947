package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/terratrac/eudr-backend/internal/geojson"
	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/whisp"
	"gorm.io/datatypes"
)

var ErrMisaligned = errors.New("feature and analysis counts differ")

// Build turns analysed features into farm records owned by fileID. analysis[i]
// belongs to fc.Features[i].
func Build(fc geojson.FeatureCollection, analysis []whisp.Indicators, fileID uint) ([]store.Farm, error) {
	if len(analysis) != len(fc.Features) {
		return nil, fmt.Errorf("%w: %d features, %d results", ErrMisaligned, len(fc.Features), len(analysis))
	}
	now := time.Now()
	farms := make([]store.Farm, 0, len(fc.Features))
	for i, f := range fc.Features {
		farm, err := buildFarm(f, analysis[i])
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i+1, err)
		}
		id := fileID
		farm.FileID = &id
		farm.IsValidated = true
		farm.ValidatedAt = &now
		farms = append(farms, farm)
	}
	return farms, nil
}

func buildFarm(f geojson.Feature, ind whisp.Indicators) (store.Farm, error) {
	p := f.Properties
	farm := store.Farm{
		RemoteID:       optional(p.RemoteID),
		FarmerName:     p.FarmerName.Value,
		MemberID:       optional(p.MemberID),
		CollectionSite: p.CollectionSite.Value,
		AgentName:      optional(p.AgentName),
		FarmVillage:    p.FarmVillage.Value,
		FarmDistrict:   p.FarmDistrict.Value,
		FarmSize:       p.FarmSize.Value,
		GeoID:          optional(p.GeoID),
		Accuracies:     accuracies(p),
		Analysis:       datatypes.NewJSONType(FromIndicators(ind)),
	}
	if !p.FarmDistrict.Valid() {
		farm.FarmDistrict = p.AdminLevel1.Value
	}
	if !p.FarmSize.Valid() {
		farm.FarmSize = p.PlotAreaHa.Value
	}

	g := f.Geometry
	if g == nil {
		return farm, geojson.ErrNoGeometry
	}
	farm.PolygonType = g.Type
	switch g.Type {
	case geojson.TypePoint:
		lon, lat, err := g.Point()
		if err != nil {
			return farm, err
		}
		farm.Latitude, farm.Longitude = lat, lon
	case geojson.TypePolygon:
		rings, err := g.Polygon()
		if err != nil {
			return farm, err
		}
		if len(rings) > 0 {
			farm.Polygon = store.Ring(rings[0])
		}
		farm.Latitude, farm.Longitude = p.CentroidLat.Or(0), p.CentroidLon.Or(0)
	case geojson.TypeMultiPolygon:
		polys, err := g.MultiPolygon()
		if err != nil {
			return farm, err
		}
		var ring store.Ring
		for _, poly := range polys {
			if len(poly) > 0 {
				ring = append(ring, poly[0]...)
			}
		}
		farm.Polygon = ring
		farm.Latitude, farm.Longitude = p.CentroidLat.Or(0), p.CentroidLon.Or(0)
	default:
		return farm, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	return farm, nil
}

// FromIndicators maps WHISP indicator keys onto the stored analysis.
func FromIndicators(ind whisp.Indicators) store.Analysis {
	get := func(key string) store.Indicator {
		if v, ok := ind[key]; ok {
			return store.Indicator(v)
		}
		return nil
	}
	a := store.Analysis{
		IsInProtectedAreas:        get("WDPA"),
		IsInWaterBody:             get("In_waterbody"),
		ForestChangeLossAfter2020: get("GFC_loss_after_2020"),
		FireAfter2020:             get("MODIS_fire_after_2020"),
		RaddAfter2020:             get("RADD_after_2020"),
		TMFDeforestationAfter2020: get("TMF_def_after_2020"),
		TMFDegradationAfter2020:   get("TMF_deg_after_2020"),
		TMFDisturbed:              get("TMF_disturbed"),
		TreeCoverLoss:             get("Indicator_1_treecover"),
		Commodities:               get("Indicator_2_commodities"),
		DisturbanceBefore2020:     get("Indicator_3_disturbance_before_2020"),
		DisturbanceAfter2020:      get("Indicator_4_disturbance_after_2020"),
	}
	var risk string
	if raw, ok := ind["EUDR_risk"]; ok && json.Unmarshal(raw, &risk) == nil {
		a.EUDRRiskLevel = store.RiskLevel(strings.ToLower(strings.TrimSpace(risk)))
	}
	return a
}

func optional(p geojson.Property[string]) *string {
	if !p.Valid() || strings.TrimSpace(p.Value) == "" {
		return nil
	}
	v := p.Value
	return &v
}

// accuracies reads GPS accuracies from either accepted key. CSV uploads carry
// them as a JSON list inside a string cell.
func accuracies(p geojson.Properties) datatypes.JSONSlice[float64] {
	for _, key := range []string{"accuracies", "accuracyArray"} {
		raw, ok := p.Extra[key]
		if !ok {
			continue
		}
		var out []float64
		if json.Unmarshal(raw, &out) == nil {
			return out
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && json.Unmarshal([]byte(s), &out) == nil {
			return out
		}
	}
	return nil
}
