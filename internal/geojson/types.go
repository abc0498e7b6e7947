package geojson

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
	TypePoint             = "Point"
	TypePolygon           = "Polygon"
	TypeMultiPolygon      = "MultiPolygon"
)

var ErrNoGeometry = errors.New("feature has no geometry")

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
	// GenerateGeoIDs asks downstream consumers to register geo-ids; only set on
	// collections rebuilt from stored records.
	GenerateGeoIDs string `json:"generateGeoids,omitempty"`
}

type Feature struct {
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
	Geometry   *Geometry  `json:"geometry"`
}

// Geometry keeps coordinates raw; their nesting depends on Type and is only
// decoded on demand.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func NewCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: TypeFeatureCollection, Features: features}
}

// Parse decodes a FeatureCollection document.
func Parse(raw []byte) (FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return fc, fmt.Errorf("decode feature collection: %w", err)
	}
	return fc, nil
}

func NewPoint(lon, lat float64) *Geometry {
	b, _ := json.Marshal([]float64{lon, lat})
	return &Geometry{Type: TypePoint, Coordinates: b}
}

func NewPolygon(rings [][][]float64) *Geometry {
	b, _ := json.Marshal(rings)
	return &Geometry{Type: TypePolygon, Coordinates: b}
}

// Point returns (lon, lat).
func (g *Geometry) Point() (float64, float64, error) {
	if g == nil {
		return 0, 0, ErrNoGeometry
	}
	var c []float64
	if err := json.Unmarshal(g.Coordinates, &c); err != nil {
		return 0, 0, fmt.Errorf("point coordinates: %w", err)
	}
	if len(c) < 2 {
		return 0, 0, fmt.Errorf("point coordinates: want 2 values, got %d", len(c))
	}
	return c[0], c[1], nil
}

func (g *Geometry) Polygon() ([][][]float64, error) {
	if g == nil {
		return nil, ErrNoGeometry
	}
	var rings [][][]float64
	if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
		return nil, fmt.Errorf("polygon coordinates: %w", err)
	}
	return rings, nil
}

func (g *Geometry) MultiPolygon() ([][][][]float64, error) {
	if g == nil {
		return nil, ErrNoGeometry
	}
	var polys [][][][]float64
	if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
		return nil, fmt.Errorf("multipolygon coordinates: %w", err)
	}
	return polys, nil
}
