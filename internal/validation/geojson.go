package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/terratrac/eudr-backend/internal/geojson"
)

const (
	msgCollectionType   = "Invalid GeoJSON type. Must be FeatureCollection"
	msgFeaturesList     = "Invalid GeoJSON features. Must be a list"
	msgFeatureType      = "Invalid GeoJSON feature. Must be Feature"
	msgPropertiesObject = "Invalid GeoJSON properties. Must be a dictionary"
	msgPropertyInvalid  = "Invalid GeoJSON properties. Missing or invalid %q"
	msgGeometryObject   = "Invalid GeoJSON geometry. Must be a dictionary"
	msgGeometryType     = "Invalid GeoJSON geometry type. Must be Point or Polygon"
	msgListOfLists      = "Invalid GeoJSON coordinates. Must be a list of lists"
	msgRingSize         = "Invalid GeoJSON coordinates. Must be a list of lists with at least 4 coordinates"
	msgNotPolygon       = "Invalid GeoJSON coordinates. Must be a valid polygon"
	msgPairSize         = "Invalid GeoJSON coordinates. Must be a list of lists with 2 coordinates"
	msgPairNumbers      = "Invalid GeoJSON coordinates. Must be a list of lists with numbers"
	msgPointSize        = "Invalid GeoJSON coordinates. Must be a list of 2 numbers"
	msgPointNumbers     = "Invalid GeoJSON coordinates. Must be a list of numbers"
	msgPointTooLarge    = "Invalid record. Farm size must be less than 4 hectares for a point geometry"
)

type rawCollection struct {
	Type     any             `json:"type"`
	Features json.RawMessage `json:"features"`
}

type rawFeature struct {
	Type       any             `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type rawGeometry struct {
	Type        any `json:"type"`
	Coordinates any `json:"coordinates"`
}

// GeoJSON checks a FeatureCollection document. Problems in every feature are
// collected; messages for features are prefixed with the 1-based feature
// number.
func GeoJSON(raw []byte) []string {
	var fc rawCollection
	if !isObject(raw) || json.Unmarshal(raw, &fc) != nil {
		return []string{msgCollectionType}
	}

	var errs []string
	if fc.Type != geojson.TypeFeatureCollection {
		errs = append(errs, msgCollectionType)
	}
	var features []json.RawMessage
	if !isArray(fc.Features) || json.Unmarshal(fc.Features, &features) != nil {
		errs = append(errs, msgFeaturesList)
	}
	if len(errs) > 0 {
		return errs
	}

	for i, f := range features {
		for _, msg := range validateFeature(f) {
			errs = append(errs, fmt.Sprintf("Feature %d: %s", i+1, msg))
		}
	}
	return errs
}

func validateFeature(raw json.RawMessage) []string {
	var f rawFeature
	if !isObject(raw) || json.Unmarshal(raw, &f) != nil || f.Type != geojson.TypeFeature {
		return []string{msgFeatureType}
	}
	if !isObject(f.Properties) {
		return []string{msgPropertiesObject}
	}
	var props geojson.Properties
	if err := json.Unmarshal(f.Properties, &props); err != nil {
		return []string{msgPropertiesObject}
	}

	var errs []string
	required := []struct {
		key   string
		valid bool
	}{
		{"farmer_name", props.FarmerName.Valid()},
		{"farm_village", props.FarmVillage.Valid()},
		{"farm_district", props.FarmDistrict.Valid()},
		{"farm_size", props.FarmSize.Valid()},
		{"latitude", props.Latitude.Valid()},
		{"longitude", props.Longitude.Valid()},
	}
	for _, r := range required {
		if !r.valid {
			errs = append(errs, fmt.Sprintf(msgPropertyInvalid, r.key))
		}
	}
	if len(errs) > 0 {
		return errs
	}

	var g rawGeometry
	if !isObject(f.Geometry) || json.Unmarshal(f.Geometry, &g) != nil {
		return []string{msgGeometryObject}
	}
	large := props.FarmSize.Value >= LargeFarmHectares

	r := &report{}
	switch g.Type {
	case geojson.TypePoint:
		c, ok := g.Coordinates.([]any)
		if !ok || len(c) != 2 {
			r.add(msgPointSize)
		}
		if !ok || !allNumbers(c) {
			r.add(msgPointNumbers)
		}
		if large {
			r.add(msgPointTooLarge)
		}
	case geojson.TypePolygon:
		checkPolygon(r, g.Coordinates, large)
	case geojson.TypeMultiPolygon:
		polys, ok := g.Coordinates.([]any)
		if !ok || len(polys) == 0 {
			r.add(msgListOfLists)
			break
		}
		for _, p := range polys {
			checkPolygon(r, p, large)
		}
	default:
		r.add(msgGeometryType)
	}
	return r.msgs
}

// checkPolygon validates one polygon's ring list.
func checkPolygon(r *report, coords any, large bool) {
	rings, ok := coords.([]any)
	if !ok || len(rings) == 0 {
		r.add(msgListOfLists)
		return
	}
	for _, ring := range rings {
		pts, ok := ring.([]any)
		if !ok || len(pts) < 4 {
			r.add(msgRingSize)
		}
		for _, pt := range pts {
			c, ok := pt.([]any)
			if !ok || len(c) != 2 {
				r.add(msgPairSize)
			}
			if !ok || !allNumbers(c) {
				r.add(msgPairNumbers)
			}
		}
	}
	if large && !IsValidPolygon(coords) {
		r.add(msgNotPolygon)
	}
}

// report collects messages for one feature without repeating the same one
// for every offending coordinate.
type report struct {
	msgs []string
	seen map[string]bool
}

func (r *report) add(msg string) {
	if r.seen == nil {
		r.seen = map[string]bool{}
	}
	if r.seen[msg] {
		return
	}
	r.seen[msg] = true
	r.msgs = append(r.msgs, msg)
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func isArray(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}
