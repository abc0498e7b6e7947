package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
)

var ErrPropertiesNotObject = errors.New("properties must be an object")

// Property is a typed slot for a known feature property. Set reports a
// non-null value was supplied, OK that it decoded into T. The original JSON is
// kept so values that fail to decode still round-trip unchanged.
type Property[T any] struct {
	Value T
	Set   bool
	OK    bool
	raw   json.RawMessage
}

// Of returns a property holding v.
func Of[T any](v T) Property[T] {
	return Property[T]{Value: v, Set: true, OK: true}
}

func (p Property[T]) Valid() bool { return p.Set && p.OK }

// Or returns the value when valid, def otherwise.
func (p Property[T]) Or(def T) T {
	if p.Valid() {
		return p.Value
	}
	return def
}

func (p *Property[T]) present() bool { return p.Set || p.raw != nil }

func (p *Property[T]) UnmarshalJSON(b []byte) error {
	p.raw = append(json.RawMessage(nil), b...)
	var zero T
	p.Value = zero
	p.Set, p.OK = false, false
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	p.Set = true
	p.OK = json.Unmarshal(b, &p.Value) == nil
	return nil
}

func (p Property[T]) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return p.raw, nil
	}
	return json.Marshal(p.Value)
}

// Properties is the feature property bag: known keys land in typed slots,
// anything else is carried opaquely in Extra.
type Properties struct {
	RemoteID       Property[string]
	FarmerName     Property[string]
	MemberID       Property[string]
	FarmSize       Property[float64]
	CollectionSite Property[string]
	AgentName      Property[string]
	FarmVillage    Property[string]
	FarmDistrict   Property[string]
	Latitude       Property[float64]
	Longitude      Property[float64]
	GeoID          Property[string]
	CentroidLat    Property[float64]
	CentroidLon    Property[float64]
	PlotAreaHa     Property[float64]
	AdminLevel1    Property[string]

	Extra map[string]json.RawMessage
}

type slot interface {
	json.Marshaler
	json.Unmarshaler
	present() bool
}

type namedSlot struct {
	key string
	s   slot
}

func (p *Properties) slots() []namedSlot {
	return []namedSlot{
		{"remote_id", &p.RemoteID},
		{"farmer_name", &p.FarmerName},
		{"member_id", &p.MemberID},
		{"farm_size", &p.FarmSize},
		{"collection_site", &p.CollectionSite},
		{"agent_name", &p.AgentName},
		{"farm_village", &p.FarmVillage},
		{"farm_district", &p.FarmDistrict},
		{"latitude", &p.Latitude},
		{"longitude", &p.Longitude},
		{"geoid", &p.GeoID},
		{"Centroid_lat", &p.CentroidLat},
		{"Centroid_lon", &p.CentroidLon},
		{"Plot_area_ha", &p.PlotAreaHa},
		{"Admin_Level_1", &p.AdminLevel1},
	}
}

func (p *Properties) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return ErrPropertiesNotObject
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*p = Properties{}
	for _, ns := range p.slots() {
		raw, ok := m[ns.key]
		if !ok {
			continue
		}
		if err := ns.s.UnmarshalJSON(raw); err != nil {
			return err
		}
		delete(m, ns.key)
	}
	if len(m) > 0 {
		p.Extra = m
	}
	return nil
}

func (p Properties) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Extra)+8)
	for k, v := range p.Extra {
		out[k] = v
	}
	for _, ns := range p.slots() {
		if !ns.s.present() {
			continue
		}
		b, err := ns.s.MarshalJSON()
		if err != nil {
			return nil, err
		}
		out[ns.key] = b
	}
	return json.Marshal(out)
}

// Set stores an arbitrary value under key, routing known keys to their slot.
func (p *Properties) Set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	for _, ns := range p.slots() {
		if ns.key == key {
			return ns.s.UnmarshalJSON(b)
		}
	}
	if p.Extra == nil {
		p.Extra = map[string]json.RawMessage{}
	}
	p.Extra[key] = b
	return nil
}
