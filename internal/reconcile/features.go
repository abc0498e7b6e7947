package reconcile

import (
	"github.com/terratrac/eudr-backend/internal/geojson"
	"github.com/terratrac/eudr-backend/internal/store"
)

// Features rebuilds a FeatureCollection from stored farms, in the given
// order. Farms with a polygon become single-ring Polygons, the rest Points.
// Coordinates travel in the geometry only; latitude and longitude are not
// repeated as properties.
func Features(farms []store.Farm, generateGeoIDs bool) geojson.FeatureCollection {
	features := make([]geojson.Feature, 0, len(farms))
	for _, f := range farms {
		var p geojson.Properties
		if f.RemoteID != nil {
			p.RemoteID = geojson.Of(*f.RemoteID)
		}
		if f.MemberID != nil {
			p.MemberID = geojson.Of(*f.MemberID)
		}
		if f.AgentName != nil {
			p.AgentName = geojson.Of(*f.AgentName)
		}
		if f.GeoID != nil {
			p.GeoID = geojson.Of(*f.GeoID)
		}
		p.FarmerName = geojson.Of(f.FarmerName)
		p.CollectionSite = geojson.Of(f.CollectionSite)
		p.FarmVillage = geojson.Of(f.FarmVillage)
		p.FarmDistrict = geojson.Of(f.FarmDistrict)
		p.FarmSize = geojson.Of(f.FarmSize)
		if len(f.Accuracies) > 0 {
			_ = p.Set("accuracies", []float64(f.Accuracies))
		}

		var g *geojson.Geometry
		if len(f.Polygon) > 0 {
			g = geojson.NewPolygon([][][]float64{f.Polygon})
			// keep the stored centroid so a rebuild yields the same coordinates
			p.CentroidLat = geojson.Of(f.Latitude)
			p.CentroidLon = geojson.Of(f.Longitude)
		} else {
			g = geojson.NewPoint(f.Longitude, f.Latitude)
		}
		features = append(features, geojson.Feature{Type: geojson.TypeFeature, Properties: p, Geometry: g})
	}

	fc := geojson.NewCollection(features)
	if generateGeoIDs {
		fc.GenerateGeoIDs = "true"
	}
	return fc
}
