package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terratrac/eudr-backend/internal/geojson"
	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/store/storetest"
	"github.com/terratrac/eudr-backend/internal/whisp"
)

func polygonFarm(name string, ring store.Ring, lat, lon float64) store.Farm {
	return store.Farm{
		FarmerName: name, CollectionSite: "S", FarmVillage: "V", FarmDistrict: "D",
		Polygon: ring, PolygonType: store.PolygonTypePolygon, Latitude: lat, Longitude: lon,
	}
}

func TestUpsert_LatitudeMatchUpdates(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	geoID := "geo-1"

	existing := polygonFarm("A", store.Ring{{0, 0}, {1, 1}, {2, 2}}, 0, 0)
	existing.GeoID = &geoID
	require.NoError(t, s.CreateFarm(ctx, &existing))

	e := NewEngine(s, nil)
	incoming := polygonFarm("A", store.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, 0, 5)
	saved, action, err := e.Upsert(ctx, incoming)
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, action)
	assert.Equal(t, existing.ID, saved.ID)
	assert.Equal(t, &geoID, saved.GeoID)

	got, err := s.GetFarm(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Longitude)
	assert.Len(t, got.Polygon, 4)
}

func TestUpsert_NoMatchInserts(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	existing := polygonFarm("A", store.Ring{{0, 0}, {1, 1}, {2, 2}}, 1, 1)
	require.NoError(t, s.CreateFarm(ctx, &existing))

	e := NewEngine(s, nil)
	_, action, err := e.Upsert(ctx, polygonFarm("A", store.Ring{{0, 0}, {1, 1}, {2, 2}}, 7, 8))
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, action)

	point := store.Farm{FarmerName: "A", CollectionSite: "S", FarmVillage: "V", FarmDistrict: "D", PolygonType: store.PolygonTypePoint, Latitude: 1, Longitude: 3}
	_, action, err = e.Upsert(ctx, point)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, action, "a point with a shared latitude matches the polygon farm")
}

func TestKeyFor(t *testing.T) {
	k := KeyFor(&store.Farm{FarmerName: "A", CollectionSite: "S"})
	assert.False(t, k.RequirePolygon)
	assert.False(t, k.MatchCoordinates)

	k = KeyFor(&store.Farm{FarmerName: "A", CollectionSite: "S", Polygon: store.Ring{{1, 2}}, Longitude: 3})
	assert.True(t, k.RequirePolygon)
	assert.True(t, k.MatchCoordinates)
	assert.Equal(t, 3.0, k.Longitude)
}

func TestCheck_FieldErrors(t *testing.T) {
	err := Check(&store.Farm{PolygonType: store.PolygonTypePolygon})
	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "farmer_name")
	assert.Contains(t, fe, "farm_village")
	assert.Contains(t, fe, "polygon")

	err = Check(&store.Farm{FarmerName: "A", FarmVillage: "V", FarmDistrict: "D", PolygonType: "Circle"})
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "polygon_type")
}

type failingStore struct {
	creates int
	failAt  int
}

func (f *failingStore) FindFarm(context.Context, store.MatchKey) (*store.Farm, error) {
	return nil, store.ErrNotFound
}

func (f *failingStore) CreateFarm(_ context.Context, farm *store.Farm) error {
	f.creates++
	if f.creates == f.failAt {
		return errors.New("disk full")
	}
	farm.ID = uint(f.creates)
	return nil
}

func (f *failingStore) UpdateFarm(context.Context, *store.Farm) error { return nil }

func TestUpsertAll_StopsAtFirstFailure(t *testing.T) {
	fs := &failingStore{failAt: 2}
	e := NewEngine(fs, nil)
	farms := []store.Farm{
		polygonFarm("A", store.Ring{{0, 0}}, 0, 0),
		polygonFarm("B", store.Ring{{0, 0}}, 0, 0),
		polygonFarm("C", store.Ring{{0, 0}}, 0, 0),
	}
	saved, err := e.UpsertAll(context.Background(), farms)
	assert.Error(t, err)
	assert.Len(t, saved, 1)
	assert.Equal(t, 2, fs.creates)
}

func TestUpsertAll_FieldErrorStopsBatch(t *testing.T) {
	fs := &failingStore{}
	e := NewEngine(fs, nil)
	farms := []store.Farm{{FarmerName: "", PolygonType: store.PolygonTypePoint}, polygonFarm("B", store.Ring{{0, 0}}, 0, 0)}
	_, err := e.UpsertAll(context.Background(), farms)
	var fe FieldErrors
	assert.True(t, errors.As(err, &fe))
	assert.Zero(t, fs.creates)
}

const twoFeatures = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"farmer_name": "A", "farm_size": 1, "collection_site": "S", "farm_village": "V",
                    "farm_district": "D", "latitude": -0.6, "longitude": 34.7, "remote_id": "r1",
                    "accuracies": "[3.5, 4]"},
     "geometry": {"type": "Point", "coordinates": [34.7, -0.6]}},
    {"type": "Feature",
     "properties": {"farmer_name": "B", "Plot_area_ha": 6, "collection_site": "S", "farm_village": "V",
                    "Admin_Level_1": "Kisii", "latitude": 0, "longitude": 0, "Centroid_lat": -0.55},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]], [[0.2,0.2],[0.3,0.2],[0.2,0.2]]]}}
  ]
}`

func indicators(t *testing.T, raw string) whisp.Indicators {
	t.Helper()
	var ind whisp.Indicators
	require.NoError(t, json.Unmarshal([]byte(raw), &ind))
	return ind
}

func TestBuild(t *testing.T) {
	fc, err := geojson.Parse([]byte(twoFeatures))
	require.NoError(t, err)

	analysis := []whisp.Indicators{
		indicators(t, `{"WDPA": "no", "Indicator_1_treecover": "yes", "EUDR_risk": "High"}`),
		indicators(t, `{"In_waterbody": true, "GFC_loss_after_2020": 0.4, "EUDR_risk": "low"}`),
	}
	farms, err := Build(fc, analysis, 9)
	require.NoError(t, err)
	require.Len(t, farms, 2)

	p := farms[0]
	assert.Equal(t, store.PolygonTypePoint, p.PolygonType)
	assert.Equal(t, -0.6, p.Latitude)
	assert.Equal(t, 34.7, p.Longitude)
	assert.Empty(t, p.Polygon)
	assert.Equal(t, "r1", *p.RemoteID)
	assert.Equal(t, []float64{3.5, 4}, []float64(p.Accuracies))
	assert.Equal(t, uint(9), *p.FileID)
	assert.True(t, p.Analysis.Data().TreeCoverLoss.Bool())
	assert.False(t, p.Analysis.Data().IsInProtectedAreas.Bool())
	assert.Equal(t, store.RiskHigh, p.Analysis.Data().EUDRRiskLevel)

	g := farms[1]
	assert.Equal(t, store.PolygonTypePolygon, g.PolygonType)
	assert.Equal(t, store.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, g.Polygon, "outer ring only")
	assert.Equal(t, -0.55, g.Latitude)
	assert.Equal(t, 0.0, g.Longitude)
	assert.Equal(t, 6.0, g.FarmSize)
	assert.Equal(t, "Kisii", g.FarmDistrict)
	assert.Nil(t, g.RemoteID)
	assert.True(t, g.Analysis.Data().IsInWaterBody.Bool())
	assert.True(t, g.Analysis.Data().ForestChangeLossAfter2020.Bool())

	_, err = Build(fc, analysis[:1], 9)
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestFeatures_RoundTrip(t *testing.T) {
	remote := "r1"
	farms := []store.Farm{
		{RemoteID: &remote, FarmerName: "A", CollectionSite: "S", FarmVillage: "V", FarmDistrict: "D", FarmSize: 1, Latitude: -0.6, Longitude: 34.7, PolygonType: store.PolygonTypePoint},
		polygonFarm("B", store.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, -0.5, 34.5),
	}
	fc := Features(farms, true)
	assert.Equal(t, "true", fc.GenerateGeoIDs)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, geojson.TypePoint, fc.Features[0].Geometry.Type)
	assert.Equal(t, geojson.TypePolygon, fc.Features[1].Geometry.Type)
	for _, f := range fc.Features {
		assert.False(t, f.Properties.Latitude.Set)
		assert.False(t, f.Properties.Longitude.Set)
	}

	rebuilt, err := Build(fc, []whisp.Indicators{{}, {}}, 1)
	require.NoError(t, err)
	assert.Equal(t, -0.6, rebuilt[0].Latitude)
	assert.Equal(t, "r1", *rebuilt[0].RemoteID)
	assert.Equal(t, farms[1].Polygon, rebuilt[1].Polygon)
	assert.Equal(t, -0.5, rebuilt[1].Latitude)
	assert.Equal(t, 34.5, rebuilt[1].Longitude)
}
