package whisp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terratrac/eudr-backend/internal/geojson"
)

type fixedSettings struct {
	n   int
	err error
}

func (f fixedSettings) ChunkSize(context.Context) (int, error) { return f.n, f.err }

// fakeWhisp echoes each feature's remote_id back as an indicator and records
// the chunk sizes it received.
type fakeWhisp struct {
	mu       sync.Mutex
	sizes    []int
	failOn   int
	apiKeys  []string
	requests int
}

func (f *fakeWhisp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	n := f.requests
	f.apiKeys = append(f.apiKeys, r.Header.Get("X-API-KEY"))
	f.mu.Unlock()

	if r.URL.Path != SubmitPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var body geojson.FeatureCollection
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.sizes = append(f.sizes, len(body.Features))
	f.mu.Unlock()

	if f.failOn == n {
		http.Error(w, "upstream failure", http.StatusBadGateway)
		return
	}

	out := make([]map[string]any, len(body.Features))
	for i, feat := range body.Features {
		out[i] = map[string]any{"id": feat.Properties.RemoteID.Value, "EUDR_risk": "low"}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"features": out}})
}

func collection(n int) geojson.FeatureCollection {
	features := make([]geojson.Feature, n)
	for i := range features {
		var p geojson.Properties
		p.RemoteID = geojson.Of(fmt.Sprintf("f%d", i))
		features[i] = geojson.Feature{Type: geojson.TypeFeature, Properties: p, Geometry: geojson.NewPoint(1, 2)}
	}
	return geojson.NewCollection(features)
}

func TestAnalyze_ChunksInOrder(t *testing.T) {
	fake := &fakeWhisp{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Minute, fixedSettings{n: 2}, nil)
	res, err := c.Analyze(context.Background(), collection(5))
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, fake.sizes)
	require.Len(t, res, 5)
	for i, ind := range res {
		assert.JSONEq(t, fmt.Sprintf("%q", fmt.Sprintf("f%d", i)), string(ind["id"]))
	}
	assert.Equal(t, []string{"secret", "secret", "secret"}, fake.apiKeys)
}

func TestAnalyze_NoFeatures(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "k", time.Second, nil, nil)
	_, err := c.Analyze(context.Background(), geojson.NewCollection(nil))
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestAnalyze_NonOKAbortsRemainingChunks(t *testing.T) {
	fake := &fakeWhisp{failOn: 2}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Minute, fixedSettings{n: 2}, nil)
	res, err := c.Analyze(context.Background(), collection(5))
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Nil(t, res)
	assert.Equal(t, 2, fake.requests)
}

func TestAnalyze_DefaultChunkSize(t *testing.T) {
	fake := &fakeWhisp{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	for _, settings := range []SettingsProvider{nil, fixedSettings{}, fixedSettings{err: errors.New("db down")}} {
		fake.sizes = nil
		c := NewClient(srv.URL, "k", time.Minute, settings, nil)
		_, err := c.Analyze(context.Background(), collection(DefaultChunkSize+1))
		require.NoError(t, err)
		assert.Equal(t, []int{DefaultChunkSize, 1}, fake.sizes)
	}
}

func TestAnalyze_MisalignedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"features":[{"EUDR_risk":"low"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Minute, nil, nil)
	_, err := c.Analyze(context.Background(), collection(2))
	assert.ErrorIs(t, err, ErrMisaligned)
}
