package farms

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terratrac/eudr-backend/internal/geojson"
	"github.com/terratrac/eudr-backend/internal/middleware"
	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/store/storetest"
	"github.com/terratrac/eudr-backend/internal/validation"
	"github.com/terratrac/eudr-backend/internal/whisp"
)

const twoFarms = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"farmer_name": "Ama", "farm_village": "V1", "farm_district": "D1", "farm_size": 1.5,
                    "latitude": 6.1, "longitude": -1.2, "collection_site": "S1"},
     "geometry": {"type": "Point", "coordinates": [-1.2, 6.1]}},
    {"type": "Feature",
     "properties": {"farmer_name": "Kofi", "farm_village": "V2", "farm_district": "D2", "farm_size": 5,
                    "latitude": 6.2, "longitude": -1.3, "collection_site": "S1"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[2,0],[2,2],[0,2],[0,0]]]}}
  ]
}`

type fixture struct {
	api   string
	store *store.Store
	whisp *httptest.Server
}

func setup(t *testing.T, whispStatus int) *fixture {
	t.Helper()
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if whispStatus != 0 {
			http.Error(w, "down", whispStatus)
			return
		}
		var fc geojson.FeatureCollection
		if err := json.NewDecoder(r.Body).Decode(&fc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([]map[string]any, len(fc.Features))
		for i := range fc.Features {
			out[i] = map[string]any{"EUDR_risk": "high", "WDPA": "yes"}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"features": out}})
	}))
	t.Cleanup(ws.Close)

	s := storetest.New(t)
	Wire(Deps{
		Store:         s,
		Analyzer:      whisp.NewClient(ws.URL, "key", 5*time.Second, s, nil),
		PublicBaseURL: "https://portal.example.org",
	})
	t.Cleanup(func() { Orchestrator.Wait() })

	r := chi.NewRouter()
	r.Use(middleware.Identity(roles{"kofi": "user", "ana": "admin"}))
	r.Mount("/api", SetupRoutes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{api: srv.URL + "/api", store: s, whisp: ws}
}

type roles map[string]string

func (m roles) RoleOf(_ context.Context, name string) (string, error) {
	if r, ok := m[name]; ok {
		return r, nil
	}
	return "", store.ErrNotFound
}

func (f *fixture) do(t *testing.T, method, path, user, contentType string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.api+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		req.Header.Set(middleware.UserHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func (f *fixture) postJSON(t *testing.T, path string, v any) (*http.Response, []byte) {
	t.Helper()
	var body []byte
	switch x := v.(type) {
	case string:
		body = []byte(x)
	default:
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	return f.do(t, http.MethodPost, path, "", "application/json", bytes.NewReader(body))
}

func TestCreate_JSONBody(t *testing.T) {
	f := setup(t, 0)

	resp, body := f.postJSON(t, "/farm/add/", twoFarms)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out pipelineResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Data, 2)
	for _, farm := range out.Data {
		a := farm.Analysis.Data()
		assert.Equal(t, store.RiskHigh, a.EUDRRiskLevel)
		assert.True(t, a.IsInProtectedAreas.Bool())
	}
	file, err := f.store.GetFile(context.Background(), out.FileID)
	require.NoError(t, err)
	assert.Equal(t, "uploaded_data.geojson", file.FileName)
	assert.Equal(t, "admin", file.UploadedBy)
}

func TestCreate_MultipartCSV(t *testing.T) {
	f := setup(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("format", "csv"))
	part, err := mw.CreateFormFile("file", "plots.csv")
	require.NoError(t, err)
	cw := csv.NewWriter(part)
	require.NoError(t, cw.WriteAll([][]string{
		validation.RequiredFields,
		{"Ama", "1.2", "S1", "D1", "V1", "6.1", "-1.2", ""},
	}))
	require.NoError(t, mw.Close())

	resp, body := f.do(t, http.MethodPost, "/farm/add", "kofi", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	files, err := f.store.ListFiles(context.Background(), "kofi")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "plots.csv", files[0].FileName)
}

func TestCreate_ValidationErrors(t *testing.T) {
	f := setup(t, 0)

	resp, body := f.postJSON(t, "/farm/add", `{"type":"Feature"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out.Errors)

	files, err := f.store.ListFiles(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCreate_EmptyBody(t *testing.T) {
	f := setup(t, 0)

	resp, _ := f.postJSON(t, "/farm/add", "  ")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreate_AnalysisDown(t *testing.T) {
	f := setup(t, http.StatusInternalServerError)

	resp, body := f.postJSON(t, "/farm/add", twoFarms)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Failed to validate data against global database"}`, string(body))

	files, err := f.store.ListFiles(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, files)
	farms, err := f.store.ListFarms(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, farms)
}

func TestRevalidate(t *testing.T) {
	f := setup(t, 0)

	resp, _ := f.postJSON(t, "/farm/revalidate", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.postJSON(t, "/farm/revalidate", `{"file_id": 99}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"No data found"}`, string(body))

	resp, body = f.postJSON(t, "/farm/add", twoFarms)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created pipelineResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = f.postJSON(t, "/farm/revalidate", fmt.Sprintf(`{"file_id": "%d"}`, created.FileID))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var again pipelineResponse
	require.NoError(t, json.Unmarshal(body, &again))
	assert.Len(t, again.Data, 2)
}

func TestListScoping(t *testing.T) {
	f := setup(t, 0)
	resp, _ := f.postJSON(t, "/farm/add", twoFarms)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var list []store.Farm
	_, body := f.do(t, http.MethodGet, "/farm/list", "", "", nil)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 2)

	_, body = f.do(t, http.MethodGet, "/farm/list", "kofi", "", nil)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Empty(t, list)

	_, body = f.do(t, http.MethodGet, "/farm/list", "ana", "", nil)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 2)

	var files []store.UploadedFile
	_, body = f.do(t, http.MethodGet, "/files/list", "kofi", "", nil)
	require.NoError(t, json.Unmarshal(body, &files))
	assert.Empty(t, files)

	resp, _ = f.do(t, http.MethodGet, "/farm/list/12345", "", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateFarm(t *testing.T) {
	f := setup(t, 0)
	_, body := f.postJSON(t, "/farm/add", twoFarms)
	var created pipelineResponse
	require.NoError(t, json.Unmarshal(body, &created))
	id := created.Data[0].ID

	resp, body := f.do(t, http.MethodPut, fmt.Sprintf("/farm/update/%d", id), "", "application/json",
		bytes.NewReader([]byte(`{"farmer_name": "Ama Mensah", "file_id": 777}`)))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	got, err := f.store.GetFarm(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ama Mensah", got.FarmerName)
	assert.Equal(t, created.FileID, *got.FileID)

	resp, body = f.do(t, http.MethodPut, fmt.Sprintf("/farm/update/%d", id), "", "application/json",
		bytes.NewReader([]byte(`{"farm_size": -1}`)))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "farm_size")
}

func TestOverlapping(t *testing.T) {
	f := setup(t, 0)
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"farmer_name":"A","farm_village":"V","farm_district":"D","farm_size":5,"latitude":0,"longitude":0},
	   "geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
	  {"type":"Feature","properties":{"farmer_name":"B","farm_village":"V","farm_district":"D","farm_size":5,"latitude":0,"longitude":0},
	   "geometry":{"type":"Polygon","coordinates":[[[1,1],[3,1],[3,3],[1,3],[1,1]]]}},
	  {"type":"Feature","properties":{"farmer_name":"C","farm_village":"V","farm_district":"D","farm_size":5,"latitude":0,"longitude":0},
	   "geometry":{"type":"Polygon","coordinates":[[[9,9],[10,9],[10,10],[9,10],[9,9]]]}}
	]}`
	_, body := f.postJSON(t, "/farm/add", doc)
	var created pipelineResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := f.do(t, http.MethodGet, fmt.Sprintf("/farm/overlapping/%d", created.FileID), "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []store.Farm
	require.NoError(t, json.Unmarshal(body, &list))
	names := []string{}
	for _, farm := range list {
		names = append(names, farm.FarmerName)
	}
	assert.ElementsMatch(t, []string{"A", "B"}, names)
}

func TestSyncRestore(t *testing.T) {
	f := setup(t, 0)

	resp, body := f.postJSON(t, "/farm/sync", `[{"device_id":"dev-9","collection_site":{"name":"Site Z","email":"z@example.org"},
	  "farms":[{"remote_id":"r-9","farmer_name":"Yaa","size":0.5}]}]`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"synced_remote_ids":["r-9"]}`, string(body))

	resp, body = f.postJSON(t, "/farm/restore", `{"email":"z@example.org"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var restored []struct {
		DeviceID string             `json:"device_id"`
		Farms    []store.FarmBackup `json:"farms"`
	}
	require.NoError(t, json.Unmarshal(body, &restored))
	require.Len(t, restored, 1)
	assert.Equal(t, "dev-9", restored[0].DeviceID)
	assert.Len(t, restored[0].Farms, 1)

	_, body = f.do(t, http.MethodGet, "/farm/sync/list/all", "", "", nil)
	var backups []store.FarmBackup
	require.NoError(t, json.Unmarshal(body, &backups))
	assert.Len(t, backups, 1)

	resp, _ = f.postJSON(t, "/farm/sync", `[{"device_id":"d","collection_site":{}}]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMapShare(t *testing.T) {
	f := setup(t, 0)
	_, body := f.postJSON(t, "/farm/add", twoFarms)
	var created pipelineResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := f.postJSON(t, "/map-share", map[string]any{"file-id": created.FileID})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var link struct {
		AccessCode string `json:"access_code"`
		MapLink    string `json:"map_link"`
	}
	require.NoError(t, json.Unmarshal(body, &link))
	assert.Contains(t, link.MapLink, "https://portal.example.org/map/share/?")

	path := fmt.Sprintf("/map-share/farms?file-id=%d&access-code=%s", created.FileID, link.AccessCode)
	resp, body = f.do(t, http.MethodGet, path, "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []store.Farm
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 2)

	resp, _ = f.do(t, http.MethodGet, fmt.Sprintf("/map-share/farms?file-id=%d&access-code=nope", created.FileID), "", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.postJSON(t, "/map-share", `{"file-id": 4242}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTemplates(t *testing.T) {
	f := setup(t, 0)

	resp, body := f.do(t, http.MethodGet, "/download-template?format=geojson", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".geojson")
	assert.Empty(t, validation.GeoJSON(body))

	resp, body = f.do(t, http.MethodGet, "/download-template?format=csv", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	assert.Empty(t, validation.CSV(rows))

	resp, body = f.do(t, http.MethodGet, "/download-template?format=xlsx", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.HasPrefix(body, []byte("PK")))

	resp, _ = f.do(t, http.MethodGet, "/download-template?format=shp", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWhispSettings(t *testing.T) {
	f := setup(t, 0)

	_, body := f.do(t, http.MethodGet, "/settings/whisp", "", "", nil)
	var got store.WhispSetting
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, whisp.DefaultChunkSize, got.ChunkSize)

	resp, _ := f.do(t, http.MethodPut, "/settings/whisp", "kofi", "application/json", bytes.NewReader([]byte(`{"chunk_size": 10}`)))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/settings/whisp", "", "application/json", bytes.NewReader([]byte(`{"chunk_size": 10}`)))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/settings/whisp", "ana", "application/json", bytes.NewReader([]byte(`{"chunk_size": 0}`)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/settings/whisp", "ana", "application/json", bytes.NewReader([]byte(`{"chunk_size": 10}`)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	n, err := f.store.ChunkSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}
