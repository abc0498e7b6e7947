package farms

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/terratrac/eudr-backend/internal/ingest"
	"github.com/terratrac/eudr-backend/internal/overlap"
	"github.com/terratrac/eudr-backend/internal/reconcile"
	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/utils"
	"go.uber.org/zap"
)

// MaxUploadBytes bounds an upload body.
const MaxUploadBytes = 32 << 20

// rawDataName is the file name recorded for uploads sent as a request body.
const rawDataName = "uploaded_data"

type pipelineResponse struct {
	Message string       `json:"message"`
	FileID  uint         `json:"file_id"`
	Data    []store.Farm `json:"data"`
}

// CreateFarmDataHandler ingests a multipart file upload (fields "file" and
// "format"), a JSON FeatureCollection body, or a raw body whose format is
// named by the "format" query parameter.
func CreateFarmDataHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	up, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	up.UploadedBy = utils.UploaderFromContext(r.Context())

	res, err := Orchestrator.Create(r.Context(), up)
	if err != nil {
		writePipelineError(w, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, pipelineResponse{
		Message: "File/data processed successfully",
		FileID:  res.FileID,
		Data:    res.Farms,
	})
}

var errNoUpload = errors.New("either a file or data is required")

func readUpload(r *http.Request) (ingest.Upload, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			return ingest.Upload{}, err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return ingest.Upload{}, errNoUpload
		}
		defer file.Close()
		body, err := io.ReadAll(file)
		if err != nil {
			return ingest.Upload{}, err
		}
		format := r.FormValue("format")
		if format == "" {
			format = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
		}
		f, err := ingest.ParseFormat(format)
		if err != nil {
			return ingest.Upload{}, err
		}
		return ingest.Upload{FileName: baseName(header.Filename), Format: f, Body: body}, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ingest.Upload{}, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return ingest.Upload{}, errNoUpload
	}
	f, err := ingest.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return ingest.Upload{}, err
	}
	return ingest.Upload{FileName: rawDataName, Format: f, Body: body}, nil
}

// baseName strips directories and everything from the first dot.
func baseName(name string) string {
	name = filepath.Base(name)
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

func RevalidateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID flexibleID `json:"file_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == 0 {
		writeError(w, http.StatusBadRequest, "File ID is required")
		return
	}

	res, err := Orchestrator.Revalidate(r.Context(), uint(req.FileID))
	if err != nil {
		writePipelineError(w, "revalidate", err)
		return
	}
	writeJSON(w, http.StatusCreated, pipelineResponse{
		Message: "File/data revalidated successfully",
		FileID:  res.FileID,
		Data:    res.Farms,
	})
}

// ListFarmsHandler lists farms from the caller's files, or every farm for
// staff.
func ListFarmsHandler(w http.ResponseWriter, r *http.Request) {
	uploader := utils.UploaderFromContext(r.Context())
	if utils.IsStaff(r.Context()) {
		uploader = ""
	}
	list, err := Store.ListFarms(r.Context(), uploader)
	if err != nil {
		writeLookupError(w, "list farms", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func FarmDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	farm, err := Store.GetFarm(r.Context(), id)
	if err != nil {
		writeLookupError(w, "farm detail", err)
		return
	}
	writeJSON(w, http.StatusOK, farm)
}

func FarmsByFileHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	list, err := Store.FarmsByFile(r.Context(), id)
	if err != nil {
		writeLookupError(w, "farms by file", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateFarmHandler applies the JSON body onto a stored farm. Ownership,
// analysis and timestamps are not editable.
func UpdateFarmHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	farm, err := Store.GetFarm(r.Context(), id)
	if err != nil {
		writeLookupError(w, "update farm", err)
		return
	}
	kept := *farm
	if err := json.NewDecoder(r.Body).Decode(farm); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Request Format")
		return
	}
	farm.ID = kept.ID
	farm.FileID = kept.FileID
	farm.Analysis = kept.Analysis
	farm.IsValidated = kept.IsValidated
	farm.ValidatedAt = kept.ValidatedAt
	farm.CreatedAt = kept.CreatedAt

	if err := reconcile.Check(farm); err != nil {
		writePipelineError(w, "update farm", err)
		return
	}
	if err := Store.UpdateFarm(r.Context(), farm); err != nil {
		writeLookupError(w, "update farm", err)
		return
	}
	writeJSON(w, http.StatusOK, farm)
}

func OverlappingFarmsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := Store.GetFile(r.Context(), id); err != nil {
		writeLookupError(w, "overlapping farms", err)
		return
	}
	list, err := Store.FarmsByFile(r.Context(), id)
	if err != nil {
		writeLookupError(w, "overlapping farms", err)
		return
	}
	found := overlap.Find(list, Logger.Named("overlap"))
	Logger.Debug("overlap check", zap.Uint("file_id", id), zap.Int("farms", len(list)), zap.Int("overlapping", len(found)))
	writeJSON(w, http.StatusOK, found)
}
