package farms

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/terratrac/eudr-backend/internal/ingest"
	"github.com/terratrac/eudr-backend/internal/reconcile"
	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/whisp"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePipelineError maps orchestrator errors onto the response shapes
// clients expect: an error list, a field error map or a single message.
func writePipelineError(w http.ResponseWriter, op string, err error) {
	var ve *ingest.ValidationError
	var fe reconcile.FieldErrors
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": ve.Errors})
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, fe)
	case errors.Is(err, ingest.ErrNoData):
		writeError(w, http.StatusBadRequest, "No data found")
	case errors.Is(err, whisp.ErrNoFeatures):
		writeError(w, http.StatusBadRequest, whisp.ErrNoFeatures.Error())
	case errors.Is(err, whisp.ErrValidationFailed), errors.Is(err, whisp.ErrMisaligned), errors.Is(err, reconcile.ErrMisaligned):
		writeError(w, http.StatusBadRequest, "Failed to validate data against global database")
	default:
		Logger.Error("request failed", zap.String("operation", op), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// writeLookupError answers 404 for missing rows and 500 otherwise.
func writeLookupError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	Logger.Error("lookup failed", zap.String("operation", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Server error")
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return uint(id), true
}

// flexibleID accepts a JSON number or numeric string.
type flexibleID uint

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n = json.Number(s)
	}
	v, err := strconv.ParseUint(string(n), 10, 64)
	if err != nil {
		return err
	}
	*f = flexibleID(v)
	return nil
}
