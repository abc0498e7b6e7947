package farms

import (
	"encoding/json"
	"net/http"

	"github.com/terratrac/eudr-backend/internal/store"
	"github.com/terratrac/eudr-backend/internal/utils"
	"github.com/terratrac/eudr-backend/internal/whisp"
	"go.uber.org/zap"
)

// MaxChunkSize caps the configurable WHISP chunk size.
const MaxChunkSize = 5000

func GetWhispSettingsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := Store.ChunkSize(r.Context())
	if err != nil {
		writeLookupError(w, "whisp settings", err)
		return
	}
	if n <= 0 {
		n = whisp.DefaultChunkSize
	}
	writeJSON(w, http.StatusOK, store.WhispSetting{ChunkSize: n})
}

// UpdateWhispSettingsHandler changes the chunk size. Staff only.
func UpdateWhispSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if !utils.IsStaff(r.Context()) {
		writeError(w, http.StatusForbidden, "Forbidden: admin access required")
		return
	}
	var req struct {
		ChunkSize int `json:"chunk_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Request Format")
		return
	}
	if req.ChunkSize < 1 || req.ChunkSize > MaxChunkSize {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"chunk_size": {"must be between 1 and 5000"}})
		return
	}
	s, err := Store.SetChunkSize(r.Context(), req.ChunkSize)
	if err != nil {
		writeLookupError(w, "whisp settings", err)
		return
	}
	Logger.Info("whisp chunk size changed", zap.Int("chunk_size", s.ChunkSize), zap.String("by", utils.UploaderFromContext(r.Context())))
	writeJSON(w, http.StatusOK, s)
}
