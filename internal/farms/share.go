package farms

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/terratrac/eudr-backend/internal/mapshare"
)

// MapShareHandler returns a share link for the file named by "file-id".
func MapShareHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID flexibleID `json:"file-id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == 0 {
		writeError(w, http.StatusBadRequest, "file-id is required")
		return
	}
	fileID := uint(req.FileID)
	if _, err := Store.GetFile(r.Context(), fileID); err != nil {
		writeLookupError(w, "map share", err)
		return
	}

	link, err := Shares.Link(r.Context(), fileID, baseURL(r))
	if err != nil {
		writeLookupError(w, "map share", err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// SharedFarmsHandler returns a file's farms to holders of its access code.
func SharedFarmsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.ParseUint(q.Get("file-id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "file-id is required")
		return
	}
	if err := Shares.Verify(r.Context(), uint(id), q.Get("access-code")); err != nil {
		if errors.Is(err, mapshare.ErrInvalidCode) {
			writeError(w, http.StatusForbidden, "Invalid or expired access code")
			return
		}
		writeLookupError(w, "shared farms", err)
		return
	}
	list, err := Store.FarmsByFile(r.Context(), uint(id))
	if err != nil {
		writeLookupError(w, "shared farms", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// baseURL prefers the configured public address over the request host.
func baseURL(r *http.Request) string {
	if PublicBaseURL != "" {
		return PublicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
