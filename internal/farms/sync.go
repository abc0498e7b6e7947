package farms

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/terratrac/eudr-backend/internal/backup"
	"github.com/terratrac/eudr-backend/internal/store"
)

func SyncHandler(w http.ResponseWriter, r *http.Request) {
	var entries []backup.SiteBackup
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Request Format")
		return
	}
	ids, err := Backups.Sync(r.Context(), entries)
	if err != nil {
		if errors.Is(err, backup.ErrMissingSiteName) || errors.Is(err, backup.ErrMissingRemoteID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writePipelineError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"synced_remote_ids": ids})
}

func RestoreHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID    string `json:"device_id"`
		PhoneNumber string `json:"phone_number"`
		Email       string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Request Format")
		return
	}
	out, err := Backups.Restore(r.Context(), store.SiteQuery{
		DeviceID:    req.DeviceID,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
	})
	if err != nil {
		writeLookupError(w, "restore", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func ListBackupsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := Store.ListBackups(r.Context(), 0)
	if err != nil {
		writeLookupError(w, "list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func SiteBackupsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	list, err := Store.ListBackups(r.Context(), id)
	if err != nil {
		writeLookupError(w, "site backups", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func ListSitesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := Store.ListSites(r.Context())
	if err != nil {
		writeLookupError(w, "list sites", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
