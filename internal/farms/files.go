package farms

import (
	"net/http"
	"sort"

	"github.com/terratrac/eudr-backend/internal/utils"
)

// ListFilesHandler lists the caller's uploaded files, or every file for
// staff.
func ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	uploader := utils.UploaderFromContext(r.Context())
	if utils.IsStaff(r.Context()) {
		uploader = ""
	}
	list, err := Store.ListFiles(r.Context(), uploader)
	if err != nil {
		writeLookupError(w, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func FileDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	f, err := Store.GetFile(r.Context(), id)
	if err != nil {
		writeLookupError(w, "file detail", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// ListArchiveHandler lists archived uploads, newest first.
func ListArchiveHandler(w http.ResponseWriter, r *http.Request) {
	objs, err := Archive.List(r.Context())
	if err != nil {
		writeLookupError(w, "list archive", err)
		return
	}
	sort.SliceStable(objs, func(i, j int) bool { return objs[i].LastModified.After(objs[j].LastModified) })
	writeJSON(w, http.StatusOK, objs)
}
