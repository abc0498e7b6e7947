package farms

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.StripSlashes)

	r.Post("/farm/add", CreateFarmDataHandler)
	r.Post("/farm/revalidate", RevalidateHandler)
	r.Put("/farm/update/{id}", UpdateFarmHandler)
	r.Get("/farm/list", ListFarmsHandler)
	r.Get("/farm/map/list", ListFarmsHandler)
	r.Get("/farm/list/{id}", FarmDetailHandler)
	r.Get("/farm/list/file/{id}", FarmsByFileHandler)
	r.Get("/farm/overlapping/{id}", OverlappingFarmsHandler)

	r.Post("/farm/sync", SyncHandler)
	r.Post("/farm/restore", RestoreHandler)
	r.Get("/farm/sync/list/all", ListBackupsHandler)
	r.Get("/farm/sync/list/{id}", SiteBackupsHandler)
	r.Get("/collection_sites/list", ListSitesHandler)

	r.Get("/files/list", ListFilesHandler)
	r.Get("/files/list/all", ListArchiveHandler)
	r.Get("/files/list/{id}", FileDetailHandler)
	r.Get("/download-template", TemplateHandler)

	r.Post("/map-share", MapShareHandler)
	r.Get("/map-share/farms", SharedFarmsHandler)

	r.Get("/settings/whisp", GetWhispSettingsHandler)
	r.Put("/settings/whisp", UpdateWhispSettingsHandler)

	return r
}
