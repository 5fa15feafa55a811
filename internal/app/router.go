package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/juckphai/salejuck/internal/auth"
	"github.com/juckphai/salejuck/internal/backup"
	"github.com/juckphai/salejuck/internal/inventory"
	"github.com/juckphai/salejuck/internal/masterdata"
	"github.com/juckphai/salejuck/internal/sales"
	syncpkg "github.com/juckphai/salejuck/internal/sync"
	"github.com/juckphai/salejuck/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService *auth.Service

	AuthHandler       *auth.Handler
	SyncHandler       *syncpkg.Handler
	InventoryHandler  *inventory.Handler
	SalesHandler      *sales.Handler
	MasterDataHandler *masterdata.Handler
	BackupHandler     *backup.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router. Everything except health and login
// sits behind a bearer token; destructive surfaces additionally require
// the admin role.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthService.RequireAuth)

		r.Route("/sync", params.SyncHandler.MountRoutes)
		r.Route("/sales", params.SalesHandler.MountRoutes)
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthService.RequireAdmin)

			r.Route("/inventory", params.InventoryHandler.MountRoutes)
			r.Route("/admin/masterdata", params.MasterDataHandler.MountAdminRoutes)
			r.Route("/backup", params.BackupHandler.MountRoutes)
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
