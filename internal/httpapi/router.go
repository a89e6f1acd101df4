// Package httpapi exposes the lifecycle, query and notification operations
// as a JSON API under /v1.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jacentio/ffcs/lifecycle"
	"github.com/jacentio/ffcs/query"
)

// Handler serves the API. Its fields must be set before NewRouter.
type Handler struct {
	Engine  *lifecycle.Engine
	Queries *query.Service
	Logger  *slog.Logger
}

// Options configure the router.
type Options struct {
	CORSAllowedOrigins []string
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(h *Handler, opts Options) http.Handler {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/campaigns", h.campaigns)

		r.Route("/plates", func(r chi.Router) {
			r.Post("/", h.registerPlate)
			r.Get("/", h.plates)
			r.Get("/unselected", h.unselectedPlates)
			r.Route("/{plateId}", func(r chi.Router) {
				r.Get("/", h.plate)
				r.Delete("/", h.deletePlate)
				r.Get("/exists", h.plateExists)
				r.Get("/owner", h.plateOwner)
				r.Post("/done", h.markPlateDone)
				r.Get("/wells", h.wellsForPlate)
				r.Get("/wells/{well}/fished", h.isCrystalFished)
				r.Get("/next-crystal", h.nextCrystalNumber)
			})
		})

		r.Route("/wells", func(r chi.Router) {
			r.Post("/", h.registerWells)
			r.Get("/", h.allWells)
			r.Route("/{wellId}", func(r chi.Router) {
				r.Get("/", h.well)
				r.Patch("/", h.updateWell)
				r.Put("/notes", h.updateNotes)
				r.Delete("/fragment", h.removeFragment)
				r.Delete("/cryo", h.removeCryo)
				r.Delete("/redesolve", h.removeRedesolve)
			})
		})
		r.Get("/smiles", h.smiles)
		r.Post("/fragments", h.assignFragment)

		r.Post("/exports/{pipeline}/selected", h.exportSelected)
		r.Post("/exports/{pipeline}/bulk", h.exportBulk)

		r.Post("/soak/transfers", h.importSoakTransfers)
		r.Post("/soak/done", h.markSoakDone)
		r.Post("/soak/durations", h.updateSoakDurations)
		r.Post("/cryo", h.activateCryo)
		r.Post("/redesolve", h.applyRedesolve)

		r.Post("/fishing", h.recordFishingResult)
		r.Post("/fishing/import", h.importFishingResults)
		r.Get("/crystals", h.fishedCrystals)
		r.Post("/xls-exports", h.markExportedToXls)

		r.Route("/libraries", func(r chi.Router) {
			r.Post("/", h.importLibrary)
			r.Get("/", h.libraries)
			r.Get("/{id}", h.library)
		})
		r.Route("/campaign-libraries", func(r chi.Router) {
			r.Post("/", h.insertCampaignLibrary)
			r.Get("/", h.campaignLibraries)
			r.Get("/{id}", h.campaignLibrary)
		})

		r.Get("/reports/{report}", h.report)

		r.Get("/notifications", h.notifications)
		r.Post("/notifications", h.appendNotification)

		r.Route("/admin/{collection}", func(r chi.Router) {
			r.Delete("/{id}", h.deleteByID)
			r.Post("/delete", h.deleteWhere)
		})
	})

	return r
}
