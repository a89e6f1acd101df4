package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/ffcs/schema"
)

type reportFunc func(ctx context.Context, r *http.Request, user, campaign string) (any, error)

// reports maps the {report} path parameter to a read-only query.
func (h *Handler) reports() map[string]reportFunc {
	q := h.Queries
	return map[string]reportFunc{
		"plates-to-soak": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			return q.PlatesToSoak(ctx, u, c)
		},
		"plates-to-cryo": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			return q.PlatesToCryoSoak(ctx, u, c)
		},
		"plates-for-redesolve": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			return q.PlatesForRedesolve(ctx, u, c)
		},
		"cryo-usage": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			return q.CryoUsage(ctx, u, c)
		},
		"solvent-usage": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			return q.SolventUsage(ctx, u, c)
		},
		"unsoaked-count": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			n, err := q.UnsoakedWellCount(ctx, u, c)
			return map[string]int64{"count": n}, err
		},
		"library-usage": func(ctx context.Context, r *http.Request, u, c string) (any, error) {
			library := r.URL.Query().Get("library")
			if library == "" {
				return nil, schema.Invalid("library", "cannot be empty")
			}
			n, err := q.LibraryUsageCount(ctx, u, c, library)
			return map[string]int64{"count": n}, err
		},
		"soaked-not-fished": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			return q.SoakedNotFished(ctx, u, c)
		},
		"fished-wells": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			return q.AllFishedWells(ctx, u, c)
		},
		"pending-xls": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			return q.WellsPendingXlsExport(ctx, u, c)
		},
		"not-matched": func(ctx context.Context, _ *http.Request, u, c string) (any, error) {
			return q.NotMatchedWells(ctx, u, c)
		},
	}
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "report")
	fn, ok := h.reports()[name]
	if !ok {
		h.fail(w, r, schema.Invalid("report", "unknown report %q", name))
		return
	}
	user, campaign := owner(r)
	if user == "" || campaign == "" {
		h.fail(w, r, schema.Invalid("user", "user and campaign are required"))
		return
	}
	out, err := fn(r.Context(), r, user, campaign)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
