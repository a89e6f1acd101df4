package httpapi

import (
	"net/http"
	"strconv"

	"github.com/jacentio/ffcs/lifecycle"
	"github.com/jacentio/ffcs/schema"
)

// recordFishingResult applies one shifter record. The crystal index and
// name prefix come from the index and prefix query parameters.
func (h *Handler) recordFishingResult(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	index, err := strconv.Atoi(q.Get("index"))
	if err != nil || index < 1 {
		h.fail(w, r, schema.Invalid("index", "must be a positive number"))
		return
	}
	var rec lifecycle.ShifterRecord
	if err := decode(r, &rec); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.RecordFishingResult(r.Context(), rec, index, q.Get("prefix"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) importFishingResults(w http.ResponseWriter, r *http.Request) {
	var recs []lifecycle.ShifterRecord
	if err := decode(r, &recs); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.ImportFishingResults(r.Context(), recs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) fishedCrystals(w http.ResponseWriter, r *http.Request) {
	user, campaign := owner(r)
	out, err := h.Engine.FishedCrystals(r.Context(), user, campaign)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) markExportedToXls(w http.ResponseWriter, r *http.Request) {
	var wells []lifecycle.WellRef
	if err := decode(r, &wells); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.MarkExportedToXls(r.Context(), wells)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
