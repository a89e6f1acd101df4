package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/ffcs/store"
)

func (h *Handler) importLibrary(w http.ResponseWriter, r *http.Request) {
	var doc store.Doc
	if err := decode(r, &doc); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.Engine.ImportLibrary(r.Context(), doc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"_id": id})
}

func (h *Handler) libraries(w http.ResponseWriter, r *http.Request) {
	out, err := h.Engine.Libraries(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) library(w http.ResponseWriter, r *http.Request) {
	out, err := h.Engine.Library(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) insertCampaignLibrary(w http.ResponseWriter, r *http.Request) {
	var doc store.Doc
	if err := decode(r, &doc); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.Engine.InsertCampaignLibrary(r.Context(), doc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"_id": id})
}

func (h *Handler) campaignLibraries(w http.ResponseWriter, r *http.Request) {
	user, campaign := owner(r)
	out, err := h.Engine.CampaignLibraries(r.Context(), user, campaign)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) campaignLibrary(w http.ResponseWriter, r *http.Request) {
	out, err := h.Engine.CampaignLibrary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
