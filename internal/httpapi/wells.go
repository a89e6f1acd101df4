package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/ffcs/lifecycle"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// registerWells accepts a single well object or an array of wells.
func (h *Handler) registerWells(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, r, schema.Invalid("body", "%v", err))
		return
	}
	body = bytes.TrimSpace(body)

	if len(body) > 0 && body[0] != '[' {
		var in schema.WellInput
		if err := json.Unmarshal(body, &in); err != nil {
			h.fail(w, r, schema.Invalid("body", "%v", err))
			return
		}
		id, err := h.Engine.RegisterWell(r.Context(), in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"_id": id})
		return
	}

	var ins []schema.WellInput
	if err := json.Unmarshal(body, &ins); err != nil {
		h.fail(w, r, schema.Invalid("body", "%v", err))
		return
	}
	ids, err := h.Engine.RegisterWells(r.Context(), ins)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string][]string{"_ids": ids})
}

func (h *Handler) allWells(w http.ResponseWriter, r *http.Request) {
	user, campaign := owner(r)
	out, err := h.Engine.AllWells(r.Context(), user, campaign)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) well(w http.ResponseWriter, r *http.Request) {
	out, err := h.Engine.Well(r.Context(), chi.URLParam(r, "wellId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type updateWellReq struct {
	UserAccount string    `json:"userAccount"`
	CampaignID  string    `json:"campaignId"`
	Fields      store.Doc `json:"fields"`
}

func (h *Handler) updateWell(w http.ResponseWriter, r *http.Request) {
	var req updateWellReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.UpdateFields(r.Context(), store.Wells, chi.URLParam(r, "wellId"),
		req.UserAccount, req.CampaignID, req.Fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type notesReq struct {
	UserAccount string `json:"userAccount"`
	CampaignID  string `json:"campaignId"`
	Notes       string `json:"notes"`
}

func (h *Handler) updateNotes(w http.ResponseWriter, r *http.Request) {
	var req notesReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.UpdateNotes(r.Context(), req.UserAccount, req.CampaignID, chi.URLParam(r, "wellId"), req.Notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) smiles(w http.ResponseWriter, r *http.Request) {
	user, campaign := owner(r)
	s, err := h.Engine.Smiles(r.Context(), user, campaign, r.URL.Query().Get("xtal"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*string{"smiles": s})
}

func (h *Handler) assignFragment(w http.ResponseWriter, r *http.Request) {
	var a lifecycle.FragmentAssignment
	if err := decode(r, &a); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.AssignFragment(r.Context(), a)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) removeFragment(w http.ResponseWriter, r *http.Request) {
	h.reset(w, r, h.Engine.RemoveFragment)
}

func (h *Handler) removeCryo(w http.ResponseWriter, r *http.Request) {
	h.reset(w, r, h.Engine.RemoveCryo)
}

func (h *Handler) removeRedesolve(w http.ResponseWriter, r *http.Request) {
	h.reset(w, r, h.Engine.RemoveRedesolve)
}

type resetFunc func(ctx context.Context, wellID string) (store.UpdateResult, error)

func (h *Handler) reset(w http.ResponseWriter, r *http.Request, fn resetFunc) {
	res, err := fn(r.Context(), chi.URLParam(r, "wellId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
