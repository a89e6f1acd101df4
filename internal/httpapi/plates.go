package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/ffcs/schema"
)

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Ping(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) campaigns(w http.ResponseWriter, r *http.Request) {
	user, _ := owner(r)
	out, err := h.Engine.Campaigns(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) registerPlate(w http.ResponseWriter, r *http.Request) {
	var in schema.PlateInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.Engine.RegisterPlate(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"_id": id})
}

func (h *Handler) plates(w http.ResponseWriter, r *http.Request) {
	user, campaign := owner(r)
	out, err := h.Engine.Plates(r.Context(), user, campaign)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) unselectedPlates(w http.ResponseWriter, r *http.Request) {
	user, _ := owner(r)
	out, err := h.Engine.UnselectedPlates(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) plate(w http.ResponseWriter, r *http.Request) {
	user, campaign := owner(r)
	out, err := h.Engine.Plate(r.Context(), user, campaign, chi.URLParam(r, "plateId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) deletePlate(w http.ResponseWriter, r *http.Request) {
	user, campaign := owner(r)
	out, err := h.Engine.DeletePlate(r.Context(), user, campaign, chi.URLParam(r, "plateId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) plateExists(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Engine.PlateExists(r.Context(), chi.URLParam(r, "plateId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": ok})
}

func (h *Handler) plateOwner(w http.ResponseWriter, r *http.Request) {
	out, err := h.Engine.PlateOwner(r.Context(), chi.URLParam(r, "plateId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type plateDoneReq struct {
	UserAccount string    `json:"userAccount"`
	CampaignID  string    `json:"campaignId"`
	LastImaged  time.Time `json:"lastImaged"`
	BatchID     *string   `json:"batchId"`
}

func (h *Handler) markPlateDone(w http.ResponseWriter, r *http.Request) {
	var req plateDoneReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.LastImaged.IsZero() {
		h.fail(w, r, schema.Invalid("lastImaged", "cannot be empty"))
		return
	}
	res, err := h.Engine.MarkPlateDone(r.Context(), req.UserAccount, req.CampaignID,
		chi.URLParam(r, "plateId"), req.LastImaged, req.BatchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// wellsForPlate narrows by every query parameter other than user and
// campaign. "true" and "false" compare as booleans, anything else as a
// string.
func (h *Handler) wellsForPlate(w http.ResponseWriter, r *http.Request) {
	user, campaign := owner(r)
	extra := make(map[string]any)
	for k, vs := range r.URL.Query() {
		if k == "user" || k == "campaign" || len(vs) == 0 {
			continue
		}
		switch vs[0] {
		case "true":
			extra[k] = true
		case "false":
			extra[k] = false
		default:
			extra[k] = vs[0]
		}
	}
	out, err := h.Engine.WellsForPlate(r.Context(), user, campaign, chi.URLParam(r, "plateId"), extra)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) isCrystalFished(w http.ResponseWriter, r *http.Request) {
	fished, err := h.Engine.IsCrystalFished(r.Context(), chi.URLParam(r, "plateId"), chi.URLParam(r, "well"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"fished": fished})
}

func (h *Handler) nextCrystalNumber(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.NextCrystalNumber(r.Context(), chi.URLParam(r, "plateId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"next": n})
}
