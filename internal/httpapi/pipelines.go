package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/ffcs/lifecycle"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

type (
	selectedExport func(ctx context.Context, user, campaign string, plateIDs []string) (store.UpdateResult, error)
	bulkExport     func(ctx context.Context, exports []lifecycle.BulkExport) (lifecycle.ExportResult, error)
)

// exporters resolves the {pipeline} path parameter.
func (h *Handler) exporters(pipeline string) (selectedExport, bulkExport, bool) {
	switch pipeline {
	case "soak":
		return h.Engine.ExportSoakSelected, h.Engine.ExportSoakBulk, true
	case "cryo":
		return h.Engine.ExportCryoSelected, h.Engine.ExportCryoBulk, true
	case "redesolve":
		return h.Engine.ExportRedesolveSelected, h.Engine.ExportRedesolveBulk, true
	}
	return nil, nil, false
}

type selectedExportReq struct {
	UserAccount string   `json:"userAccount"`
	CampaignID  string   `json:"campaignId"`
	Plates      []string `json:"plates"`
}

func (h *Handler) exportSelected(w http.ResponseWriter, r *http.Request) {
	pipeline := chi.URLParam(r, "pipeline")
	selected, _, ok := h.exporters(pipeline)
	if !ok {
		h.fail(w, r, schema.Invalid("pipeline", "unknown pipeline %q", pipeline))
		return
	}
	var req selectedExportReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := selected(r.Context(), req.UserAccount, req.CampaignID, req.Plates)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) exportBulk(w http.ResponseWriter, r *http.Request) {
	pipeline := chi.URLParam(r, "pipeline")
	_, bulk, ok := h.exporters(pipeline)
	if !ok {
		h.fail(w, r, schema.Invalid("pipeline", "unknown pipeline %q", pipeline))
		return
	}
	var exports []lifecycle.BulkExport
	if err := decode(r, &exports); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := bulk(r.Context(), exports)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) importSoakTransfers(w http.ResponseWriter, r *http.Request) {
	var rows []lifecycle.SoakTransfer
	if err := decode(r, &rows); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.ImportSoakTransfers(r.Context(), rows)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type soakDoneReq struct {
	UserAccount string `json:"userAccount"`
	CampaignID  string `json:"campaignId"`
	lifecycle.SoakTransfer
}

func (h *Handler) markSoakDone(w http.ResponseWriter, r *http.Request) {
	var req soakDoneReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.MarkSoakDone(r.Context(), req.UserAccount, req.CampaignID,
		req.PlateID, req.WellEcho, req.TransferStatus)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type soakDurationsReq struct {
	UserAccount string                `json:"userAccount"`
	CampaignID  string                `json:"campaignId"`
	Wells       []lifecycle.SoakClock `json:"wells"`
}

func (h *Handler) updateSoakDurations(w http.ResponseWriter, r *http.Request) {
	var req soakDurationsReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.UpdateSoakDurations(r.Context(), req.UserAccount, req.CampaignID, req.Wells)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) activateCryo(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.CryoRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.ActivateCryo(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) applyRedesolve(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.RedesolveRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Engine.ApplyRedesolve(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
