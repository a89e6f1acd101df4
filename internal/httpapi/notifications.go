package httpapi

import (
	"net/http"
	"time"

	"github.com/jacentio/ffcs/schema"
)

// notifications lists the changes of a scope at or after the since query
// parameter (RFC 3339). A missing since lists everything.
func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	user, campaign := owner(r)
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			h.fail(w, r, schema.Invalid("since", "invalid RFC3339 time"))
			return
		}
		since = t
	}
	out, err := h.Engine.Notifications().Since(r.Context(), user, campaign, since)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type notificationReq struct {
	UserAccount      string `json:"userAccount" validate:"required"`
	CampaignID       string `json:"campaignId" validate:"required"`
	NotificationType string `json:"notification_type" validate:"required,oneof=plates wells library"`
}

func (h *Handler) appendNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := schema.Check(req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Engine.Notifications().Append(r.Context(), req.UserAccount, req.CampaignID, req.NotificationType); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
