package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// SoakTransfer is one row of an Echo transfer report.
type SoakTransfer struct {
	PlateID        string `json:"plateId" validate:"required"`
	WellEcho       string `json:"wellEcho" validate:"required"`
	TransferStatus string `json:"transferStatus" validate:"required"`
}

// ImportSoakTransfers marks the exported wells of a transfer report as
// done. All rows are taken to belong to the owner of the first row's
// plate. Rows are applied in order and are not rolled back on failure.
func (e *Engine) ImportSoakTransfers(ctx context.Context, rows []SoakTransfer) (store.UpdateResult, error) {
	var total store.UpdateResult
	if len(rows) == 0 {
		return total, schema.Invalid("wells_data", "cannot be empty")
	}
	for _, r := range rows {
		if err := schema.Check(r); err != nil {
			return total, err
		}
	}
	owner, err := e.PlateOwner(ctx, rows[0].PlateID)
	if err != nil {
		return total, err
	}
	for _, r := range rows {
		res, err := e.markSoakDone(ctx, owner.User, owner.Campaign, r)
		if err != nil {
			return total, err
		}
		total.Add(res)
	}
	e.notes.Post(ctx, owner.User, owner.Campaign, notify.TypeWells)
	return total, nil
}

// MarkSoakDone moves the exported wells at wellEcho of a plate to done and
// records the transfer status verbatim.
func (e *Engine) MarkSoakDone(ctx context.Context, user, campaign, plateID, wellEcho, transferStatus string) (store.UpdateResult, error) {
	if err := requireNonEmpty("userAccount", user, "campaignId", campaign); err != nil {
		return store.UpdateResult{}, err
	}
	row := SoakTransfer{PlateID: plateID, WellEcho: wellEcho, TransferStatus: transferStatus}
	if err := schema.Check(row); err != nil {
		return store.UpdateResult{}, err
	}
	return e.markSoakDone(ctx, user, campaign, row)
}

func (e *Engine) markSoakDone(ctx context.Context, user, campaign string, r SoakTransfer) (store.UpdateResult, error) {
	coll, err := e.wells()
	if err != nil {
		return store.UpdateResult{}, err
	}
	res, err := coll.UpdateMany(ctx, owned(user, campaign,
		store.Eq("plateId", r.PlateID),
		store.Eq("wellEcho", r.WellEcho),
		store.Eq("soakStatus", schema.StatusExported),
	), store.Set(store.Doc{
		"soakStatus":         schema.StatusDone,
		"soakTransferTime":   e.timestamp(),
		"soakTransferStatus": r.TransferStatus,
	}))
	if err != nil {
		return res, fmt.Errorf("soak done for %s/%s: %w", r.PlateID, r.WellEcho, err)
	}
	return res, nil
}

// SoakClock identifies a soaking well and when its transfer happened.
type SoakClock struct {
	ID               string    `json:"_id" validate:"required"`
	SoakTransferTime time.Time `json:"soakTransferTime"`
}

// UpdateSoakDurations sets soakDuration, in seconds since the transfer, on
// each well. A wells notification follows if any well changed.
func (e *Engine) UpdateSoakDurations(ctx context.Context, user, campaign string, wells []SoakClock) (store.UpdateResult, error) {
	var total store.UpdateResult
	for _, w := range wells {
		if err := schema.Check(w); err != nil {
			return total, err
		}
		if w.SoakTransferTime.IsZero() {
			return total, schema.Invalid("soakTransferTime", "cannot be empty")
		}
	}
	coll, err := e.wells()
	if err != nil {
		return total, err
	}
	now := e.timestamp()
	for _, w := range wells {
		elapsed := now.Sub(w.SoakTransferTime).Seconds()
		res, err := coll.UpdateOne(ctx, store.ByID(w.ID), store.Set(store.Doc{"soakDuration": elapsed}))
		if err != nil {
			return total, fmt.Errorf("soak duration of well %s: %w", w.ID, err)
		}
		total.Add(res)
	}
	if total.Modified > 0 {
		e.notes.Post(ctx, user, campaign, notify.TypeWells)
	}
	return total, nil
}
