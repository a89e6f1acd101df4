package lifecycle

import (
	"context"
	"fmt"

	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// CryoRequest adds cryoprotectant to a well.
type CryoRequest struct {
	UserAccount          string  `json:"user_account" validate:"required"`
	CampaignID           string  `json:"campaign_id" validate:"required"`
	PlateID              string  `json:"target_plate" validate:"required"`
	Well                 string  `json:"target_well" validate:"required"`
	DesiredConcentration float64 `json:"cryo_desired_concentration"`
	TransferVolume       float64 `json:"cryo_transfer_volume"`
	SourceWell           string  `json:"cryo_source_well"`
	Name                 string  `json:"cryo_name"`
	Barcode              string  `json:"cryo_barcode"`
}

// RedesolveRequest re-dissolves the compound of a well in a new solvent.
type RedesolveRequest struct {
	UserAccount    string  `json:"user_account" validate:"required"`
	CampaignID     string  `json:"campaign_id" validate:"required"`
	PlateID        string  `json:"target_plate" validate:"required"`
	Well           string  `json:"target_well" validate:"required"`
	TransferVolume float64 `json:"redesolve_transfer_volume"`
	SourceWell     string  `json:"redesolve_source_well"`
	Name           string  `json:"redesolve_name"`
	Barcode        string  `json:"redesolve_barcode"`
}

// ActivateCryo sets cryo protection on a well and moves its cryo status to
// pending. It fails with store.ErrConditionFailed when no well matches.
func (e *Engine) ActivateCryo(ctx context.Context, r CryoRequest) (store.UpdateResult, error) {
	if err := schema.Check(r); err != nil {
		return store.UpdateResult{}, err
	}
	coll, err := e.wells()
	if err != nil {
		return store.UpdateResult{}, err
	}
	res, err := coll.UpdateMany(ctx, owned(r.UserAccount, r.CampaignID,
		store.Eq("plateId", r.PlateID),
		store.Eq("well", r.Well),
	), store.Set(store.Doc{
		"cryoProtection":           true,
		"cryoDesiredConcentration": r.DesiredConcentration,
		"cryoTransferVolume":       r.TransferVolume,
		"cryoSourceWell":           r.SourceWell,
		"cryoName":                 r.Name,
		"cryoBarcode":              r.Barcode,
		"cryoStatus":               schema.StatusPending,
	}))
	if err != nil {
		return res, err
	}
	if res.Matched == 0 {
		return res, fmt.Errorf("%w: well %s on plate %s; cryoprotection not added",
			store.ErrConditionFailed, r.Well, r.PlateID)
	}
	return res, nil
}

// RemoveCryo resets every cryo field of a well. It is always allowed.
func (e *Engine) RemoveCryo(ctx context.Context, wellID string) (store.UpdateResult, error) {
	return e.resetWell(ctx, wellID, store.Doc{
		"cryoProtection":           false,
		"cryoName":                 nil,
		"cryoBarcode":              nil,
		"cryoSourceWell":           nil,
		"cryoDesiredConcentration": nil,
		"cryoTransferVolume":       nil,
		"cryoStatus":               nil,
		"cryoExportTime":           nil,
	})
}

// ApplyRedesolve records a new-solvent transfer on a well and moves its
// redesolve status to pending. No matching well is a no-op.
func (e *Engine) ApplyRedesolve(ctx context.Context, r RedesolveRequest) (store.UpdateResult, error) {
	if err := schema.Check(r); err != nil {
		return store.UpdateResult{}, err
	}
	coll, err := e.wells()
	if err != nil {
		return store.UpdateResult{}, err
	}
	return coll.UpdateMany(ctx, owned(r.UserAccount, r.CampaignID,
		store.Eq("plateId", r.PlateID),
		store.Eq("well", r.Well),
	), store.Set(store.Doc{
		"redesolveApplied":        true,
		"redesolveTransferVolume": r.TransferVolume,
		"redesolveSourceWell":     r.SourceWell,
		"redesolveName":           r.Name,
		"redesolveBarcode":        r.Barcode,
		"redesolveStatus":         schema.StatusPending,
	}))
}

// RemoveRedesolve resets every redesolve field of a well.
func (e *Engine) RemoveRedesolve(ctx context.Context, wellID string) (store.UpdateResult, error) {
	return e.resetWell(ctx, wellID, store.Doc{
		"redesolveApplied":        false,
		"redesolveName":           nil,
		"redesolveBarcode":        nil,
		"redesolveSourceWell":     nil,
		"redesolveTransferVolume": nil,
		"redesolveStatus":         nil,
		"redesolveExportTime":     nil,
	})
}

func (e *Engine) resetWell(ctx context.Context, wellID string, fields store.Doc) (store.UpdateResult, error) {
	if err := requireNonEmpty("well_id", wellID); err != nil {
		return store.UpdateResult{}, err
	}
	coll, err := e.wells()
	if err != nil {
		return store.UpdateResult{}, err
	}
	return coll.UpdateOne(ctx, store.ByID(wellID), store.Set(fields))
}
