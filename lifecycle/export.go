package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// pipeline describes the fields one export pipeline guards and stamps.
type pipeline struct {
	name       string
	flag       string // well must carry flag=true to be exported
	status     string
	exportTime string
	// plateSet is applied to the plate on a bulk export.
	plateSet func(ts time.Time) store.Doc
}

var (
	soakPipeline = pipeline{
		name:       "soak",
		flag:       "libraryAssigned",
		status:     "soakStatus",
		exportTime: "soakExportTime",
		plateSet: func(ts time.Time) store.Doc {
			return store.Doc{"soakExportTime": ts, "soakStatus": schema.StatusExported}
		},
	}
	cryoPipeline = pipeline{
		name:       "cryo",
		flag:       "cryoProtection",
		status:     "cryoStatus",
		exportTime: "cryoExportTime",
		plateSet: func(time.Time) store.Doc {
			return store.Doc{"cryoProtection": true}
		},
	}
	redesolvePipeline = pipeline{
		name:       "redesolve",
		flag:       "redesolveApplied",
		status:     "redesolveStatus",
		exportTime: "redesolveExportTime",
		plateSet: func(time.Time) store.Doc {
			return store.Doc{"redesolveApplied": true}
		},
	}
)

// exported is the update that moves a well to exported at ts.
func (p pipeline) exported(ts time.Time) store.Update {
	return store.Set(store.Doc{p.exportTime: ts, p.status: schema.StatusExported})
}

// BulkExport stamps every eligible well of one plate with an export time.
type BulkExport struct {
	PlateID  string    `json:"_id" validate:"required"`
	SoakTime time.Time `json:"soak_time"`
}

// ExportResult reports the well and plate updates of a bulk export.
type ExportResult struct {
	Wells  store.UpdateResult `json:"wells"`
	Plates store.UpdateResult `json:"plates"`
}

// ExportSoakSelected exports the pending, library-assigned wells of the
// given plates. Wells already exported are not touched again.
func (e *Engine) ExportSoakSelected(ctx context.Context, user, campaign string, plateIDs []string) (store.UpdateResult, error) {
	return e.exportSelected(ctx, soakPipeline, user, campaign, plateIDs)
}

// ExportCryoSelected exports the pending, cryo-protected wells of the given
// plates. Wells without cryo protection are never touched.
func (e *Engine) ExportCryoSelected(ctx context.Context, user, campaign string, plateIDs []string) (store.UpdateResult, error) {
	return e.exportSelected(ctx, cryoPipeline, user, campaign, plateIDs)
}

// ExportRedesolveSelected exports the pending redesolve wells of the given
// plates.
func (e *Engine) ExportRedesolveSelected(ctx context.Context, user, campaign string, plateIDs []string) (store.UpdateResult, error) {
	return e.exportSelected(ctx, redesolvePipeline, user, campaign, plateIDs)
}

func (e *Engine) exportSelected(ctx context.Context, p pipeline, user, campaign string, plateIDs []string) (store.UpdateResult, error) {
	var total store.UpdateResult
	if err := requireNonEmpty("userAccount", user, "campaignId", campaign); err != nil {
		return total, err
	}
	for i, id := range plateIDs {
		if id == "" {
			return total, schema.Invalid(fmt.Sprintf("data[%d].plateId", i), "cannot be empty")
		}
	}
	coll, err := e.wells()
	if err != nil {
		return total, err
	}

	update := p.exported(e.timestamp())
	for _, plateID := range plateIDs {
		res, err := coll.UpdateMany(ctx, owned(user, campaign,
			store.Eq("plateId", plateID),
			store.IsNull(p.exportTime),
			store.Eq(p.flag, true),
			store.Eq(p.status, schema.StatusPending),
		), update)
		if err != nil {
			return total, fmt.Errorf("%s export of plate %s: %w", p.name, plateID, err)
		}
		total.Add(res)
	}
	e.notes.Post(ctx, user, campaign, notify.TypeWells)
	return total, nil
}

// ExportSoakBulk stamps each plate's unexported library-assigned wells with
// its soak time, then marks the plate exported. Repeating a call is a
// no-op.
func (e *Engine) ExportSoakBulk(ctx context.Context, exports []BulkExport) (ExportResult, error) {
	return e.exportBulk(ctx, soakPipeline, exports)
}

// ExportCryoBulk stamps each plate's unexported cryo-protected wells and
// flags the plate as cryo protected.
func (e *Engine) ExportCryoBulk(ctx context.Context, exports []BulkExport) (ExportResult, error) {
	return e.exportBulk(ctx, cryoPipeline, exports)
}

// ExportRedesolveBulk stamps each plate's unexported redesolve wells and
// flags the plate as redesolved.
func (e *Engine) ExportRedesolveBulk(ctx context.Context, exports []BulkExport) (ExportResult, error) {
	return e.exportBulk(ctx, redesolvePipeline, exports)
}

func (e *Engine) exportBulk(ctx context.Context, p pipeline, exports []BulkExport) (ExportResult, error) {
	var out ExportResult
	if len(exports) == 0 {
		return out, schema.Invalid("data", "must contain at least one plate")
	}
	for _, x := range exports {
		if err := schema.Check(x); err != nil {
			return out, err
		}
		if x.SoakTime.IsZero() {
			return out, schema.Invalid("soak_time", "cannot be empty")
		}
	}
	wells, err := e.wells()
	if err != nil {
		return out, err
	}
	plates, err := e.plates()
	if err != nil {
		return out, err
	}

	for _, x := range exports {
		ts := x.SoakTime.UTC()
		res, err := wells.UpdateMany(ctx, store.And(
			store.Eq("plateId", x.PlateID),
			store.IsNull(p.exportTime),
			store.Eq(p.flag, true),
		), p.exported(ts))
		if err != nil {
			return out, fmt.Errorf("%s bulk export of plate %s: %w", p.name, x.PlateID, err)
		}
		out.Wells.Add(res)

		res, err = plates.UpdateOne(ctx, store.Eq("plateId", x.PlateID), store.Set(p.plateSet(ts)))
		if err != nil {
			return out, fmt.Errorf("%s bulk export of plate %s: %w", p.name, x.PlateID, err)
		}
		out.Plates.Add(res)
	}
	return out, nil
}
