package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// ShifterUser is the user and campaign that fishing imports notify. The
// shifter feed is not tied to one user.
const ShifterUser = "shifter"

// DefaultXtalPrefix names crystals recorded outside a batch import.
const DefaultXtalPrefix = "xtal"

// shifterTimeLayout is the timestamp format of the shifter CSV export.
const shifterTimeLayout = "2006-01-02 15:04:05.999999999"

// ShifterRecord is one row of the shifter fishing report. Every value is
// the raw CSV text; empty strings mean null.
type ShifterRecord struct {
	PlateID             string `json:"plateId"`
	PlateRow            string `json:"plateRow"`
	PlateColumn         string `json:"plateColumn"`
	PlateSubwell        string `json:"plateSubwell"`
	Comment             string `json:"comment"`
	XtalID              string `json:"xtalId"`
	TimeOfArrival       string `json:"timeOfArrival"`
	TimeOfDeparture     string `json:"timeOfDeparture"`
	Duration            string `json:"duration"`
	DestinationName     string `json:"destinationName"`
	DestinationLocation string `json:"destinationLocation"`
	Barcode             string `json:"barcode"`
	ExternalComment     string `json:"externalComment"`
}

// Well returns the well the record refers to: row, column and subwell.
func (r ShifterRecord) Well() string {
	return r.PlateRow + r.PlateColumn + r.PlateSubwell
}

// IsCrystalFished reports whether the first well at plateID/well has been
// fished. An unknown well is not fished.
func (e *Engine) IsCrystalFished(ctx context.Context, plateID, well string) (bool, error) {
	wells, err := e.findWells(ctx, store.And(
		store.Eq("plateId", plateID),
		store.Eq("well", well),
	), store.Limit(1))
	if err != nil || len(wells) == 0 {
		return false, err
	}
	return wells[0].Fished, nil
}

// RecordFishingResult applies one shifter record to its well. A well that
// is already fished is never written again: the state is re-read first and
// the write itself is guarded on fished != true.
//
// A comment starting with "OK" marks the well fished and names the crystal
// <prefix>-<index>; "FAIL" marks it fished without a name; anything else
// leaves it unfished.
func (e *Engine) RecordFishingResult(ctx context.Context, rec ShifterRecord, index int, prefix string) (store.UpdateResult, error) {
	if prefix == "" {
		prefix = DefaultXtalPrefix
	}
	well := rec.Well()
	if err := requireNonEmpty("plateId", rec.PlateID, "well", well); err != nil {
		return store.UpdateResult{}, err
	}
	fished, err := e.IsCrystalFished(ctx, rec.PlateID, well)
	if err != nil || fished {
		return store.UpdateResult{}, err
	}

	set, err := shifterFields(rec)
	if err != nil {
		return store.UpdateResult{}, err
	}
	set["fished"], set["xtalName"] = fishingOutcome(rec.Comment, prefix, index)

	coll, err := e.wells()
	if err != nil {
		return store.UpdateResult{}, err
	}
	res, err := coll.UpdateOne(ctx, store.And(
		store.Eq("plateId", rec.PlateID),
		store.Eq("well", well),
		store.Ne("fished", true),
	), store.Set(set))
	if err != nil {
		return res, fmt.Errorf("fishing result for %s/%s: %w", rec.PlateID, well, err)
	}
	return res, nil
}

// ImportFishingResults applies a shifter report. Each successful fish gets
// the next crystal number of its campaign, prefixed with the campaign id.
// Records are applied in order and are not rolled back on failure.
func (e *Engine) ImportFishingResults(ctx context.Context, recs []ShifterRecord) (store.UpdateResult, error) {
	var total store.UpdateResult
	for i, rec := range recs {
		if rec.PlateID == "" {
			return total, schema.Invalid(fmt.Sprintf("[%d].plateId", i), "is missing in the shifter result file")
		}
	}
	for _, rec := range recs {
		next, err := e.NextCrystalNumber(ctx, rec.PlateID)
		if err != nil {
			return total, err
		}
		owner, err := e.PlateOwner(ctx, rec.PlateID)
		if err != nil {
			return total, err
		}
		res, err := e.RecordFishingResult(ctx, rec, next, owner.Campaign)
		if err != nil {
			return total, err
		}
		total.Add(res)
	}
	e.notes.Post(ctx, ShifterUser, ShifterUser, notify.TypeWells)
	return total, nil
}

// FishedCrystals returns the fished wells of user within campaign, most
// recently departed first.
func (e *Engine) FishedCrystals(ctx context.Context, user, campaign string) ([]schema.Well, error) {
	return e.findWells(ctx, owned(user, campaign, store.Eq("fished", true)),
		store.SortBy("shifterTimeOfDeparture", true))
}

// NextCrystalNumber returns one more than the highest crystal number in
// the campaign owning plateID, or 1 when none was named yet. Gaps left by
// failed fishes are not reused. The number is not reserved: concurrent
// imports for one campaign can be handed the same number.
func (e *Engine) NextCrystalNumber(ctx context.Context, plateID string) (int, error) {
	owner, err := e.PlateOwner(ctx, plateID)
	if err != nil {
		return 0, fmt.Errorf("cannot find the user for plate %s: %w", plateID, err)
	}
	crystals, err := e.FishedCrystals(ctx, owner.User, owner.Campaign)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, w := range crystals {
		if w.XtalName == nil {
			continue
		}
		n, ok := crystalNumber(*w.XtalName)
		if !ok {
			e.logger.Debug("crystal name without number", "xtalName", *w.XtalName, "well", w.ID)
			continue
		}
		highest = max(highest, n)
	}
	return highest + 1, nil
}

// WellRef addresses a well together with its owner.
type WellRef struct {
	ID          string `json:"_id" validate:"required"`
	UserAccount string `json:"userAccount" validate:"required"`
	CampaignID  string `json:"campaignId" validate:"required"`
}

// MarkExportedToXls flags wells as written to the data-collection sheet.
// The wells notification goes to the owner of the last well.
func (e *Engine) MarkExportedToXls(ctx context.Context, wells []WellRef) (store.UpdateResult, error) {
	var total store.UpdateResult
	if len(wells) == 0 {
		return total, schema.Invalid("wells", "cannot be empty")
	}
	for _, w := range wells {
		if err := schema.Check(w); err != nil {
			return total, err
		}
	}
	coll, err := e.wells()
	if err != nil {
		return total, err
	}
	for _, w := range wells {
		res, err := coll.UpdateOne(ctx, store.ByID(w.ID), store.Set(store.Doc{"exportedToXls": true}))
		if err != nil {
			return total, fmt.Errorf("mark well %s exported: %w", w.ID, err)
		}
		total.Add(res)
	}
	last := wells[len(wells)-1]
	e.notes.Post(ctx, last.UserAccount, last.CampaignID, notify.TypeWells)
	return total, nil
}

// fishingOutcome derives the fishing state from the shifter comment.
func fishingOutcome(comment, prefix string, index int) (bool, any) {
	switch {
	case strings.HasPrefix(comment, "OK"):
		return true, fmt.Sprintf("%s-%d", prefix, index)
	case strings.HasPrefix(comment, "FAIL"):
		return true, nil
	}
	return false, nil
}

// crystalNumber extracts the number after the last '-' of a crystal name.
func crystalNumber(name string) (int, bool) {
	i := strings.LastIndexByte(name, '-')
	n, err := strconv.Atoi(name[i+1:])
	return n, err == nil
}

// shifterFields converts the raw record into the well's shifter fields.
func shifterFields(rec ShifterRecord) (store.Doc, error) {
	arrival, err := shifterTime("timeOfArrival", rec.TimeOfArrival)
	if err != nil {
		return nil, err
	}
	departure, err := shifterTime("timeOfDeparture", rec.TimeOfDeparture)
	if err != nil {
		return nil, err
	}
	duration, err := shifterDuration(rec.Duration)
	if err != nil {
		return nil, err
	}
	return store.Doc{
		"shifterComment":         nullable(rec.Comment),
		"shifterXtalId":          nullable(rec.XtalID),
		"shifterTimeOfArrival":   arrival,
		"shifterTimeOfDeparture": departure,
		"shifterDuration":        duration,
		"puckBarcode":            nullable(rec.DestinationName),
		"puckPosition":           nullable(rec.DestinationLocation),
		"pinBarcode":             nullable(rec.Barcode),
		"puckType":               nullable(rec.ExternalComment),
	}, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func shifterTime(field, s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(shifterTimeLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, schema.Invalid(field, "expected %q: %v", "YYYY-MM-DD HH:MM:SS.ffffff", err)
	}
	return t, nil
}

// shifterDuration parses HH:MM:SS[.ffffff], MM:SS or plain seconds into
// seconds.
func shifterDuration(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return secs, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, schema.Invalid("duration", "cannot parse %q", s)
	}
	var total float64
	for i, p := range parts {
		var v float64
		var err error
		if i == len(parts)-1 {
			v, err = strconv.ParseFloat(p, 64)
		} else {
			var n int
			n, err = strconv.Atoi(p)
			v = float64(n)
		}
		if err != nil || v < 0 {
			return nil, schema.Invalid("duration", "cannot parse %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}
