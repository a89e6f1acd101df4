package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// LibraryRef identifies the campaign library a fragment comes from.
type LibraryRef struct {
	ID             string `json:"_id" validate:"required"`
	LibraryName    string `json:"libraryName"`
	LibraryBarcode string `json:"libraryBarcode"`
}

// Fragment is one compound of a campaign library.
type Fragment struct {
	CompoundCode string `json:"compoundCode" validate:"required"`
	Smiles       string `json:"smiles"`
	// Well is the source well of the compound in the library plate.
	Well                 string `json:"well" validate:"required"`
	LibraryConcentration any    `json:"libraryConcentration,omitempty"`
}

// FragmentAssignment attaches a fragment to a well.
type FragmentAssignment struct {
	WellID               string     `json:"well_id" validate:"required"`
	Library              LibraryRef `json:"library"`
	Fragment             Fragment   `json:"fragment"`
	SolventVolume        float64    `json:"solvent_volume"`
	LigandTransferVolume float64    `json:"ligand_transfer_volume"`
	LigandConcentration  float64    `json:"ligand_concentration"`
	SolventTest          bool       `json:"is_solvent_test"`
}

const fragmentsField = "fragments"

// usedFlag addresses the used flag of one fragment in a campaign library.
func usedFlag(compoundCode string, used bool) store.Update {
	return store.Update{Elem: &store.ElemSet{
		Array:      fragmentsField,
		MatchField: "compoundCode",
		MatchValue: compoundCode,
		Field:      "used",
		Value:      used,
	}}
}

// AssignFragment sets the library fields of a well and moves its soak to
// pending. Unless the assignment is a solvent test, the fragment is then
// marked used in the campaign library. The returned result is the well
// update's. An unknown well matches nothing and claims no fragment.
func (e *Engine) AssignFragment(ctx context.Context, a FragmentAssignment) (store.UpdateResult, error) {
	if err := schema.Check(a); err != nil {
		return store.UpdateResult{}, err
	}
	concentration := a.Fragment.LibraryConcentration
	if concentration == nil {
		concentration = "n/a"
	}
	wellSet := store.Doc{
		"libraryName":          a.Library.LibraryName,
		"libraryBarcode":       a.Library.LibraryBarcode,
		"libraryId":            a.Library.ID,
		"solventTest":          a.SolventTest,
		"sourceWell":           a.Fragment.Well,
		"libraryAssigned":      true,
		"compoundCode":         a.Fragment.CompoundCode,
		"smiles":               a.Fragment.Smiles,
		"libraryConcentration": concentration,
		"solventVolume":        a.SolventVolume,
		"ligandTransferVolume": a.LigandTransferVolume,
		"ligandConcentration":  a.LigandConcentration,
		"soakStatus":           schema.StatusPending,
	}
	var flag *store.Update
	if !a.SolventTest {
		u := usedFlag(a.Fragment.CompoundCode, true)
		flag = &u
	}
	return e.writeFragment(ctx, a.WellID, wellSet, a.Library.ID, flag)
}

// RemoveFragment clears the library fields of a well and releases the
// fragment in its campaign library. Solvent-test wells never claimed the
// fragment, so theirs is left alone.
func (e *Engine) RemoveFragment(ctx context.Context, wellID string) (store.UpdateResult, error) {
	well, err := e.Well(ctx, wellID)
	if err != nil {
		return store.UpdateResult{}, err
	}
	wellSet := store.Doc{
		"libraryName":          nil,
		"libraryBarcode":       nil,
		"libraryId":            nil,
		"sourceWell":           nil,
		"compoundCode":         nil,
		"smiles":               nil,
		"libraryConcentration": nil,
		"solventVolume":        nil,
		"ligandTransferVolume": nil,
		"ligandConcentration":  nil,
		"soakStatus":           nil,
		"libraryAssigned":      false,
		"solventTest":          false,
	}
	var (
		libraryID string
		flag      *store.Update
	)
	if well.LibraryID != nil && well.CompoundCode != nil && !well.SolventTest {
		libraryID = *well.LibraryID
		u := usedFlag(*well.CompoundCode, false)
		flag = &u
	}
	return e.writeFragment(ctx, wellID, wellSet, libraryID, flag)
}

// writeFragment applies the well update and, if flag is set, the campaign
// library update. In transactional mode both go through one atomic write.
// A missing library or fragment never blocks the well update: the pair then
// degrades to the well write alone in either mode.
func (e *Engine) writeFragment(ctx context.Context, wellID string, wellSet store.Doc, libraryID string, flag *store.Update) (store.UpdateResult, error) {
	if flag != nil && e.store.Transactional() {
		present, err := e.fragmentPresent(ctx, libraryID, flag.Elem.MatchValue)
		if err != nil {
			return store.UpdateResult{}, err
		}
		if present {
			return e.writeFragmentAtomic(ctx, wellID, wellSet, libraryID, flag)
		}
	}

	wells, err := e.wells()
	if err != nil {
		return store.UpdateResult{}, err
	}
	res, err := wells.UpdateOne(ctx, store.ByID(wellID), store.Set(wellSet))
	if err != nil {
		return res, fmt.Errorf("fragment update of well %s: %w", wellID, err)
	}
	if flag == nil || res.Matched == 0 {
		return res, nil
	}

	libs, err := e.store.Collection(store.CampaignLibraries)
	if err != nil {
		return res, err
	}
	libRes, err := libs.UpdateOne(ctx, store.ByID(libraryID), *flag)
	if err != nil {
		// The well update is committed and stays.
		return res, fmt.Errorf("fragment flag in campaign library %s: %w", libraryID, err)
	}
	if libRes.Matched == 0 {
		e.logger.Warn("fragment not found in campaign library",
			"library", libraryID,
			"compound", flag.Elem.MatchValue,
			"well", wellID,
		)
	}
	return res, nil
}

func (e *Engine) writeFragmentAtomic(ctx context.Context, wellID string, wellSet store.Doc, libraryID string, flag *store.Update) (store.UpdateResult, error) {
	results, err := e.store.Atomic(ctx, []store.WriteOp{
		{Collection: store.Wells, ID: wellID, Update: store.Set(wellSet)},
		{Collection: store.CampaignLibraries, ID: libraryID, Update: *flag},
	})
	if errors.Is(err, store.ErrConditionFailed) {
		// an unknown well matches nothing, as in a sequential write
		wells, werr := e.wells()
		if werr != nil {
			return store.UpdateResult{}, werr
		}
		n, werr := wells.Count(ctx, store.ByID(wellID))
		if werr == nil && n == 0 {
			return store.UpdateResult{}, nil
		}
	}
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("fragment update of well %s: %w", wellID, err)
	}
	return results[0], nil
}

// fragmentPresent reports whether the campaign library exists and lists
// compoundCode among its fragments.
func (e *Engine) fragmentPresent(ctx context.Context, libraryID string, compoundCode any) (bool, error) {
	if libraryID == "" {
		return false, nil
	}
	libs, err := e.store.Collection(store.CampaignLibraries)
	if err != nil {
		return false, err
	}
	doc, err := libs.FindOne(ctx, store.ByID(libraryID))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	fragments, _ := doc[fragmentsField].([]any)
	for _, item := range fragments {
		if frag, ok := item.(store.Doc); ok && frag["compoundCode"] == compoundCode {
			return true, nil
		}
	}
	return false, nil
}
