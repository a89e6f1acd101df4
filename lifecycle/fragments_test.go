package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

func assignment(wellID, libraryID, code string, solventTest bool) FragmentAssignment {
	return FragmentAssignment{
		WellID:               wellID,
		Library:              LibraryRef{ID: libraryID, LibraryName: "Frag Lib", LibraryBarcode: "LIB-1"},
		Fragment:             Fragment{CompoundCode: code, Smiles: "C" + code, Well: "A" + code},
		SolventVolume:        1.5,
		LigandTransferVolume: 2.5,
		LigandConcentration:  10,
		SolventTest:          solventTest,
	}
}

func mode(transactional bool) string {
	if transactional {
		return "transactional"
	}
	return "sequential"
}

func TestFragmentRoundTrip(t *testing.T) {
	for _, transactional := range []bool{false, true} {
		t.Run(mode(transactional), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, transactional)
			require.Equal(t, transactional, f.store.Transactional())
			lib := f.campaignLibrary(t, "u1", "c1", "F1", "F2")
			id := f.well(t, "u1", "c1", "100", "A1a")

			res, err := f.engine.AssignFragment(ctx, assignment(id, lib, "F1", false))
			require.NoError(t, err)
			assert.Equal(t, store.UpdateResult{Matched: 1, Modified: 1}, res)

			w, err := f.engine.Well(ctx, id)
			require.NoError(t, err)
			assert.True(t, w.LibraryAssigned)
			assert.Equal(t, "F1", *w.CompoundCode)
			assert.Equal(t, "CF1", *w.Smiles)
			assert.Equal(t, "AF1", *w.SourceWell)
			assert.Equal(t, lib, *w.LibraryID)
			assert.Equal(t, "n/a", w.LibraryConcentration)
			assert.Equal(t, schema.StatusPending, *w.SoakStatus)
			assert.True(t, f.fragmentUsed(t, lib, "F1"))
			assert.False(t, f.fragmentUsed(t, lib, "F2"))

			_, err = f.engine.RemoveFragment(ctx, id)
			require.NoError(t, err)

			w, err = f.engine.Well(ctx, id)
			require.NoError(t, err)
			assert.False(t, w.LibraryAssigned)
			assert.Nil(t, w.CompoundCode)
			assert.Nil(t, w.LibraryID)
			assert.Nil(t, w.SoakStatus)
			assert.Nil(t, w.LibraryConcentration)
			assert.False(t, f.fragmentUsed(t, lib, "F1"))
		})
	}
}

func TestAssignFragment_SolventTestLeavesLibrary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	lib := f.campaignLibrary(t, "u1", "c1", "F1")
	id := f.well(t, "u1", "c1", "100", "A1a")

	_, err := f.engine.AssignFragment(ctx, assignment(id, lib, "F1", true))
	require.NoError(t, err)
	w, err := f.engine.Well(ctx, id)
	require.NoError(t, err)
	assert.True(t, w.SolventTest)
	assert.False(t, f.fragmentUsed(t, lib, "F1"))

	// a solvent test never claimed the fragment, so removal leaves a claim
	// made by another well in place
	other := f.well(t, "u1", "c1", "100", "A2a")
	_, err = f.engine.AssignFragment(ctx, assignment(other, lib, "F1", false))
	require.NoError(t, err)
	_, err = f.engine.RemoveFragment(ctx, id)
	require.NoError(t, err)
	assert.True(t, f.fragmentUsed(t, lib, "F1"))
}

func TestAssignFragment_KeepsConcentration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	lib := f.campaignLibrary(t, "u1", "c1", "F1")
	id := f.well(t, "u1", "c1", "100", "A1a")

	a := assignment(id, lib, "F1", false)
	a.Fragment.LibraryConcentration = 100.0
	_, err := f.engine.AssignFragment(ctx, a)
	require.NoError(t, err)
	w, err := f.engine.Well(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100.0, w.LibraryConcentration)
}

func TestAssignFragment_Validation(t *testing.T) {
	f := newFixture(t, false)
	a := assignment("", "lib", "F1", false)
	_, err := f.engine.AssignFragment(context.Background(), a)
	assert.ErrorIs(t, err, schema.ErrValidation)

	a = assignment("w1", "lib", "", false)
	_, err = f.engine.AssignFragment(context.Background(), a)
	assert.ErrorIs(t, err, schema.ErrValidation)
}

func TestAssignFragment_MissingCompound(t *testing.T) {
	for _, transactional := range []bool{false, true} {
		t.Run(mode(transactional), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, transactional)
			lib := f.campaignLibrary(t, "u1", "c1", "F1")
			id := f.well(t, "u1", "c1", "100", "A1a")

			res, err := f.engine.AssignFragment(ctx, assignment(id, lib, "F9", false))
			require.NoError(t, err)
			assert.Equal(t, store.UpdateResult{Matched: 1, Modified: 1}, res)
			w, err := f.engine.Well(ctx, id)
			require.NoError(t, err)
			assert.True(t, w.LibraryAssigned)
			assert.Equal(t, "F9", *w.CompoundCode)
			assert.False(t, f.fragmentUsed(t, lib, "F1"))
		})
	}
}

func TestAssignFragment_UnknownWell(t *testing.T) {
	for _, transactional := range []bool{false, true} {
		t.Run(mode(transactional), func(t *testing.T) {
			f := newFixture(t, transactional)
			lib := f.campaignLibrary(t, "u1", "c1", "F1")

			res, err := f.engine.AssignFragment(context.Background(), assignment("missing", lib, "F1", false))
			require.NoError(t, err)
			assert.Equal(t, store.UpdateResult{}, res)
			assert.False(t, f.fragmentUsed(t, lib, "F1"))
		})
	}
}

func TestRemoveFragment_DeletedLibrary(t *testing.T) {
	for _, transactional := range []bool{false, true} {
		t.Run(mode(transactional), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, transactional)
			lib := f.campaignLibrary(t, "u1", "c1", "F1")
			id := f.well(t, "u1", "c1", "100", "A1a")
			_, err := f.engine.AssignFragment(ctx, assignment(id, lib, "F1", false))
			require.NoError(t, err)

			n, err := f.engine.DeleteByID(ctx, store.CampaignLibraries, lib)
			require.NoError(t, err)
			require.Equal(t, int64(1), n)

			res, err := f.engine.RemoveFragment(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, store.UpdateResult{Matched: 1, Modified: 1}, res)
			w, err := f.engine.Well(ctx, id)
			require.NoError(t, err)
			assert.False(t, w.LibraryAssigned)
			assert.Nil(t, w.LibraryID)
		})
	}
}

func TestRemoveFragment_UnknownWell(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.engine.RemoveFragment(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
