package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

func shifterRow(plateID, row, col, subwell, comment string) ShifterRecord {
	return ShifterRecord{
		PlateID:             plateID,
		PlateRow:            row,
		PlateColumn:         col,
		PlateSubwell:        subwell,
		Comment:             comment,
		XtalID:              "x-" + row + col,
		TimeOfArrival:       "2024-06-01 10:00:00.123456",
		TimeOfDeparture:     "2024-06-01 10:01:30.623456",
		Duration:            "00:01:30.5",
		DestinationName:     "PUCK-7",
		DestinationLocation: "3",
		Barcode:             "PIN-11",
		ExternalComment:     "unipuck",
	}
}

func TestNextCrystalNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.plate(t, "u1", "c1", "100")
	f.plate(t, "u1", "c1", "101")

	n, err := f.engine.NextCrystalNumber(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a := f.well(t, "u1", "c1", "100", "A1a")
	b := f.well(t, "u1", "c1", "101", "A2a")
	odd := f.well(t, "u1", "c1", "101", "A3a")
	f.set(t, a, store.Doc{"fished": true, "xtalName": "xtal-1"})
	f.set(t, b, store.Doc{"fished": true, "xtalName": "xtal-3"})
	f.set(t, odd, store.Doc{"fished": true, "xtalName": "manual"})

	// crystal numbers are per campaign, across plates
	n, err = f.engine.NextCrystalNumber(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = f.engine.NextCrystalNumber(ctx, "999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCrystalNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"xtal-1", 1, true},
		{"EP_SmarGon-12", 12, true},
		{"a-b-7", 7, true},
		{"42", 42, true},
		{"xtal-", 0, false},
		{"manual", 0, false},
	}
	for _, tt := range tests {
		got, ok := crystalNumber(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.name)
		}
	}
}

func TestRecordFishingResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	id := f.well(t, "u1", "c1", "100", "A1a")

	res, err := f.engine.RecordFishingResult(ctx, shifterRow("100", "A", "1", "a", "OK"), 5, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Modified)

	w, err := f.engine.Well(ctx, id)
	require.NoError(t, err)
	assert.True(t, w.Fished)
	assert.Equal(t, "c1-5", *w.XtalName)
	assert.Equal(t, "x-A1", *w.ShifterXtalID)
	assert.Equal(t, "PUCK-7", *w.PuckBarcode)
	assert.Equal(t, "3", *w.PuckPosition)
	assert.Equal(t, "PIN-11", *w.PinBarcode)
	assert.Equal(t, "unipuck", *w.PuckType)
	assert.Equal(t, 90.5, *w.ShifterDuration)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 123456000, time.UTC), *w.ShifterTimeOfArrival)

	fished, err := f.engine.IsCrystalFished(ctx, "100", "A1a")
	require.NoError(t, err)
	assert.True(t, fished)
}

func TestRecordFishingResult_AtMostOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	id := f.well(t, "u1", "c1", "100", "A1a")

	_, err := f.engine.RecordFishingResult(ctx, shifterRow("100", "A", "1", "a", "OK"), 1, "c1")
	require.NoError(t, err)

	again := shifterRow("100", "A", "1", "a", "FAIL")
	again.Barcode = "PIN-99"
	res, err := f.engine.RecordFishingResult(ctx, again, 2, "c1")
	require.NoError(t, err)
	assert.Equal(t, store.UpdateResult{}, res)

	w, err := f.engine.Well(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "c1-1", *w.XtalName)
	assert.Equal(t, "PIN-11", *w.PinBarcode)
}

func TestRecordFishingResult_Outcomes(t *testing.T) {
	tests := []struct {
		comment string
		fished  bool
		named   bool
	}{
		{"OK", true, true},
		{"OK - nice", true, true},
		{"FAIL", true, false},
		{"FAIL: dried", true, false},
		{"", false, false},
		{"skipped", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, false)
			id := f.well(t, "u1", "c1", "100", "A1a")

			_, err := f.engine.RecordFishingResult(ctx, shifterRow("100", "A", "1", "a", tt.comment), 1, "")
			require.NoError(t, err)
			w, err := f.engine.Well(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.fished, w.Fished)
			if tt.named {
				require.NotNil(t, w.XtalName)
				assert.Equal(t, DefaultXtalPrefix+"-1", *w.XtalName)
			} else {
				assert.Nil(t, w.XtalName)
			}
			require.NotNil(t, w.PinBarcode)
		})
	}
}

func TestRecordFishingResult_BadTimes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	id := f.well(t, "u1", "c1", "100", "A1a")

	rec := shifterRow("100", "A", "1", "a", "OK")
	rec.TimeOfDeparture = "yesterday"
	_, err := f.engine.RecordFishingResult(ctx, rec, 1, "c1")
	assert.ErrorIs(t, err, schema.ErrValidation)

	rec = shifterRow("100", "A", "1", "a", "OK")
	rec.Duration = "1:2:3:4"
	_, err = f.engine.RecordFishingResult(ctx, rec, 1, "c1")
	assert.ErrorIs(t, err, schema.ErrValidation)

	w, err := f.engine.Well(ctx, id)
	require.NoError(t, err)
	assert.False(t, w.Fished)
}

func TestShifterDuration(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"42", 42.0},
		{"01:30", 90.0},
		{"01:00:00", 3600.0},
		{"00:00:12.25", 12.25},
	}
	for _, tt := range tests {
		got, err := shifterDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	for _, bad := range []string{"a:b", "1:2:3:4", "-1:00"} {
		_, err := shifterDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestImportFishingResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.plate(t, "u1", "c1", "100")
	ok := f.well(t, "u1", "c1", "100", "A1a")
	failed := f.well(t, "u1", "c1", "100", "A2a")
	second := f.well(t, "u1", "c1", "100", "A3a")

	res, err := f.engine.ImportFishingResults(ctx, []ShifterRecord{
		shifterRow("100", "A", "1", "a", "OK"),
		shifterRow("100", "A", "2", "a", "FAIL"),
		shifterRow("100", "A", "3", "a", "OK"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Modified)

	for id, want := range map[string]*string{ok: strp("c1-1"), failed: nil, second: strp("c1-2")} {
		w, err := f.engine.Well(ctx, id)
		require.NoError(t, err)
		assert.True(t, w.Fished)
		assert.Equal(t, want, w.XtalName)
	}

	ns := f.notifications(t, ShifterUser, ShifterUser)
	require.Len(t, ns, 1)
	assert.Equal(t, notify.TypeWells, ns[0].NotificationType)

	crystals, err := f.engine.FishedCrystals(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Len(t, crystals, 3)
}

func TestImportFishingResults_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.engine.ImportFishingResults(ctx, []ShifterRecord{{PlateRow: "A"}})
	assert.ErrorIs(t, err, schema.ErrValidation)

	_, err = f.engine.ImportFishingResults(ctx, []ShifterRecord{shifterRow("404", "A", "1", "a", "OK")})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, f.notifications(t, ShifterUser, ShifterUser))
}

func TestFishedCrystals_Order(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	early := f.well(t, "u1", "c1", "100", "A1a")
	late := f.well(t, "u1", "c1", "100", "A2a")
	f.set(t, early, store.Doc{"fished": true, "shifterTimeOfDeparture": testNow.Add(-time.Hour)})
	f.set(t, late, store.Doc{"fished": true, "shifterTimeOfDeparture": testNow})

	crystals, err := f.engine.FishedCrystals(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, crystals, 2)
	assert.Equal(t, late, crystals[0].ID)
	assert.Equal(t, early, crystals[1].ID)
}

func TestMarkExportedToXls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	a := f.well(t, "u1", "c1", "100", "A1a")
	b := f.well(t, "u1", "c1", "100", "A2a")

	res, err := f.engine.MarkExportedToXls(ctx, []WellRef{
		{ID: a, UserAccount: "u1", CampaignID: "c1"},
		{ID: b, UserAccount: "u1", CampaignID: "c1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Modified)

	w, err := f.engine.Well(ctx, b)
	require.NoError(t, err)
	assert.True(t, w.ExportedToXls)
	assert.Len(t, f.notifications(t, "u1", "c1"), 1)

	_, err = f.engine.MarkExportedToXls(ctx, nil)
	assert.ErrorIs(t, err, schema.ErrValidation)
	_, err = f.engine.MarkExportedToXls(ctx, []WellRef{{ID: a}})
	assert.ErrorIs(t, err, schema.ErrValidation)
}
