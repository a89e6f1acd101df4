package schema

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/ffcs/store"
)

func validPlate() PlateInput {
	return PlateInput{UserAccount: "u1", CampaignID: "c1", PlateID: "100", DropVolume: 0.1}
}

func validWell() WellInput {
	return WellInput{
		UserAccount: "u1", CampaignID: "c1", PlateID: "100",
		Well: "A1a", WellEcho: "A1", X: 10, Y: 20, XEcho: 1.5, YEcho: 2.5,
	}
}

func TestBuildPlateRecord_Defaults(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc, err := BuildPlateRecord(validPlate(), now)
	require.NoError(t, err)

	assert.Equal(t, "u1", doc["userAccount"])
	assert.Equal(t, "c1", doc["campaignId"])
	assert.Equal(t, "100", doc["plateId"])
	assert.Equal(t, DefaultPlateType, doc["plateType"])
	assert.Equal(t, now, doc["createdOn"])
	assert.Equal(t, false, doc["soakPlacesSelected"])
	assert.Equal(t, false, doc["cryoProtection"])
	assert.Equal(t, false, doc["redesolveApplied"])
	for _, k := range []string{"batchId", "lastImaged", "soakStatus", "soakExportTime", "soakTransferTime"} {
		v, ok := doc[k]
		assert.True(t, ok, "field %s present", k)
		assert.Nil(t, v, "field %s null", k)
	}
}

func TestBuildPlateRecord_ExplicitValues(t *testing.T) {
	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	in := validPlate()
	in.PlateType = "MRC3"
	in.CreatedOn = &created

	doc, err := BuildPlateRecord(in, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "MRC3", doc["plateType"])
	assert.Equal(t, created, doc["createdOn"])
}

func TestBuildPlateRecord_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PlateInput)
		field  string
	}{
		{"empty plate id", func(p *PlateInput) { p.PlateID = "" }, "plateId"},
		{"non numeric plate id", func(p *PlateInput) { p.PlateID = "P-100" }, "plateId"},
		{"empty campaign", func(p *PlateInput) { p.CampaignID = "" }, "campaignId"},
		{"empty user", func(p *PlateInput) { p.UserAccount = "" }, "userAccount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validPlate()
			tt.mutate(&in)
			_, err := BuildPlateRecord(in, time.Now())
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, store.KindValidation, store.KindOf(err))
		})
	}
}

func TestBuildPlateRecord_PlateIDWithSpaces(t *testing.T) {
	in := validPlate()
	in.PlateID = " 42 "
	_, err := BuildPlateRecord(in, time.Now())
	assert.NoError(t, err)
}

func TestBuildWellRecord_Defaults(t *testing.T) {
	doc, err := BuildWellRecord(validWell())
	require.NoError(t, err)

	assert.Equal(t, int64(10), doc["x"])
	assert.Equal(t, int64(20), doc["y"])
	assert.Equal(t, 1.5, doc["xEcho"])
	assert.Equal(t, 2.5, doc["yEcho"])
	for _, k := range []string{"libraryAssigned", "solventTest", "cryoProtection", "redesolveApplied", "fished", "exportedToXls"} {
		assert.Equal(t, false, doc[k], k)
	}
	for _, k := range wellNullFields {
		v, ok := doc[k]
		assert.True(t, ok, "field %s present", k)
		assert.Nil(t, v, "field %s null", k)
	}
}

func TestBuildWellRecord_PassesStoreSchema(t *testing.T) {
	doc, err := BuildWellRecord(validWell())
	require.NoError(t, err)

	s, ok := store.NewRegistry().SchemaOf(store.Wells)
	require.True(t, ok)
	field, err := s.Check(doc)
	assert.NoError(t, err)
	assert.Empty(t, field)
}

func TestBuildWellRecord_Validation(t *testing.T) {
	for _, field := range []string{"userAccount", "campaignId", "plateId", "well", "wellEcho"} {
		t.Run(field, func(t *testing.T) {
			in := validWell()
			switch field {
			case "userAccount":
				in.UserAccount = ""
			case "campaignId":
				in.CampaignID = ""
			case "plateId":
				in.PlateID = ""
			case "well":
				in.Well = ""
			case "wellEcho":
				in.WellEcho = ""
			}
			_, err := BuildWellRecord(in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, field, ve.Field)
			assert.Equal(t, "cannot be empty", ve.Reason)
		})
	}
}

func TestValidationError_DistinctFromSchemaViolation(t *testing.T) {
	err := Invalid("plateId", "must contain only numbers")
	assert.False(t, errors.Is(err, store.ErrSchemaViolation))
	assert.EqualError(t, err, "ffcs: invalid plateId: must contain only numbers")
}

func TestWellFromDoc(t *testing.T) {
	doc, err := BuildWellRecord(validWell())
	require.NoError(t, err)
	doc[store.IDField] = "w1"
	doc["soakStatus"] = StatusPending
	doc["ligandTransferVolume"] = int64(25)
	doc["libraryConcentration"] = "n/a"

	w := WellFromDoc(doc)
	assert.Equal(t, "w1", w.ID)
	assert.Equal(t, "A1a", w.Well)
	assert.Equal(t, int64(10), w.X)
	assert.Equal(t, 2.5, w.YEcho)
	require.NotNil(t, w.SoakStatus)
	assert.Equal(t, StatusPending, *w.SoakStatus)
	require.NotNil(t, w.LigandTransferVolume)
	assert.Equal(t, 25.0, *w.LigandTransferVolume)
	assert.Equal(t, "n/a", w.LibraryConcentration)
	assert.Nil(t, w.CryoStatus)
	assert.False(t, w.Fished)
}

func TestPlateFromDoc(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc, err := BuildPlateRecord(validPlate(), now)
	require.NoError(t, err)
	doc[store.IDField] = "p1"
	doc["batchId"] = "b7"

	p := PlateFromDoc(doc)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "100", p.PlateID)
	assert.Equal(t, now, p.CreatedOn)
	require.NotNil(t, p.BatchID)
	assert.Equal(t, "b7", *p.BatchID)
	assert.Nil(t, p.LastImaged)
}

func TestNotificationFromDoc(t *testing.T) {
	now := time.Now().UTC()
	n := NotificationFromDoc(store.Doc{
		store.IDField:       "n1",
		"userAccount":       "u1",
		"campaignId":        "c1",
		"createdOn":         now,
		"notification_type": "wells",
	})
	assert.Equal(t, Notification{ID: "n1", UserAccount: "u1", CampaignID: "c1", CreatedOn: now, NotificationType: "wells"}, n)
}

func TestPlateIDValidator(t *testing.T) {
	assert.NoError(t, validate.Var("100", "plateid"))
	assert.NoError(t, validate.Var(" 7 ", "plateid"))
	assert.Error(t, validate.Var("P-100", "plateid"))
	assert.Error(t, validate.Var("", "plateid"))
}
