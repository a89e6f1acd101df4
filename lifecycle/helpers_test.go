package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

var testNow = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

type fixture struct {
	engine *Engine
	store  *store.Store
}

func newFixture(t *testing.T, transactional bool) *fixture {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.Transactional = transactional
	s, err := store.Open(context.Background(), store.NewMemory(), cfg)
	require.NoError(t, err)

	e := New(s, nil, nil)
	e.now = func() time.Time { return testNow }
	return &fixture{engine: e, store: s}
}

func (f *fixture) plate(t *testing.T, user, campaign, plateID string) {
	t.Helper()
	_, err := f.engine.RegisterPlate(context.Background(), schema.PlateInput{
		UserAccount: user, CampaignID: campaign, PlateID: plateID, DropVolume: 0.1,
	})
	require.NoError(t, err)
}

func (f *fixture) well(t *testing.T, user, campaign, plateID, well string) string {
	t.Helper()
	id, err := f.engine.RegisterWell(context.Background(), schema.WellInput{
		UserAccount: user, CampaignID: campaign, PlateID: plateID,
		Well: well, WellEcho: well, X: 10, Y: 20, XEcho: 1.5, YEcho: 2.5,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) set(t *testing.T, wellID string, fields store.Doc) {
	t.Helper()
	coll, err := f.store.Collection(store.Wells)
	require.NoError(t, err)
	res, err := coll.UpdateOne(context.Background(), store.ByID(wellID), store.Set(fields))
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Matched)
}

func (f *fixture) raw(t *testing.T, collection, id string) store.Doc {
	t.Helper()
	coll, err := f.store.Collection(collection)
	require.NoError(t, err)
	doc, err := coll.FindOne(context.Background(), store.ByID(id))
	require.NoError(t, err)
	return doc
}

func (f *fixture) notifications(t *testing.T, user, campaign string) []schema.Notification {
	t.Helper()
	ns, err := f.engine.Notifications().Since(context.Background(), user, campaign, time.Time{})
	require.NoError(t, err)
	return ns
}

func (f *fixture) campaignLibrary(t *testing.T, user, campaign string, codes ...string) string {
	t.Helper()
	fragments := make([]any, len(codes))
	for i, c := range codes {
		fragments[i] = store.Doc{"compoundCode": c, "smiles": "C" + c, "well": "A" + c, "used": false}
	}
	id, err := f.engine.InsertCampaignLibrary(context.Background(), store.Doc{
		"userAccount":    user,
		"campaignId":     campaign,
		"libraryName":    "Frag Lib",
		"libraryBarcode": "LIB-1",
		"fragments":      fragments,
	})
	require.NoError(t, err)
	return id
}

// fragmentUsed returns the used flag of compoundCode in a campaign library.
func (f *fixture) fragmentUsed(t *testing.T, libraryID, compoundCode string) bool {
	t.Helper()
	doc := f.raw(t, store.CampaignLibraries, libraryID)
	for _, item := range doc["fragments"].([]any) {
		frag := item.(store.Doc)
		if frag["compoundCode"] == compoundCode {
			used, _ := frag["used"].(bool)
			return used
		}
	}
	t.Fatalf("fragment %s not in library %s", compoundCode, libraryID)
	return false
}

func strp(s string) *string { return &s }
