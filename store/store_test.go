package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jacentio/ffcs/store"
)

func newTestStore(t *testing.T, transactional bool) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.Transactional = transactional
	s, err := store.Open(context.Background(), store.NewMemory(), cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func collection(t *testing.T, s *store.Store, logical string) store.Collection {
	t.Helper()
	c, err := s.Collection(logical)
	if err != nil {
		t.Fatalf("resolve %s: %v", logical, err)
	}
	return c
}

func libraryDoc(barcode string) store.Doc {
	return store.Doc{"_id": barcode, "libraryBarcode": barcode}
}

// unreachable is a backend whose ping always fails.
type unreachable struct{ *store.Memory }

func (unreachable) Ping(context.Context) error { return errors.New("no reachable servers") }

func TestDefaultConfig(t *testing.T) {
	cfg := store.DefaultConfig()

	if cfg.Database != "ffcs_db" {
		t.Errorf("expected Database 'ffcs_db', got %q", cfg.Database)
	}
	if cfg.ServerSelectionTimeout != 5*time.Second {
		t.Errorf("expected 5s ServerSelectionTimeout, got %v", cfg.ServerSelectionTimeout)
	}
	if cfg.Transactional {
		t.Error("expected Transactional to default to false")
	}
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := store.Open(context.Background(), unreachable{store.NewMemory()}, store.DefaultConfig())
	if !errors.Is(err, store.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if store.KindOf(err) != store.KindConnection {
		t.Errorf("expected connection kind, got %q", store.KindOf(err))
	}
}

func TestCollection_Resolution(t *testing.T) {
	s := newTestStore(t, false)

	tests := []struct {
		logical  string
		physical string
	}{
		{store.Plates, "Plates"},
		{store.Wells, "Wells"},
		{store.Notifications, "Notifications"},
		{store.Libraries, "Libraries"},
		{store.CampaignLibraries, "Campaign_Libraries"},
	}
	for _, tt := range tests {
		t.Run(tt.logical, func(t *testing.T) {
			c := collection(t, s, tt.logical)
			if c.Name() != tt.physical {
				t.Errorf("expected %s, got %s", tt.physical, c.Name())
			}
		})
	}
}

func TestCollection_Unknown(t *testing.T) {
	s := newTestStore(t, false)
	_, err := s.Collection("crystals")
	if !errors.Is(err, store.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestCollection_SameHandle(t *testing.T) {
	s := newTestStore(t, false)
	a := collection(t, s, store.Wells)
	b := collection(t, s, store.Wells)
	if a != b {
		t.Error("expected the same handle for repeated resolution")
	}
}

func TestInsertOne_GeneratesID(t *testing.T) {
	ctx := context.Background()
	notifications := collection(t, newTestStore(t, false), store.Notifications)

	id, err := notifications.InsertOne(ctx, store.Doc{
		"userAccount":       "alice",
		"campaignId":        "C1",
		"createdOn":         time.Now(),
		"notification_type": "plates",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
	got, err := notifications.FindOne(ctx, store.ByID(id))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID() != id {
		t.Errorf("expected id %s, got %s", id, got.ID())
	}
}

func TestInsertOne_Conflict(t *testing.T) {
	ctx := context.Background()
	libs := collection(t, newTestStore(t, false), store.Libraries)

	if _, err := libs.InsertOne(ctx, libraryDoc("LIB-1")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := libs.InsertOne(ctx, libraryDoc("LIB-1"))
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestInsertOne_SchemaViolation(t *testing.T) {
	ctx := context.Background()
	plates := collection(t, newTestStore(t, false), store.Plates)

	doc := store.Doc{"userAccount": "alice", "campaignId": "C1", "plateId": "1"}
	_, err := plates.InsertOne(ctx, doc)

	var sv *store.SchemaViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("expected SchemaViolationError, got %v", err)
	}
	if sv.Doc["plateId"] != "1" {
		t.Errorf("expected attempted document in error, got %v", sv.Doc)
	}
	if !errors.Is(err, store.ErrSchemaViolation) {
		t.Error("expected error to match ErrSchemaViolation")
	}
}

func TestFindOne_NotFound(t *testing.T) {
	libs := collection(t, newTestStore(t, false), store.Libraries)
	_, err := libs.FindOne(context.Background(), store.ByID("missing"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFind_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	libs := collection(t, newTestStore(t, false), store.Libraries)
	if _, err := libs.InsertOne(ctx, libraryDoc("LIB-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	docs, _ := libs.Find(ctx, store.Filter{})
	docs[0]["libraryBarcode"] = "mutated"

	again, _ := libs.FindOne(ctx, store.ByID("LIB-1"))
	if again["libraryBarcode"] != "LIB-1" {
		t.Error("expected stored document to be unaffected by caller mutation")
	}
}

func TestFind_SortAndLimit(t *testing.T) {
	ctx := context.Background()
	libs := collection(t, newTestStore(t, false), store.Libraries)
	for i := 1; i <= 5; i++ {
		doc := libraryDoc(fmt.Sprintf("LIB-%d", i))
		doc["rank"] = i
		if _, err := libs.InsertOne(ctx, doc); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	docs, err := libs.Find(ctx, store.Gte("rank", 2), store.SortBy("rank", true), store.Limit(2))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(docs) != 2 || docs[0].ID() != "LIB-5" || docs[1].ID() != "LIB-4" {
		t.Errorf("unexpected docs %v", docs)
	}

	n, _ := libs.Count(ctx, store.Gte("rank", 2))
	if n != 4 {
		t.Errorf("expected count 4, got %d", n)
	}
}

func TestUpdateOne_GuardedNoop(t *testing.T) {
	ctx := context.Background()
	libs := collection(t, newTestStore(t, false), store.Libraries)
	doc := libraryDoc("LIB-1")
	doc["status"] = "pending"
	if _, err := libs.InsertOne(ctx, doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	guard := store.And(store.ByID("LIB-1"), store.Eq("status", "pending"))
	res, err := libs.UpdateOne(ctx, guard, store.Set(store.Doc{"status": "exported"}))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Matched != 1 || res.Modified != 1 {
		t.Errorf("expected 1/1, got %+v", res)
	}

	res, err = libs.UpdateOne(ctx, guard, store.Set(store.Doc{"status": "exported"}))
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if res.Matched != 0 || res.Modified != 0 {
		t.Errorf("expected no-op once the guard fails, got %+v", res)
	}
}

func TestUpdateMany_MatchedVsModified(t *testing.T) {
	ctx := context.Background()
	libs := collection(t, newTestStore(t, false), store.Libraries)
	for i, status := range []string{"a", "b", "b"} {
		doc := libraryDoc(fmt.Sprintf("LIB-%d", i))
		doc["status"] = status
		doc["group"] = "g"
		if _, err := libs.InsertOne(ctx, doc); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	res, err := libs.UpdateMany(ctx, store.Eq("group", "g"), store.Set(store.Doc{"status": "b"}))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Matched != 3 || res.Modified != 1 {
		t.Errorf("expected matched 3 modified 1, got %+v", res)
	}
}

func TestUpdateOne_Positional(t *testing.T) {
	ctx := context.Background()
	libs := collection(t, newTestStore(t, false), store.Libraries)
	doc := libraryDoc("LIB-1")
	doc["batches"] = []any{
		store.Doc{"batchId": "b1", "status": "open"},
		store.Doc{"batchId": "b2", "status": "open"},
	}
	if _, err := libs.InsertOne(ctx, doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	u := store.Update{Elem: &store.ElemSet{
		Array: "batches", MatchField: "batchId", MatchValue: "b2", Field: "status", Value: "closed",
	}}
	res, err := libs.UpdateOne(ctx, store.ByID("LIB-1"), u)
	if err != nil || res.Modified != 1 {
		t.Fatalf("expected one modification, got %+v, %v", res, err)
	}

	u.Elem.MatchValue = "b9"
	res, _ = libs.UpdateOne(ctx, store.ByID("LIB-1"), u)
	if res.Matched != 0 {
		t.Errorf("expected no match without the addressed element, got %+v", res)
	}

	got, _ := libs.FindOne(ctx, store.ByID("LIB-1"))
	batches := got["batches"].([]any)
	if batches[0].(store.Doc)["status"] != "open" || batches[1].(store.Doc)["status"] != "closed" {
		t.Errorf("unexpected batches %v", batches)
	}
}

func TestDeleteMany(t *testing.T) {
	ctx := context.Background()
	libs := collection(t, newTestStore(t, false), store.Libraries)
	for i := 0; i < 3; i++ {
		doc := libraryDoc(fmt.Sprintf("LIB-%d", i))
		doc["keep"] = i == 0
		if _, err := libs.InsertOne(ctx, doc); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := libs.DeleteMany(ctx, store.Eq("keep", false))
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deleted, got %d, %v", n, err)
	}
	left, _ := libs.Count(ctx, store.Filter{})
	if left != 1 {
		t.Errorf("expected 1 left, got %d", left)
	}
}

func TestAtomic_RequiresTransactional(t *testing.T) {
	s := newTestStore(t, false)
	if s.Transactional() {
		t.Fatal("expected non-transactional store")
	}
	_, err := s.Atomic(context.Background(), nil)
	if !errors.Is(err, store.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestAtomic_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)
	libs := collection(t, s, store.Libraries)
	for _, id := range []string{"A", "B"} {
		doc := libraryDoc(id)
		doc["state"] = "free"
		if _, err := libs.InsertOne(ctx, doc); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	ops := []store.WriteOp{
		{Collection: store.Libraries, ID: "A", Guard: store.Eq("state", "free"), Update: store.Set(store.Doc{"state": "taken"})},
		{Collection: store.Libraries, ID: "B", Guard: store.Eq("state", "busy"), Update: store.Set(store.Doc{"state": "taken"})},
	}
	_, err := s.Atomic(ctx, ops)
	if !errors.Is(err, store.ErrConditionFailed) {
		t.Fatalf("expected ErrConditionFailed, got %v", err)
	}
	a, _ := libs.FindOne(ctx, store.ByID("A"))
	if a["state"] != "free" {
		t.Error("expected first op to be rolled back")
	}

	ops[1].Guard = store.Eq("state", "free")
	results, err := s.Atomic(ctx, ops)
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}
	if len(results) != 2 || results[0].Modified != 1 || results[1].Modified != 1 {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestAtomic_UnknownCollection(t *testing.T) {
	s := newTestStore(t, true)
	_, err := s.Atomic(context.Background(), []store.WriteOp{{Collection: "bogus", ID: "x"}})
	if !errors.Is(err, store.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestEnsureSchemas_NoopForMemory(t *testing.T) {
	if err := newTestStore(t, false).EnsureSchemas(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	libs := collection(t, newTestStore(t, false), store.Libraries)

	_, err := libs.Find(ctx, store.Filter{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !errors.Is(err, store.ErrStore) {
		t.Errorf("expected store error wrapping, got %v", err)
	}
}
