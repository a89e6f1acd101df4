// Package lifecycle drives plates and wells through their soak, cryo,
// redesolve and fishing pipelines.
//
// Every transition is a conditional update: it applies only to documents in
// the expected state, and when nothing matches it is a successful no-op.
// Operations that span several documents are best-effort sequential with no
// compensation. When the store is transactional, fragment assignment and
// removal run as one atomic write instead.
//
// Mutations that users should see are followed by a notification append.
// The append is a separate step and its failure never fails the mutation.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacentio/ffcs/notify"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// Engine implements the lifecycle operations on a Store.
type Engine struct {
	store  *store.Store
	notes  *notify.Log
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Engine. notes may be nil, in which case a Log over the
// same store is used.
func New(s *store.Store, notes *notify.Log, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if notes == nil {
		notes = notify.NewLog(s, logger)
	}
	return &Engine{
		store:  s,
		notes:  notes,
		logger: logger,
		now:    time.Now,
	}
}

// Ping checks store connectivity.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Notifications returns the notification log the engine appends to.
func (e *Engine) Notifications() *notify.Log {
	return e.notes
}

func (e *Engine) wells() (store.Collection, error) {
	return e.store.Collection(store.Wells)
}

func (e *Engine) plates() (store.Collection, error) {
	return e.store.Collection(store.Plates)
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// owned matches documents of user within campaign.
func owned(user, campaign string, more ...store.Filter) store.Filter {
	return store.And(append([]store.Filter{
		store.Eq("userAccount", user),
		store.Eq("campaignId", campaign),
	}, more...)...)
}

// requireNonEmpty returns a *schema.ValidationError for the first empty
// value, in argument order.
func requireNonEmpty(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return schema.Invalid(pairs[i], "cannot be empty")
		}
	}
	return nil
}

// DeleteByID removes one document from a logical collection.
func (e *Engine) DeleteByID(ctx context.Context, collection, id string) (int64, error) {
	if err := requireNonEmpty("id", id); err != nil {
		return 0, err
	}
	coll, err := e.store.Collection(collection)
	if err != nil {
		return 0, err
	}
	return coll.DeleteMany(ctx, store.ByID(id))
}

// DeleteWhere removes documents whose fields equal every value in fields.
// An empty filter is rejected rather than clearing the collection.
func (e *Engine) DeleteWhere(ctx context.Context, collection string, fields map[string]any) (int64, error) {
	filter := store.Where(fields)
	if filter.IsZero() {
		return 0, schema.Invalid("query", "cannot be empty")
	}
	coll, err := e.store.Collection(collection)
	if err != nil {
		return 0, err
	}
	n, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}
	return n, nil
}

// UpdateFields sets fields on the document id of a logical collection,
// scoped to user and campaign. It never touches the id itself.
func (e *Engine) UpdateFields(ctx context.Context, collection, id, user, campaign string, fields store.Doc) (store.UpdateResult, error) {
	if err := requireNonEmpty("collection", collection, "id", id, "userAccount", user, "campaignId", campaign); err != nil {
		return store.UpdateResult{}, err
	}
	if len(fields) == 0 {
		return store.UpdateResult{}, schema.Invalid("fields", "cannot be empty")
	}
	if _, ok := fields[store.IDField]; ok {
		return store.UpdateResult{}, schema.Invalid(store.IDField, "cannot be updated")
	}
	coll, err := e.store.Collection(collection)
	if err != nil {
		return store.UpdateResult{}, err
	}
	return coll.UpdateOne(ctx, owned(user, campaign, store.ByID(id)), store.Set(fields))
}
