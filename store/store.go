package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jacentio/ffcs/internal/metrics"
)

// Collection is a handle to one physical collection.
type Collection interface {
	// Name returns the physical collection name.
	Name() string

	// InsertOne inserts doc and returns its id. An id is generated when
	// doc has none. Returns ErrConflict if the id exists and a
	// *SchemaViolationError if the document breaks the collection schema.
	InsertOne(ctx context.Context, doc Doc) (string, error)

	// FindOne returns the first matching document or ErrNotFound.
	FindOne(ctx context.Context, f Filter) (Doc, error)

	// Find returns all matching documents.
	Find(ctx context.Context, f Filter, opts ...FindOption) ([]Doc, error)

	// Count returns the number of matching documents.
	Count(ctx context.Context, f Filter) (int64, error)

	// UpdateOne applies u to the first matching document. Each document
	// update is atomic with respect to its filter.
	UpdateOne(ctx context.Context, f Filter, u Update) (UpdateResult, error)

	// UpdateMany applies u to every matching document. The operation is
	// atomic per document only.
	UpdateMany(ctx context.Context, f Filter, u Update) (UpdateResult, error)

	// DeleteMany removes matching documents and returns how many went.
	DeleteMany(ctx context.Context, f Filter) (int64, error)
}

// Backend is a document database implementation.
type Backend interface {
	Collection(physical string, schema Schema) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Transactor is implemented by backends that can apply several
// key-addressed updates all-or-nothing. If any op's filter matches no
// document, nothing is applied and ErrConditionFailed is returned.
// WriteOp.Collection holds the physical name when passed to a backend.
type Transactor interface {
	Atomic(ctx context.Context, ops []WriteOp) ([]UpdateResult, error)
}

// SchemaInstaller is implemented by backends that enforce schemas
// server-side and need them installed up front.
type SchemaInstaller interface {
	EnsureSchema(ctx context.Context, physical string, schema Schema) error
}

// Store resolves logical collection names to instrumented handles on a
// single shared backend connection. It is safe for concurrent use.
type Store struct {
	backend  Backend
	config   Config
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	handles map[string]Collection
}

// New creates a Store without probing connectivity.
func New(backend Backend, config Config) *Store {
	config.validate()
	return &Store{
		backend:  backend,
		config:   config,
		registry: NewRegistry(),
		logger:   slog.Default(),
		handles:  make(map[string]Collection),
	}
}

// Open creates a Store and checks connectivity once.
func Open(ctx context.Context, backend Backend, config Config) (*Store, error) {
	s := New(backend, config)
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLogger sets the logger used for store diagnostics.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

// Ping pings the backend within the server-selection timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ServerSelectionTimeout)
	defer cancel()
	if err := s.backend.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Close releases the backend connection.
func (s *Store) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}

// Collection returns the handle for a logical collection name.
func (s *Store) Collection(logical string) (Collection, error) {
	physical, ok := s.config.Collections[logical]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", ErrConfiguration, logical)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[logical]; ok {
		return h, nil
	}
	schema, _ := s.registry.SchemaOf(logical)
	h := &instrumented{
		Collection: s.backend.Collection(physical, schema),
		logical:    logical,
	}
	s.handles[logical] = h
	return h, nil
}

// EnsureSchemas installs the collection schemas on backends that enforce
// them server-side. Other backends check schemas on insert and need nothing.
func (s *Store) EnsureSchemas(ctx context.Context) error {
	installer, ok := s.backend.(SchemaInstaller)
	if !ok {
		return nil
	}
	for logical, physical := range s.config.Collections {
		schema, _ := s.registry.SchemaOf(logical)
		if err := installer.EnsureSchema(ctx, physical, schema); err != nil {
			return opError("ensure_schema", physical, err)
		}
		s.logger.Debug("schema installed", "collection", physical)
	}
	return nil
}

// Transactional reports whether multi-document atomic writes are enabled
// and supported by the backend.
func (s *Store) Transactional() bool {
	_, ok := s.backend.(Transactor)
	return ok && s.config.Transactional
}

// Atomic applies ops all-or-nothing. It fails with ErrConfiguration when
// the store is not transactional.
func (s *Store) Atomic(ctx context.Context, ops []WriteOp) ([]UpdateResult, error) {
	tx, ok := s.backend.(Transactor)
	if !ok || !s.config.Transactional {
		return nil, fmt.Errorf("%w: transactional writes are not enabled", ErrConfiguration)
	}
	resolved := make([]WriteOp, len(ops))
	for i, op := range ops {
		physical, known := s.config.Collections[op.Collection]
		if !known {
			return nil, fmt.Errorf("%w: unknown collection %q", ErrConfiguration, op.Collection)
		}
		op.Collection = physical
		resolved[i] = op
	}
	start := time.Now()
	results, err := tx.Atomic(ctx, resolved)
	metrics.ObserveStore("transaction", "atomic", start, resultOf(err))
	return results, opError("atomic", "transaction", err)
}

// resultOf labels a store call for metrics. Lookups and guarded writes that
// find nothing are misses, not failures.
func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConditionFailed):
		return metrics.ResultMiss
	}
	return metrics.ResultError
}

// instrumented records metrics for every collection call and wraps
// backend failures in OpError.
type instrumented struct {
	Collection
	logical string
}

func (c *instrumented) InsertOne(ctx context.Context, doc Doc) (string, error) {
	start := time.Now()
	id, err := c.Collection.InsertOne(ctx, doc)
	metrics.ObserveStore(c.logical, "insert_one", start, resultOf(err))
	return id, opError("insert_one", c.Name(), err)
}

func (c *instrumented) FindOne(ctx context.Context, f Filter) (Doc, error) {
	start := time.Now()
	doc, err := c.Collection.FindOne(ctx, f)
	metrics.ObserveStore(c.logical, "find_one", start, resultOf(err))
	return doc, opError("find_one", c.Name(), err)
}

func (c *instrumented) Find(ctx context.Context, f Filter, opts ...FindOption) ([]Doc, error) {
	start := time.Now()
	docs, err := c.Collection.Find(ctx, f, opts...)
	metrics.ObserveStore(c.logical, "find", start, resultOf(err))
	return docs, opError("find", c.Name(), err)
}

func (c *instrumented) Count(ctx context.Context, f Filter) (int64, error) {
	start := time.Now()
	n, err := c.Collection.Count(ctx, f)
	metrics.ObserveStore(c.logical, "count", start, resultOf(err))
	return n, opError("count", c.Name(), err)
}

func (c *instrumented) UpdateOne(ctx context.Context, f Filter, u Update) (UpdateResult, error) {
	start := time.Now()
	r, err := c.Collection.UpdateOne(ctx, f, u)
	metrics.ObserveStore(c.logical, "update_one", start, resultOf(err))
	return r, opError("update_one", c.Name(), err)
}

func (c *instrumented) UpdateMany(ctx context.Context, f Filter, u Update) (UpdateResult, error) {
	start := time.Now()
	r, err := c.Collection.UpdateMany(ctx, f, u)
	metrics.ObserveStore(c.logical, "update_many", start, resultOf(err))
	return r, opError("update_many", c.Name(), err)
}

func (c *instrumented) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	start := time.Now()
	n, err := c.Collection.DeleteMany(ctx, f)
	metrics.ObserveStore(c.logical, "delete_many", start, resultOf(err))
	return n, opError("delete_many", c.Name(), err)
}
