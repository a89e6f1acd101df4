package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Backend. Every document is deep-copied on the
// way in and out, and schemas are checked on insert. It implements
// Transactor.
type Memory struct {
	mu   sync.RWMutex
	data map[string]*memTable
}

type memTable struct {
	docs  map[string]Doc
	order []string
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]*memTable)}
}

// Collection returns a handle to the named collection.
func (m *Memory) Collection(physical string, schema Schema) Collection {
	return &memCollection{mem: m, name: physical, schema: schema}
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (m *Memory) Close(context.Context) error {
	return nil
}

// table returns the named table, creating it. Callers hold m.mu for writing.
func (m *Memory) table(name string) *memTable {
	t, ok := m.data[name]
	if !ok {
		t = &memTable{docs: make(map[string]Doc)}
		m.data[name] = t
	}
	return t
}

// Atomic checks every op against current state before applying any.
func (m *Memory) Atomic(ctx context.Context, ops []WriteOp) ([]UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, op := range ops {
		t := m.table(op.Collection)
		doc, ok := t.docs[op.ID]
		if !ok || !matchesUpdate(doc, op.Guard, op.Update) {
			return nil, fmt.Errorf("%w: op %d on %s/%s", ErrConditionFailed, i, op.Collection, op.ID)
		}
	}

	results := make([]UpdateResult, len(ops))
	for i, op := range ops {
		doc := m.data[op.Collection].docs[op.ID]
		results[i].Matched = 1
		if applyUpdate(doc, op.Update) {
			results[i].Modified = 1
		}
	}
	return results, nil
}

type memCollection struct {
	mem    *Memory
	name   string
	schema Schema
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) InsertOne(ctx context.Context, doc Doc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d := doc.Clone()
	if d == nil {
		d = Doc{}
	}
	if field, err := c.schema.Check(d); err != nil {
		return "", &SchemaViolationError{Collection: c.name, Field: field, Doc: doc, Err: err}
	}
	id := d.ID()
	if id == "" {
		id = uuid.NewString()
		d[IDField] = id
	}

	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	t := c.mem.table(c.name)
	if _, exists := t.docs[id]; exists {
		return "", fmt.Errorf("%w: %s/%s", ErrConflict, c.name, id)
	}
	t.docs[id] = d
	t.order = append(t.order, id)
	return id, nil
}

func (c *memCollection) FindOne(ctx context.Context, f Filter) (Doc, error) {
	docs, err := c.Find(ctx, f, Limit(1))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (c *memCollection) Find(ctx context.Context, f Filter, opts ...FindOption) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fo := collectFindOptions(opts)

	c.mem.mu.RLock()
	var docs []Doc
	if t, ok := c.mem.data[c.name]; ok {
		for _, id := range t.order {
			if d := t.docs[id]; f.Matches(d) {
				docs = append(docs, d.Clone())
			}
		}
	}
	c.mem.mu.RUnlock()

	return applyFindOptions(docs, fo), nil
}

func (c *memCollection) Count(ctx context.Context, f Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mem.mu.RLock()
	defer c.mem.mu.RUnlock()
	var n int64
	if t, ok := c.mem.data[c.name]; ok {
		for _, d := range t.docs {
			if f.Matches(d) {
				n++
			}
		}
	}
	return n, nil
}

func (c *memCollection) UpdateOne(ctx context.Context, f Filter, u Update) (UpdateResult, error) {
	return c.update(ctx, f, u, false)
}

func (c *memCollection) UpdateMany(ctx context.Context, f Filter, u Update) (UpdateResult, error) {
	return c.update(ctx, f, u, true)
}

func (c *memCollection) update(ctx context.Context, f Filter, u Update, many bool) (UpdateResult, error) {
	var res UpdateResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	t, ok := c.mem.data[c.name]
	if !ok {
		return res, nil
	}
	for _, id := range t.order {
		d := t.docs[id]
		if !matchesUpdate(d, f, u) {
			continue
		}
		res.Matched++
		if applyUpdate(d, u) {
			res.Modified++
		}
		if !many {
			break
		}
	}
	return res, nil
}

func (c *memCollection) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	t, ok := c.mem.data[c.name]
	if !ok {
		return 0, nil
	}
	kept := t.order[:0]
	var n int64
	for _, id := range t.order {
		if f.Matches(t.docs[id]) {
			delete(t.docs, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
	return n, nil
}

// matchesUpdate reports whether doc is selected by f and, for positional
// updates, holds the addressed array element.
func matchesUpdate(doc Doc, f Filter, u Update) bool {
	if !f.Matches(doc) {
		return false
	}
	return u.Elem == nil || u.Elem.elemIndex(doc) >= 0
}

// applyUpdate mutates doc in place and reports whether any value changed.
func applyUpdate(doc Doc, u Update) bool {
	changed := false
	for k, v := range u.Set {
		v = Normalize(v)
		old, had := doc[k]
		if !had || !sameValue(old, v) {
			changed = true
		}
		doc[k] = v
	}
	if u.Elem != nil {
		if i := u.Elem.elemIndex(doc); i >= 0 {
			arr := doc[u.Elem.Array].([]any)
			elem := arr[i].(Doc)
			v := Normalize(u.Elem.Value)
			if old, had := elem[u.Elem.Field]; !had || !sameValue(old, v) {
				changed = true
			}
			elem[u.Elem.Field] = v
		}
	}
	return changed
}

// sameValue extends valuesEqual to nested documents and arrays.
func sameValue(a, b any) bool {
	switch x := a.(type) {
	case Doc:
		y, ok := b.(Doc)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, has := y[k]
			if !has || !sameValue(v, w) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !sameValue(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if _, isNum := toFloat(a); isNum {
		// int64(1) and float64(1) differ in stored type.
		if fmt.Sprintf("%T", a) != fmt.Sprintf("%T", b) {
			return false
		}
	}
	return valuesEqual(a, b)
}
