package store

import (
	"sort"
	"strings"
	"time"
)

// IDField is the primary key attribute of every collection.
const IDField = "_id"

// Doc is a schema-shaped document. Values are normalized to string, bool,
// int64, float64, time.Time, nil, []any or Doc.
type Doc map[string]any

// ID returns the document id, or "" if unset.
func (d Doc) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Clone returns a deep copy of the document.
func (d Doc) Clone() Doc {
	if d == nil {
		return nil
	}
	return Normalize(d).(Doc)
}

// UpdateResult reports how many documents an update matched and modified.
// Zero matches is a successful no-op.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// Add accumulates another result.
func (r *UpdateResult) Add(o UpdateResult) {
	r.Matched += o.Matched
	r.Modified += o.Modified
}

// Update describes a $set-style mutation.
type Update struct {
	// Set assigns top-level fields.
	Set Doc

	// Elem assigns one field of the first array element whose MatchField
	// equals MatchValue. A document without such an element does not match.
	Elem *ElemSet
}

// ElemSet is a positional update of one array element.
type ElemSet struct {
	Array      string
	MatchField string
	MatchValue any
	Field      string
	Value      any
}

// Set is shorthand for an Update that only assigns top-level fields.
func Set(fields Doc) Update {
	return Update{Set: fields}
}

// WriteOp is a key-addressed conditional update used by Transactor.
type WriteOp struct {
	// Collection is the logical collection name.
	Collection string
	ID         string
	// Guard is merged with the id filter; nil-op filters are ignored.
	Guard  Filter
	Update Update
}

// SortKey orders Find results.
type SortKey struct {
	Field string
	Desc  bool
}

type findOptions struct {
	sort  []SortKey
	limit int64
}

// FindOption configures Find.
type FindOption func(*findOptions)

// SortBy orders results by field.
func SortBy(field string, desc bool) FindOption {
	return func(o *findOptions) {
		o.sort = append(o.sort, SortKey{Field: field, Desc: desc})
	}
}

// Limit caps the number of results (0 = no limit).
func Limit(n int64) FindOption {
	return func(o *findOptions) { o.limit = n }
}

func collectFindOptions(opts []FindOption) findOptions {
	var fo findOptions
	for _, o := range opts {
		o(&fo)
	}
	return fo
}

// applyFindOptions sorts and truncates docs in place for backends without
// server-side ordering.
func applyFindOptions(docs []Doc, fo findOptions) []Doc {
	if len(fo.sort) > 0 {
		sort.SliceStable(docs, func(i, j int) bool {
			for _, k := range fo.sort {
				c, _ := compareValues(docs[i][k.Field], docs[j][k.Field])
				if c == 0 {
					continue
				}
				if k.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if fo.limit > 0 && int64(len(docs)) > fo.limit {
		docs = docs[:fo.limit]
	}
	return docs
}

// timeLayout is fixed-width so that string comparisons order like times.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Normalize converts a value into the normalized Doc value space.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, int64, float64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint32:
		return int64(x)
	case uint16:
		return int64(x)
	case uint8:
		return int64(x)
	case float32:
		return float64(x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *float64:
		if x == nil {
			return nil
		}
		return *x
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *bool:
		if x == nil {
			return nil
		}
		return *x
	case time.Time:
		return x.UTC()
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC()
	case Doc:
		out := make(Doc, len(x))
		for k, val := range x {
			out[k] = Normalize(val)
		}
		return out
	case map[string]any:
		return Normalize(Doc(x))
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Normalize(val)
		}
		return out
	case []Doc:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Normalize(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Normalize(val)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = val
		}
		return out
	}
	return v
}

// compareValues orders two normalized values. ok is false when the values
// are not comparable (different kinds).
func compareValues(a, b any) (c int, ok bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}
	if fa, aNum := toFloat(a); aNum {
		if fb, bNum := toFloat(b); bNum {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, isStr := b.(string); isStr {
			return strings.Compare(x, y), true
		}
		if y, isTime := b.(time.Time); isTime {
			if tx, err := parseTime(x); err == nil {
				return tx.Compare(y), true
			}
		}
	case bool:
		if y, isBool := b.(bool); isBool {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	case time.Time:
		switch y := b.(type) {
		case time.Time:
			return x.Compare(y), true
		case string:
			if ty, err := parseTime(y); err == nil {
				return x.Compare(ty), true
			}
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	c, ok := compareValues(a, b)
	return ok && c == 0
}
