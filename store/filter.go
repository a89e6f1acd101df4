package store

import "sort"

// filterOp is the operator of a Filter node.
type filterOp int

const (
	opAll filterOp = iota // zero value: matches every document
	opEq
	opNe
	opGte
	opIn
	opNull
	opAnd
	opOr
)

// Filter selects documents. Fields are top-level document fields.
// The zero Filter matches every document.
type Filter struct {
	op       filterOp
	field    string
	value    any
	values   []any
	children []Filter
}

// Eq matches documents where field equals v. A nil v behaves like IsNull.
func Eq(field string, v any) Filter {
	v = Normalize(v)
	if v == nil {
		return IsNull(field)
	}
	return Filter{op: opEq, field: field, value: v}
}

// Ne matches documents where field does not equal v, including documents
// where the field is null or missing.
func Ne(field string, v any) Filter {
	return Filter{op: opNe, field: field, value: Normalize(v)}
}

// Gte matches documents where field is greater than or equal to v.
func Gte(field string, v any) Filter {
	return Filter{op: opGte, field: field, value: Normalize(v)}
}

// In matches documents where field equals any of vs.
func In(field string, vs ...any) Filter {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = Normalize(v)
	}
	return Filter{op: opIn, field: field, values: values}
}

// IsNull matches documents where field is null or missing.
func IsNull(field string) Filter {
	return Filter{op: opNull, field: field}
}

// And matches documents satisfying every filter. And() matches everything.
func And(fs ...Filter) Filter {
	return Filter{op: opAnd, children: fs}
}

// Or matches documents satisfying at least one filter.
func Or(fs ...Filter) Filter {
	return Filter{op: opOr, children: fs}
}

// ByID matches the document with the given id.
func ByID(id string) Filter {
	return Eq(IDField, id)
}

// Where builds an equality conjunction from a field map.
func Where(fields map[string]any) Filter {
	fs := make([]Filter, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		fs = append(fs, Eq(k, fields[k]))
	}
	return And(fs...)
}

// IsZero reports whether the filter matches every document.
func (f Filter) IsZero() bool {
	return f.op == opAll || (f.op == opAnd && len(f.children) == 0)
}

// Matches evaluates the filter against a normalized document.
func (f Filter) Matches(doc Doc) bool {
	switch f.op {
	case opAll:
		return true
	case opEq:
		v, ok := doc[f.field]
		return ok && valuesEqual(v, f.value)
	case opNe:
		if f.value == nil {
			v, ok := doc[f.field]
			return ok && v != nil
		}
		v, ok := doc[f.field]
		return !ok || !valuesEqual(v, f.value)
	case opGte:
		v, ok := doc[f.field]
		if !ok || v == nil {
			return false
		}
		c, comparable := compareValues(v, f.value)
		return comparable && c >= 0
	case opIn:
		v, ok := doc[f.field]
		for _, want := range f.values {
			if want == nil && (!ok || v == nil) {
				return true
			}
			if ok && valuesEqual(v, want) {
				return true
			}
		}
		return false
	case opNull:
		v, ok := doc[f.field]
		return !ok || v == nil
	case opAnd:
		for _, c := range f.children {
			if !c.Matches(doc) {
				return false
			}
		}
		return true
	case opOr:
		for _, c := range f.children {
			if c.Matches(doc) {
				return true
			}
		}
		return false
	}
	return false
}

// eqValue returns the value of a top-level equality on field, if the filter
// is that equality or a conjunction containing it.
func (f Filter) eqValue(field string) (any, bool) {
	switch f.op {
	case opEq:
		if f.field == field {
			return f.value, true
		}
	case opAnd:
		for _, c := range f.children {
			if v, ok := c.eqValue(field); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// idOf returns the id addressed by the filter, if any.
func (f Filter) idOf() (string, bool) {
	v, ok := f.eqValue(IDField)
	if !ok {
		return "", false
	}
	id, isStr := v.(string)
	return id, isStr
}

// elemIndex returns the index of the first element of doc[e.Array] whose
// MatchField equals MatchValue, or -1.
func (e *ElemSet) elemIndex(doc Doc) int {
	arr, _ := doc[e.Array].([]any)
	for i, item := range arr {
		m, ok := item.(Doc)
		if !ok {
			continue
		}
		if v, has := m[e.MatchField]; has && valuesEqual(v, Normalize(e.MatchValue)) {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
