package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// scopeAttr holds the userAccount#campaignId#shard partition key of the
// optional scope index. It is never returned to callers.
const scopeAttr = "_scope"

// exprBuilder accumulates #attrN/:valN placeholders for one request.
type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
	byName map[string]string
	n      int
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
		byName: map[string]string{},
	}
}

// name returns the placeholder for an attribute name.
func (b *exprBuilder) name(attr string) string {
	if key, ok := b.byName[attr]; ok {
		return key
	}
	key := fmt.Sprintf("#attr%d", len(b.byName))
	b.byName[attr] = key
	b.names[key] = attr
	return key
}

// value returns the placeholder for a normalized value.
func (b *exprBuilder) value(v any) (string, error) {
	av, err := toAttribute(v)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf(":val%d", b.n)
	b.n++
	b.values[key] = av
	return key, nil
}

func (b *exprBuilder) nullType() string {
	const key = ":nulltype"
	b.values[key] = &types.AttributeValueMemberS{Value: "NULL"}
	return key
}

// condition renders f as a condition or filter expression. An empty string
// means the filter matches everything.
func (b *exprBuilder) condition(f Filter) (string, error) {
	switch f.op {
	case opAll:
		return "", nil
	case opEq:
		v, err := b.value(f.value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", b.name(f.field), v), nil
	case opNe:
		n := b.name(f.field)
		if f.value == nil {
			return fmt.Sprintf("(attribute_exists(%s) AND NOT attribute_type(%s, %s))", n, n, b.nullType()), nil
		}
		v, err := b.value(f.value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(attribute_not_exists(%s) OR %s <> %s)", n, n, v), nil
	case opGte:
		v, err := b.value(f.value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s >= %s", b.name(f.field), v), nil
	case opIn:
		n := b.name(f.field)
		var clauses, placeholders []string
		for _, want := range f.values {
			if want == nil {
				clauses = append(clauses, b.nullClause(n))
				continue
			}
			v, err := b.value(want)
			if err != nil {
				return "", err
			}
			placeholders = append(placeholders, v)
		}
		if len(placeholders) > 0 {
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", n, strings.Join(placeholders, ", ")))
		}
		if len(clauses) == 0 {
			return b.matchNothing(), nil
		}
		return "(" + strings.Join(clauses, " OR ") + ")", nil
	case opNull:
		return b.nullClause(b.name(f.field)), nil
	case opAnd, opOr:
		if len(f.children) == 0 {
			if f.op == opOr {
				return b.matchNothing(), nil
			}
			return "", nil
		}
		var parts []string
		for _, c := range f.children {
			expr, err := b.condition(c)
			if err != nil {
				return "", err
			}
			if expr == "" {
				if f.op == opOr {
					// One branch matches everything.
					return "", nil
				}
				continue
			}
			parts = append(parts, "("+expr+")")
		}
		sep := " AND "
		if f.op == opOr {
			sep = " OR "
		}
		return strings.Join(parts, sep), nil
	}
	return "", fmt.Errorf("unsupported filter op %d", f.op)
}

func (b *exprBuilder) nullClause(n string) string {
	return fmt.Sprintf("(attribute_not_exists(%s) OR attribute_type(%s, %s))", n, n, b.nullType())
}

// matchNothing renders a condition no stored item satisfies.
func (b *exprBuilder) matchNothing() string {
	return fmt.Sprintf("attribute_not_exists(%s)", b.name(IDField))
}

// update renders the SET clause of u. elemIndex is the resolved position of
// u.Elem in the target item, or -1. The returned condition addresses the
// same array element.
func (b *exprBuilder) update(u Update, elemIndex int) (set string, elemCond string, err error) {
	var clauses []string
	for _, k := range sortedKeys(u.Set) {
		if k == IDField {
			continue
		}
		v, err := b.value(Normalize(u.Set[k]))
		if err != nil {
			return "", "", err
		}
		clauses = append(clauses, fmt.Sprintf("%s = %s", b.name(k), v))
	}
	if u.Elem != nil && elemIndex >= 0 {
		path := fmt.Sprintf("%s[%d]", b.name(u.Elem.Array), elemIndex)
		v, err := b.value(Normalize(u.Elem.Value))
		if err != nil {
			return "", "", err
		}
		clauses = append(clauses, fmt.Sprintf("%s.%s = %s", path, b.name(u.Elem.Field), v))

		mv, err := b.value(Normalize(u.Elem.MatchValue))
		if err != nil {
			return "", "", err
		}
		elemCond = fmt.Sprintf("%s.%s = %s", path, b.name(u.Elem.MatchField), mv)
	}
	if len(clauses) == 0 {
		return "", "", fmt.Errorf("empty update")
	}
	return "SET " + strings.Join(clauses, ", "), elemCond, nil
}

// namesOrNil returns nil when no placeholders were used, as DynamoDB
// rejects empty expression maps.
func (b *exprBuilder) namesOrNil() map[string]string {
	if len(b.names) == 0 {
		return nil
	}
	return b.names
}

func (b *exprBuilder) valuesOrNil() map[string]types.AttributeValue {
	if len(b.values) == 0 {
		return nil
	}
	return b.values
}

// joinConditions ANDs non-empty expressions.
func joinConditions(exprs ...string) string {
	var parts []string
	for _, e := range exprs {
		if e != "" {
			parts = append(parts, "("+e+")")
		}
	}
	return strings.Join(parts, " AND ")
}

// toAttribute marshals a normalized value. Times are stored as fixed-width
// strings so that comparisons order chronologically.
func toAttribute(v any) (types.AttributeValue, error) {
	return attributevalue.Marshal(toDynamoValue(v))
}

func toDynamoValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return formatTime(x)
	case Doc:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = toDynamoValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = toDynamoValue(val)
		}
		return out
	}
	return v
}

// toItem marshals a document into a DynamoDB item.
func toItem(doc Doc) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(doc))
	for k, v := range doc {
		av, err := toAttribute(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

// fromItem converts a raw item into a normalized Doc.
func fromItem(raw map[string]types.AttributeValue) Doc {
	doc := make(Doc, len(raw))
	for k, av := range raw {
		if k == scopeAttr {
			continue
		}
		doc[k] = fromAttribute(av)
	}
	return doc
}

func fromAttribute(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		if len(v.Value) == len(timeLayout) && strings.HasSuffix(v.Value, "Z") {
			if t, err := time.Parse(timeLayout, v.Value); err == nil {
				return t
			}
		}
		return v.Value
	case *types.AttributeValueMemberN:
		if i, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(v.Value, 64)
		return f
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberNULL:
		return nil
	case *types.AttributeValueMemberM:
		return fromItem(v.Value)
	case *types.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, item := range v.Value {
			out[i] = fromAttribute(item)
		}
		return out
	case *types.AttributeValueMemberSS:
		out := make([]any, len(v.Value))
		for i, s := range v.Value {
			out[i] = s
		}
		return out
	}
	return nil
}
