package docstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Op string

const (
	Equal          Op = "=="
	NotEqual       Op = "!="
	Less           Op = "<"
	LessOrEqual    Op = "<="
	Greater        Op = ">"
	GreaterOrEqual Op = ">="
	ArrayContains  Op = "array-contains"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field     string
	Direction Direction
}

// Query selects documents of one collection. The zero Query returns every
// document in insertion order.
type Query struct {
	Filters []Filter
	Orders  []Order
	Limit   int
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// CreateTime orders by the commit time that created each document, which is
// what a ServerTimestamp field written by Add holds. Unlike a field order it
// needs no document to be decoded, and without filters it runs in sql.
const CreateTime = "__createTime__"

func OrderBy(field string, direction Direction) Order {
	return Order{Field: field, Direction: direction}
}

type row struct {
	snap   Snapshot
	fields map[string]any
}

func (r row) value(field string) any {
	if field == CreateTime {
		return r.snap.CreateTime.Format(time.RFC3339Nano)
	}
	v, _ := getPath(r.fields, field)
	return v
}

// insertion compares rows by the order they were created in.
func insertion(a, b row) int {
	if c := a.snap.CreateTime.Compare(b.snap.CreateTime); c != 0 {
		return c
	}
	return strings.Compare(a.snap.ID, b.snap.ID)
}

// sqlOrder reports whether the whole query fits into an sql ORDER BY and
// LIMIT, and returns that clause.
func (q Query) sqlOrder() (string, bool) {
	if len(q.Filters) > 0 || len(q.Orders) != 1 || q.Orders[0].Field != CreateTime {
		return "", false
	}

	clause := " ORDER BY create_time, id"
	if q.Orders[0].Direction == Desc {
		clause = " ORDER BY create_time DESC, id DESC"
	}
	if q.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return clause, true
}

func (q Query) apply(rows []row) ([]Snapshot, error) {
	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		v, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter on %s: %w", f.Field, err)
		}
		filters[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}

	matched := rows[:0:0]
	for _, r := range rows {
		ok, err := matches(r.fields, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, r)
		}
	}

	if len(q.Orders) > 0 {
		// ties fall back to insertion order, reversed when the first order
		// is descending
		tieDesc := q.Orders[0].Direction == Desc
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range q.Orders {
				c := compareValues(matched[i].value(o.Field), matched[j].value(o.Field))
				if c == 0 {
					continue
				}
				if o.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
			if tieDesc {
				return insertion(matched[i], matched[j]) > 0
			}
			return insertion(matched[i], matched[j]) < 0
		})
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]Snapshot, len(matched))
	for i, r := range matched {
		out[i] = r.snap
	}
	return out, nil
}

func matches(doc map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		value, exists := getPath(doc, f.Field)
		var ok bool
		switch f.Op {
		case Equal:
			ok = exists && equalValues(value, f.Value)
		case NotEqual:
			ok = !exists || !equalValues(value, f.Value)
		case Less:
			ok = exists && sameKind(value, f.Value) && compareValues(value, f.Value) < 0
		case LessOrEqual:
			ok = exists && sameKind(value, f.Value) && compareValues(value, f.Value) <= 0
		case Greater:
			ok = exists && sameKind(value, f.Value) && compareValues(value, f.Value) > 0
		case GreaterOrEqual:
			ok = exists && sameKind(value, f.Value) && compareValues(value, f.Value) >= 0
		case ArrayContains:
			arr, isArr := value.([]any)
			ok = isArr && containsValue(arr, f.Value)
		default:
			return false, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func kindRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case []any:
		return 4
	case map[string]any:
		return 5
	}
	return 6
}

func sameKind(a, b any) bool {
	return kindRank(a) == kindRank(b)
}

func equalValues(a, b any) bool {
	return sameKind(a, b) && compareValues(a, b) == 0
}

// compareValues orders null < bool < number < string < array < map.
// Strings that both parse as RFC 3339 timestamps compare as instants.
func compareValues(a, b any) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return ra - rb
	}

	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv := b.(string)
		ta, errA := time.Parse(time.RFC3339Nano, av)
		tb, errB := time.Parse(time.RFC3339Nano, bv)
		if errA == nil && errB == nil {
			return ta.Compare(tb)
		}
		return strings.Compare(av, bv)
	case []any:
		bv := b.([]any)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := compareValues(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return len(av) - len(bv)
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
