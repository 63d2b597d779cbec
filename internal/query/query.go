// Package query turns flat request parameters into a store-neutral list
// description: filter conditions, sort order, projection and a skip/limit
// window. Renderers for GORM and MongoDB live next to it.
package query

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"easyrent/pkg/apperrors"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// 控制参数，不参与过滤
var reserved = map[string]struct{}{
	"sort":     {},
	"page":     {},
	"pageSize": {},
	"fields":   {},
}

// opToken is applied to the serialized filter text, not to parsed keys:
// any bare gte/lte/gt/lt token anywhere in it becomes $gte/$lte/$gt/$lt,
// including field names and values that happen to be spelled that way.
var opToken = regexp.MustCompile(`\b(gte|lte|gt|lt)\b`)

type Op string

const (
	OpEq  Op = "$eq"
	OpGte Op = "$gte"
	OpLte Op = "$lte"
	OpGt  Op = "$gt"
	OpLt  Op = "$lt"
)

var rangeOps = map[string]Op{
	string(OpGte): OpGte,
	string(OpLte): OpLte,
	string(OpGt):  OpGt,
	string(OpLt):  OpLt,
}

type Condition struct {
	Field string
	Op    Op
	Value any
}

type SortField struct {
	Field string
	Desc  bool
}

// Projection holds either an include list or an exclude list, never both.
type Projection struct {
	Include []string
	Exclude []string
}

type Query struct {
	// Filter is the operator-rewritten filter object exactly as decoded.
	Filter     map[string]any
	Conditions []Condition
	Sort       []SortField
	Projection Projection

	Page         int
	PageSize     int
	Skip         int
	Limit        int
	PageExplicit bool

	schema Schema
}

// Schema returns the schema the query was validated against.
func (q *Query) Schema() Schema { return q.schema }

// Parse builds a Query from request parameters. It never touches a store.
func Parse(values url.Values, schema Schema) (*Query, error) {
	q := &Query{
		schema:   schema,
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
	}

	raw, err := nestFilter(values)
	if err != nil {
		return nil, err
	}
	filter, err := rewriteOperators(raw)
	if err != nil {
		return nil, err
	}
	q.Filter = filter
	if q.Conditions, err = buildConditions(filter, schema); err != nil {
		return nil, err
	}

	sortSpec := values.Get("sort")
	if strings.TrimSpace(sortSpec) == "" {
		sortSpec = schema.DefaultSort
	}
	if q.Sort, err = parseSort(sortSpec, schema); err != nil {
		return nil, err
	}
	if q.Projection, err = parseFields(values.Get("fields"), schema); err != nil {
		return nil, err
	}

	if values.Has("page") {
		q.PageExplicit = true
		if q.Page, err = positiveInt("page", values.Get("page"), 0); err != nil {
			return nil, err
		}
	}
	if values.Has("pageSize") {
		if q.PageSize, err = positiveInt("pageSize", values.Get("pageSize"), MaxPageSize); err != nil {
			return nil, err
		}
	}
	q.Skip = skipFor(q.Page, q.PageSize)
	q.Limit = q.PageSize
	return q, nil
}

// CheckPage reports a missing page when the caller asked for one explicitly
// and it starts at or past the last matching document.
func CheckPage(q *Query, total int64) error {
	if q.PageExplicit && int64(q.Skip) >= total {
		return apperrors.ErrPageNotFound
	}
	return nil
}

// skipFor saturates instead of wrapping, so an absurd page stays past the end.
func skipFor(page, pageSize int) int {
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

// Require pins field to value, replacing whatever the caller asked for on it.
func (q *Query) Require(field string, value any) {
	kept := q.Conditions[:0]
	for _, c := range q.Conditions {
		if c.Field != field {
			kept = append(kept, c)
		}
	}
	q.Conditions = append(kept, Condition{Field: field, Op: OpEq, Value: value})
}

// nestFilter mirrors qs parsing for one level: price[gte]=1 → {"price":{"gte":"1"}}.
func nestFilter(values url.Values) (map[string]any, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if _, ok := reserved[key]; ok {
			continue
		}
		vs := values[key]
		if len(vs) == 0 {
			continue
		}
		val := vs[0]

		name, rest, nested := strings.Cut(key, "[")
		if name == "" {
			return nil, badFilter(key, "is not a valid filter key")
		}
		if _, ok := reserved[name]; ok {
			return nil, badFilter(key, "is a reserved parameter")
		}
		if !nested {
			if _, taken := out[name]; taken {
				return nil, badFilter(name, "is given both as a value and as an operator")
			}
			out[name] = val
			continue
		}

		sub, tail, closed := strings.Cut(rest, "]")
		if !closed || sub == "" {
			return nil, badFilter(key, "is not a valid filter key")
		}
		if tail != "" {
			return nil, badFilter(key, "nested filters are not supported")
		}
		m, ok := out[name].(map[string]any)
		if !ok {
			if _, taken := out[name]; taken {
				return nil, badFilter(name, "is given both as a value and as an operator")
			}
			m = map[string]any{}
			out[name] = m
		}
		m[sub] = val
	}
	return out, nil
}

func rewriteOperators(filter map[string]any) (map[string]any, error) {
	b, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	rewritten := opToken.ReplaceAllString(string(b), "$$${1}")
	out := map[string]any{}
	if err := json.Unmarshal([]byte(rewritten), &out); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	return out, nil
}

func buildConditions(filter map[string]any, schema Schema) ([]Condition, error) {
	names := make([]string, 0, len(filter))
	for k := range filter {
		names = append(names, k)
	}
	sort.Strings(names)

	conds := make([]Condition, 0, len(names))
	// 别名归并到同一字段后，每个字段要么一个等值，要么每种范围运算符各一个
	seen := map[string]map[Op]bool{}
	add := func(name string, c Condition) error {
		ops := seen[c.Field]
		if ops == nil {
			ops = map[Op]bool{}
			seen[c.Field] = ops
		}
		if ops[c.Op] || (c.Op == OpEq && len(ops) > 0) || (c.Op != OpEq && ops[OpEq]) {
			return badFilter(name, "conflicts with another filter on "+c.Field)
		}
		ops[c.Op] = true
		conds = append(conds, c)
		return nil
	}
	for _, name := range names {
		f, ok := schema.lookup(name)
		if !ok || !f.Kind.comparable() {
			return nil, badFilter(name, "is not a filterable field")
		}
		field := schema.canonical(name)
		switch v := filter[name].(type) {
		case string:
			cv, err := coerce(name, f.Kind, v)
			if err != nil {
				return nil, err
			}
			if err := add(name, Condition{Field: field, Op: OpEq, Value: cv}); err != nil {
				return nil, err
			}
		case map[string]any:
			ops := make([]string, 0, len(v))
			for k := range v {
				ops = append(ops, k)
			}
			sort.Strings(ops)
			for _, k := range ops {
				op, known := rangeOps[k]
				if !known {
					return nil, badFilter(name, fmt.Sprintf("unsupported operator %q", k))
				}
				s, isStr := v[k].(string)
				if !isStr {
					return nil, badFilter(name, "operator value must be a scalar")
				}
				cv, err := coerce(name, f.Kind, s)
				if err != nil {
					return nil, err
				}
				if err := add(name, Condition{Field: field, Op: op, Value: cv}); err != nil {
					return nil, err
				}
			}
		default:
			return nil, badFilter(name, "has an unsupported value")
		}
	}
	sort.SliceStable(conds, func(i, j int) bool { return conds[i].Field < conds[j].Field })
	return conds, nil
}

func coerce(name string, kind Kind, s string) (any, error) {
	switch kind {
	case Number:
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, badFilter(name, "must be a number")
		}
		return n, nil
	case Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, badFilter(name, "must be true or false")
		}
		return b, nil
	case Time:
		s = strings.TrimSpace(s)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			return t.UTC(), nil
		}
		return nil, badFilter(name, "must be an RFC3339 timestamp or a YYYY-MM-DD date")
	default:
		return s, nil
	}
}

func parseSort(spec string, schema Schema) ([]SortField, error) {
	var out []SortField
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		f, ok := schema.lookup(name)
		if !ok || !f.Kind.comparable() {
			return nil, apperrors.Validation("Invalid sort parameter", map[string]string{"sort": name + " is not a sortable field"})
		}
		out = append(out, SortField{Field: name, Desc: desc})
	}
	return out, nil
}

func parseFields(spec string, schema Schema) (Projection, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Projection{Exclude: append([]string(nil), schema.DefaultExclude...)}, nil
	}
	var include, exclude []string
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		neg := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if schema.isHidden(name) {
			continue
		}
		if _, ok := schema.lookup(name); !ok {
			return Projection{}, apperrors.Validation("Invalid fields parameter", map[string]string{"fields": name + " is not a known field"})
		}
		if neg {
			exclude = append(exclude, name)
		} else {
			include = append(include, name)
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		return Projection{}, apperrors.Validation("Invalid fields parameter", map[string]string{"fields": "cannot mix included and excluded fields"})
	}
	return Projection{Include: include, Exclude: exclude}, nil
}

func positiveInt(name, raw string, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, apperrors.Validation("Invalid pagination parameter", map[string]string{name: "must be a positive integer"})
	}
	if max > 0 && n > max {
		return 0, apperrors.Validation("Invalid pagination parameter", map[string]string{name: fmt.Sprintf("must be at most %d", max)})
	}
	return n, nil
}

func badFilter(field, msg string) error {
	return apperrors.Validation("Invalid filter parameter", map[string]string{field: msg})
}
