package dao

import (
	"fmt"
	"regexp"
)

// identifierPattern validates field and collection names before any
// adapter concatenates them into a query string (Cypher, SQL, or a
// Mongo-style filter key). Every adapter that builds queries by string
// concatenation must run untrusted identifiers through ValidIdentifier
// first.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is safe to interpolate into a
// generated query as a field, table, or label name.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// CmpOp is a comparison operator usable with Cmp.
type CmpOp string

const (
	OpGT  CmpOp = "$gt"
	OpGTE CmpOp = "$gte"
	OpLT  CmpOp = "$lt"
	OpLTE CmpOp = "$lte"
	OpNE  CmpOp = "$ne"
)

// Query is the sum type every adapter's Find/Count/FindOne accepts. It
// is built with the Eq/Cmp/In/Regex/And/Or constructors and normalized
// to the uniform map[string]any wire dialect by MarshalWire, so the
// same filter can be logged, replayed, or sent across process
// boundaries without adapter-specific knowledge.
type Query struct {
	kind  queryKind
	field string
	op    CmpOp
	value any
	values []any
	pattern string
	clauses []Query
}

type queryKind int

const (
	kindEq queryKind = iota
	kindCmp
	kindIn
	kindRegex
	kindAnd
	kindOr
)

// Eq matches field == value.
func Eq(field string, value any) Query {
	return Query{kind: kindEq, field: field, value: value}
}

// Cmp matches field <op> value for one of the CmpOp operators.
func Cmp(field string, op CmpOp, value any) Query {
	return Query{kind: kindCmp, field: field, op: op, value: value}
}

// In matches field against a set of candidate values.
func In(field string, values []any) Query {
	return Query{kind: kindIn, field: field, values: values}
}

// Regex matches field against a regular expression pattern.
func Regex(field string, pattern string) Query {
	return Query{kind: kindRegex, field: field, pattern: pattern}
}

// And combines clauses with logical conjunction.
func And(clauses ...Query) Query {
	return Query{kind: kindAnd, clauses: clauses}
}

// Or combines clauses with logical disjunction.
func Or(clauses ...Query) Query {
	return Query{kind: kindOr, clauses: clauses}
}

// IsZero reports whether q carries no filter at all, meaning "match
// everything" for adapters that treat an empty Query as unconstrained.
func (q Query) IsZero() bool {
	return q.kind == kindEq && q.field == "" && q.value == nil
}

// MarshalWire renders q into the uniform filter dialect: a field-keyed
// map whose values are either a literal (implicit $eq), or a
// single-key map holding one of $ne/$gt/$gte/$lt/$lte/$in/$regex, or
// (for And/Or) a {"$and": [...]} / {"$or": [...]} envelope of nested
// wire maps.
func (q Query) MarshalWire() (map[string]any, error) {
	switch q.kind {
	case kindEq:
		if q.field == "" {
			return map[string]any{}, nil
		}
		return map[string]any{q.field: q.value}, nil
	case kindCmp:
		return map[string]any{q.field: map[string]any{string(q.op): q.value}}, nil
	case kindIn:
		return map[string]any{q.field: map[string]any{"$in": q.values}}, nil
	case kindRegex:
		return map[string]any{q.field: map[string]any{"$regex": q.pattern}}, nil
	case kindAnd, kindOr:
		key := "$and"
		if q.kind == kindOr {
			key = "$or"
		}
		rendered := make([]any, 0, len(q.clauses))
		for _, c := range q.clauses {
			w, err := c.MarshalWire()
			if err != nil {
				return nil, err
			}
			rendered = append(rendered, w)
		}
		return map[string]any{key: rendered}, nil
	default:
		return nil, fmt.Errorf("dao: unknown query kind %d", q.kind)
	}
}

// UnmarshalWire reconstructs a Query from the uniform wire dialect
// produced by MarshalWire, for callers that receive a filter as a plain
// map[string]any (e.g. decoded from JSON).
func UnmarshalWire(wire map[string]any) (Query, error) {
	if len(wire) == 0 {
		return Query{}, nil
	}
	if raw, ok := wire["$and"]; ok {
		return unmarshalConjunction(raw, And)
	}
	if raw, ok := wire["$or"]; ok {
		return unmarshalConjunction(raw, Or)
	}

	clauses := make([]Query, 0, len(wire))
	for field, v := range wire {
		if !ValidIdentifier(field) {
			return Query{}, fmt.Errorf("dao: invalid field identifier %q", field)
		}
		sub, ok := v.(map[string]any)
		if !ok {
			clauses = append(clauses, Eq(field, v))
			continue
		}
		q, err := unmarshalFieldOps(field, sub)
		if err != nil {
			return Query{}, err
		}
		clauses = append(clauses, q)
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return And(clauses...), nil
}

func unmarshalConjunction(raw any, combine func(...Query) Query) (Query, error) {
	list, ok := raw.([]any)
	if !ok {
		return Query{}, fmt.Errorf("dao: $and/$or requires an array")
	}
	clauses := make([]Query, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return Query{}, fmt.Errorf("dao: $and/$or entries must be objects")
		}
		q, err := UnmarshalWire(m)
		if err != nil {
			return Query{}, err
		}
		clauses = append(clauses, q)
	}
	return combine(clauses...), nil
}

func unmarshalFieldOps(field string, ops map[string]any) (Query, error) {
	for k, v := range ops {
		switch CmpOp(k) {
		case OpGT, OpGTE, OpLT, OpLTE, OpNE:
			return Cmp(field, CmpOp(k), v), nil
		}
		switch k {
		case "$eq":
			return Eq(field, v), nil
		case "$in":
			values, ok := v.([]any)
			if !ok {
				return Query{}, fmt.Errorf("dao: $in requires an array")
			}
			return In(field, values), nil
		case "$regex":
			pattern, ok := v.(string)
			if !ok {
				return Query{}, fmt.Errorf("dao: $regex requires a string")
			}
			return Regex(field, pattern), nil
		}
		return Query{}, fmt.Errorf("dao: unsupported operator %q", k)
	}
	return Query{}, fmt.Errorf("dao: empty operator object for field %q", field)
}

// Kind exposes the query's variant for adapters that switch on it when
// translating to a native query language (Cypher WHERE clauses, SQL
// predicates, Mongo-style filters).
func (q Query) Kind() string {
	switch q.kind {
	case kindEq:
		return "eq"
	case kindCmp:
		return "cmp"
	case kindIn:
		return "in"
	case kindRegex:
		return "regex"
	case kindAnd:
		return "and"
	case kindOr:
		return "or"
	default:
		return "unknown"
	}
}

// Field returns the field name for Eq/Cmp/In/Regex queries.
func (q Query) Field() string { return q.field }

// Op returns the comparison operator for Cmp queries.
func (q Query) Op() CmpOp { return q.op }

// Value returns the scalar value for Eq/Cmp queries.
func (q Query) Value() any { return q.value }

// Values returns the candidate set for In queries.
func (q Query) Values() []any { return q.values }

// Pattern returns the regular expression pattern for Regex queries.
func (q Query) Pattern() string { return q.pattern }

// Clauses returns the nested queries for And/Or queries.
func (q Query) Clauses() []Query { return q.clauses }
