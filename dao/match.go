package dao

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchesInMemory evaluates q against entity directly, for adapters
// whose storage can't push a filter down to the backend (a cache's
// flat key space, a JSONB catch-all column) and must filter the
// candidate set in Go instead. A field name containing "." (e.g.
// "acl.principal_id") descends through nested maps and, where a slice
// is encountered partway through the path, collects the remaining
// path's value from every element — the shape a security-filter query
// needs to test an ACL entry list for a matching principal.
func MatchesInMemory(q Query, entity Entity) bool {
	if q.IsZero() {
		return true
	}
	switch q.Kind() {
	case "eq":
		for _, v := range lookupPath(entity, q.Field()) {
			if compareEqual(v, q.Value()) {
				return true
			}
		}
		return false
	case "cmp":
		for _, v := range lookupPath(entity, q.Field()) {
			if compareOrdered(v, q.Value(), q.Op()) {
				return true
			}
		}
		return false
	case "in":
		for _, v := range lookupPath(entity, q.Field()) {
			for _, candidate := range q.Values() {
				if compareEqual(v, candidate) {
					return true
				}
			}
		}
		return false
	case "regex":
		re, err := regexp.Compile(q.Pattern())
		if err != nil {
			return false
		}
		for _, v := range lookupPath(entity, q.Field()) {
			if s, ok := v.(string); ok && re.MatchString(s) {
				return true
			}
		}
		return false
	case "and":
		for _, c := range q.Clauses() {
			if !MatchesInMemory(c, entity) {
				return false
			}
		}
		return true
	case "or":
		for _, c := range q.Clauses() {
			if MatchesInMemory(c, entity) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// lookupPath resolves a (possibly dotted) field path against entity. A
// plain field name (no ".") returns at most one value, matching the
// pre-existing flat-field behavior exactly.
func lookupPath(entity Entity, path string) []any {
	current := []any{any(entity)}
	for _, seg := range strings.Split(path, ".") {
		var next []any
		for _, c := range current {
			switch v := c.(type) {
			case map[string]any:
				if val, ok := v[seg]; ok {
					next = append(next, val)
				}
			case []any:
				for _, item := range v {
					if m, ok := item.(map[string]any); ok {
						if val, ok := m[seg]; ok {
							next = append(next, val)
						}
					}
				}
			}
		}
		current = next
	}
	return current
}

func compareEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareOrdered(a, b any, op CmpOp) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case OpGT:
		return af > bf
	case OpGTE:
		return af >= bf
	case OpLT:
		return af < bf
	case OpLTE:
		return af <= bf
	case OpNE:
		return af != bf
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
