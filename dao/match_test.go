package dao

import "testing"

func TestMatchesInMemoryEq(t *testing.T) {
	entity := Entity{"status": "active"}
	if !MatchesInMemory(Eq("status", "active"), entity) {
		t.Fatal("expected match")
	}
	if MatchesInMemory(Eq("status", "inactive"), entity) {
		t.Fatal("expected no match")
	}
}

func TestMatchesInMemoryCmpNumeric(t *testing.T) {
	entity := Entity{"age": 25}
	if !MatchesInMemory(Cmp("age", OpGTE, 25), entity) {
		t.Fatal("expected match")
	}
	if MatchesInMemory(Cmp("age", OpLT, 25), entity) {
		t.Fatal("expected no match")
	}
}

func TestMatchesInMemoryIn(t *testing.T) {
	entity := Entity{"kind": "b"}
	if !MatchesInMemory(In("kind", []any{"a", "b"}), entity) {
		t.Fatal("expected match")
	}
	if MatchesInMemory(In("kind", []any{"a", "c"}), entity) {
		t.Fatal("expected no match")
	}
}

func TestMatchesInMemoryAndOr(t *testing.T) {
	entity := Entity{"status": "active", "age": 30}
	and := And(Eq("status", "active"), Cmp("age", OpGT, 18))
	if !MatchesInMemory(and, entity) {
		t.Fatal("expected AND match")
	}
	or := Or(Eq("status", "inactive"), Cmp("age", OpGT, 18))
	if !MatchesInMemory(or, entity) {
		t.Fatal("expected OR match")
	}
}

func TestMatchesInMemoryRegex(t *testing.T) {
	entity := Entity{"name": "hello-world"}
	if !MatchesInMemory(Regex("name", "^hello"), entity) {
		t.Fatal("expected regex match")
	}
	if MatchesInMemory(Regex("name", "^world"), entity) {
		t.Fatal("expected no regex match")
	}
}

func TestMatchesInMemoryZeroQueryMatchesEverything(t *testing.T) {
	if !MatchesInMemory(Query{}, Entity{"a": 1}) {
		t.Fatal("zero query should match everything")
	}
}

func TestMatchesInMemoryDottedPathDescendsSliceOfMaps(t *testing.T) {
	entity := Entity{
		"acl": []any{
			map[string]any{"principal_id": "u1"},
			map[string]any{"principal_id": "u2"},
		},
	}
	if !MatchesInMemory(In("acl.principal_id", []any{"u2", "u3"}), entity) {
		t.Fatal("expected a match against one ACL entry's principal_id")
	}
	if MatchesInMemory(In("acl.principal_id", []any{"u9"}), entity) {
		t.Fatal("expected no match")
	}
}
