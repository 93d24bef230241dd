package state

import (
	"encoding/json"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	defer s.Close()

	s.Set("a", StringValue("hello"), SetOptions{})
	entry, ok := s.Get("a")
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if entry.Value.Str != "hello" {
		t.Errorf("Str = %q, want hello", entry.Value.Str)
	}
}

func TestGetExpiredEntryIsEvictedLazily(t *testing.T) {
	s := New()
	defer s.Close()

	s.Set("ttl", StringValue("x"), SetOptions{TTLSeconds: -1})
	if _, ok := s.Get("ttl"); ok {
		t.Error("expected already-expired entry to be absent on read")
	}
	if s.Has("ttl") {
		t.Error("expected Has to report false for expired entry")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	s := New()
	defer s.Close()

	s.Set("k", StringValue("v"), SetOptions{})
	if !s.Delete("k") {
		t.Error("expected Delete to report true for existing key")
	}
	if s.Delete("k") {
		t.Error("expected second Delete to report false")
	}
}

func TestClearByCategoryOnlyRemovesMatching(t *testing.T) {
	s := New()
	defer s.Close()

	s.Set("a", StringValue("1"), SetOptions{Metadata: &Metadata{Category: "jobs"}})
	s.Set("b", StringValue("2"), SetOptions{Metadata: &Metadata{Category: "other"}})

	s.Clear("jobs")

	if s.Has("a") {
		t.Error("expected category-matching entry to be cleared")
	}
	if !s.Has("b") {
		t.Error("expected non-matching entry to survive")
	}
}

func TestQueryFiltersByTagAndSortsByUpdatedAtDescending(t *testing.T) {
	s := New()
	defer s.Close()

	s.Set("first", StringValue("1"), SetOptions{Metadata: &Metadata{Tags: []string{"x"}}})
	s.Set("second", StringValue("2"), SetOptions{Metadata: &Metadata{Tags: []string{"x"}}})
	s.Set("other", StringValue("3"), SetOptions{Metadata: &Metadata{Tags: []string{"y"}}})

	results := s.Query(QueryOptions{TagsAny: []string{"x"}})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Key != "second" || results[1].Key != "first" {
		t.Errorf("order = [%s %s], want [second first]", results[0].Key, results[1].Key)
	}
}

func TestQueryPaginationAppliedLast(t *testing.T) {
	s := New()
	defer s.Close()
	for _, k := range []string{"a", "b", "c"} {
		s.Set(k, StringValue(k), SetOptions{})
	}
	results := s.Query(QueryOptions{Limit: 1, Offset: 1})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestIncrementCreatesAtZeroThenAdds(t *testing.T) {
	s := New()
	defer s.Close()

	v, err := s.Increment("counter", 5)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if v != 5 {
		t.Errorf("v = %v, want 5", v)
	}
	v, _ = s.Increment("counter", 3)
	if v != 8 {
		t.Errorf("v = %v, want 8", v)
	}
}

func TestAppendGrowsArray(t *testing.T) {
	s := New()
	defer s.Close()

	if err := s.Append("list", json.RawMessage(`"a"`)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("list", json.RawMessage(`"b"`)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	entry, _ := s.Get("list")
	var arr []string
	if err := json.Unmarshal(entry.Value.Object, &arr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(arr) != 2 || arr[0] != "a" || arr[1] != "b" {
		t.Errorf("arr = %v, want [a b]", arr)
	}
}

func TestExtendMergesFields(t *testing.T) {
	s := New()
	defer s.Close()

	s.Extend("obj", map[string]json.RawMessage{"a": json.RawMessage(`1`)})
	s.Extend("obj", map[string]json.RawMessage{"b": json.RawMessage(`2`)})

	entry, _ := s.Get("obj")
	var obj map[string]int
	if err := json.Unmarshal(entry.Value.Object, &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if obj["a"] != 1 || obj["b"] != 2 {
		t.Errorf("obj = %v, want a=1 b=2", obj)
	}
}

func TestOperationsLogCapsAtCapacity(t *testing.T) {
	s := New()
	defer s.Close()
	for i := 0; i < opsLogCapacity+50; i++ {
		s.Set("k", StringValue("v"), SetOptions{})
	}
	if len(s.OperationsLog(0)) != opsLogCapacity {
		t.Errorf("ops log len = %d, want %d", len(s.OperationsLog(0)), opsLogCapacity)
	}
}

func TestDefaultPanicsBeforeSetDefault(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when Default() called before SetDefault()")
		}
	}()
	defaultStore.Store(nil)
	Default()
}
