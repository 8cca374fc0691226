package priomap_test

import (
	"testing"

	"github.com/cyphal-go/uavnode/internal/priomap"
)

func TestInsertOrdersByKeyStably(t *testing.T) {
	m := priomap.New(0)
	m.Insert(3, "a")
	m.Insert(1, "b")
	m.Insert(1, "c")
	m.Insert(2, "d")

	var keys []int
	var values []string
	for _, e := range m.All() {
		keys = append(keys, e.Key)
		values = append(values, e.Value.(string))
	}
	wantKeys := []int{1, 1, 2, 3}
	wantValues := []string{"b", "c", "d", "a"}
	for i := range wantKeys {
		if keys[i] != wantKeys[i] || values[i] != wantValues[i] {
			t.Fatalf("entry %d = (%d,%s), want (%d,%s)", i, keys[i], values[i], wantKeys[i], wantValues[i])
		}
	}
}

func TestInsertEvictsHighestKeyOnOverflow(t *testing.T) {
	// Capacity 4, priorities {3,1,4,1,5}: the 5 is evicted.
	m := priomap.New(4)
	priorities := []int{3, 1, 4, 1, 5}
	var lastEvicted priomap.Entry
	var didEvict bool
	for i, p := range priorities {
		lastEvicted, didEvict = m.Insert(p, i)
	}
	if !didEvict {
		t.Fatal("expected an eviction when the 5th item was inserted")
	}
	if lastEvicted.Key != 5 {
		t.Errorf("evicted key = %d, want 5", lastEvicted.Key)
	}
	var order []int
	for _, e := range m.All() {
		order = append(order, e.Key)
	}
	want := []int{1, 1, 3, 4}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("drain order = %v, want %v", order, want)
		}
	}
}

func TestRemoveMatchAndRemoveAllByKey(t *testing.T) {
	m := priomap.New(0)
	m.Insert(5, "x")
	m.Insert(5, "y")
	m.Insert(7, "z")

	e, ok := m.RemoveMatch(5, func(v interface{}) bool { return v.(string) == "y" })
	if !ok || e.Value.(string) != "y" {
		t.Fatalf("RemoveMatch did not find y: %+v %v", e, ok)
	}
	if m.Len() != 2 {
		t.Fatalf("Len after RemoveMatch = %d, want 2", m.Len())
	}

	n := m.RemoveAllByKey(5)
	if n != 1 {
		t.Fatalf("RemoveAllByKey(5) = %d, want 1", n)
	}
	if _, _, ok := m.FindOne(5); ok {
		t.Fatal("key 5 should be gone")
	}
	if _, _, ok := m.FindOne(7); !ok {
		t.Fatal("key 7 should remain")
	}
}

func TestFindOneMissingKey(t *testing.T) {
	m := priomap.New(0)
	m.Insert(1, "a")
	m.Insert(3, "b")
	if _, _, ok := m.FindOne(2); ok {
		t.Fatal("FindOne(2) should not find anything between 1 and 3")
	}
}
