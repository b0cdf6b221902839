package store

import (
	"slices"
	"testing"
	"time"
)

type item struct {
	id   int
	name string
}

func names(items []*item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.name
	}
	return out
}

func counter[T any](s *Store[T]) *int {
	n := 0
	s.Observe(func(Change[T]) { n++ })
	return &n
}

func TestAddDisposeRestoresPriorState(t *testing.T) {
	a, b, c := &item{1, "a"}, &item{2, "b"}, &item{3, "c"}
	s := New(WithValues(a, b))
	before := s.Get()

	h := s.Add(c)
	if got := names(s.Get()); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("after add = %v", got)
	}
	if !h.Dispose() {
		t.Fatalf("dispose = false, want true")
	}
	after := s.Get()
	if len(after) != len(before) {
		t.Fatalf("len after dispose = %d, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("element %d identity changed", i)
		}
	}
	if h.Dispose() {
		t.Fatalf("second dispose = true, want false")
	}
}

func TestDisposeRemovesByIdentityNotValue(t *testing.T) {
	s := New[item]()
	s.Add(item{1, "x"})
	h := s.Add(item{1, "x"})
	s.Add(item{2, "y"})

	// Make the equal twin distinguishable; disposal must still target h.
	s.MutateElement(0, func(it item) item { it.name = "first"; return it })
	if !h.Dispose() {
		t.Fatalf("dispose = false")
	}
	got := s.Get()
	if len(got) != 2 || got[0].name != "first" || got[1].name != "y" {
		t.Fatalf("after dispose = %+v", got)
	}
}

func TestRemoveHandleFromOtherStore(t *testing.T) {
	s1 := New[int]()
	s2 := New[int]()
	h := s1.Add(1)
	s2.Add(1)
	if s2.Remove(h) {
		t.Fatalf("foreign handle removed an element")
	}
	if (Handle[int]{}).Dispose() {
		t.Fatalf("zero handle dispose = true")
	}
}

func TestMutateElement(t *testing.T) {
	s := New(WithValues(&item{1, "a"}, &item{2, "b"}))
	notified := counter(s)

	// In-place edit returning the same pointer still notifies.
	ok := s.MutateElement(1, func(it *item) *item {
		it.name = "B"
		return it
	})
	if !ok || *notified != 1 {
		t.Fatalf("in-place: ok=%v notified=%d, want true 1", ok, *notified)
	}
	// Wholesale replacement.
	ok = s.MutateElement(0, func(*item) *item { return &item{1, "A"} })
	if !ok || *notified != 2 {
		t.Fatalf("replace: ok=%v notified=%d, want true 2", ok, *notified)
	}
	if got := names(s.Get()); !slices.Equal(got, []string{"A", "B"}) {
		t.Fatalf("values = %v", got)
	}

	for _, idx := range []int{-1, 2, 100} {
		if s.MutateElement(idx, func(it *item) *item { return it }) {
			t.Fatalf("MutateElement(%d) = true, want false", idx)
		}
	}
	if *notified != 2 {
		t.Fatalf("out of range notified, count = %d", *notified)
	}
}

func TestMutateByPredicate(t *testing.T) {
	s := New(WithValues(1, 2, 3, 4))
	notified := counter(s)
	n := s.MutateByPredicate(func(v int) bool { return v%2 == 0 }, func(v int) int { return v * 10 })
	if n != 2 {
		t.Fatalf("mutated = %d, want 2", n)
	}
	if got := s.Get(); !slices.Equal(got, []int{1, 20, 3, 40}) {
		t.Fatalf("values = %v", got)
	}
	if *notified != 1 {
		t.Fatalf("notified = %d, want 1", *notified)
	}
}

func TestMutateByPredicateEmptyStoreDoesNotNotify(t *testing.T) {
	s := New[int]()
	notified := counter(s)
	if n := s.MutateByPredicate(func(int) bool { return true }, func(v int) int { return v }); n != 0 {
		t.Fatalf("mutated = %d, want 0", n)
	}
	if *notified != 0 {
		t.Fatalf("notified = %d, want 0", *notified)
	}
	if s.Version() != 0 {
		t.Fatalf("version = %d, want 0", s.Version())
	}
}

func TestFind(t *testing.T) {
	s := New(WithValues(5, 6, 7, 8))
	notified := counter(s)
	v, ok := s.FindFirst(func(v int) bool { return v > 5 })
	if !ok || v != 6 {
		t.Fatalf("FindFirst = %d,%v, want 6,true", v, ok)
	}
	if _, ok := s.FindFirst(func(v int) bool { return v > 100 }); ok {
		t.Fatalf("FindFirst found a missing value")
	}
	if got := s.FindAll(func(v int) bool { return v > 6 }); !slices.Equal(got, []int{7, 8}) {
		t.Fatalf("FindAll = %v", got)
	}
	if got := s.FindAll(func(int) bool { return false }); got == nil || len(got) != 0 {
		t.Fatalf("FindAll none = %#v, want empty non-nil", got)
	}
	if *notified != 0 {
		t.Fatalf("reads notified %d times", *notified)
	}
}

func TestRemovals(t *testing.T) {
	s := New(WithValues(1, 2, 3, 2, 5))
	notified := counter(s)

	if !s.RemoveFirst(func(v int) bool { return v == 2 }) {
		t.Fatalf("RemoveFirst = false")
	}
	if got := s.Get(); !slices.Equal(got, []int{1, 3, 2, 5}) {
		t.Fatalf("after RemoveFirst = %v", got)
	}
	if s.RemoveFirst(func(v int) bool { return v == 9 }) {
		t.Fatalf("RemoveFirst of missing = true")
	}
	if !s.RemoveAtIndex(0) {
		t.Fatalf("RemoveAtIndex(0) = false")
	}
	if s.RemoveAtIndex(-1) || s.RemoveAtIndex(3) {
		t.Fatalf("RemoveAtIndex out of range = true")
	}
	if n := s.CullByPredicate(func(v int) bool { return v > 2 }); n != 2 {
		t.Fatalf("CullByPredicate = %d, want 2", n)
	}
	if n := s.CullByPredicate(func(v int) bool { return v > 2 }); n != 0 {
		t.Fatalf("second CullByPredicate = %d, want 0", n)
	}
	if got := s.Get(); !slices.Equal(got, []int{2}) {
		t.Fatalf("final = %v", got)
	}
	// RemoveFirst, RemoveAtIndex, CullByPredicate: one notification each.
	if *notified != 3 {
		t.Fatalf("notified = %d, want 3", *notified)
	}
}

func TestObserverSeesEveryVersion(t *testing.T) {
	s := New[int]()
	var versions []uint64
	var last []int
	cancel := s.Observe(func(c Change[int]) {
		versions = append(versions, c.Version)
		last = c.Snapshot
	})
	s.Add(1)
	s.Add(2)
	s.RemoveAtIndex(0)
	if !slices.Equal(versions, []uint64{1, 2, 3}) {
		t.Fatalf("versions = %v, want [1 2 3]", versions)
	}
	if !slices.Equal(last, []int{2}) {
		t.Fatalf("last snapshot = %v", last)
	}
	cancel()
	cancel()
	s.Add(3)
	if len(versions) != 3 {
		t.Fatalf("observer called after cancel")
	}
	if s.Version() != 4 {
		t.Fatalf("version = %d, want 4", s.Version())
	}
}

func TestObserverMayMutate(t *testing.T) {
	s := New[int]()
	var versions []uint64
	s.Observe(func(c Change[int]) {
		versions = append(versions, c.Version)
		if len(c.Snapshot) == 1 {
			s.Add(99)
		}
	})
	s.Add(1)
	if !slices.Equal(versions, []uint64{1, 2}) {
		t.Fatalf("versions = %v, want [1 2]", versions)
	}
	if got := s.Get(); !slices.Equal(got, []int{1, 99}) {
		t.Fatalf("values = %v", got)
	}
}

func TestPanickingCallerCodeReleasesLock(t *testing.T) {
	boom := func(int) bool { panic("boom") }
	cases := []struct {
		name string
		call func(s *Store[int])
	}{
		{"MutateElement", func(s *Store[int]) { s.MutateElement(1, func(int) int { panic("boom") }) }},
		{"MutateByPredicate", func(s *Store[int]) {
			s.MutateByPredicate(func(v int) bool { return v > 1 }, func(v int) int {
				if v == 3 {
					panic("boom")
				}
				return v * 10
			})
		}},
		{"RemoveFirst", func(s *Store[int]) { s.RemoveFirst(boom) }},
		{"CullByPredicate", func(s *Store[int]) {
			s.CullByPredicate(func(v int) bool {
				if v == 3 {
					panic("boom")
				}
				return true
			})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(WithValues(1, 2, 3))
			notified := counter(s)
			func() {
				defer func() {
					if recover() == nil {
						t.Errorf("expected panic to propagate")
					}
				}()
				tc.call(s)
			}()

			done := make(chan []int, 1)
			go func() { done <- s.Get() }()
			select {
			case got := <-done:
				if !slices.Equal(got, []int{1, 2, 3}) {
					t.Fatalf("values after panic = %v, want unchanged", got)
				}
			case <-time.After(time.Second):
				t.Fatalf("store still locked after panic")
			}
			if s.Version() != 0 || *notified != 0 {
				t.Fatalf("version = %d notified = %d, want 0 0", s.Version(), *notified)
			}
			s.Add(4)
			if s.Len() != 4 {
				t.Fatalf("Len = %d, want 4", s.Len())
			}
		})
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := New(WithValues(1, 2))
	got := s.Get()
	got[0] = 100
	if s.Get()[0] != 1 {
		t.Fatalf("caller mutated store through snapshot")
	}
}

func TestReaderInterface(t *testing.T) {
	var r Reader[int] = New(WithValues(1))
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}
