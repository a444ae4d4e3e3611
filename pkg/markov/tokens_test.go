package markov

import (
	"reflect"
	"testing"
)

func TestSuccessors(t *testing.T) {
	var s successors
	n := linearScanLimit * 2
	for i := 0; i < n; i++ {
		s.add(100+i, 1)
	}
	s.add(100, 2)
	s.add(100+n-1, 1)

	if s.index == nil {
		t.Fatal("expected an index past the linear scan limit")
	}
	if len(s.rows) != n || s.total != n+3 {
		t.Fatalf("got %d rows with total %d", len(s.rows), s.total)
	}
	if s.rows[0] != (ChainRow{Id: 100, Freq: 3}) || s.rows[n-1] != (ChainRow{Id: 100 + n - 1, Freq: 2}) {
		t.Errorf("counts not accumulated in place: %v, %v", s.rows[0], s.rows[n-1])
	}
	for i, cr := range s.rows {
		if cr.Id != 100+i {
			t.Fatalf("insertion order lost at %d: %v", i, cr)
		}
	}
	if _, ok := s.find(7); ok {
		t.Error("find() reported an unknown id")
	}
}

func TestCountsMerge(t *testing.T) {
	m := NewModel(1)
	ids := m.Intern(ints(1, 2, 1, 3, 2, 1))

	whole := newCounts()
	m.feedIDs(whole, ids[:3], nil)
	m.feedIDs(whole, ids[3:], nil)

	first, second := newCounts(), newCounts()
	m.feedIDs(first, ids[:3], nil)
	m.feedIDs(second, ids[3:], nil)
	merged := newCounts()
	merged.merge(first)
	merged.merge(second)

	if !reflect.DeepEqual(whole, merged) {
		t.Error("merging shard tables in order differs from counting at once")
	}
}

func TestAppendPrefixKey(t *testing.T) {
	testCases := []struct {
		prefix   []int
		expected string
	}{
		{prefix: []int{0}, expected: "0"},
		{prefix: []int{0, 0, 2}, expected: "0 0 2"},
		{prefix: []int{12, 345}, expected: "12 345"},
	}
	for _, tc := range testCases {
		if got := string(appendPrefixKey(nil, tc.prefix)); got != tc.expected {
			t.Errorf("appendPrefixKey(%v) = %q, want %q", tc.prefix, got, tc.expected)
		}
	}
}

func TestInternDeduplicates(t *testing.T) {
	m := NewModel(1)
	ids := m.Intern(ints(5, 6, 5))
	if !reflect.DeepEqual(ids, []int{firstRowID, firstRowID + 1, firstRowID}) {
		t.Errorf("Intern() = %v", ids)
	}
	if m.Row(SOCRowID) != nil || m.Row(EOCRowID) != nil || m.Row(99) != nil {
		t.Error("Row() should return nil for sentinels and unknown ids")
	}
	if got := m.Row(firstRowID + 1); !got.Equal(ints(6)[0]) {
		t.Errorf("Row(%d) = %v", firstRowID+1, got.Record())
	}
}
