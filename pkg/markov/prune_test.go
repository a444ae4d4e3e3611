package markov

import (
	"context"
	"reflect"
	"testing"
)

func TestPrune(t *testing.T) {
	m := NewModel(1)
	m.Feed(ints(1, 2, 3))
	m.Feed(ints(1, 2, 4))
	// Chain 1 -> 2 has freq 2. Chains 2 -> 3, 2 -> 4 and both endings have freq 1.

	removed := m.Prune(1)
	if removed != 4 {
		t.Errorf("Prune(1) removed %d links, want 4", removed)
	}

	one, two := firstRowID, firstRowID+1
	if got, total := m.NextRows([]int{one}); !reflect.DeepEqual(got, []ChainRow{{Id: two, Freq: 2}}) || total != 2 {
		t.Errorf("chain 1 -> 2 should survive, got %v (%d)", got, total)
	}
	if got, _ := m.NextRows([]int{two}); got != nil {
		t.Errorf("context 2 should be dropped, got %v", got)
	}
	if !reflect.DeepEqual(m.counts.pool, []int{one, two}) {
		t.Errorf("successor pool = %v, want [%d %d]", m.counts.pool, one, two)
	}

	stats := m.Stats()
	if stats.Contexts != 2 || stats.TotalChains != 2 || stats.TotalFrequency != 4 {
		t.Errorf("unexpected stats after pruning: %+v", stats)
	}
}

func TestPruneNoop(t *testing.T) {
	m := NewModel(1)
	m.Feed(ints(1, 2, 3))
	before := m.Stats()
	if removed := m.Prune(0); removed != 0 {
		t.Errorf("Prune(0) removed %d links", removed)
	}
	if m.Stats() != before {
		t.Error("Prune(0) changed the model")
	}
}

func TestPruneRebuildsIndex(t *testing.T) {
	m := NewModel(1)
	seq := make([]int64, 0, 2*(linearScanLimit+4))
	for i := int64(0); i < linearScanLimit+4; i++ {
		seq = append(seq, 0, i+1) // 0 -> i+1 once each
	}
	m.Feed(ints(seq...))
	m.Feed(ints(0, 1, 0, 2, 0, 3)) // 0 -> 1, 2, 3 a second time

	m.Prune(1)
	zero, _ := m.lookup(ints(0)[0])
	got, total := m.NextRows([]int{zero})
	if len(got) != 3 || total != 6 {
		t.Fatalf("expected 3 surviving successors of 0, got %v", got)
	}
	s := m.counts.chains[string(appendPrefixKey(nil, []int{zero}))]
	if s.index != nil {
		t.Error("short successor lists should not keep an index")
	}
	for i, cr := range got {
		if pos, ok := s.find(cr.Id); !ok || pos != i {
			t.Errorf("find(%d) = %d, %v; want %d", cr.Id, pos, ok, i)
		}
	}
}

func TestPruneStartersStillGenerates(t *testing.T) {
	m := NewModel(1)
	m.Feed(ints(1, 2, 3, 2, 3, 2, 3))
	// The only starter (1) is seen once, while 2 -> 3 and 3 -> 2 repeat.
	m.Prune(1)

	if got, _ := m.NextRows([]int{SOCRowID}); got != nil {
		t.Fatalf("start context should be pruned, got %v", got)
	}

	row, err := m.Start(nil)
	if err != nil {
		t.Fatalf("Start() after pruning failed: %v", err)
	}
	if !row.Equal(ints(2)[0]) && !row.Equal(ints(3)[0]) {
		t.Errorf("Start() = %v, want a surviving row", row.Record())
	}

	out, err := GenerateStream(context.Background(), m, 10, nil)
	if err != nil {
		t.Fatalf("GenerateStream() after pruning failed: %v", err)
	}
	if len(out) < 10 {
		t.Errorf("GenerateStream() returned %d rows, want at least 10", len(out))
	}
}
