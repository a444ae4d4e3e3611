package markov

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/CTAG07/Marky/pkg/rows"
)

// ints turns values into single-column integer rows.
func ints(vals ...int64) []rows.Row {
	out := make([]rows.Row, len(vals))
	for i, v := range vals {
		out[i] = rows.IntVector{v}
	}
	return out
}

// randomWalk returns n single-column rows following a bounded random walk.
func randomWalk(n int, seed uint64) []rows.Row {
	rng := rand.New(rand.NewPCG(seed, 0))
	out := make([]rows.Row, n)
	v := int64(0)
	for i := range out {
		v += int64(rng.IntN(5)) - 2
		v = max(-25, min(25, v))
		out[i] = rows.IntVector{v}
	}
	return out
}

// setupTrainedModel trains a model of the given order on history with plan.
func setupTrainedModel(t *testing.T, order int, history []rows.Row, plan []int) *Model {
	t.Helper()
	m := NewModel(order)
	if _, err := Train(context.Background(), m, history, plan); err != nil {
		t.Fatalf("setup: Train() failed: %v", err)
	}
	return m
}

func mustPlan(tb testing.TB, historyLen, initChunkSize int, growth float64, divisor int) []int {
	tb.Helper()
	plan, err := Plan(historyLen, initChunkSize, growth, divisor)
	if err != nil {
		tb.Fatalf("Plan() failed: %v", err)
	}
	return plan
}

var (
	benchmarkHistory []rows.Row
	historyOnce      sync.Once
)

// createBenchmarkHistory builds a long synthetic history for benchmarking.
func createBenchmarkHistory() []rows.Row {
	historyOnce.Do(func() {
		benchmarkHistory = randomWalk(100_000, 42)
	})
	return benchmarkHistory
}
