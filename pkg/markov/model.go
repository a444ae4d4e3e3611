package markov

import (
	"io"
	"log/slog"

	"github.com/CTAG07/Marky/pkg/rows"
)

const (
	// SOCRowID is the reserved ID for the Start-Of-Chain sentinel.
	SOCRowID = 0
	// EOCRowID is the reserved ID for the End-Of-Chain sentinel.
	EOCRowID = 1

	firstRowID = 2
)

// Model is an order-k Markov model over rows. The zero value is not usable;
// create models with NewModel.
//
// A Model is mutated by Feed, Train and Prune. Once training is over it may be
// shared by any number of goroutines generating at the same time.
type Model struct {
	order     int
	vocab     map[string]int // row key -> row id
	rows      []rows.Row     // row id -> row, nil for the sentinels
	counts    *counts
	sequences int
	logger    *slog.Logger
}

// NewModel returns an empty model of the given order. Orders below 1 are
// treated as 1.
func NewModel(order int) *Model {
	if order < 1 {
		order = 1
	}
	return &Model{
		order:  order,
		vocab:  make(map[string]int),
		rows:   make([]rows.Row, firstRowID, 1024),
		counts: newCounts(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Order returns the number of preceding rows used to predict the next one.
func (m *Model) Order() int {
	return m.order
}

// SetLogger sets the logger for the Model. By default, all logs are discarded.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Intern assigns ids to rs, adding unseen rows to the vocabulary.
func (m *Model) Intern(rs []rows.Row) []int {
	ids := make([]int, len(rs))
	for i, r := range rs {
		ids[i] = m.intern(r)
	}
	return ids
}

func (m *Model) intern(r rows.Row) int {
	key := r.Key()
	if id, ok := m.vocab[key]; ok {
		return id
	}
	id := len(m.rows)
	m.vocab[key] = id
	m.rows = append(m.rows, r.Clone())
	return id
}

// lookup returns the id of a row already in the vocabulary.
func (m *Model) lookup(r rows.Row) (int, bool) {
	id, ok := m.vocab[r.Key()]
	return id, ok
}

// Row returns the row interned under id, or nil for sentinels and unknown ids.
// The returned row is owned by the model and must not be modified.
func (m *Model) Row(id int) rows.Row {
	if id < firstRowID || id >= len(m.rows) {
		return nil
	}
	return m.rows[id]
}
