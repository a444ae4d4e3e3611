package markov

// ModelStats holds aggregated statistics for a Markov model.
type ModelStats struct {
	Order          int // The number of preceding rows in a context
	Vocabulary     int // The number of unique rows, sentinels excluded
	Contexts       int // The number of unique contexts with at least one successor
	TotalChains    int // The number of unique context->next_row links.
	TotalFrequency int // The sum of frequencies of all links; the total number of trained transitions.
	StartingRows   int // The number of unique rows that can start a chain.
	SuccessorPool  int // The number of unique rows the fallback draw can produce.
	Sequences      int // The number of sequences fed so far.
}

// Stats returns a snapshot of the model's statistics.
func (m *Model) Stats() ModelStats {
	stats := ModelStats{
		Order:         m.order,
		Vocabulary:    len(m.rows) - firstRowID,
		Contexts:      len(m.counts.chains),
		SuccessorPool: len(m.counts.pool),
		Sequences:     m.sequences,
	}
	for _, s := range m.counts.chains {
		stats.TotalChains += len(s.rows)
		stats.TotalFrequency += s.total
	}
	if starters, ok := m.counts.chains[string(appendPrefixKey(nil, make([]int, m.order)))]; ok {
		for _, cr := range starters.rows {
			if cr.Id >= firstRowID {
				stats.StartingRows++
			}
		}
	}
	return stats
}
