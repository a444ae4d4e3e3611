package markov

import "log/slog"

// Prune removes every link with a frequency less than or equal to `minFreq`
// and drops the contexts left without successors. The successor pool is
// rebuilt from the remaining links, keeping its previous order. Prune is meant
// to run between training and generation. It returns the number of links
// removed.
func (m *Model) Prune(minFreq int) int {
	if minFreq <= 0 {
		return 0
	}

	removed := 0
	alive := make(map[int]struct{}, len(m.counts.pool))
	for key, s := range m.counts.chains {
		kept := s.rows[:0]
		total := 0
		for _, cr := range s.rows {
			if cr.Freq <= minFreq {
				removed++
				continue
			}
			kept = append(kept, cr)
			total += cr.Freq
			alive[cr.Id] = struct{}{}
		}
		if len(kept) == 0 {
			delete(m.counts.chains, key)
			continue
		}
		if len(kept) != len(s.rows) {
			s.rows = kept
			s.total = total
			s.index = nil
			if len(s.rows) > linearScanLimit {
				s.index = make(map[int]int, len(s.rows)*2)
				for i, cr := range s.rows {
					s.index[cr.Id] = i
				}
			}
		}
	}

	pool := m.counts.pool[:0]
	for _, id := range m.counts.pool {
		if _, ok := alive[id]; ok {
			pool = append(pool, id)
		} else {
			delete(m.counts.inPool, id)
		}
	}
	m.counts.pool = pool

	m.logger.Info("Model pruned",
		slog.Int("min_frequency", minFreq),
		slog.Int("chains_removed", removed),
		slog.Int("contexts_remaining", len(m.counts.chains)),
		slog.Int("successor_pool", len(m.counts.pool)),
	)
	return removed
}
