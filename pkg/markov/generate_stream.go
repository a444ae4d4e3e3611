package markov

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/CTAG07/Marky/pkg/rows"
)

// streamResult is a generated stream together with how it was produced.
type streamResult struct {
	rows      []rows.Row
	segments  int
	fallbacks int
}

// GenerateStream produces at least targetLen rows by chaining segments. A start
// row is drawn first and is not emitted; each segment then continues from the
// last Order rows seen so far, the start row included. The final segment is
// kept whole, so the result may be longer than targetLen. A targetLen of 0 or
// less returns no rows.
//
// The context is checked between segments. A nil rng uses the global random
// source.
func GenerateStream(ctx context.Context, m *Model, targetLen int, rng *rand.Rand, opts ...GenerateOption) ([]rows.Row, error) {
	res, err := m.generateStream(ctx, targetLen, rng, newGenerateOptions(opts))
	return res.rows, err
}

func (m *Model) generateStream(ctx context.Context, targetLen int, rng *rand.Rand, options *generateOptions) (streamResult, error) {
	var res streamResult
	if targetLen <= 0 {
		return res, nil
	}

	start, err := m.start(rng, options)
	if err != nil {
		return res, err
	}

	res.rows = make([]rows.Row, 0, targetLen)
	tail := []rows.Row{start}
	for len(res.rows) < targetLen {
		select {
		case <-ctx.Done():
			m.logger.DebugContext(ctx, "Generation stream cancelled by context",
				slog.Int("rows_generated", len(res.rows)),
			)
			return res, ctx.Err()
		default:
			// continue
		}

		seg, err := m.continueFrom(rng, tail, options)
		if err != nil {
			return res, err
		}
		res.rows = append(res.rows, seg.rows...)
		res.segments++
		if seg.fellBack {
			res.fallbacks++
		}

		if len(res.rows) >= m.order {
			tail = res.rows[len(res.rows)-m.order:]
		} else {
			tail = append([]rows.Row{start}, res.rows...)
		}
	}
	return res, nil
}
