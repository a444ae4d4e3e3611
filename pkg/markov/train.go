package markov

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/CTAG07/Marky/pkg/rows"
)

// TrainReport summarises a call to Train.
type TrainReport struct {
	Passes  int // Number of full passes over the history
	Windows int // Number of sequences fed across all passes
	Rows    int // Number of rows fed across all passes
}

type trainOptions struct {
	workers int
}

// TrainOption configures Train.
type TrainOption func(*trainOptions)

// WithWorkers splits the windows of each pass across n goroutines. Each one
// counts into a private table and the tables are merged in window order, so the
// trained model is identical to a single-threaded run. Values below 2 keep
// training on the calling goroutine.
func WithWorkers(n int) TrainOption {
	return func(o *trainOptions) { o.workers = n }
}

// Feed trains the model on one bounded sequence. The sequence is preceded by
// Order start sentinels and followed by an end sentinel. Empty input is a no-op.
func (m *Model) Feed(seq []rows.Row) {
	if len(seq) == 0 {
		return
	}
	ids := m.Intern(seq)
	m.feedIDs(m.counts, ids, nil)
	m.sequences++
}

// feedIDs counts every (context -> next) transition of one padded sequence
// into c. It only reads the model, so several goroutines may call it with
// their own tables.
func (m *Model) feedIDs(c *counts, seq []int, keyBuf []byte) []byte {
	fullSlice := make([]int, len(seq)+m.order+1)
	copy(fullSlice[m.order:len(fullSlice)-1], seq)
	fullSlice[len(fullSlice)-1] = EOCRowID

	for i := 0; i < len(seq)+1; i++ { // Iterate len+1 to include the final EOC.
		keyBuf = appendPrefixKey(keyBuf[:0], fullSlice[i:i+m.order])
		next := fullSlice[i+m.order]
		c.count(string(keyBuf), next, 1)
		c.remember(next)
	}
	return keyBuf
}

type window struct {
	start, end int
}

// windows cuts n rows into consecutive windows of size rows, the last one
// possibly shorter.
func windows(n, size int) []window {
	out := make([]window, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, window{start: start, end: min(start+size, n)})
	}
	return out
}

// Train makes one full pass over history for every chunk size in plan,
// feeding each window of the pass as an independent sequence. The history is
// interned once and every pass slices the same ids.
//
// An empty plan with a non-empty history feeds the whole history as a single
// window, so short histories still produce a usable model.
func Train(ctx context.Context, m *Model, history []rows.Row, plan []int, opts ...TrainOption) (TrainReport, error) {
	options := &trainOptions{workers: 1}
	for _, opt := range opts {
		opt(options)
	}

	var report TrainReport
	if len(history) == 0 {
		m.logger.WarnContext(ctx, "Training skipped, history is empty")
		return report, nil
	}
	for _, size := range plan {
		if size < 1 {
			return report, fmt.Errorf("%w: chunk size %d", ErrInvalidSchedule, size)
		}
	}
	if len(plan) == 0 {
		m.logger.WarnContext(ctx, "Chunk schedule is empty, training on the whole history",
			slog.Int("history_rows", len(history)),
		)
		plan = []int{len(history)}
	}

	ids := m.Intern(history)

	for _, size := range plan {
		ws := windows(len(ids), size)
		if err := m.trainPass(ctx, ids, ws, options.workers); err != nil {
			return report, err
		}
		m.sequences += len(ws)
		report.Passes++
		report.Windows += len(ws)
		report.Rows += len(ids)

		m.logger.DebugContext(ctx, "Training pass completed",
			slog.Int("chunk_size", size),
			slog.Int("windows", len(ws)),
		)
	}

	m.logger.InfoContext(ctx, "Training completed",
		slog.Int("order", m.order),
		slog.Int("passes", report.Passes),
		slog.Int("sequences_processed", report.Windows),
		slog.Int("contexts", len(m.counts.chains)),
	)
	return report, nil
}

func (m *Model) trainPass(ctx context.Context, ids []int, ws []window, workers int) error {
	if workers < 2 || len(ws) < 2 {
		var keyBuf []byte
		for _, w := range ws {
			if err := ctx.Err(); err != nil {
				return err
			}
			keyBuf = m.feedIDs(m.counts, ids[w.start:w.end], keyBuf)
		}
		return nil
	}

	workers = min(workers, len(ws))
	shards := make([]*counts, workers)
	g, gctx := errgroup.WithContext(ctx)
	for s := range workers {
		part := ws[s*len(ws)/workers : (s+1)*len(ws)/workers]
		g.Go(func() error {
			c := newCounts()
			var keyBuf []byte
			for _, w := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				keyBuf = m.feedIDs(c, ids[w.start:w.end], keyBuf)
			}
			shards[s] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, c := range shards {
		m.counts.merge(c)
	}
	return nil
}
