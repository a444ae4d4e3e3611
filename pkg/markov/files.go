package markov

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CTAG07/Marky/pkg/rows"
)

// FilesOptions configures GenerateFiles.
type FilesOptions struct {
	TargetLen int              // Minimum number of rows per file
	FileCount int              // Number of independent streams / files
	PathFor   func(int) string // Output path of file i, 1-based
	Seed      uint64           // Base seed, used when Seeded is set
	Seeded    bool             // Derive stream i's source from (Seed, i)
	Workers   int              // Concurrent streams, GOMAXPROCS when <= 0
	CSV       *rows.CSVOptions // Output options, DefaultCSVOptions when nil
	Generate  []GenerateOption // Options applied to every stream
	OnFile    func(FileResult) // Called after each file is written, may be nil
}

// FileResult describes one written file.
type FileResult struct {
	Index     int
	Path      string
	Rows      int
	Segments  int
	Fallbacks int
	Digest    uint64
	Elapsed   time.Duration
}

// OutputPaths names the files of a run. A single file is written to output
// itself; otherwise file i is written next to it as "<i>.<base>".
func OutputPaths(output string, count int) func(int) string {
	if count <= 1 {
		return func(int) string { return output }
	}
	dir, base := filepath.Split(output)
	return func(i int) string {
		return filepath.Join(dir, strconv.Itoa(i)+"."+base)
	}
}

// GenerateFiles produces FileCount independent streams of at least TargetLen
// rows and writes each one to its own file. Streams share the model read-only
// and each uses its own random source. A file is written only once its stream
// is complete; files finished before a failure are kept.
//
// The results of the written files are returned in index order, together with
// the first error encountered.
func GenerateFiles(ctx context.Context, m *Model, opts FilesOptions) ([]FileResult, error) {
	if opts.FileCount <= 0 {
		return nil, nil
	}
	if opts.PathFor == nil {
		return nil, fmt.Errorf("markov: no output path for %d files", opts.FileCount)
	}
	if len(m.counts.pool) == 0 {
		return nil, ErrUntrainedModel
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	csvOpts := opts.CSV
	if csvOpts == nil {
		csvOpts = rows.DefaultCSVOptions()
	}
	options := newGenerateOptions(opts.Generate)

	var (
		mu      sync.Mutex
		results = make([]*FileResult, opts.FileCount)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 1; i <= opts.FileCount; i++ {
		g.Go(func() error {
			began := time.Now()
			path := opts.PathFor(i)

			var rng *rand.Rand
			if opts.Seeded {
				rng = rand.New(rand.NewPCG(opts.Seed, uint64(i)))
			} else {
				rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			}

			stream, err := m.generateStream(gctx, opts.TargetLen, rng, options)
			if err != nil {
				return fmt.Errorf("stream %d: %w", i, err)
			}
			if err := rows.WriteFile(path, stream.rows, csvOpts); err != nil {
				return fmt.Errorf("stream %d: %w", i, err)
			}

			res := FileResult{
				Index:     i,
				Path:      path,
				Rows:      len(stream.rows),
				Segments:  stream.segments,
				Fallbacks: stream.fallbacks,
				Digest:    rows.Digest(stream.rows),
				Elapsed:   time.Since(began),
			}
			m.logger.InfoContext(gctx, "File written",
				slog.Int("index", i),
				slog.String("path", path),
				slog.Int("rows", res.Rows),
				slog.Int("segments", res.Segments),
			)

			mu.Lock()
			results[i-1] = &res
			if opts.OnFile != nil {
				opts.OnFile(res)
			}
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	written := make([]FileResult, 0, opts.FileCount)
	for _, res := range results {
		if res != nil {
			written = append(written, *res)
		}
	}
	return written, err
}
