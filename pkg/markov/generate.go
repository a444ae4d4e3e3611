package markov

import (
	"cmp"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/CTAG07/Marky/pkg/rows"
)

// DefaultMaxLength is the default safety bound on the length of one segment.
const DefaultMaxLength = 4096

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	maxLength   int
	temperature float64
	topK        int
}

// GenerateOption is a function that configures generation parameters. It's used
// as a variadic argument in generation functions like ContinueFrom and GenerateStream.
type GenerateOption func(*generateOptions)

// WithMaxLength bounds the number of rows a single segment may contain. A
// segment normally ends when the End-Of-Chain sentinel is drawn.
func WithMaxLength(n int) GenerateOption {
	return func(o *generateOptions) { o.maxLength = n }
}

// WithTemperature adjusts the randomness of the row selection.
// A value of 1.0 is standard weighted random selection.
// Values > 1.0 increase randomness (making less frequent rows more likely).
// Values < 1.0 decrease randomness (making more frequent rows even more likely).
// A value of 0 or less results in deterministic selection (always choosing the most frequent row).
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK restricts the selection pool to the top `k` most frequent rows
// at each step. A value of 0 disables Top-K sampling.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

func newGenerateOptions(opts []GenerateOption) *generateOptions {
	options := &generateOptions{
		maxLength:   DefaultMaxLength,
		temperature: 1.0,
		topK:        0,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.maxLength < 1 {
		options.maxLength = 1
	}
	return options
}

// Start draws the first row of a sequence from the start context, or from the
// successor pool when pruning left the start context empty.
// A nil rng uses the global random source.
func (m *Model) Start(rng *rand.Rand, opts ...GenerateOption) (rows.Row, error) {
	return m.start(rng, newGenerateOptions(opts))
}

func (m *Model) start(rng *rand.Rand, options *generateOptions) (rows.Row, error) {
	choices, totalFreq := m.next(appendPrefixKey(nil, make([]int, m.order)))
	if len(choices) == 0 || totalFreq == 0 {
		// Pruning can empty the start context while other links survive.
		id, err := m.fallback(rng)
		if err != nil {
			return nil, err
		}
		return m.rows[id], nil
	}
	return m.rows[chooseNextRow(rng, choices, totalFreq, options)], nil
}

// ContinueFrom generates one segment following seed. The context is seed
// preceded by Order-1 start sentinels. See ContinueFromContext.
func (m *Model) ContinueFrom(rng *rand.Rand, seed rows.Row, opts ...GenerateOption) ([]rows.Row, error) {
	seg, err := m.continueFrom(rng, []rows.Row{seed}, newGenerateOptions(opts))
	return seg.rows, err
}

// ContinueFromContext generates one segment following the last Order rows of
// history, padding with start sentinels when fewer are given. Rows are drawn
// until the End-Of-Chain sentinel, a context with no successors, or the
// WithMaxLength bound. The segment never contains sentinels and always holds
// at least one row: when the starting context is unknown, or ends immediately,
// a row is drawn uniformly from every row ever recorded as a successor.
//
// The returned rows are owned by the model and must not be modified.
func (m *Model) ContinueFromContext(rng *rand.Rand, history []rows.Row, opts ...GenerateOption) ([]rows.Row, error) {
	seg, err := m.continueFrom(rng, history, newGenerateOptions(opts))
	return seg.rows, err
}

// segment is the result of one continuation.
type segment struct {
	rows     []rows.Row
	fellBack bool // The first row came from the uniform fallback draw.
}

func (m *Model) continueFrom(rng *rand.Rand, history []rows.Row, options *generateOptions) (segment, error) {
	var seg segment
	if len(m.counts.pool) == 0 {
		return seg, ErrUntrainedModel
	}

	prefix := make([]int, m.order)
	known := true
	if len(history) > m.order {
		history = history[len(history)-m.order:]
	}
	offset := m.order - len(history)
	for i, r := range history {
		id, ok := m.lookup(r)
		if !ok {
			known = false
			clear(prefix)
			break
		}
		prefix[offset+i] = id
	}

	var keyBuf []byte
	for len(seg.rows) < options.maxLength {
		var choices []ChainRow
		var totalFreq int
		if known {
			keyBuf = appendPrefixKey(keyBuf[:0], prefix)
			choices, totalFreq = m.next(keyBuf)
		}

		nextRow := EOCRowID
		if len(choices) > 0 {
			nextRow = chooseNextRow(rng, choices, totalFreq, options)
		}

		if nextRow == EOCRowID {
			if len(seg.rows) > 0 {
				break
			}
			var err error
			if nextRow, err = m.fallback(rng); err != nil {
				return seg, err
			}
			seg.fellBack = true
			m.logger.Debug("Continuation fell back to a uniform draw",
				slog.Bool("known_context", known),
			)
		}

		seg.rows = append(seg.rows, m.rows[nextRow])
		prefix = append(prefix[1:], nextRow)
		known = true
	}
	return seg, nil
}

// fallback draws uniformly from every real row ever recorded as a successor.
func (m *Model) fallback(rng *rand.Rand) (int, error) {
	pool := m.counts.pool
	if len(pool) == 0 {
		return 0, ErrUntrainedModel
	}
	return pool[intN(rng, len(pool))], nil
}

// chooseNextRow abstracts the row selection logic from the generation loop.
// Choices are walked in insertion order, so ties resolve the same way for the
// same random draw.
func chooseNextRow(rng *rand.Rand, choices []ChainRow, totalFreq int, options *generateOptions) int {
	var nextRow int

	// topK filtering
	if options.topK > 0 && options.topK < len(choices) {
		choices = slices.Clone(choices)
		slices.SortStableFunc(choices, func(a, b ChainRow) int {
			return cmp.Compare(b.Freq, a.Freq)
		})
		choices = choices[:options.topK]
		totalFreq = 0
		for _, choice := range choices {
			totalFreq += choice.Freq
		}
	}

	// temperature selection
	if options.temperature <= 0 { // Deterministic
		maxFreq := -1
		for _, choice := range choices {
			if choice.Freq > maxFreq {
				maxFreq = choice.Freq
				nextRow = choice.Id
			}
		}
	} else if options.temperature == 1.0 { // Standard weighted random
		randChoice := intN(rng, totalFreq)
		for _, choice := range choices {
			randChoice -= choice.Freq
			if randChoice < 0 {
				nextRow = choice.Id
				break
			}
		}
	} else { // Temperature-based sampling
		logProbabilities := make([]float64, len(choices))
		maxLogProb := math.Inf(-1)
		for i, choice := range choices {
			lp := math.Log(float64(choice.Freq)) / options.temperature
			logProbabilities[i] = lp
			if lp > maxLogProb {
				maxLogProb = lp
			}
		}
		var totalWeight float64
		weights := make([]float64, len(choices))
		for i, lp := range logProbabilities {
			w := math.Exp(lp - maxLogProb)
			weights[i] = w
			totalWeight += w
		}
		randChoice := float64N(rng) * totalWeight
		nextRow = choices[len(choices)-1].Id
		for i, choice := range choices {
			randChoice -= weights[i]
			if randChoice < 0 {
				nextRow = choice.Id
				break
			}
		}
	}
	return nextRow
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}

func float64N(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}
