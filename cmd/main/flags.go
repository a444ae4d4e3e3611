package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
)

const usage = `marky, the CSV time series MCMC trainer

Usage: marky [flags] DESIRED_LEN INPUT

Flags may appear before or after the positional arguments.
`

// invocation is a parsed command line.
type invocation struct {
	config     *Config
	desiredLen int
	input      string
}

// orderFlag counts its occurrences, so "-d -d" asks for order 2. An explicit
// value such as "-d=3" sets the order directly.
type orderFlag struct {
	n int
}

func (f *orderFlag) String() string { return strconv.Itoa(f.n) }

func (f *orderFlag) Set(s string) error {
	if s == "true" {
		f.n++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("order must be a number: %w", err)
	}
	f.n = n
	return nil
}

func (f *orderFlag) IsBoolFlag() bool { return true }

// shapeFlags lists the mode switches in the order they are reported.
var shapeFlags = []string{"hl2", "ohlc", "ohlcv", "f64", "i64", "u64"}

// parseArgs parses the command line. Values from -config are applied first and
// every flag given explicitly overrides them.
func parseArgs(args []string, output io.Writer) (*invocation, error) {
	def := DefaultConfig()
	fs := flag.NewFlagSet("marky", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		_, _ = fmt.Fprint(output, usage)
		fs.PrintDefaults()
	}

	var (
		configPath = fs.String("config", "", "path of a JSON or YAML config file, created with defaults if missing")
		flagValues Config
		order      orderFlag
		modes      = make(map[string]*bool, len(shapeFlags))
	)
	fs.StringVar(&flagValues.OutputPath, "o", def.OutputPath, "output destination")
	fs.IntVar(&flagValues.FileCount, "n", def.FileCount, "generate n files named i.OUTPUT")
	fs.Var(&order, "d", "increase order of MCMC (repeatable)")
	fs.IntVar(&flagValues.InitChunkSize, "chunk", def.InitChunkSize, "initial chunk size")
	fs.Float64Var(&flagValues.GrowthFactor, "t", def.GrowthFactor, "chunking delta")
	fs.IntVar(&flagValues.ChunkDivisor, "c", def.ChunkDivisor, "chunking divisor, chunks stay below history length / c")
	fs.BoolVar(&flagValues.HasHeader, "header", def.HasHeader, "input has a header row")
	fs.BoolVar(&flagValues.StrictArity, "strict", def.StrictArity, "reject vector rows whose arity differs from the first row")
	fs.BoolVar(&flagValues.Silent, "s", def.Silent, "make me shut up")
	fs.Uint64Var(&flagValues.Seed, "seed", def.Seed, "random seed, 0 picks one at random")
	fs.IntVar(&flagValues.MaxSegment, "max-segment", def.MaxSegment, "maximum rows in one generated segment")
	fs.Float64Var(&flagValues.Temperature, "temperature", def.Temperature, "sampling temperature, 0 always picks the most frequent row")
	fs.IntVar(&flagValues.TopK, "topk", def.TopK, "sample only from the k most frequent successors, 0 disables")
	fs.IntVar(&flagValues.PruneMinFreq, "prune", def.PruneMinFreq, "drop transitions seen at most this many times before generating")
	fs.IntVar(&flagValues.TrainWorkers, "train-workers", def.TrainWorkers, "goroutines counting each training pass")
	fs.IntVar(&flagValues.GenWorkers, "workers", def.GenWorkers, "files generated concurrently, 0 uses every CPU")
	fs.StringVar(&flagValues.LedgerPath, "ledger", def.LedgerPath, "SQLite database recording runs, empty disables")
	fs.StringVar(&flagValues.MetricsPath, "metrics", def.MetricsPath, "Prometheus textfile written after the run, empty disables")
	fs.StringVar(&flagValues.LogLevel, "log-level", def.LogLevel, "log level: debug, info, warn or error")
	for _, name := range shapeFlags {
		modes[name] = fs.Bool(name, false, name+" mode")
	}

	// The flag package stops at the first positional argument, so parse the
	// remainder again after each one.
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(positional) != 2 {
		fs.Usage()
		return nil, errors.New("expected DESIRED_LEN and INPUT")
	}
	desiredLen, err := strconv.Atoi(positional[0])
	if err != nil || desiredLen < 0 {
		return nil, fmt.Errorf("DESIRED_LEN must be a non-negative number, got %q", positional[0])
	}

	var selected []string
	for _, name := range shapeFlags {
		if *modes[name] {
			selected = append(selected, name)
		}
	}
	if len(selected) > 1 {
		return nil, &ConfigConflictError{Shapes: selected}
	}

	config := def
	if *configPath != "" {
		if config, err = LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if len(selected) == 1 {
		config.Shape = selected[0]
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			config.OutputPath = flagValues.OutputPath
		case "n":
			config.FileCount = flagValues.FileCount
		case "d":
			config.Order = order.n
		case "chunk":
			config.InitChunkSize = flagValues.InitChunkSize
		case "t":
			config.GrowthFactor = flagValues.GrowthFactor
		case "c":
			config.ChunkDivisor = flagValues.ChunkDivisor
		case "header":
			config.HasHeader = flagValues.HasHeader
		case "strict":
			config.StrictArity = flagValues.StrictArity
		case "s":
			config.Silent = flagValues.Silent
		case "seed":
			config.Seed = flagValues.Seed
		case "max-segment":
			config.MaxSegment = flagValues.MaxSegment
		case "temperature":
			config.Temperature = flagValues.Temperature
		case "topk":
			config.TopK = flagValues.TopK
		case "prune":
			config.PruneMinFreq = flagValues.PruneMinFreq
		case "train-workers":
			config.TrainWorkers = flagValues.TrainWorkers
		case "workers":
			config.GenWorkers = flagValues.GenWorkers
		case "ledger":
			config.LedgerPath = flagValues.LedgerPath
		case "metrics":
			config.MetricsPath = flagValues.MetricsPath
		case "log-level":
			config.LogLevel = flagValues.LogLevel
		}
	})

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &invocation{config: config, desiredLen: desiredLen, input: positional[1]}, nil
}
