package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/CTAG07/Marky/pkg/rows"
)

// Config holds every setting of a run. Values come from the defaults below,
// then the config file, then explicit command line flags.
type Config struct {
	OutputPath    string  `json:"output_path" yaml:"output_path" default:"out.csv" validate:"required"`
	FileCount     int     `json:"file_count" yaml:"file_count" default:"1" validate:"min=1"`
	Order         int     `json:"order" yaml:"order" default:"1" validate:"min=1"`
	InitChunkSize int     `json:"init_chunk_size" yaml:"init_chunk_size" default:"100" validate:"min=1"`
	GrowthFactor  float64 `json:"growth_factor" yaml:"growth_factor" default:"1.618033988749895" validate:"gt=1"`
	ChunkDivisor  int     `json:"chunk_divisor" yaml:"chunk_divisor" default:"1" validate:"min=1"`
	HasHeader     bool    `json:"has_header" yaml:"has_header"`
	Delimiter     string  `json:"delimiter" yaml:"delimiter" default:"," validate:"len=1"`
	StrictArity   bool    `json:"strict_arity" yaml:"strict_arity"`
	Shape         string  `json:"shape" yaml:"shape" default:"f64" validate:"oneof=hl2 ohlc ohlcv f64 i64 u64"`
	Silent        bool    `json:"silent" yaml:"silent"`
	LogLevel      string  `json:"log_level" yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`
	Seed          uint64  `json:"seed" yaml:"seed"`
	MaxSegment    int     `json:"max_segment" yaml:"max_segment" default:"4096" validate:"min=1"`
	Temperature   float64 `json:"temperature" yaml:"temperature" default:"1" validate:"gte=0"`
	TopK          int     `json:"top_k" yaml:"top_k" validate:"min=0"`
	PruneMinFreq  int     `json:"prune_min_freq" yaml:"prune_min_freq" validate:"min=0"`
	TrainWorkers  int     `json:"train_workers" yaml:"train_workers" default:"1" validate:"min=1"`
	GenWorkers    int     `json:"gen_workers" yaml:"gen_workers" validate:"min=0"`
	LedgerPath    string  `json:"ledger_path" yaml:"ledger_path"`
	MetricsPath   string  `json:"metrics_path" yaml:"metrics_path"`
}

// ConfigConflictError is returned when more than one row shape is selected.
type ConfigConflictError struct {
	Shapes []string
}

func (e *ConfigConflictError) Error() string {
	return fmt.Sprintf("more than one mode selected: %s", strings.Join(e.Shapes, ", "))
}

var validate = validator.New()

func init() {
	// Report fields by their config key.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	config := &Config{}
	defaults.MustSet(config)
	return config
}

// LoadConfig reads the configuration from a JSON or YAML file at the given
// path, chosen by extension. If the file doesn't exist, it creates one with
// default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	isYAML := isYAMLPath(path)

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			if isYAML {
				data, err = yaml.Marshal(config)
			} else {
				data, err = json.MarshalIndent(config, "", "  ")
			}
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Warn instead of failing, the run can still go ahead with defaults.
				slog.Warn("Failed to write default config file", slog.String("path", path), slog.Any("error", err))
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML {
		err = yaml.Unmarshal(file, config)
	} else {
		err = json.Unmarshal(file, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Validate checks every field against its constraints and reports all
// violations in one error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, validationMessage(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s character", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// RowShape returns the configured row shape.
func (c *Config) RowShape() (rows.Shape, error) {
	return rows.ParseShape(c.Shape)
}

// CSVOptions returns the reader and writer options of the run.
func (c *Config) CSVOptions() *rows.CSVOptions {
	opts := rows.DefaultCSVOptions()
	opts.HasHeader = c.HasHeader
	if r := []rune(c.Delimiter); len(r) == 1 {
		opts.Delimiter = r[0]
	}
	return opts
}

// SlogLevel maps the configured level name to a slog level. Silent runs only
// report warnings and errors.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if c.Silent && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	return level
}
