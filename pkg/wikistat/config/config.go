// Package config loads wikistat settings and builds the shared parsing
// components from them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/wikistat/internal/logger"
	"github.com/cognicore/wikistat/pkg/wikistat/dump"
	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
	"github.com/cognicore/wikistat/pkg/wikistat/markup"
	"github.com/cognicore/wikistat/pkg/wikistat/pipeline"
)

// DefaultTopN is the number of ranked words kept per page.
const DefaultTopN = 10

// Config is the ingestion configuration file.
type Config struct {
	DumpPath        string        `yaml:"dump_path"`
	ChunkSize       ByteSize      `yaml:"chunk_size"`
	TopN            int           `yaml:"top_n"`
	OutputPath      string        `yaml:"output_path"`
	DBPath          string        `yaml:"db_path"`
	SchemaPath      string        `yaml:"schema_path"`
	StoplistPath    string        `yaml:"stoplist_path"`
	IgnoredSections []string      `yaml:"ignored_sections"`
	Workers         int           `yaml:"workers"`
	QueueCapacity   int           `yaml:"queue_capacity"`
	Ordered         bool          `yaml:"ordered"`
	MetricsPath     string        `yaml:"metrics_path"`
	Log             logger.Config `yaml:"log"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		ChunkSize:       ByteSize(dump.DefaultChunkSize),
		TopN:            DefaultTopN,
		DBPath:          "wikistat.db",
		IgnoredSections: append([]string(nil), markup.DefaultIgnoredSections...),
		Ordered:         true,
		Log:             logger.Config{Level: "info"},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults. Unknown keys are rejected. The result is not validated so
// that command-line overrides can be applied first.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w: %w", path, internalerr.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []string
	if c.DumpPath == "" {
		problems = append(problems, "dump_path is required")
	}
	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.ChunkSize == 0 {
		problems = append(problems, "chunk_size must be positive")
	}
	if c.ChunkSize > ByteSize(maxChunkSize) {
		problems = append(problems, fmt.Sprintf("chunk_size must be at most %s", ByteSize(maxChunkSize)))
	}
	if c.TopN <= 0 {
		problems = append(problems, "top_n must be positive")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must not be negative")
	}
	if c.QueueCapacity < 0 {
		problems = append(problems, "queue_capacity must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Pipeline returns the coordinator settings, resolving zero worker and
// queue counts.
func (c Config) Pipeline() pipeline.Settings {
	workers := c.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	queue := c.QueueCapacity
	if queue == 0 {
		queue = 2 * workers
	}
	return pipeline.Settings{
		ChunkSize:     int(c.ChunkSize),
		Workers:       workers,
		QueueCapacity: queue,
		Ordered:       c.Ordered,
	}
}

// Loader returns a component loader for this configuration.
func (c Config) Loader() Loader {
	return Loader{
		StoplistPath:    c.StoplistPath,
		SchemaPath:      c.SchemaPath,
		IgnoredSections: c.IgnoredSections,
		TopN:            c.TopN,
	}
}

const maxChunkSize = 1 << 30

// ByteSize is a size in bytes written either as a plain integer or in
// human form ("64KiB", "1 MB").
type ByteSize uint64

// ParseByteSize parses a human-readable byte size.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: byte size must be a scalar", node.Line)
	}
	n, err := ParseByteSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*b = n
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Set parses s into b, so a *ByteSize can back a command-line flag.
func (b *ByteSize) Set(s string) error {
	n, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = n
	return nil
}

// Type names the flag value type.
func (b *ByteSize) Type() string { return "bytes" }
