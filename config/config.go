// Package config loads engine settings from a YAML file. Every field has a
// working default, so an empty or missing file yields a usable
// configuration for embedded use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "300ms"
// or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the tunable settings for the engine and its collaborators.
type Config struct {
	Retrieval RetrievalConfig `yaml:"retrieval"`
	PlanCache PlanCacheConfig `yaml:"plan_cache"`
	Worker    WorkerConfig    `yaml:"worker"`
	Graph     GraphConfig     `yaml:"graph"`
}

// RetrievalConfig bounds the read path.
type RetrievalConfig struct {
	// Limit is the default merged result count per request.
	Limit int `yaml:"limit"`

	// SemanticTimeout bounds the vector branch.
	SemanticTimeout Duration `yaml:"semantic_timeout"`

	// GraphTimeout bounds the temporal graph branch.
	GraphTimeout Duration `yaml:"graph_timeout"`

	// ChunkTimeout bounds the document-chunk branch.
	ChunkTimeout Duration `yaml:"chunk_timeout"`

	// PlannerTimeout bounds one planner consultation.
	PlannerTimeout Duration `yaml:"planner_timeout"`
}

// PlanCacheConfig sizes the context plan cache.
type PlanCacheConfig struct {
	MaxEntries int64    `yaml:"max_entries"`
	TTL        Duration `yaml:"ttl"`
}

// WorkerConfig tunes the background ingestion worker.
type WorkerConfig struct {
	QueueSize    int      `yaml:"queue_size"`
	MaxRetries   int      `yaml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff"`
	WriteTimeout Duration `yaml:"write_timeout"`

	// NarrativeRecent is how many recent episodes feed narrative synthesis.
	NarrativeRecent  int      `yaml:"narrative_recent"`
	NarrativeUsers   int64    `yaml:"narrative_users"`
	NarrativeTimeout Duration `yaml:"narrative_timeout"`
}

// GraphConfig locates the episode store.
type GraphConfig struct {
	// Dir is the on-disk location of the episode store. Empty runs it
	// in memory.
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Retrieval: RetrievalConfig{
			Limit:           10,
			SemanticTimeout: Duration(300 * time.Millisecond),
			GraphTimeout:    Duration(2 * time.Second),
			ChunkTimeout:    Duration(25 * time.Second),
			PlannerTimeout:  Duration(time.Second),
		},
		PlanCache: PlanCacheConfig{
			MaxEntries: 4096,
			TTL:        Duration(30 * time.Minute),
		},
		Worker: WorkerConfig{
			QueueSize:        64,
			MaxRetries:       3,
			RetryBackoff:     Duration(100 * time.Millisecond),
			WriteTimeout:     Duration(5 * time.Second),
			NarrativeRecent:  20,
			NarrativeUsers:   4096,
			NarrativeTimeout: Duration(10 * time.Second),
		},
	}
}

// Load reads a YAML configuration file over the defaults. File values
// override defaults field by field; fields absent from the file keep their
// default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	merge(&cfg, file)
	return cfg, nil
}

func merge(dst *Config, src Config) {
	if src.Retrieval.Limit > 0 {
		dst.Retrieval.Limit = src.Retrieval.Limit
	}
	if src.Retrieval.SemanticTimeout > 0 {
		dst.Retrieval.SemanticTimeout = src.Retrieval.SemanticTimeout
	}
	if src.Retrieval.GraphTimeout > 0 {
		dst.Retrieval.GraphTimeout = src.Retrieval.GraphTimeout
	}
	if src.Retrieval.ChunkTimeout > 0 {
		dst.Retrieval.ChunkTimeout = src.Retrieval.ChunkTimeout
	}
	if src.Retrieval.PlannerTimeout > 0 {
		dst.Retrieval.PlannerTimeout = src.Retrieval.PlannerTimeout
	}
	if src.PlanCache.MaxEntries > 0 {
		dst.PlanCache.MaxEntries = src.PlanCache.MaxEntries
	}
	if src.PlanCache.TTL > 0 {
		dst.PlanCache.TTL = src.PlanCache.TTL
	}
	if src.Worker.QueueSize > 0 {
		dst.Worker.QueueSize = src.Worker.QueueSize
	}
	if src.Worker.MaxRetries > 0 {
		dst.Worker.MaxRetries = src.Worker.MaxRetries
	}
	if src.Worker.RetryBackoff > 0 {
		dst.Worker.RetryBackoff = src.Worker.RetryBackoff
	}
	if src.Worker.WriteTimeout > 0 {
		dst.Worker.WriteTimeout = src.Worker.WriteTimeout
	}
	if src.Worker.NarrativeRecent > 0 {
		dst.Worker.NarrativeRecent = src.Worker.NarrativeRecent
	}
	if src.Worker.NarrativeUsers > 0 {
		dst.Worker.NarrativeUsers = src.Worker.NarrativeUsers
	}
	if src.Worker.NarrativeTimeout > 0 {
		dst.Worker.NarrativeTimeout = src.Worker.NarrativeTimeout
	}
	if src.Graph.Dir != "" {
		dst.Graph.Dir = src.Graph.Dir
	}
}
