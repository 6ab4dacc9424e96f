// Package config handles YAML configuration loading for the quarry battle
// runtime. All values are optional: a key the file omits keeps its value
// from Defaults(). No command-line flag overrides a config-file value;
// --config only selects the file.
package config

import (
	"fmt"
	"time"
)

// Config is the single recognized options object for this runtime.
type Config struct {
	Queue     QueueConfig     `yaml:"queue"`
	Cache     CacheConfig     `yaml:"cache"`
	Retry     RetryConfig     `yaml:"retry"`
	Stream    StreamConfig    `yaml:"stream"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	Services  ServicesConfig  `yaml:"services"`
}

// QueueConfig controls admission and worker concurrency.
type QueueConfig struct {
	WorkerConcurrency  int `yaml:"worker_concurrency"`
	MaxJobsPerUser     int `yaml:"max_jobs_per_user"`
	SystemQueueLimit   int `yaml:"system_queue_limit"`
	WarningThreshold   int `yaml:"warning_threshold"`
	CriticalThreshold  int `yaml:"critical_threshold"`
}

// CacheConfig controls the fingerprint -> result cache.
type CacheConfig struct {
	TTLDays int `yaml:"ttl_days"`
}

// RetryConfig controls pipeline retry/backoff behavior.
type RetryConfig struct {
	MaxRetries      int      `yaml:"max_retries"`
	BackoffDelay    Duration `yaml:"backoff_delay"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// StreamConfig controls progress-stream cadence.
type StreamConfig struct {
	UpdateInterval   Duration `yaml:"update_interval"`
	KeepaliveInterval Duration `yaml:"keepalive_interval"`
}

// DedupConfig controls the in-flight dedup window.
type DedupConfig struct {
	WindowSeconds int `yaml:"window_seconds"`
}

// SimulatorConfig controls combat simulation pacing and bounds.
type SimulatorConfig struct {
	TickRate            int     `yaml:"tick_rate"`
	MaxTicks            int     `yaml:"max_ticks"`
	SpeedMultiplier     float64 `yaml:"speed_multiplier"`
	GridWidth           int     `yaml:"grid_width"`
	GridHeight          int     `yaml:"grid_height"`
	EventRetentionTicks int     `yaml:"event_retention_ticks"`
	BroadcastHz         int     `yaml:"broadcast_hz"`
	SelectionRadius     int     `yaml:"selection_radius"`
	CriticalChance      float64 `yaml:"critical_chance"`
	CriticalMultiplier  float64 `yaml:"critical_multiplier"`
}

// RedisConfig configures the backing KV store for queue/cache/dedup.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig configures durable persistence of finished creature results.
type StorageConfig struct {
	Backend     string `yaml:"backend"` // "s3" or "memory"
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig configures the completion-notification adapter.
type AdapterConfig struct {
	Type    string            `yaml:"type"` // "webhook" or "redis"
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// ServicesConfig configures the HTTP endpoints of the three external
// pipeline collaborators (image generation, vision analysis, animation
// rendering). These services live outside this module's scope; the
// runtime only needs their base URLs and a shared call timeout.
type ServicesConfig struct {
	ImageURL    string   `yaml:"image_url"`
	VisionURL   string   `yaml:"vision_url"`
	AnimatorURL string   `yaml:"animator_url"`
	Timeout     Duration `yaml:"timeout"`
	APIKey      string   `yaml:"api_key,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Defaults returns a Config populated with the defaults named throughout
// this platform's operation (worker_concurrency, tick_rate=60, dedup window=10s, etc.).
func Defaults() Config {
	return Config{
		Queue: QueueConfig{
			WorkerConcurrency: 4,
			MaxJobsPerUser:    5,
			SystemQueueLimit:  100,
			WarningThreshold:  80,
			CriticalThreshold: 95,
		},
		Cache: CacheConfig{TTLDays: 30},
		Retry: RetryConfig{
			MaxRetries:        1,
			BackoffDelay:      Duration{2 * time.Second},
			BackoffMultiplier: 2.0,
		},
		Stream: StreamConfig{
			UpdateInterval:    Duration{500 * time.Millisecond},
			KeepaliveInterval: Duration{15 * time.Second},
		},
		Dedup: DedupConfig{WindowSeconds: 10},
		Simulator: SimulatorConfig{
			TickRate:            60,
			MaxTicks:            3600,
			SpeedMultiplier:     1.0,
			GridWidth:           20,
			GridHeight:          20,
			EventRetentionTicks: 300,
			BroadcastHz:         10,
			SelectionRadius:     8,
			CriticalChance:      0.1,
			CriticalMultiplier:  1.5,
		},
		Services: ServicesConfig{
			Timeout: Duration{30 * time.Second},
		},
	}
}
