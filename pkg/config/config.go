// Package config collects the recognized-options configuration structs
// (registry, allocator, worker, streaming) plus the ambient server/CLI
// configuration, loaded with github.com/kelseyhightower/envconfig and
// github.com/joho/godotenv: LoadDotEnv once, then envconfig.Process per
// struct.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LoadDotEnv loads a local .env file if present; absence is not an error,
// mirroring cli_config.go's `_ = godotenv.Load()`.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// EvictionPolicy is the model registry's C7 eviction strategy.
type EvictionPolicy string

const (
	EvictionLRU    EvictionPolicy = "LRU"
	EvictionTTL    EvictionPolicy = "TTL"
	EvictionManual EvictionPolicy = "Manual"
)

// RegistryConfig is the C7 model registry's recognized options.
type RegistryConfig struct {
	TTLSeconds     int            `envconfig:"REGISTRY_TTL_SECONDS" default:"600"`
	MaxMemoryBytes int64          `envconfig:"REGISTRY_MAX_MEMORY_BYTES" default:"4294967296"`
	EvictionPolicy EvictionPolicy `envconfig:"REGISTRY_EVICTION_POLICY" default:"LRU"`
	EnableMetrics  bool           `envconfig:"REGISTRY_ENABLE_METRICS" default:"true"`
}

func LoadRegistryConfig() (RegistryConfig, error) {
	var cfg RegistryConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return RegistryConfig{}, err
	}
	return cfg, nil
}

// TTL returns TTLSeconds as a time.Duration for modelregistry.Config.
func (c RegistryConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// AllocatorConfig is the C9 shared-memory allocator's recognized options.
type AllocatorConfig struct {
	MaxMemoryBytes  int64         `envconfig:"SHM_MAX_MEMORY_BYTES" default:"2147483648"`
	PerSessionQuota int64         `envconfig:"SHM_PER_SESSION_QUOTA" default:"0"`
	CleanupInterval time.Duration `envconfig:"SHM_CLEANUP_INTERVAL" default:"30s"`
}

func LoadAllocatorConfig() (AllocatorConfig, error) {
	var cfg AllocatorConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AllocatorConfig{}, err
	}
	return cfg, nil
}

// RetryPolicy is the worker client's bounded-retry shape.
type RetryPolicy struct {
	Attempts     uint          `envconfig:"WORKER_RETRY_ATTEMPTS" default:"3"`
	InitialDelay time.Duration `envconfig:"WORKER_RETRY_INITIAL_DELAY" default:"100ms"`
}

// WorkerConfig is the C8 model worker's recognized options.
type WorkerConfig struct {
	BatchSize      int           `envconfig:"WORKER_BATCH_SIZE" default:"8"`
	BatchTimeoutMs int           `envconfig:"WORKER_BATCH_TIMEOUT_MS" default:"50"`
	MaxQueueDepth  int           `envconfig:"WORKER_MAX_QUEUE_DEPTH" default:"64"`
	RetryPolicy    RetryPolicy
}

func LoadWorkerConfig() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return WorkerConfig{}, err
	}
	return cfg, nil
}

// BatchTimeout returns BatchTimeoutMs as a time.Duration.
func (c WorkerConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMs) * time.Millisecond
}

// BackpressurePolicy is the streaming session's full-queue behavior.
type BackpressurePolicy string

const (
	BackpressureDrop   BackpressurePolicy = "Drop"
	BackpressureReject BackpressurePolicy = "Reject"
	BackpressureBlock  BackpressurePolicy = "Block"
)

// StreamingConfig is one streaming session's recognized options.
type StreamingConfig struct {
	QueueCapacity int                `envconfig:"STREAM_QUEUE_CAPACITY" default:"64"`
	Backpressure  BackpressurePolicy `envconfig:"STREAM_BACKPRESSURE" default:"Reject"`
	IdleTimeout   time.Duration      `envconfig:"STREAM_IDLE_TIMEOUT" default:"30s"`
}

func LoadStreamingConfig() (StreamingConfig, error) {
	var cfg StreamingConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return StreamingConfig{}, err
	}
	return cfg, nil
}

// ServerConfig is the ambient cmd/corepipe serve-subcommand configuration,
// grounded on api/pkg/config/cli_config.go's envconfig+godotenv shape.
type ServerConfig struct {
	LogLevel   string `envconfig:"COREPIPE_LOG_LEVEL" default:"info"`
	ListenAddr string `envconfig:"COREPIPE_LISTEN_ADDR" default:":8080"`

	Registry  RegistryConfig
	Allocator AllocatorConfig
	Worker    WorkerConfig
	Streaming StreamingConfig
}

// LoadServerConfig loads .env then every sub-config, matching
// api/pkg/config/*.go's LoadServerConfig/LoadCliConfig naming.
func LoadServerConfig() (ServerConfig, error) {
	LoadDotEnv()
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}
