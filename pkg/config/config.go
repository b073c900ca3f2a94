package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Transcoder struct {
		BinaryPath      string        `yaml:"binary_path"`
		OutputDir       string        `yaml:"output_dir"`
		StartTimeout    time.Duration `yaml:"start_timeout"`
		StopGracePeriod time.Duration `yaml:"stop_grace_period"`
	} `yaml:"transcoder"`

	Streaming struct {
		IdleTimeout         time.Duration `yaml:"idle_timeout"`
		ReapInterval        time.Duration `yaml:"reap_interval"`
		HealthInterval      time.Duration `yaml:"health_interval"`
		MaxSessionsPerStore int           `yaml:"max_sessions_per_store"`
	} `yaml:"streaming"`

	Auth struct {
		IdentitySecret    string        `yaml:"identity_secret"`
		StreamTokenSecret string        `yaml:"stream_token_secret"`
		StreamTokenTTL    time.Duration `yaml:"stream_token_ttl"`
	} `yaml:"auth"`

	Directory struct {
		Mode        string        `yaml:"mode"` // "http" or "memory"
		BaseURL     string        `yaml:"base_url"`
		Timeout     time.Duration `yaml:"timeout"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
		KeyringPath string        `yaml:"keyring_path"`
	} `yaml:"directory"`

	Redis struct {
		Enabled     bool   `yaml:"enabled"`
		Address     string `yaml:"address"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		AuditStream string `yaml:"audit_stream"`
		AuditMaxLen int64  `yaml:"audit_max_len"`
	} `yaml:"redis"`

	Audit struct {
		BatchSize     int           `yaml:"batch_size"`
		FlushInterval time.Duration `yaml:"flush_interval"`
	} `yaml:"audit"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout < 0 {
		// Zero disables the timeout, which delivery needs for long-lived streams.
		return fmt.Errorf("server.write_timeout must be >= 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Transcoder.BinaryPath == "" {
		return fmt.Errorf("transcoder.binary_path must not be empty")
	}
	if c.Transcoder.OutputDir == "" {
		return fmt.Errorf("transcoder.output_dir must not be empty")
	}
	if c.Transcoder.StartTimeout <= 0 {
		return fmt.Errorf("transcoder.start_timeout must be > 0")
	}
	if c.Transcoder.StopGracePeriod <= 0 {
		return fmt.Errorf("transcoder.stop_grace_period must be > 0")
	}

	if c.Streaming.IdleTimeout <= 0 {
		return fmt.Errorf("streaming.idle_timeout must be > 0")
	}
	if c.Streaming.ReapInterval <= 0 {
		return fmt.Errorf("streaming.reap_interval must be > 0")
	}
	if c.Streaming.HealthInterval <= 0 {
		return fmt.Errorf("streaming.health_interval must be > 0")
	}
	if c.Streaming.MaxSessionsPerStore < 0 {
		return fmt.Errorf("streaming.max_sessions_per_store must be >= 0")
	}

	if c.Auth.IdentitySecret == "" {
		return fmt.Errorf("auth.identity_secret must not be empty")
	}
	if c.Auth.StreamTokenSecret == "" {
		return fmt.Errorf("auth.stream_token_secret must not be empty")
	}
	if c.Auth.StreamTokenTTL <= 0 {
		return fmt.Errorf("auth.stream_token_ttl must be > 0")
	}

	switch c.Directory.Mode {
	case "http":
		if c.Directory.BaseURL == "" {
			return fmt.Errorf("directory.base_url must not be empty when directory.mode=http")
		}
	case "memory":
	default:
		return fmt.Errorf("directory.mode must be http or memory, got %q", c.Directory.Mode)
	}
	if c.Directory.Timeout <= 0 {
		return fmt.Errorf("directory.timeout must be > 0")
	}
	if c.Directory.CacheTTL <= 0 {
		return fmt.Errorf("directory.cache_ttl must be > 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.AuditStream == "" {
			return fmt.Errorf("redis.audit_stream must not be empty when redis.enabled=true")
		}
	}

	if c.Audit.BatchSize <= 0 {
		return fmt.Errorf("audit.batch_size must be > 0")
	}
	if c.Audit.FlushInterval <= 0 {
		return fmt.Errorf("audit.flush_interval must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with documented defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 0 // long-lived artifact streams must not be cut off
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Transcoder.BinaryPath = "ffmpeg"
	cfg.Transcoder.OutputDir = "/tmp/streamgate"
	cfg.Transcoder.StartTimeout = 15 * time.Second
	cfg.Transcoder.StopGracePeriod = 3 * time.Second

	cfg.Streaming.IdleTimeout = 5 * time.Minute
	cfg.Streaming.ReapInterval = 30 * time.Second
	cfg.Streaming.HealthInterval = 5 * time.Second
	cfg.Streaming.MaxSessionsPerStore = 8

	cfg.Auth.IdentitySecret = "change-me-in-production"
	cfg.Auth.StreamTokenSecret = "change-me-in-production"
	cfg.Auth.StreamTokenTTL = 60 * time.Minute

	cfg.Directory.Mode = "memory"
	cfg.Directory.Timeout = 5 * time.Second
	cfg.Directory.CacheTTL = 10 * time.Second

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.AuditStream = "streamgate:audit"
	cfg.Redis.AuditMaxLen = 100000

	cfg.Audit.BatchSize = 32
	cfg.Audit.FlushInterval = time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "streamgate"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("STREAMGATE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("STREAMGATE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("STREAMGATE_IDENTITY_SECRET"); secret != "" {
		c.Auth.IdentitySecret = secret
	}
	if secret := os.Getenv("STREAMGATE_STREAM_TOKEN_SECRET"); secret != "" {
		c.Auth.StreamTokenSecret = secret
	}
	if bin := os.Getenv("STREAMGATE_TRANSCODER_PATH"); bin != "" {
		c.Transcoder.BinaryPath = bin
	}
	if dir := os.Getenv("STREAMGATE_OUTPUT_DIR"); dir != "" {
		c.Transcoder.OutputDir = dir
	}
	if url := os.Getenv("STREAMGATE_DIRECTORY_URL"); url != "" {
		c.Directory.Mode = "http"
		c.Directory.BaseURL = url
	}
}
