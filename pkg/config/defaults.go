package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultIdleTimeout     = 60 * time.Second
	defaultConnectTimeout  = 10 * time.Second
	defaultCommandTimeout  = 30 * time.Second
	defaultTransferTimeout = 300 * time.Second
	defaultFanOut          = 8
	defaultMetricsPort     = 9090
	defaultMaxReadSize     = ByteSize(1 << 20)
)

// registerDefaults seeds viper so environment overrides are visible to
// Unmarshal even when no config file exists.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", defaultMetricsPort)

	v.SetDefault("pool.idle_timeout", defaultIdleTimeout.String())
	v.SetDefault("pool.max_pool_size", 0)
	v.SetDefault("pool.connect_timeout", defaultConnectTimeout.String())
	v.SetDefault("pool.command_timeout", defaultCommandTimeout.String())
	v.SetDefault("pool.transfer_timeout", defaultTransferTimeout.String())
	v.SetDefault("pool.fan_out", defaultFanOut)

	v.SetDefault("ssh.known_hosts_file", "")
	v.SetDefault("ssh.insecure_ignore_host_key", false)
	v.SetDefault("ssh.default_user", "")
	v.SetDefault("ssh.default_identity", "")
	v.SetDefault("ssh.use_agent", false)

	v.SetDefault("transfer.staging_dir", "")
	v.SetDefault("transfer.max_read_size", defaultMaxReadSize.String())
	v.SetDefault("transfer.verify", false)
}

// ApplyDefaults fills in zero values with sensible defaults.
//
// Values that were explicitly set are never overwritten.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyPoolDefaults(&cfg.Pool)
	applyTransferDefaults(&cfg.Transfer)
	applyHostDefaults(cfg)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	// Only default sample rate if it's zero (not explicitly set to 0)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultMetricsPort
	}
}

func applyPoolDefaults(cfg *PoolConfig) {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.TransferTimeout == 0 {
		cfg.TransferTimeout = defaultTransferTimeout
	}
	if cfg.FanOut == 0 {
		cfg.FanOut = defaultFanOut
	}
}

func applyTransferDefaults(cfg *TransferConfig) {
	if cfg.MaxReadSize == 0 {
		cfg.MaxReadSize = defaultMaxReadSize
	}
}

// applyHostDefaults lowercases host names so lookups are case-insensitive.
func applyHostDefaults(cfg *Config) {
	if len(cfg.Hosts) == 0 {
		return
	}
	hosts := make(map[string]HostConfig, len(cfg.Hosts))
	for name, h := range cfg.Hosts {
		hosts[strings.ToLower(strings.TrimSpace(name))] = h
	}
	cfg.Hosts = hosts
}

// GetDefaultConfig returns a Config with all defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
