package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. SCOUT_POOL_IDLE_TIMEOUT.
const EnvPrefix = "SCOUT"

// Config is the scout configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (SCOUT_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing of transfers
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Pool configures SSH session pooling and operation timeouts
	Pool PoolConfig `mapstructure:"pool" yaml:"pool"`

	// SSH configures authentication and host key verification
	SSH SSHConfig `mapstructure:"ssh" yaml:"ssh"`

	// Transfer configures file transfers
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`

	// Hosts maps logical host names to connection details.
	// Names are case-insensitive.
	Hosts map[string]HostConfig `mapstructure:"hosts" validate:"dive" yaml:"hosts"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS to the collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// PoolConfig configures the SSH session pool.
type PoolConfig struct {
	// IdleTimeout closes sessions unused for this long
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gt=0" yaml:"idle_timeout"`

	// MaxPoolSize caps pooled sessions; 0 means unbounded
	MaxPoolSize int `mapstructure:"max_pool_size" validate:"gte=0" yaml:"max_pool_size"`

	// ConnectTimeout bounds TCP dial plus SSH handshake
	// Default: 10s
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0" yaml:"connect_timeout"`

	// CommandTimeout bounds a remote command
	// Default: 30s
	CommandTimeout time.Duration `mapstructure:"command_timeout" validate:"gt=0" yaml:"command_timeout"`

	// TransferTimeout bounds a file transfer, both relay legs included
	// Default: 300s
	TransferTimeout time.Duration `mapstructure:"transfer_timeout" validate:"gt=0" yaml:"transfer_timeout"`

	// FanOut limits hosts contacted concurrently by exec-all
	// Default: 8
	FanOut int `mapstructure:"fan_out" validate:"gte=1" yaml:"fan_out"`
}

// SSHConfig configures authentication and host key checks.
type SSHConfig struct {
	// KnownHostsFile overrides ~/.ssh/known_hosts
	KnownHostsFile string `mapstructure:"known_hosts_file" yaml:"known_hosts_file,omitempty"`

	// InsecureIgnoreHostKey skips host key verification (testing only)
	InsecureIgnoreHostKey bool `mapstructure:"insecure_ignore_host_key" yaml:"insecure_ignore_host_key"`

	// DefaultUser is used for hosts without a user
	DefaultUser string `mapstructure:"default_user" yaml:"default_user,omitempty"`

	// DefaultIdentity is used for hosts without an identity file
	DefaultIdentity string `mapstructure:"default_identity" yaml:"default_identity,omitempty"`

	// UseAgent offers keys from the agent at $SSH_AUTH_SOCK
	UseAgent bool `mapstructure:"use_agent" yaml:"use_agent"`
}

// TransferConfig configures file transfers.
type TransferConfig struct {
	// StagingDir holds relay temp files; empty means the OS temp dir
	StagingDir string `mapstructure:"staging_dir" yaml:"staging_dir,omitempty"`

	// MaxReadSize caps bytes returned by cat
	// Supports human-readable formats: "1MB", "512KiB"
	// Default: 1MiB
	MaxReadSize ByteSize `mapstructure:"max_read_size" yaml:"max_read_size"`

	// Verify compares SHA-256 digests of both ends after every copy
	Verify bool `mapstructure:"verify" yaml:"verify"`
}

// HostConfig describes one remote host.
type HostConfig struct {
	// Address is the hostname or IP to dial
	Address string `mapstructure:"address" validate:"required" yaml:"address"`

	// Port is the SSH port; 0 means 22
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`

	// User overrides ssh.default_user
	User string `mapstructure:"user" yaml:"user,omitempty"`

	// IdentityFile overrides ssh.default_identity
	IdentityFile string `mapstructure:"identity_file" yaml:"identity_file,omitempty"`
}

// ByteSize is a byte count that decodes from strings like "1MB" or "512KiB".
type ByteSize uint64

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// MarshalYAML writes the human-readable form.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is not an error: environment variables and defaults
// still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/scout/config.yaml.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

func getConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "scout")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "scout")
	}
	return filepath.Join(".", ".scout")
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: SCOUT_POOL_IDLE_TIMEOUT=30s
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings like "1MB" and plain numbers to ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			n, err := humanize.ParseBytes(v)
			if err != nil {
				return nil, fmt.Errorf("invalid byte size %q: %w", v, err)
			}
			return ByteSize(n), nil
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
