package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "EDDLICENSE"

// ConfigFileEnv names an explicit YAML configuration file.
const ConfigFileEnv = EnvPrefix + "_CONFIG_FILE"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" split_words:"true"`
	License   LicenseConfig   `yaml:"license" split_words:"true"`
	Cache     CacheConfig     `yaml:"cache" split_words:"true"`
	Security  SecurityConfig  `yaml:"security" split_words:"true"`
	Logging   LoggingConfig   `yaml:"logging" split_words:"true"`
	Telemetry TelemetryConfig `yaml:"telemetry" split_words:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
	// RequestTimeout must leave room for an activation and a check round trip.
	RequestTimeout time.Duration `yaml:"request_timeout" split_words:"true" validate:"gt=0"`
}

// LicenseConfig is the licensing policy handed to the validator
type LicenseConfig struct {
	Server               string        `yaml:"server" split_words:"true" validate:"required,url"`
	ItemName             string        `yaml:"item_name" split_words:"true" validate:"required"`
	SiteURL              string        `yaml:"site_url" split_words:"true" validate:"required,url"`
	StatusTTLSeconds     int64         `yaml:"status_ttl_seconds" split_words:"true" validate:"gt=0"`
	ActivationTTLSeconds int64         `yaml:"activation_ttl_seconds" split_words:"true" validate:"gt=0"`
	Timeout              time.Duration `yaml:"timeout" split_words:"true" validate:"gt=0"`
	InsecureSkipVerify   bool          `yaml:"insecure_skip_verify" split_words:"true"`
}

// StatusTTL returns the Status Record lifetime.
func (l LicenseConfig) StatusTTL() time.Duration {
	return time.Duration(l.StatusTTLSeconds) * time.Second
}

// ActivationTTL returns the Activation-Attempted Marker lifetime.
func (l LicenseConfig) ActivationTTL() time.Duration {
	return time.Duration(l.ActivationTTLSeconds) * time.Second
}

// CacheConfig selects and configures the status cache backend
type CacheConfig struct {
	Backend       string        `yaml:"backend" split_words:"true" validate:"oneof=memory redis"`
	SweepInterval time.Duration `yaml:"sweep_interval" split_words:"true" validate:"gte=0"`
	Redis         RedisConfig   `yaml:"redis" split_words:"true"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address  string `yaml:"address" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true" validate:"gte=0"`
	Prefix   string `yaml:"prefix" split_words:"true"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" split_words:"true"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true" validate:"gt=0"`
	Burst   int     `yaml:"burst" split_words:"true" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" split_words:"true" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true" validate:"required_unless=Output console"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName   string  `yaml:"service_name" split_words:"true" validate:"required"`
	Environment   string  `yaml:"environment" split_words:"true"`
	EnableMetrics bool    `yaml:"enable_metrics" split_words:"true"`
	EnableTracing bool    `yaml:"enable_tracing" split_words:"true"`
	TraceExporter string  `yaml:"trace_exporter" split_words:"true" validate:"oneof=stdout none"`
	SampleRatio   float64 `yaml:"sample_ratio" split_words:"true" validate:"gte=0,lte=1"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  40 * time.Second,
		},
		License: LicenseConfig{
			StatusTTLSeconds:     172800,
			ActivationTTLSeconds: 31536000,
			Timeout:              15 * time.Second,
			InsecureSkipVerify:   true,
		},
		Cache: CacheConfig{
			Backend:       "memory",
			SweepInterval: 5 * time.Minute,
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "eddlicense:",
			},
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/eddlicense.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "eddlicense",
			Environment:   "development",
			EnableMetrics: true,
			EnableTracing: false,
			TraceExporter: "none",
			SampleRatio:   1.0,
		},
	}
}

// Load loads configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	path, explicit := getConfigFilePath()
	return LoadFrom(path, explicit)
}

// LoadFrom loads configuration using the YAML file at path. A missing file is
// an error only when required is set.
func LoadFrom(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			if required || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filePath, err)
	}
	return nil
}

func getConfigFilePath() (string, bool) {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return path, true
	}
	return "eddlicense.yaml", false
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Cache.Backend == "redis" && c.Cache.Redis.Address == "" {
		return errors.New("cache.redis.address is required for the redis backend")
	}
	return nil
}

// Usage writes a table of the environment variables understood by Load.
func Usage(out io.Writer) error {
	return envconfig.Usagef(EnvPrefix, Default(), out, envconfig.DefaultTableFormat)
}
