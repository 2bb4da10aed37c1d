package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"arc-framework/beacon/internal/readiness"
)

// Config is the root configuration for Beacon.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
	LogLevel     string `mapstructure:"log_level"`
}

type ReadinessConfig struct {
	GlobalTimeout time.Duration   `mapstructure:"global_timeout"`
	HistoryLimit  int             `mapstructure:"history_limit"`
	Defaults      ProbeDefaults   `mapstructure:"defaults"`
	Services      []ServiceConfig `mapstructure:"services"`
}

// ProbeDefaults fill timing fields a service entry leaves unset.
type ProbeDefaults struct {
	PerAttemptTimeout time.Duration `mapstructure:"per_attempt_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Deadline          time.Duration `mapstructure:"deadline"`
}

// ServiceConfig describes one monitored service.
type ServiceConfig struct {
	Name              string        `mapstructure:"name"`
	Kind              string        `mapstructure:"kind"`
	URL               string        `mapstructure:"url"`
	PerAttemptTimeout time.Duration `mapstructure:"per_attempt_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Deadline          time.Duration `mapstructure:"deadline"`
	ExpectStatus      []int         `mapstructure:"expect_status"`
	ExpectBody        string        `mapstructure:"expect_body"`
}

// Load reads config from the optional file at path, then overlays
// environment variables with the BEACON_ prefix (e.g. BEACON_SERVER_PORT).
// Services can only be declared in the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	if err := read(v, path); err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// ignored when optional is true.
func LoadEnvFile(path string, optional bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Watch reloads the file at path whenever it changes and passes the newly
// decoded config to onChange. Decode errors are passed as err and the
// previous config should be kept by the caller.
func Watch(path string, onChange func(cfg *Config, err error)) error {
	if path == "" {
		return errors.New("watch requires a config file")
	}
	v := viper.New()
	if err := read(v, path); err != nil {
		return err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		onChange(decode(v))
	})
	v.WatchConfig()
	return nil
}

// Probes converts the configured services into readiness probes, applying
// defaults and building success predicates. URLs are expanded against the
// environment so credentials can live in .env files.
func (c *ReadinessConfig) Probes() []readiness.ServiceProbe {
	probes := make([]readiness.ServiceProbe, 0, len(c.Services))
	for _, s := range c.Services {
		p := readiness.ServiceProbe{
			Name:              s.Name,
			Kind:              readiness.Kind(strings.ToLower(s.Kind)),
			URL:               os.ExpandEnv(s.URL),
			PerAttemptTimeout: orDefault(s.PerAttemptTimeout, c.Defaults.PerAttemptTimeout),
			PollInterval:      orDefault(s.PollInterval, c.Defaults.PollInterval),
			OverallDeadline:   orDefault(s.Deadline, c.Defaults.Deadline),
			Success:           predicate(s.ExpectStatus, s.ExpectBody),
		}
		if p.Kind == "" {
			p.Kind = readiness.KindHTTP
		}
		probes = append(probes, p)
	}
	return probes
}

// predicate returns nil (any 2xx) unless the entry narrows the accepted
// statuses or requires a body substring.
func predicate(statuses []int, body string) readiness.SuccessPredicate {
	if len(statuses) == 0 && body == "" {
		return nil
	}
	accepted := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		accepted[s] = true
	}
	return func(code int, b []byte) bool {
		if len(accepted) > 0 {
			if !accepted[code] {
				return false
			}
		} else if !readiness.Accept2xx(code, b) {
			return false
		}
		return body == "" || strings.Contains(string(b), body)
	}
}

func orDefault(v, def time.Duration) time.Duration {
	if v != 0 {
		return v
	}
	return def
}

func read(v *viper.Viper, path string) error {
	setDefaults(v)

	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.run_on_start", true)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "arc-beacon")
	v.SetDefault("telemetry.log_level", "info")

	v.SetDefault("readiness.global_timeout", 3*time.Minute)
	v.SetDefault("readiness.history_limit", readiness.DefaultHistoryLimit)
	v.SetDefault("readiness.defaults.per_attempt_timeout", 5*time.Second)
	v.SetDefault("readiness.defaults.poll_interval", 2*time.Second)
	v.SetDefault("readiness.defaults.deadline", 2*time.Minute)
}
