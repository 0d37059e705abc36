// Package config loads the service configuration. Sources are layered, later
// ones winning: built-in defaults, an optional TOML file, the legacy PORT and
// API_KEY variables, GAMEPASSES_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Sternrassler/gamepasses-api/pkg/logging"
)

// EnvPrefix prefixes every environment variable read by Load. A double
// underscore separates sections, e.g. GAMEPASSES_SERVER__API_KEY.
const EnvPrefix = "GAMEPASSES_"

const (
	StrategyLinear  = "linear"
	StrategyCircuit = "circuit"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete service configuration.
type Config struct {
	Server     Server     `koanf:"server"`
	Upstream   Upstream   `koanf:"upstream"`
	Aggregator Aggregator `koanf:"aggregator"`
	Cache      Cache      `koanf:"cache"`
	Redis      Redis      `koanf:"redis"`
	RateLimit  RateLimit  `koanf:"ratelimit"`
	Log        Log        `koanf:"log"`
}

// Server configures the inbound HTTP listener.
type Server struct {
	Port int `koanf:"port"`
	// Shared secret expected in the x-api-key header.
	APIKey       string        `koanf:"api_key"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Upstream configures the catalog proxies.
type Upstream struct {
	// Candidate proxy base URLs, tried in order.
	Hosts     []string      `koanf:"hosts"`
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"user_agent"`
	// Failover strategy: linear or circuit.
	Strategy string  `koanf:"strategy"`
	Breaker  Breaker `koanf:"breaker"`
}

// Breaker configures per-host circuit breakers for the circuit strategy.
type Breaker struct {
	FailureThreshold uint          `koanf:"failure_threshold"`
	Delay            time.Duration `koanf:"delay"`
	SuccessThreshold uint          `koanf:"success_threshold"`
}

// Aggregator configures aggregation runs.
type Aggregator struct {
	MaxGames int `koanf:"max_games"`
	// Zero means one worker per game.
	MaxConcurrency int  `koanf:"max_concurrency"`
	Coalesce       bool `koanf:"coalesce"`
}

// Cache configures the result cache.
type Cache struct {
	Backend string        `koanf:"backend"`
	TTL     time.Duration `koanf:"ttl"`
}

// Redis configures the shared Redis used by redis backends.
type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// RateLimit configures the inbound per-client limiter.
type RateLimit struct {
	Enabled  bool          `koanf:"enabled"`
	Backend  string        `koanf:"backend"`
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// Log configures logging.
type Log struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// Overrides carries command-line flag values. Zero values are not applied.
type Overrides struct {
	Port     int
	APIKey   string
	LogLevel string
}

// Defaults returns the built-in configuration values, keyed by koanf path.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":                        3000,
		"server.api_key":                     "",
		"server.read_timeout":                10 * time.Second,
		"server.write_timeout":               60 * time.Second,
		"upstream.hosts":                     []string{"https://games.roproxy.com"},
		"upstream.timeout":                   10 * time.Second,
		"upstream.user_agent":                "gamepasses-api/1.0",
		"upstream.strategy":                  StrategyLinear,
		"upstream.breaker.failure_threshold": 3,
		"upstream.breaker.delay":             30 * time.Second,
		"upstream.breaker.success_threshold": 1,
		"aggregator.max_games":               10,
		"aggregator.max_concurrency":         0,
		"aggregator.coalesce":                true,
		"cache.backend":                      BackendMemory,
		"cache.ttl":                          10 * time.Minute,
		"redis.addr":                         "localhost:6379",
		"redis.password":                     "",
		"redis.db":                           0,
		"ratelimit.enabled":                  true,
		"ratelimit.backend":                  BackendMemory,
		"ratelimit.requests":                 10,
		"ratelimit.window":                   time.Minute,
		"log.level":                          "info",
		"log.pretty":                         false,
	}
}

// Load builds and validates the configuration. An empty path skips the file layer;
// a non-empty path that cannot be read is an error.
func Load(path string, overrides Overrides) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		k.Set("server.port", port)
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		k.Set("server.api_key", apiKey)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if overrides.Port != 0 {
		k.Set("server.port", overrides.Port)
	}
	if overrides.APIKey != "" {
		k.Set("server.api_key", overrides.APIKey)
	}
	if overrides.LogLevel != "" {
		k.Set("log.level", overrides.LogLevel)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps GAMEPASSES_SERVER__API_KEY to server.api_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535 (got %d)", c.Server.Port)
	}
	if c.Server.APIKey == "" {
		add("server.api_key is required")
	}

	if len(c.Upstream.Hosts) == 0 {
		add("upstream.hosts must list at least one host")
	}
	for _, host := range c.Upstream.Hosts {
		u, err := url.Parse(host)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("upstream.hosts: %q is not an http(s) URL", host)
		}
	}
	if c.Upstream.Timeout <= 0 {
		add("upstream.timeout must be positive")
	}
	if c.Upstream.UserAgent == "" {
		add("upstream.user_agent is required")
	}
	if c.Upstream.Strategy != StrategyLinear && c.Upstream.Strategy != StrategyCircuit {
		add("upstream.strategy must be %q or %q (got %q)", StrategyLinear, StrategyCircuit, c.Upstream.Strategy)
	}

	if c.Aggregator.MaxGames <= 0 {
		add("aggregator.max_games must be positive")
	}
	if c.Aggregator.MaxConcurrency < 0 {
		add("aggregator.max_concurrency must not be negative")
	}

	if !validBackend(c.Cache.Backend) {
		add("cache.backend must be %q or %q (got %q)", BackendMemory, BackendRedis, c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		add("cache.ttl must be positive")
	}

	if c.RateLimit.Enabled {
		if !validBackend(c.RateLimit.Backend) {
			add("ratelimit.backend must be %q or %q (got %q)", BackendMemory, BackendRedis, c.RateLimit.Backend)
		}
		if c.RateLimit.Requests <= 0 {
			add("ratelimit.requests must be positive")
		}
		if c.RateLimit.Window <= 0 {
			add("ratelimit.window must be positive")
		}
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		add("redis.addr is required when a redis backend is selected")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == BackendRedis || (c.RateLimit.Enabled && c.RateLimit.Backend == BackendRedis)
}

// Addr returns the listen address for the HTTP server.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

func validBackend(b string) bool {
	return b == BackendMemory || b == BackendRedis
}
