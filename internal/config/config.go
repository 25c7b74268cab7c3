// Package config loads service configuration from defaults, an optional config
// file and CLAIMS_-prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "CLAIMS"

// ConfigFileEnv names the environment variable holding an optional config file path
const ConfigFileEnv = "CLAIMS_CONFIG_FILE"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Routing  RoutingConfig
	Rules    RulesConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	RateLimit       int // requests per second, 0 disables limiting
	RateBurst       int
	CORSOrigins     []string
}

// DatabaseConfig is optional; an empty URL keeps every payer catalog in memory
type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

type RoutingConfig struct {
	AutoSubmitThreshold float64
}

type RulesConfig struct {
	HighDollarThreshold float64
	MinQualityScore     float64
	SeedDefaults        bool
	File                string // optional YAML rules file added to every new payer
}

// Load reads configuration from the environment and, when CLAIMS_CONFIG_FILE is set,
// from that file
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DATABASE_URL is shared with cmd/migrate
	if err := v.BindEnv("database.url", envPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("bind database url: %w", err)
	}

	v.SetDefault("config_file", "")
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_burst", 200)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.url", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("redis.key_prefix", "claims")

	v.SetDefault("routing.auto_submit_threshold", 85.0)

	v.SetDefault("rules.high_dollar_threshold", 10000.0)
	v.SetDefault("rules.min_quality_score", 70.0)
	v.SetDefault("rules.seed_defaults", true)
	v.SetDefault("rules.file", "")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			RateLimit:       v.GetInt("server.rate_limit"),
			RateBurst:       v.GetInt("server.rate_burst"),
			CORSOrigins:     splitList(v.GetStringSlice("server.cors_origins")),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Addr:      v.GetString("redis.addr"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			TTL:       v.GetDuration("redis.ttl"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Routing: RoutingConfig{
			AutoSubmitThreshold: v.GetFloat64("routing.auto_submit_threshold"),
		},
		Rules: RulesConfig{
			HighDollarThreshold: v.GetFloat64("rules.high_dollar_threshold"),
			MinQualityScore:     v.GetFloat64("rules.min_quality_score"),
			SeedDefaults:        v.GetBool("rules.seed_defaults"),
			File:                v.GetString("rules.file"),
		},
	}
}

// splitList accepts both YAML lists and comma-separated env values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate rejects values the service cannot start with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("server rate limit and burst must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst == 0 {
		errs = append(errs, errors.New("server.rate_burst must be positive when rate limiting is enabled"))
	}
	if c.Routing.AutoSubmitThreshold < 0 || c.Routing.AutoSubmitThreshold > 100 {
		errs = append(errs, fmt.Errorf("routing.auto_submit_threshold %.1f outside 0-100", c.Routing.AutoSubmitThreshold))
	}
	if c.Rules.MinQualityScore < 0 || c.Rules.MinQualityScore > 100 {
		errs = append(errs, fmt.Errorf("rules.min_quality_score %.1f outside 0-100", c.Rules.MinQualityScore))
	}
	if c.Rules.HighDollarThreshold <= 0 {
		errs = append(errs, errors.New("rules.high_dollar_threshold must be positive"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
