package reqflow

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the client options.
//
//	base_url: http://localhost:3000/api
//	timeout: 12s
//	ignore_repeat_requests: true
//	headers:
//	  Accept: application/json
//	cache:
//	  backend: redis
//	  ttl: 5m
//	  redis_addr: localhost:6379
type Config struct {
	BaseURL              string            `yaml:"base_url"`
	Timeout              time.Duration     `yaml:"timeout"`
	IgnoreRepeatRequests bool              `yaml:"ignore_repeat_requests"`
	Headers              map[string]string `yaml:"headers"`
	Cache                CacheConfig       `yaml:"cache"`
	Debug                bool              `yaml:"debug"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend   string        `yaml:"backend"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	Prefix    string        `yaml:"prefix"`
}

// LoadConfig reads a YAML config file. Environment variables in the file are
// expanded.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config bytes.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the options cannot repair.
func (cfg *Config) Validate() error {
	switch cfg.Cache.Backend {
	case "", "memory":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return fmt.Errorf("config: cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", cfg.Cache.Backend)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}
	return nil
}

// Options converts the config into client options.
func (cfg *Config) Options() []Option {
	var opts []Option

	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	opts = append(opts, WithIgnoreRepeatRequests(cfg.IgnoreRepeatRequests))

	if len(cfg.Headers) > 0 {
		header := http.Header{}
		for k, v := range cfg.Headers {
			header.Set(k, v)
		}
		opts = append(opts, WithHeaders(header))
	}

	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	switch cfg.Cache.Backend {
	case "redis":
		rc := NewRedisCache(redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		}), ttl)
		if cfg.Cache.Prefix != "" {
			rc.WithPrefix(cfg.Cache.Prefix)
		}
		opts = append(opts, WithCustomCache(rc), func(c *Client) { c.cacheTTL = ttl })
	default:
		opts = append(opts, WithCache(ttl))
	}

	if cfg.Debug {
		opts = append(opts, WithSimpleLogger())
	}

	return opts
}
