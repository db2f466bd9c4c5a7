package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

const devJWTSecret = "taskboard-dev-secret-change-me"

// Config holds all application configuration
type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	StorageBackend string
	MongoURI       string
	RedisURL       string // empty disables the relay and the distributed locker

	JWTSecret string
	JWTExpiry time.Duration

	AllowedOrigins []string

	// Rate limits
	RateLimitAPI        int // requests per minute per IP
	RateLimitAuth       int // login/register attempts per minute per IP
	RateLimitWebSocket  int // connection attempts per minute per IP
	WSMessagesPerSecond int
	WSMessageBurst      int

	NotificationRetention   time.Duration
	NotificationCleanupCron string

	LockTimeout time.Duration
}

// Load reads configuration from the environment. If CONFIG_FILE names a YAML
// file, its keys (the lower-cased variable names) fill in unset variables.
func Load() (*Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	environment := strings.ToLower(src.get("ENVIRONMENT", "development"))

	cfg := &Config{
		Port:           src.get("PORT", "5000"),
		Environment:    environment,
		LogLevel:       src.get("LOG_LEVEL", ""),
		StorageBackend: strings.ToLower(src.get("STORAGE_BACKEND", BackendMongo)),
		MongoURI:       src.get("MONGODB_URI", "mongodb://localhost:27017/projectmanagement"),
		RedisURL:       src.get("REDIS_URL", ""),

		JWTSecret: src.get("JWT_SECRET", ""),
		JWTExpiry: src.duration("JWT_EXPIRY", 30*24*time.Hour),

		AllowedOrigins: splitList(src.get("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),

		RateLimitAPI:        src.integer("RATE_LIMIT_API", 300),
		RateLimitAuth:       src.integer("RATE_LIMIT_AUTH", 20),
		RateLimitWebSocket:  src.integer("RATE_LIMIT_WEBSOCKET", 30),
		WSMessagesPerSecond: src.integer("WS_MESSAGES_PER_SECOND", 10),
		WSMessageBurst:      src.integer("WS_MESSAGE_BURST", 20),

		NotificationRetention:   src.duration("NOTIFICATION_RETENTION", 30*24*time.Hour),
		NotificationCleanupCron: src.get("NOTIFICATION_CLEANUP_CRON", "0 3 * * *"),

		LockTimeout: src.duration("LOCK_TIMEOUT", 5*time.Second),
	}

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsesDevSecret reports whether the built-in development JWT secret is in use.
func (c *Config) UsesDevSecret() bool {
	return c.JWTSecret == devJWTSecret
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q (want %s or %s)", c.StorageBackend, BackendMongo, BackendMemory))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}

	limits := []struct {
		key   string
		value int
	}{
		{"RATE_LIMIT_API", c.RateLimitAPI},
		{"RATE_LIMIT_AUTH", c.RateLimitAuth},
		{"RATE_LIMIT_WEBSOCKET", c.RateLimitWebSocket},
		{"WS_MESSAGES_PER_SECOND", c.WSMessagesPerSecond},
		{"WS_MESSAGE_BURST", c.WSMessageBurst},
	}
	for _, l := range limits {
		if l.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", l.key))
		}
	}

	if c.NotificationRetention <= 0 {
		errs = append(errs, errors.New("NOTIFICATION_RETENTION must be positive"))
	}
	if _, err := cron.ParseStandard(c.NotificationCleanupCron); err != nil {
		errs = append(errs, fmt.Errorf("invalid NOTIFICATION_CLEANUP_CRON %q: %w", c.NotificationCleanupCron, err))
	}
	if c.LockTimeout <= 0 {
		errs = append(errs, errors.New("LOCK_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// source resolves a key from the environment, then the optional file.
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	src := &source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		if list, ok := v.([]interface{}); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				parts = append(parts, fmt.Sprint(item))
			}
			src.file[strings.ToLower(k)] = strings.Join(parts, ",")
			continue
		}
		src.file[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return src, nil
}

func (s *source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[strings.ToLower(key)]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s *source) integer(key string, defaultValue int) int {
	if value := s.get(key, ""); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (s *source) duration(key string, defaultValue time.Duration) time.Duration {
	if value := s.get(key, ""); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
