package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime configuration shared across the application.
type Config struct {
	Addr           string          `mapstructure:"addr"`
	Mode           string          `mapstructure:"mode"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	Mongo          MongoConfig     `mapstructure:"mongo"`
	MySQL          MySQLConfig     `mapstructure:"mysql"`
	Cache          CacheConfig     `mapstructure:"cache"`
	JWT            JWTConfig       `mapstructure:"jwt"`
	Log            LogConfig       `mapstructure:"log"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type MongoConfig struct {
	URI                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	SurveyCollection   string `mapstructure:"survey_collection"`
	ResponseCollection string `mapstructure:"response_collection"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig selects the cache backend. "memory" keeps everything in process, for local runs.
type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	PoolSize      int    `mapstructure:"pool_size"`
}

// JWTConfig defines the signing secret and claims for session tokens.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Debug reports whether verbose logging is enabled.
func (c Config) Debug() bool {
	return c.Mode == "debug"
}

// Load reads an optional YAML file and environment variables, in that order of precedence
// (environment wins), and returns a validated Config.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedOrigins = trimList(cfg.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("AUTH_JWT_SECRET must be configured")
	}
	if c.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.JWT.TTL <= 0 {
		return errors.New("jwt ttl must be positive")
	}
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit must not be negative")
	}
	return nil
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("mode", "release")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("request_timeout", 5*time.Second)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("mongo.uri", "mongodb://mongo:27017")
	v.SetDefault("mongo.database", "survey-platform")
	v.SetDefault("mongo.survey_collection", "surveys")
	v.SetDefault("mongo.response_collection", "responses")
	v.SetDefault("mysql.dsn", "survey:survey@tcp(mysql:3306)/survey?charset=utf8mb4&parseTime=true&loc=UTC")
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.redis_addr", "redis:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.pool_size", 50)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "survey-platform")
	v.SetDefault("jwt.audience", "survey-platform-api")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("log.file", "logs/api.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("addr", "HTTP_ADDR")
	v.BindEnv("mode", "SERVER_MODE")
	v.BindEnv("timeout", "MONGO_CONNECT_TIMEOUT")
	v.BindEnv("request_timeout", "REQUEST_TIMEOUT")
	v.BindEnv("allowed_origins", "API_ALLOWED_ORIGINS")
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.database", "MONGO_DB")
	v.BindEnv("mongo.survey_collection", "SURVEY_COLLECTION")
	v.BindEnv("mongo.response_collection", "RESPONSE_COLLECTION")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("cache.backend", "CACHE_BACKEND")
	v.BindEnv("cache.redis_addr", "REDIS_ADDR")
	v.BindEnv("cache.redis_password", "REDIS_PASSWORD")
	v.BindEnv("cache.redis_db", "REDIS_DB")
	v.BindEnv("jwt.secret", "AUTH_JWT_SECRET")
	v.BindEnv("jwt.issuer", "AUTH_JWT_ISSUER")
	v.BindEnv("jwt.audience", "AUTH_JWT_AUDIENCE")
	v.BindEnv("jwt.ttl", "AUTH_JWT_TTL")
	v.BindEnv("log.file", "LOG_FILE")
	v.BindEnv("rate_limit.requests_per_second", "RATE_LIMIT_RPS")
	v.BindEnv("rate_limit.burst", "RATE_LIMIT_BURST")
}
