// Package config loads service settings from .env, an optional
// restosite.yaml and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port       string
	Domain     string // public base URL used in links
	BaseDomain string // host whose subdomains are restaurant pages

	DBDriver    string
	DBDSN       string
	AnalyticsDB string

	SessionSecret string
	JWTSecret     string
	TokenTTL      time.Duration

	CacheBackend string // file, redis or off
	CacheDir     string
	CacheTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	BackofficeEmails []string

	LogLevel string
	LogFile  string
	LogDev   bool
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("domain", "http://localhost:8080")
	v.SetDefault("base_domain", "localhost")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "restosite.db")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("cache_backend", "file")
	v.SetDefault("cache_dir", "cache")
	v.SetDefault("cache_ttl", "10m")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("smtp_port", "587")
	v.SetDefault("log_level", "info")
}

// Load reads the configuration. A missing .env or config file is fine.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("restosite")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:          v.GetString("port"),
		Domain:        strings.TrimRight(v.GetString("domain"), "/"),
		BaseDomain:    v.GetString("base_domain"),
		DBDriver:      strings.ToLower(v.GetString("db_driver")),
		DBDSN:         v.GetString("db_dsn"),
		AnalyticsDB:   v.GetString("analytics_db"),
		SessionSecret: v.GetString("session_secret"),
		JWTSecret:     v.GetString("jwt_secret"),
		TokenTTL:      v.GetDuration("token_ttl"),
		CacheBackend:  strings.ToLower(v.GetString("cache_backend")),
		CacheDir:      v.GetString("cache_dir"),
		CacheTTL:      v.GetDuration("cache_ttl"),
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		AMQPURL:       v.GetString("amqp_url"),
		SMTPHost:      v.GetString("smtp_host"),
		SMTPPort:      v.GetString("smtp_port"),
		SMTPUser:      v.GetString("smtp_user"),
		SMTPPassword:  v.GetString("smtp_password"),
		SMTPFrom:      v.GetString("smtp_from"),
		LogLevel:      v.GetString("log_level"),
		LogFile:       v.GetString("log_file"),
		LogDev:        v.GetBool("log_dev"),
	}
	for _, e := range strings.Split(v.GetString("backoffice_emails"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			cfg.BackofficeEmails = append(cfg.BackofficeEmails, e)
		}
	}
	return cfg
}

// RequireSecrets is checked before serving; the CLI tools run without them.
func (c *Config) RequireSecrets() error {
	var missing []string
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
