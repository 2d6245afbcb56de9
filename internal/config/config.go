package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr         string
		AllowOrigins string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret string
		TokenTTL  time.Duration
	}
	Analysis struct {
		Endpoint string
		Timeout  time.Duration
	}
	Upload struct {
		MaxBytes int64
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
		URLExpiry time.Duration
	}
	AWS struct {
		Profile string
	}
	Reconcile struct {
		Interval time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables and optional config files.
// Variables use the REVIEWER_ prefix, e.g. REVIEWER_AUTH_JWTSECRET.
func Load() (Config, error) {
	// .env never overrides variables already set
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("REVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:4000")
	v.SetDefault("server.alloworigins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("database.path", "data/reviewer.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", "720h")
	v.SetDefault("analysis.endpoint", "")
	v.SetDefault("analysis.timeout", "30s")
	v.SetDefault("upload.maxbytes", 5<<20)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "resumes")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.urlexpiry", "15m")
	v.SetDefault("aws.profile", "")
	v.SetDefault("reconcile.interval", "1h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate reports the first setting the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required")
	}
	if strings.TrimSpace(c.Analysis.Endpoint) == "" {
		return errors.New("analysis endpoint is required")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}
	if c.Reconcile.Interval < 0 {
		return errors.New("reconcile interval must not be negative")
	}
	return nil
}

// Origins splits the comma separated CORS allow list.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
