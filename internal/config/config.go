package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "UIS_"

type Config struct {
	Primary       Primary             `koanf:"primary" validate:"required"`
	Server        ServerConfig        `koanf:"server" validate:"required"`
	Database      DatabaseConfig      `koanf:"database" validate:"required"`
	Log           LogConfig           `koanf:"log" validate:"required"`
	Notify        NotifyConfig        `koanf:"notify" validate:"required"`
	Observability ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=development staging production"`
}

type ServerConfig struct {
	Port               string        `koanf:"port" validate:"required"`
	ReadTimeout        time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout       time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout        time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins" validate:"required,min=1"`
	// BodyLimit caps request bodies in echo's size notation, e.g. "10M".
	BodyLimit          string        `koanf:"body_limit" validate:"required"`
}

type DatabaseConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"required"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password"`
	Name     string `koanf:"name" validate:"required"`
	SSLMode  string `koanf:"ssl_mode" validate:"required"`
	MaxConns int    `koanf:"max_conns" validate:"gt=0"`
	MinConns int    `koanf:"min_conns" validate:"gte=0,ltefield=MaxConns"`
}

// URL renders the connection string understood by pgx and tern.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	return u.String()
}

// LogConfig drives the request log file. StreamExemptPath is compared to the
// request path by exact string match.
type LogConfig struct {
	FilePath         string `koanf:"file_path" validate:"required"`
	MaxBytes         int64  `koanf:"max_bytes" validate:"gt=0"`
	BackupCount      int    `koanf:"backup_count" validate:"gte=0"`
	Component        string `koanf:"component" validate:"required"`
	StreamExemptPath string `koanf:"stream_exempt_path"`
	Level            string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error"`
}

type NotifyConfig struct {
	Heartbeat time.Duration `koanf:"heartbeat" validate:"gt=0"`
}

// ObservabilityConfig enables New Relic when a license key is present.
type ObservabilityConfig struct {
	ServiceName        string `koanf:"service_name"`
	NewRelicLicenseKey string `koanf:"new_relic_license_key"`
}

// Default returns the configuration used for every key the environment omits.
func Default() *Config {
	return &Config{
		Primary: Primary{Env: "development"},
		Server: ServerConfig{
			Port:               "8000",
			ReadTimeout:        30 * time.Second,
			IdleTimeout:        120 * time.Second,
			ShutdownTimeout:    15 * time.Second,
			CORSAllowedOrigins: []string{"*"},
			BodyLimit:          "10M",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Name:     "uis",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Log: LogConfig{
			FilePath:         "logs/app_logger.log",
			MaxBytes:         20 * 1024 * 1024,
			BackupCount:      10,
			Component:        "UIS",
			StreamExemptPath: "/api/v3/ftpNotifications",
			Level:            "info",
		},
		Notify:        NotifyConfig{Heartbeat: 15 * time.Second},
		Observability: ObservabilityConfig{ServiceName: "uisapi"},
	}
}

// envValue maps UIS_LOG__MAX_BYTES to log.max_bytes and splits comma
// separated values into lists.
func envValue(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", ".")
	if strings.Contains(value, ",") {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

// Load reads UIS_* environment variables over the defaults and validates the
// result. List values are comma separated.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
