package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingWhispKey    = errors.New("WHISP_API_KEY is required")
	ErrUnknownDriver      = errors.New("DB_DRIVER must be postgres or sqlite")
)

// DefaultWhispBaseURL is the public WHISP deployment.
const DefaultWhispBaseURL = "https://whisp.openforis.org"

type Database struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
	Schema string `yaml:"schema"`
}

type Whisp struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// RequestTimeout parses Timeout, falling back to 20 minutes.
func (w Whisp) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(w.Timeout)
	if err != nil || d <= 0 {
		return 20 * time.Minute
	}
	return d
}

type Storage struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Port              string    `yaml:"port"`
	PublicBaseURL     string    `yaml:"public_base_url"`
	CORSOrigins       []string  `yaml:"cors_origins"`
	StrictCSVPolygons bool      `yaml:"strict_csv_polygons"`
	Database          Database  `yaml:"database"`
	Whisp             Whisp     `yaml:"whisp"`
	Storage           Storage   `yaml:"storage"`
	Redis             Redis     `yaml:"redis"`
	RateLimit         RateLimit `yaml:"rate_limit"`
	Log               Log       `yaml:"log"`
}

func defaults() Config {
	return Config{
		Port:          "5050",
		PublicBaseURL: "http://localhost:5050",
		Database:      Database{Driver: "postgres", Schema: "eudr"},
		Whisp:         Whisp{BaseURL: DefaultWhispBaseURL, Timeout: "20m"},
		Storage:       Storage{Region: "eu-west-1"},
		RateLimit:     RateLimit{RPS: 5, Burst: 10},
		Log:           Log{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
//
// Environment variables:
//   - CONFIG_FILE: YAML file to read (default: config.yaml, skipped when absent)
//   - PORT, PUBLIC_BASE_URL, CORS_ORIGINS (comma separated), STRICT_CSV_POLYGONS
//   - DATABASE_URL, DB_DRIVER (postgres|sqlite), DB_SCHEMA
//   - WHISP_BASE_URL, WHISP_API_KEY, WHISP_TIMEOUT
//   - AWS_REGION, S3_BUCKET
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
//   - LOG_LEVEL, LOG_FORMAT
func Load() (Config, error) {
	_ = godotenv.Load(".env.local")

	cfg := defaults()

	path := os.Getenv("CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if explicit {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")
	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	setBool(&cfg.StrictCSVPolygons, "STRICT_CSV_POLYGONS")

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.Schema, "DB_SCHEMA")
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)

	setString(&cfg.Whisp.BaseURL, "WHISP_BASE_URL")
	setString(&cfg.Whisp.APIKey, "WHISP_API_KEY")
	setString(&cfg.Whisp.Timeout, "WHISP_TIMEOUT")

	setString(&cfg.Storage.Region, "AWS_REGION")
	setString(&cfg.Storage.Bucket, "S3_BUCKET")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.Redis.DB = v
	}

	if v, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64); err == nil {
		cfg.RateLimit.RPS = v
	}
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST")); err == nil {
		cfg.RateLimit.Burst = v
	}

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
}

// Validate checks the settings every process needs. Storage and redis are
// optional and degrade to no-op implementations.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
		if c.Database.URL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return ErrUnknownDriver
	}
	if c.Whisp.APIKey == "" {
		return ErrMissingWhispKey
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
