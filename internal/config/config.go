package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"SERVER_PORT"`
	} `yaml:"server"`
	Storage struct {
		Driver     string `yaml:"driver" env:"STORAGE_DRIVER"`
		SQLitePath string `yaml:"sqlite_path" env:"STORAGE_SQLITE_PATH"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Roster struct {
		TTL string `yaml:"ttl" env:"ROSTER_TTL"`
	} `yaml:"roster"`
	Quiz struct {
		// pointers so an explicit 0 survives defaulting
		PassThreshold   *int   `yaml:"pass_threshold" env:"QUIZ_PASS_THRESHOLD"`
		MaxDistractors  *int   `yaml:"max_distractors" env:"QUIZ_MAX_DISTRACTORS"`
		NoRelationLabel string `yaml:"no_relation_label" env:"QUIZ_NO_RELATION_LABEL"`
	} `yaml:"quiz"`
	Notifications struct {
		PollInterval string  `yaml:"poll_interval" env:"NOTIFICATIONS_POLL_INTERVAL"`
		SpeechRate   float64 `yaml:"speech_rate" env:"NOTIFICATIONS_SPEECH_RATE"`
	} `yaml:"notifications"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"log"`
}

// Load reads YAML config from path, applies environment overrides and
// fills defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	cfg.applyDefaults()
	return cfg, cfg.validate()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
		if c.Postgres.URL != "" {
			c.Storage.Driver = StoragePostgres
		}
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "remindme.db"
	}
	if c.Quiz.PassThreshold == nil {
		c.Quiz.PassThreshold = intPtr(70)
	}
	if c.Quiz.MaxDistractors == nil {
		c.Quiz.MaxDistractors = intPtr(3)
	}
	if c.Quiz.NoRelationLabel == "" {
		c.Quiz.NoRelationLabel = "(no relation)"
	}
	if c.Notifications.SpeechRate == 0 {
		c.Notifications.SpeechRate = 0.95
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("storage driver %q requires postgres.url", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if t := *c.Quiz.PassThreshold; t < 0 || t > 100 {
		return fmt.Errorf("quiz.pass_threshold must be within 0..100, got %d", t)
	}
	if d := *c.Quiz.MaxDistractors; d < 0 {
		return fmt.Errorf("quiz.max_distractors must not be negative, got %d", d)
	}
	return nil
}

func intPtr(v int) *int { return &v }

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
