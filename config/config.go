package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything rosterctl reads from the environment.
type Config struct {
	WSURL           string `env:"ROSTER_WS_URL"`
	RedisAddr       string `env:"ROSTER_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisChannel    string `env:"ROSTER_REDIS_CHANNEL" envDefault:"roster-events"`
	HTTPAddr        string `env:"ROSTER_HTTP_ADDR"`
	Origin          string `env:"ROSTER_ORIGIN"`
	LogLevel        string `env:"ROSTER_LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"ROSTER_LOG_FORMAT" envDefault:"text"`
	NetworkTracking bool   `env:"ROSTER_NETWORK_TRACKING" envDefault:"false"`
}

// InitConfig loads .env style files into the process environment. Missing
// files are skipped; variables already set are not overridden.
func InitConfig(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load runs InitConfig then parses a Config.
func Load(files ...string) (Config, error) {
	var cfg Config
	if err := InitConfig(files...); err != nil {
		return cfg, err
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
