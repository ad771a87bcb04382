package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8000"`
	DatabaseURL string `env:"DATABASE_URL"`

	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"swapforfood.games"`

	GoogleMapsAPIKey string `env:"GOOGLE_MAPS_API_KEY"`
	PlacesRadius     int    `env:"PLACES_RADIUS" envDefault:"1000"`
	PlacesKeyword    string `env:"PLACES_KEYWORD" envDefault:"restaurant"`
	CandidatesFile   string `env:"CANDIDATES_FILE"`

	SecondsPerCandidate int      `env:"SECONDS_PER_CANDIDATE" envDefault:"10"`
	AllowedOrigins      []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	SendBuffer          int      `env:"SEND_BUFFER" envDefault:"64"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SecondsPerCandidate <= 0 {
		return Config{}, fmt.Errorf("SECONDS_PER_CANDIDATE must be positive, got %d", cfg.SecondsPerCandidate)
	}
	if cfg.SendBuffer <= 0 {
		return Config{}, fmt.Errorf("SEND_BUFFER must be positive, got %d", cfg.SendBuffer)
	}
	return cfg, nil
}

// TimePerCandidate is the share of the voting deadline each candidate adds.
func (c Config) TimePerCandidate() time.Duration {
	return time.Duration(c.SecondsPerCandidate) * time.Second
}
