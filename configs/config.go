package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Settings struct {
	Port        string `env:"PORT" envDefault:"8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	PresenceBroadcast bool          `env:"PRESENCE_BROADCAST" envDefault:"true"`
	SendBuffer        int           `env:"WS_SEND_BUFFER" envDefault:"64"`
	HandshakeTimeout  time.Duration `env:"WS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	PingInterval      time.Duration `env:"WS_PING_INTERVAL" envDefault:"25s"`
	IdleTimeout       time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"10m"`
	EventTimeout      time.Duration `env:"EVENT_TIMEOUT" envDefault:"10s"`
	IdleSweepSchedule string        `env:"IDLE_SWEEP_SCHEDULE" envDefault:"@every 1m"`

	SeedDemoUsers bool   `env:"SEED_DEMO_USERS" envDefault:"false"`
	DemoPassword  string `env:"DEMO_PASSWORD" envDefault:"changeme"`
}

// Load reads .env when present and parses the environment into Settings.
func Load() (*Settings, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}
	return Parse()
}

// Parse reads Settings from the process environment only.
func Parse() (*Settings, error) {
	cfg := &Settings{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.AppEnv = normalizeEnv(cfg.AppEnv)
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.SendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive")
	}

	return cfg, nil
}

func (s *Settings) IsDevelopment() bool {
	return s.AppEnv == "development"
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
