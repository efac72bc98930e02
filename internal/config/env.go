package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/AaronLay10/SentientNarrative/internal/storage/postgres"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Env is the process configuration read from the environment.
// Secrets (PGPASSWORD, SENTIENT_*_PASSWORD) are read separately through
// ResolveSecret so they can come from files.
type Env struct {
	Store        string `env:"SENTIENT_STORE" envDefault:"sqlite"`
	SQLitePath   string `env:"SENTIENT_SQLITE_PATH" envDefault:"sentient-events.db"`
	RestoreLimit int    `env:"SENTIENT_RESTORE_LIMIT" envDefault:"1000"`
	SessionID    string `env:"SENTIENT_SESSION_ID"`

	MQTTURL      string `env:"SENTIENT_MQTT_URL" envDefault:"tcp://localhost:1883"`
	MQTTClientID string `env:"SENTIENT_MQTT_CLIENT_ID" envDefault:"sentient-narrative"`
	MQTTDisabled bool   `env:"SENTIENT_MQTT_DISABLED"`

	PGHost     string `env:"PGHOST" envDefault:"127.0.0.1"`
	PGPort     int    `env:"PGPORT" envDefault:"5432"`
	PGUser     string `env:"PGUSER" envDefault:"sentient"`
	PGDatabase string `env:"PGDATABASE" envDefault:"sentient"`
	PGSSLMode  string `env:"PGSSLMODE" envDefault:"disable"`

	LogLevel  string `env:"SENTIENT_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"SENTIENT_LOG_FORMAT" envDefault:"text"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses and checks the process environment.
func LoadEnv() (*Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return nil, err
	}

	switch e.Store {
	case StorePostgres, StoreSQLite, StoreMemory:
	default:
		return nil, fmt.Errorf("SENTIENT_STORE: unknown backend %q (want postgres, sqlite or memory)", e.Store)
	}

	switch e.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("SENTIENT_LOG_FORMAT: unknown format %q (want text or json)", e.LogFormat)
	}

	return &e, nil
}

// Postgres builds the event store connection settings. The password is
// read from PGPASSWORD or PGPASSWORD_FILE.
func (e *Env) Postgres() (postgres.Config, error) {
	password, err := ResolveSecret(SecretPGPassword)
	if err != nil {
		return postgres.Config{}, err
	}
	return postgres.Config{
		Host:     e.PGHost,
		Port:     e.PGPort,
		User:     e.PGUser,
		Password: password,
		Database: e.PGDatabase,
		SSLMode:  e.PGSSLMode,
	}, nil
}
