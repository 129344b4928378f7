package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string      `yml:"env" default:"local"`
	Postgres    Postgres    `yml:"postgres"`
	Server      Server      `yml:"server" env-required:"true"`
	EventStream EventStream `yml:"eventstream" env-required:"true"`
	TaskQueue   TaskQueue   `yml:"taskqueue"`
	Features    Features    `yml:"features"`
}

type Postgres struct {
	Username        string        `env:"POSTGRES_USER" env-required:"true"`
	Password        string        `env:"POSTGRES_PASSWORD" env-required:"true"`
	Host            string        `yml:"host" env-required:"true"`
	Port            string        `env:"POSTGRES_PORT" env-required:"true"`
	Database        string        `env:"POSTGRES_DB" env-required:"true"`
	MaxOpenConns    int           `yml:"max_open_conns" default:"50"`
	MaxIdleConns    int           `yml:"max_idle_conns" default:"10"`
	ConnMaxLifetime time.Duration `yml:"conn_max_lifetime" default:"5m"`
	ConnMaxIdleTime time.Duration `yml:"conn_max_idle_time" default:"1m"`
}

type Server struct {
	Host    string        `yml:"host" default:"localhost"`
	Port    string        `yml:"port" default:"8080"`
	Timeout time.Duration `yml:"timeout" default:"5s"`
}

// EventStream configures the client for the external search-index service.
type EventStream struct {
	BaseURL string        `yml:"base_url" env:"EVENTSTREAM_URL" env-required:"true"`
	Timeout time.Duration `yml:"timeout" default:"5s"`
}

// TaskQueue configures the asynchronous worker pool that drains the outbox.
type TaskQueue struct {
	PollInterval time.Duration `yml:"poll_interval" default:"1s"`
	Workers      int           `yml:"workers" default:"4"`
}

// Features holds per-deployment behavior toggles. They are passed explicitly
// into the services that need them instead of being read as ambient state.
type Features struct {
	SyncEnabled    bool   `yml:"sync_enabled" env:"INTEGRATION_SYNC_ENABLED" default:"false"`
	IntegrationURL string `yml:"integration_url" env:"INTEGRATION_URL"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return nil, errors.New("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file does not exist: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}

	return cfg
}
