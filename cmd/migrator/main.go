package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/errwatch/issue-lifecycle-service/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/ilyakaznacheev/cleanenv"
)

// migratorConfig carries everything the migrator needs: the database DSN is
// assembled from the service config, the rest comes from the environment.
type migratorConfig struct {
	databaseURL     string
	migrationsPath  string
	migrationsTable string
}

func main() {
	cfg, err := loadMigratorConfig()
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}

	m, err := migrate.New(
		"file://"+cfg.migrationsPath,
		fmt.Sprintf("%s?sslmode=disable&x-migrations-table=%s", cfg.databaseURL, cfg.migrationsTable),
	)
	if err != nil {
		log.Fatalf("migrator: failed to init: %v", err)
	}

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	switch direction {
	case "down":
		if err := rollback(m); err != nil {
			log.Fatalf("migrator: %v", err)
		}

		fmt.Println("schema rolled back")
	default:
		if err := apply(m); err != nil {
			log.Fatalf("migrator: %v", err)
		}

		fmt.Println("schema is up to date")
	}
}

func loadMigratorConfig() (*migratorConfig, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return nil, fmt.Errorf("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file '%s' is not readable: %w", configPath, err)
	}

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		return nil, fmt.Errorf("MIGRATIONS_PATH is not set")
	}

	migrationsTable := os.Getenv("MIGRATIONS_TABLE")
	if migrationsTable == "" {
		return nil, fmt.Errorf("MIGRATIONS_TABLE is not set")
	}

	var cfg config.Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		cfg.Postgres.Username,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Database,
	)

	return &migratorConfig{
		databaseURL:     dsn,
		migrationsPath:  migrationsPath,
		migrationsTable: migrationsTable,
	}, nil
}

func apply(m *migrate.Migrate) error {
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("nothing to apply")
			return nil
		}

		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func rollback(m *migrate.Migrate) error {
	if err := m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("nothing to roll back")
		}

		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	return nil
}
