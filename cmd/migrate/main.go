package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"outbound-platform/internal/config"
	"outbound-platform/internal/migrations"
	"outbound-platform/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env).With("component", "migrate")

	src, err := iofs.New(migrations.FS, migrations.Dir)
	if err != nil {
		log.Error("migration source init failed", "err", err)
		os.Exit(1)
	}
	log.Info("connecting", "host", cfg.DB.Host, "db", cfg.DB.Name)

	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		log.Error("migrate init failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warn("migrate close failed", "source_err", sourceErr, "db_err", dbErr)
		}
	}()

	if err := run(m, command, os.Args[2:], log); err != nil {
		log.Error("migration failed", "command", command, "err", err)
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, command string, args []string, log *slog.Logger) error {
	switch command {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no change: schema is current")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("migrations applied")

	case "down":
		if err := m.Steps(-1); err != nil {
			return err
		}
		log.Info("last migration rolled back")

	case "goto":
		if len(args) < 1 {
			return errors.New("goto needs a version")
		}
		version, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		err = m.Migrate(uint(version))
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no change", "version", version)
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("migrated", "version", version)

	case "version", "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("schema version", "version", version, "dirty", dirty)

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func printUsage() {
	fmt.Println("usage: migrate <command>")
	fmt.Println("  up        apply all pending migrations")
	fmt.Println("  down      roll back the last migration")
	fmt.Println("  goto N    migrate to version N")
	fmt.Println("  version   print the current schema version")
}
