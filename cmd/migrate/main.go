package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/gramv/onboardingsoftware-sub000/internal/platform/config"
	"github.com/gramv/onboardingsoftware-sub000/internal/platform/logger"
	"github.com/gramv/onboardingsoftware-sub000/migrations"
)

// main applies the schema. Usage: migrate [-dir path] [up|down|drop|version].
// Without -dir the migrations embedded in the binary are used.
func main() {
	migrationsDir := flag.String("dir", "", "directory containing migration files (defaults to the embedded set)")
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Environment)
	if !cfg.Database.Enabled() {
		log.Error("no database configured; set DATABASE_URL or database.* in CONFIG_PATH")
		os.Exit(1)
	}

	m, err := newMigrate(*migrationsDir, cfg.Database.DSN())
	if err != nil {
		log.Error("failed to create migrate instance", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := runMigration(m, action, log); err != nil {
		log.Error("migration failed", "action", action, "error", err)
		os.Exit(1)
	}
	log.Info("migration completed", "action", action)
}

func newMigrate(dir, dsn string) (*migrate.Migrate, error) {
	if dir == "" {
		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return nil, fmt.Errorf("open embedded migrations: %w", err)
		}
		return migrate.NewWithSourceInstance("iofs", src, dsn)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	return migrate.New("file://"+filepath.ToSlash(absDir), dsn)
}

func runMigration(m *migrate.Migrate, action string, log *slog.Logger) error {
	switch action {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("current schema version", "version", version, "dirty", dirty)
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}
