package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/stackseed/auth-service/internal/config"
	"github.com/stackseed/auth-service/internal/migrator"
	"github.com/stackseed/auth-service/internal/pkg/log"
)

func main() {
	var configPath string
	var down bool
	flag.StringVar(&configPath, "config", "", "path to config file (or use CONFIG_PATH env)")
	flag.BoolVar(&down, "down", false, "roll back all migrations")
	flag.Parse()

	cfg := config.MustLoad(configPath)
	logger := log.New(cfg.Env, os.Stdout)

	if cfg.DB.Driver != config.DriverPostgres {
		logger.Info("migrations_skipped", slog.String("driver", cfg.DB.Driver))
		return
	}

	m, err := migrator.New(cfg.DB.URL)
	if err != nil {
		logger.Error("migrator_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = m.Close() }()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil {
		logger.Error("migration_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	v, dirty, err := m.Version()
	if err != nil {
		logger.Error("migration_version_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger.Info("migrations_applied", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
}
