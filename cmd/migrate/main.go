package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/floroz/commerce/internal/config"
	"github.com/floroz/commerce/internal/infra/database"
	"github.com/floroz/commerce/pkg/logging"
)

// Usage: migrate [up|down|status|redo|reset|version] [args...]
func main() {
	flag.Parse()
	command := "up"
	var args []string
	if flag.NArg() > 0 {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := logging.NewLogger("commerce-migrate", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	log := logger.WithField("command", command)
	if cfg.MigrationsDir != "" {
		log = log.WithField("dir", cfg.MigrationsDir)
	}

	if err := database.Migrate(context.Background(), cfg.DatabaseURL, cfg.MigrationsDir, command, args...); err != nil {
		log.WithError(err).Error("migration failed")
		os.Exit(1)
	}
	log.Info("migration finished")
}
