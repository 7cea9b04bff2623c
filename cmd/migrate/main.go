package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/internal/pkg/env"
	"github.com/ManuelReschke/Bizdir/internal/pkg/logging"
)

func main() {
	// load environment from .env
	env.SetupEnvFile()
	log := logging.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	log.WithFields(logrus.Fields{
		"user": env.GetEnv("DB_USER", "bizdir"),
		"host": env.GetEnv("DB_HOST", "db"),
		"port": env.GetEnv("DB_PORT", "3306"),
		"name": env.GetEnv("DB_NAME", "bizdir_db"),
	}).Info("connecting to database")

	m, err := migrate.New(
		"file://"+env.GetEnv("MIGRATIONS_DIR", "migrations"),
		databaseURL(),
	)
	if err != nil {
		log.WithError(err).Fatal("could not initialise migrations")
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warnf("closing migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		// apply all pending migrations
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info("no change: database is up to date")
		case err != nil:
			log.WithError(err).Fatal("applying migrations failed")
		default:
			log.Info("migrations applied")
		}

	case "down":
		// roll back the latest migration
		if err := m.Steps(-1); err != nil {
			log.WithError(err).Fatal("rolling back the latest migration failed")
		}
		log.Info("latest migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.WithError(err).Fatal("invalid version number")
		}

		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Infof("no change: database is already at version %d", version)
		case err != nil:
			log.WithError(err).Fatalf("migrating to version %d failed", version)
		default:
			log.Infof("migrated to version %d", version)
		}

	case "status":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Info("no migrations applied yet")
				return
			}
			log.WithError(err).Fatal("reading migration version failed")
		}
		dirtyStatus := ""
		if dirty {
			dirtyStatus = " (dirty)"
		}
		log.Infof("current migration version: %d%s", version, dirtyStatus)

	default:
		printUsage()
		os.Exit(1)
	}
}

func databaseURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		env.GetEnv("DB_USER", "bizdir"),
		env.GetEnv("DB_PASSWORD", "bizdir"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "bizdir_db"),
	)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the latest migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
}
