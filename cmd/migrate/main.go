package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/config"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/logging"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
		migrationsDir = flag.String("dir", "assets/migrations", "directory containing migration files")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [up|down|steps N|force V|drop|version]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}
	args := flag.Args()
	if len(args) > 0 {
		args = args[1:]
	}

	cfgPath := effectiveConfigPath(*configPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize logger")
	}
	entry := logger.WithFields(logrus.Fields{"action": action, "dir": *migrationsDir})

	if err := runMigration(entry, action, args, *migrationsDir, cfg.Database.DSN()); err != nil {
		entry.WithError(err).Fatal("migration failed")
	}

	entry.Info("migration completed")
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func runMigration(logger logrus.FieldLogger, action string, args []string, dir, dsn string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	absDir = filepath.ToSlash(absDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", absDir), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

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
	case "steps":
		n, err := intArg(action, args)
		if err != nil {
			return err
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "force":
		v, err := intArg(action, args)
		if err != nil {
			return err
		}
		return m.Force(v)
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Info("no migration applied")
				return nil
			}
			return err
		}
		logger.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("migration version")
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

func intArg(action string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s requires exactly one integer argument", action)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid argument %q: %w", action, args[0], err)
	}
	return n, nil
}
