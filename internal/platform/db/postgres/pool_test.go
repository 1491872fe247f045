package postgres

import (
	"testing"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/platform/config"
)

func TestBuildPoolConfig(t *testing.T) {
	t.Parallel()

	dbCfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            15432,
		User:            "user",
		Password:        "pass",
		Name:            "db",
		SSLMode:         "disable",
		ApplicationName: "scheduler-test",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}

	poolCfg, err := BuildPoolConfig(dbCfg)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.MaxConns != 20 {
		t.Errorf("expected MaxConns 20, got %d", poolCfg.MaxConns)
	}

	if poolCfg.MinConns != 5 {
		t.Errorf("expected MinConns 5, got %d", poolCfg.MinConns)
	}

	if poolCfg.MaxConnLifetime != 30*time.Minute {
		t.Errorf("unexpected MaxConnLifetime: %v", poolCfg.MaxConnLifetime)
	}

	if poolCfg.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("unexpected MaxConnIdleTime: %v", poolCfg.MaxConnIdleTime)
	}

	if poolCfg.ConnConfig.Database != "db" {
		t.Errorf("expected database db, got %s", poolCfg.ConnConfig.Database)
	}

	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != "scheduler-test" {
		t.Errorf("expected application_name scheduler-test, got %q", got)
	}

	if got := poolCfg.ConnConfig.RuntimeParams["timezone"]; got != "UTC" {
		t.Errorf("expected session timezone UTC, got %q", got)
	}
}

func TestBuildPoolConfig_InvalidPort(t *testing.T) {
	t.Parallel()

	_, err := BuildPoolConfig(config.DatabaseConfig{
		Host:    "localhost",
		Port:    -1,
		User:    "user",
		Name:    "db",
		SSLMode: "disable",
	})
	if err == nil {
		t.Fatalf("expected error for invalid port")
	}
}
