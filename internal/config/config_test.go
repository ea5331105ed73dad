package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.SyncBatchSize != 10 {
		t.Fatalf("expected default batch size 10, got %d", cfg.SyncBatchSize)
	}
	if cfg.StatusPollSec != 5 || cfg.WatchdogSec != 30 {
		t.Fatalf("unexpected default timers: %d/%d", cfg.StatusPollSec, cfg.WatchdogSec)
	}
	if cfg.RecoveryWindowHrs != 12 {
		t.Fatalf("expected 12h recovery window, got %d", cfg.RecoveryWindowHrs)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("REMOTE_BASE_URL", "http://dispatch.example.com")
	t.Setenv("SYNC_BATCH_SIZE", "25")
	t.Setenv("DRIVER_ID", "driver-7")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.RemoteBaseURL != "http://dispatch.example.com" {
		t.Fatalf("expected override remote url")
	}
	if cfg.SyncBatchSize != 25 {
		t.Fatalf("expected override batch size")
	}
	if cfg.DriverID != "driver-7" {
		t.Fatalf("expected override driver id")
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.RemoteBaseURL = "not-a-url"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for bad url")
	}

	cfg = Load()
	cfg.SyncBatchSize = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for zero batch size")
	}
}
