package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ERP_BASE_URL", "https://erp.example.com:50000/b1s/v1")
	t.Setenv("ERP_LOGIN_URL", "https://erp.example.com:50000/b1s/v1/Login")
	t.Setenv("ERP_COMPANY_DB", "SBO_PROD")
	t.Setenv("ERP_USER", "integration")
	t.Setenv("ERP_PASSWORD", "secret")
	t.Setenv("FILE_STORE_ROOT", "/srv/erpbridge")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.WorkerConcurrency != 12 {
		t.Errorf("WorkerConcurrency = %d, want 12", cfg.WorkerConcurrency)
	}
	if cfg.ThrottleInterval != 2*time.Second {
		t.Errorf("ThrottleInterval = %v, want 2s", cfg.ThrottleInterval)
	}
	if cfg.ERPTimeout != 30*time.Second {
		t.Errorf("ERPTimeout = %v, want 30s", cfg.ERPTimeout)
	}
	if cfg.InboxFolder != "inbox" || cfg.ProcessedFolder != "processed" || cfg.ReportsFolder != "reports" {
		t.Errorf("folders = %q %q %q, want defaults", cfg.InboxFolder, cfg.ProcessedFolder, cfg.ReportsFolder)
	}
	if cfg.FileRetries != 6 {
		t.Errorf("FileRetries = %d, want 6", cfg.FileRetries)
	}
	if cfg.DumpPayloads {
		t.Error("DumpPayloads should default to false")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("THROTTLE_INTERVAL", "5s")
	t.Setenv("DUMP_PAYLOADS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Errorf("WorkerConcurrency = %d, want 4", cfg.WorkerConcurrency)
	}
	if cfg.ThrottleInterval != 5*time.Second {
		t.Errorf("ThrottleInterval = %v, want 5s", cfg.ThrottleInterval)
	}
	if !cfg.DumpPayloads {
		t.Error("DumpPayloads = false, want true")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "host=localhost")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required variables")
	}
}
