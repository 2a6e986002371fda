package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9999
database:
  driver: postgres
  dsn: postgres://localhost/agentcore
queue:
  backend: sqs
  queue_url: https://sqs.example.com/queue
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("Server.Host = %q, want default 0.0.0.0 preserved", cfg.Server.Host)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("Database.Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Loop.MaxIterations != 50 {
		t.Fatalf("Loop.MaxIterations = %d, want default 50 preserved", cfg.Loop.MaxIterations)
	}
}

func TestLoadAppliesEnvOverridesForSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("AGENTCORE_DB_URL", "postgres://env-override/db")
	t.Setenv("AGENTCORE_JWT_SECRET", "env-secret")
	t.Setenv("AGENTCORE_SQS_QUEUE_URL", "https://sqs.example.com/env-queue")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "postgres://env-override/db" {
		t.Fatalf("Database.DSN = %q, want env override", cfg.Database.DSN)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("Auth.JWTSecret = %q, want env-secret", cfg.Auth.JWTSecret)
	}
	if cfg.Queue.QueueURL != "https://sqs.example.com/env-queue" {
		t.Fatalf("Queue.QueueURL = %q, want env override", cfg.Queue.QueueURL)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("Load on a missing file returned nil error")
	}
}
