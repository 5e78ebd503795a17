package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SNAPSHOT_INTERVAL_SECONDS", "")
	t.Setenv("BLOB_BUCKET", "")
	cfg := Load()
	if cfg.SnapshotInterval != 30*time.Second {
		t.Errorf("SnapshotInterval = %v, want 30s", cfg.SnapshotInterval)
	}
	if cfg.BlobBucket != "voice-ai-files" {
		t.Errorf("BlobBucket = %q", cfg.BlobBucket)
	}
	if cfg.BlobPrefix != "sales-scripts" {
		t.Errorf("BlobPrefix = %q", cfg.BlobPrefix)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SNAPSHOT_INTERVAL_SECONDS", "5")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SNAPSHOT_BACKEND", "SQLite")
	t.Setenv("WEBHOOK_TIMEOUT_SECONDS", "not-a-number")
	cfg := Load()
	if cfg.SnapshotInterval != 5*time.Second {
		t.Errorf("SnapshotInterval = %v", cfg.SnapshotInterval)
	}
	if !cfg.MinioUseSSL {
		t.Error("MinioUseSSL should be true")
	}
	if cfg.SnapshotBackend != "sqlite" {
		t.Errorf("SnapshotBackend = %q", cfg.SnapshotBackend)
	}
	if cfg.WebhookTimeout != 10*time.Second {
		t.Errorf("invalid int should fall back, got %v", cfg.WebhookTimeout)
	}
}
