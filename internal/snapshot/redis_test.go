package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"discovery/api/internal/form"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := NewRedisCache("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	return cache, s
}

func sampleSnapshot() Snapshot {
	record := form.NewRecord()
	record.CompanyName = "Acme Co"
	record.Email = "a@acme.io"
	record.SalesScripts = []form.Attachment{
		form.Uploaded("https://files.example.com/old.pdf"),
		form.Pending("new.pdf", "application/pdf", []byte("%PDF-1.4")),
	}
	return Snapshot{
		Record:            record,
		CurrentSection:    2,
		CompletedSections: form.NewSections(0, 1),
	}
}

func TestNewRedisCache(t *testing.T) {
	cache, s := setupTestRedis(t)
	defer cache.Close()
	defer s.Close()

	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisSaveAndLoad(t *testing.T) {
	cache, s := setupTestRedis(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	if err := cache.Save(ctx, "sess-1", sampleSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !s.Exists(KeyPrefix + "sess-1") {
		t.Fatalf("expected key %s", KeyPrefix+"sess-1")
	}

	snap, ok, err := cache.Load(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%v err=%v", ok, err)
	}
	if snap.Record.CompanyName != "Acme Co" || snap.CurrentSection != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if len(snap.Record.SalesScripts) != 2 || !snap.Record.SalesScripts[1].IsPending() {
		t.Fatalf("expected pending blob to survive, got %+v", snap.Record.SalesScripts)
	}
	if string(snap.Record.SalesScripts[1].Data()) != "%PDF-1.4" {
		t.Errorf("pending blob bytes changed")
	}
	if snap.SavedAt.IsZero() {
		t.Errorf("expected SavedAt to be stamped")
	}
}

func TestRedisLoadMissing(t *testing.T) {
	cache, s := setupTestRedis(t)
	defer cache.Close()
	defer s.Close()

	_, ok, err := cache.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Error("expected no snapshot")
	}
}

func TestRedisSnapshotExpires(t *testing.T) {
	cache, s := setupTestRedis(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	if err := cache.Save(ctx, "sess-1", sampleSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.FastForward(2 * time.Hour)

	if _, ok, _ := cache.Load(ctx, "sess-1"); ok {
		t.Error("expected snapshot to expire")
	}
}

func TestRedisSaveOverwritesAndClear(t *testing.T) {
	cache, s := setupTestRedis(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	first := sampleSnapshot()
	second := sampleSnapshot()
	second.Record.CompanyName = "Acme Two"
	second.CurrentSection = 5

	if err := cache.Save(ctx, "sess-1", first); err != nil {
		t.Fatalf("Save first failed: %v", err)
	}
	if err := cache.Save(ctx, "sess-1", second); err != nil {
		t.Fatalf("Save second failed: %v", err)
	}
	snap, _, _ := cache.Load(ctx, "sess-1")
	if snap.Record.CompanyName != "Acme Two" || snap.CurrentSection != 5 {
		t.Fatalf("expected latest snapshot, got %+v", snap)
	}

	if err := cache.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := cache.Load(ctx, "sess-1"); ok {
		t.Error("expected snapshot to be cleared")
	}
	if err := cache.Clear(ctx, "sess-1"); err != nil {
		t.Errorf("clearing an empty slot should not error: %v", err)
	}
}
