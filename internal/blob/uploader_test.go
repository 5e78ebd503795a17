package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"discovery/api/internal/form"
)

type put struct {
	path        string
	contentType string
	size        int
}

type fakeObjectStore struct {
	puts   []put
	failOn string
}

func (f *fakeObjectStore) PutObject(_ context.Context, objectPath, contentType string, data []byte) error {
	if f.failOn != "" && strings.HasSuffix(objectPath, f.failOn) {
		return errors.New("bucket unavailable")
	}
	f.puts = append(f.puts, put{path: objectPath, contentType: contentType, size: len(data)})
	return nil
}

func (f *fakeObjectStore) PublicURL(objectPath string) string {
	return publicURL("https://files.example.com/voice-ai-files", objectPath)
}

func fixedUploader(store ObjectStore) *Uploader {
	u := NewUploader(store, "sales-scripts", nil)
	u.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return u
}

func TestUploadPreservesOrderAndPaths(t *testing.T) {
	store := &fakeObjectStore{}
	u := fixedUploader(store)

	files := []form.Attachment{
		form.Pending("a.pdf", "application/pdf", []byte("aaaa")),
		form.Pending("b.txt", "", []byte("bb")),
	}
	urls, err := u.Upload(context.Background(), files, "Acme Co")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(urls))
	}
	want := []string{
		"https://files.example.com/voice-ai-files/sales-scripts/Acme-Co/1700000000000-a.pdf",
		"https://files.example.com/voice-ai-files/sales-scripts/Acme-Co/1700000000000-b.txt",
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("url %d: expected %s, got %s", i, want[i], urls[i])
		}
	}
	if store.puts[1].contentType != "text/plain; charset=utf-8" {
		t.Fatalf("expected content type from extension, got %q", store.puts[1].contentType)
	}
}

func TestUploadEmptyBatch(t *testing.T) {
	urls, err := fixedUploader(&fakeObjectStore{}).Upload(context.Background(), nil, "Acme")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("expected no urls, got %v", urls)
	}
}

func TestUploadPassesThroughUploadedEntries(t *testing.T) {
	store := &fakeObjectStore{}
	files := []form.Attachment{
		form.Uploaded("https://cdn.example.com/old.pdf"),
		form.Pending("new.pdf", "application/pdf", []byte("x")),
	}
	urls, err := fixedUploader(store).Upload(context.Background(), files, "Acme")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if urls[0] != "https://cdn.example.com/old.pdf" {
		t.Fatalf("expected existing url first, got %s", urls[0])
	}
	if len(store.puts) != 1 {
		t.Fatalf("expected one put, got %d", len(store.puts))
	}
}

func TestUploadFailureNamesFileAndOrphans(t *testing.T) {
	store := &fakeObjectStore{failOn: "-b.pdf"}
	files := []form.Attachment{
		form.Pending("a.pdf", "application/pdf", []byte("a")),
		form.Pending("b.pdf", "application/pdf", []byte("b")),
		form.Pending("c.pdf", "application/pdf", []byte("c")),
	}
	urls, err := fixedUploader(store).Upload(context.Background(), files, "Acme")
	if urls != nil {
		t.Fatalf("expected no urls on failure, got %v", urls)
	}
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if uploadErr.FileName != "b.pdf" {
		t.Fatalf("expected b.pdf to be reported, got %s", uploadErr.FileName)
	}
	if len(uploadErr.Orphaned) != 1 || !strings.HasSuffix(uploadErr.Orphaned[0], "-a.pdf") {
		t.Fatalf("expected a.pdf orphaned, got %v", uploadErr.Orphaned)
	}
	if len(store.puts) != 1 {
		t.Fatalf("expected batch to stop after failure, got %d puts", len(store.puts))
	}
}

func TestUploadSameNameInOneBatchGetsDistinctPaths(t *testing.T) {
	store := &fakeObjectStore{}
	files := []form.Attachment{
		form.Pending("script.pdf", "application/pdf", []byte("first")),
		form.Pending("script.pdf", "application/pdf", []byte("second")),
	}
	urls, err := fixedUploader(store).Upload(context.Background(), files, "Acme")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(store.puts) != 2 || store.puts[0].path == store.puts[1].path {
		t.Fatalf("expected two distinct objects, got %+v", store.puts)
	}
	if store.puts[0].path != "sales-scripts/Acme/1700000000000-script.pdf" {
		t.Fatalf("first object should keep the clock timestamp, got %s", store.puts[0].path)
	}
	if store.puts[1].path != "sales-scripts/Acme/1700000000001-script.pdf" {
		t.Fatalf("second object should step the timestamp, got %s", store.puts[1].path)
	}
	if urls[0] == urls[1] {
		t.Fatalf("expected distinct urls, got %v", urls)
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Acme Co":   "Acme-Co",
		"A&B, Inc.": "A-B--Inc-",
		"plain123":  "plain123",
		"":          "",
		"Café":      "Caf-",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestMinioPublicURL(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds: credentials.NewStaticV4("key", "secret", ""),
	})
	if err != nil {
		t.Fatalf("minio client: %v", err)
	}
	store := newMinioStore(client, "voice-ai-files", "")
	got := store.PublicURL("sales-scripts/Acme/1-my script.pdf")
	want := "http://localhost:9000/voice-ai-files/sales-scripts/Acme/1-my%20script.pdf"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	custom := newMinioStore(client, "voice-ai-files", "https://cdn.example.com/")
	if got := custom.PublicURL("a/b.pdf"); got != "https://cdn.example.com/a/b.pdf" {
		t.Fatalf("unexpected public url %s", got)
	}
}
