// Package blob pushes staged attachment blobs to object storage and hands
// back durable public URLs.
package blob

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"discovery/api/internal/form"
	"discovery/api/internal/logging"
)

// ObjectStore is the minimal object storage surface the uploader needs.
type ObjectStore interface {
	PutObject(ctx context.Context, objectPath, contentType string, data []byte) error
	PublicURL(objectPath string) string
}

// UploadError identifies the file that broke a batch. Objects written
// earlier in the same batch are left in place and listed in Orphaned.
type UploadError struct {
	FileName string
	Path     string
	Orphaned []string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

type Uploader struct {
	store  ObjectStore
	prefix string
	now    func() time.Time
	log    *logging.Logger
}

func NewUploader(store ObjectStore, prefix string, log *logging.Logger) *Uploader {
	if log == nil {
		log = logging.Nop()
	}
	return &Uploader{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
		log:    log.With("component", "blob"),
	}
}

// Upload writes each pending blob in order and returns one URL per input.
// Entries that are already uploaded pass through with their URL. Paths are
// unique within a batch. The first failure aborts the batch.
func (u *Uploader) Upload(ctx context.Context, files []form.Attachment, namespace string) ([]string, error) {
	ctx, span := otel.Tracer("discovery/blob").Start(ctx, "blob.Upload")
	defer span.End()
	span.SetAttributes(attribute.Int("blob.count", len(files)), attribute.String("blob.namespace", namespace))

	urls := make([]string, 0, len(files))
	var written []string
	used := map[string]struct{}{}
	for _, file := range files {
		if !file.IsPending() {
			urls = append(urls, file.URL())
			continue
		}
		objectPath := u.uniquePath(namespace, file.Name(), used)
		contentType := file.ContentType()
		if contentType == "" {
			contentType = mime.TypeByExtension(path.Ext(file.Name()))
		}
		if err := u.store.PutObject(ctx, objectPath, contentType, file.Data()); err != nil {
			uploadErr := &UploadError{FileName: file.Name(), Path: objectPath, Orphaned: written, Err: err}
			if len(written) > 0 {
				u.log.Warn("upload batch aborted, earlier objects left in storage", "file", file.Name(), "orphaned", written)
			}
			span.RecordError(uploadErr)
			span.SetStatus(codes.Error, uploadErr.Error())
			return nil, uploadErr
		}
		written = append(written, objectPath)
		urls = append(urls, u.store.PublicURL(objectPath))
	}
	return urls, nil
}

// uniquePath steps the timestamp forward until the path has not been
// handed out earlier in the batch.
func (u *Uploader) uniquePath(namespace, fileName string, used map[string]struct{}) string {
	at := u.now()
	for {
		objectPath := ObjectPath(u.prefix, namespace, at, fileName)
		if _, taken := used[objectPath]; !taken {
			used[objectPath] = struct{}{}
			return objectPath
		}
		at = at.Add(time.Millisecond)
	}
}

// ObjectPath is {prefix}/{sanitized namespace}/{unix millis}-{file name}.
func ObjectPath(prefix, namespace string, at time.Time, fileName string) string {
	name := strconv.FormatInt(at.UnixMilli(), 10) + "-" + fileName
	if prefix == "" {
		return Sanitize(namespace) + "/" + name
	}
	return prefix + "/" + Sanitize(namespace) + "/" + name
}

// Sanitize replaces every character outside [A-Za-z0-9] with a hyphen.
func Sanitize(namespace string) string {
	var b strings.Builder
	b.Grow(len(namespace))
	for _, r := range namespace {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func publicURL(base, objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
