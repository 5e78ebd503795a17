package form

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
)

type AttachmentKind string

const (
	KindPending  AttachmentKind = "pending"
	KindUploaded AttachmentKind = "uploaded"
)

// Attachment is one entry of a file-bearing field: either a blob that has not
// been uploaded yet, or the public URL of one that has.
type Attachment struct {
	kind        AttachmentKind
	name        string
	contentType string
	data        []byte
	url         string
}

func Pending(name, contentType string, data []byte) Attachment {
	return Attachment{kind: KindPending, name: name, contentType: contentType, data: data}
}

func Uploaded(rawURL string) Attachment {
	return Attachment{kind: KindUploaded, url: rawURL}
}

func (a Attachment) Kind() AttachmentKind { return a.kind }
func (a Attachment) IsPending() bool      { return a.kind == KindPending }
func (a Attachment) URL() string          { return a.url }
func (a Attachment) ContentType() string  { return a.contentType }
func (a Attachment) Data() []byte         { return a.data }

// Name is the original file name for a pending blob, or the last path
// segment of the URL for an uploaded one.
func (a Attachment) Name() string {
	if a.kind == KindPending {
		return a.name
	}
	parsed, err := url.Parse(a.url)
	if err != nil || parsed.Path == "" {
		return a.url
	}
	base := path.Base(parsed.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}

func (a Attachment) Size() int64 {
	return int64(len(a.data))
}

type attachmentJSON struct {
	Kind        AttachmentKind `json:"kind"`
	Name        string         `json:"name,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	Data        []byte         `json:"data,omitempty"`
	URL         string         `json:"url,omitempty"`
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case KindPending:
		return json.Marshal(attachmentJSON{Kind: KindPending, Name: a.name, ContentType: a.contentType, Data: a.data})
	case KindUploaded:
		return json.Marshal(attachmentJSON{Kind: KindUploaded, URL: a.url})
	default:
		return nil, fmt.Errorf("marshal attachment: unknown kind %q", a.kind)
	}
}

// UnmarshalJSON accepts the tagged object form and, for rows written by older
// clients, a bare URL string.
func (a *Attachment) UnmarshalJSON(raw []byte) error {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		*a = Uploaded(bare)
		return nil
	}
	var payload attachmentJSON
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("unmarshal attachment: %w", err)
	}
	switch payload.Kind {
	case KindPending:
		*a = Pending(payload.Name, payload.ContentType, payload.Data)
	case KindUploaded:
		*a = Uploaded(payload.URL)
	default:
		return fmt.Errorf("unmarshal attachment: unknown kind %q", payload.Kind)
	}
	return nil
}

// SplitAttachments partitions a list into uploaded URLs and pending blobs,
// each in original order.
func SplitAttachments(list []Attachment) (urls []string, pending []Attachment) {
	for _, item := range list {
		if item.IsPending() {
			pending = append(pending, item)
			continue
		}
		urls = append(urls, item.url)
	}
	return urls, pending
}

// AttachmentURLs returns the URLs of a fully uploaded list. Pending entries are skipped.
func AttachmentURLs(list []Attachment) []string {
	urls, _ := SplitAttachments(list)
	if urls == nil {
		return []string{}
	}
	return urls
}

func UploadedAttachments(urls []string) []Attachment {
	out := make([]Attachment, 0, len(urls))
	for _, u := range urls {
		out = append(out, Uploaded(u))
	}
	return out
}
