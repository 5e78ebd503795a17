// Package attachments validates and stages files for the form's file-bearing
// fields before they are uploaded.
package attachments

import (
	"errors"
	"fmt"
	"strings"

	"discovery/api/internal/form"
)

var (
	ErrTooLarge        = errors.New("too large")
	ErrInvalidType     = errors.New("invalid type")
	ErrIndexOutOfRange = errors.New("attachment index out of range")
)

// Constraints limit a single file-bearing field.
type Constraints struct {
	MaxFiles int
	MaxBytes int64
	Accept   []string
}

func FromRule(rule form.AttachmentRule) Constraints {
	return Constraints{MaxFiles: rule.MaxFiles, MaxBytes: rule.MaxBytes(), Accept: rule.Accept}
}

// File is an incoming upload that has not been staged yet. Size may be set
// without Data when the transport already knows the file is too big to read.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Size        int64
}

func (f File) size() int64 {
	if n := int64(len(f.Data)); n > f.Size {
		return n
	}
	return f.Size
}

// Rejection explains why one file of a batch was not staged.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	err    error
}

func (r Rejection) Err() error { return r.err }

type Result struct {
	Accepted   []form.Attachment
	Rejections []Rejection
	// Dropped counts valid files ignored because the field was already full.
	Dropped int
}

// Validate checks one file against the size limit and the accepted
// extensions. Extensions match case-insensitively on the file name suffix.
func Validate(file File, c Constraints) error {
	if c.MaxBytes > 0 && file.size() > c.MaxBytes {
		return fmt.Errorf("%s: %w", file.Name, ErrTooLarge)
	}
	if !accepted(file.Name, c.Accept) {
		return fmt.Errorf("%s: %w", file.Name, ErrInvalidType)
	}
	return nil
}

func accepted(name string, accept []string) bool {
	if len(accept) == 0 {
		return true
	}
	dot := strings.LastIndex(name, ".")
	if dot < 0 {
		return false
	}
	ext := strings.ToLower(name[dot:])
	for _, candidate := range accept {
		if strings.ToLower(strings.TrimSpace(candidate)) == ext {
			return true
		}
	}
	return false
}

// StageMany validates every incoming file on its own. Valid files are
// accepted while capacity remains (MaxFiles minus what the field already
// holds minus what this batch has accepted); the rest are dropped silently.
func StageMany(existing []form.Attachment, incoming []File, c Constraints) Result {
	var result Result
	for _, file := range incoming {
		if err := Validate(file, c); err != nil {
			result.Rejections = append(result.Rejections, Rejection{Name: file.Name, Reason: reason(err), err: err})
			continue
		}
		if c.MaxFiles > 0 && len(existing)+len(result.Accepted) >= c.MaxFiles {
			result.Dropped++
			continue
		}
		result.Accepted = append(result.Accepted, form.Pending(file.Name, file.ContentType, file.Data))
	}
	return result
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrTooLarge):
		return "File too large"
	case errors.Is(err, ErrInvalidType):
		return "Invalid file type"
	default:
		return err.Error()
	}
}

// Append concatenates accepted items to the end of the list.
func Append(list []form.Attachment, accepted []form.Attachment) []form.Attachment {
	out := make([]form.Attachment, 0, len(list)+len(accepted))
	out = append(out, list...)
	return append(out, accepted...)
}

// Remove drops the entry at index. Removal is positional over the combined
// list of pending blobs and uploaded URLs.
func Remove(list []form.Attachment, index int) ([]form.Attachment, error) {
	if index < 0 || index >= len(list) {
		return list, fmt.Errorf("remove %d of %d: %w", index, len(list), ErrIndexOutOfRange)
	}
	out := make([]form.Attachment, 0, len(list)-1)
	out = append(out, list[:index]...)
	return append(out, list[index+1:]...), nil
}
