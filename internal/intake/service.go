// Package intake reconciles respondent records with the submissions table:
// draft saves, draft lookup by email and final submission.
package intake

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"discovery/api/internal/form"
	"discovery/api/internal/logging"
	"discovery/api/internal/store"
)

type dataStore interface {
	Find(ctx context.Context, filter store.Filter) ([]store.Submission, error)
	Insert(ctx context.Context, sub store.Submission) (store.Submission, error)
	Update(ctx context.Context, id string, sub store.Submission) (store.Submission, error)
}

type uploader interface {
	Upload(ctx context.Context, files []form.Attachment, namespace string) ([]string, error)
}

type notifier interface {
	Fire(ctx context.Context, payload any)
}

type indexer interface {
	IndexSubmission(sub store.Submission)
}

type Service struct {
	store      dataStore
	uploader   uploader
	definition *form.Definition
	notifier   notifier
	indexer    indexer
	log        *logging.Logger
}

type Option func(*Service)

// WithNotifier posts every finalized row to n.
func WithNotifier(n notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithIndexer pushes every written row to the operator search index.
func WithIndexer(i indexer) Option {
	return func(s *Service) { s.indexer = i }
}

func NewService(st dataStore, up uploader, def *form.Definition, log *logging.Logger, opts ...Option) *Service {
	if def == nil {
		def = form.DefaultDefinition()
	}
	if log == nil {
		log = logging.Nop()
	}
	s := &Service{
		store:      st,
		uploader:   up,
		definition: def,
		log:        log.With("component", "intake"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveResult is the outcome of a successful save. Record holds the saved
// answers with every attachment resolved to its URL.
type SaveResult struct {
	Submission store.Submission
	Record     form.Record
	Created    bool
}

// Draft is a previously saved record found by email.
type Draft struct {
	Record     form.Record
	Progress   form.Progress
	Status     form.Status
	Submission store.Submission
}

var tracer = otel.Tracer("discovery/intake")

// Save uploads pending attachments and writes record to the current row for
// its email, creating a draft when there is none. A nil section leaves the
// completed set untouched.
func (s *Service) Save(ctx context.Context, record form.Record, section *int) (SaveResult, error) {
	ctx, span := tracer.Start(ctx, "intake.Save")
	defer span.End()

	email := strings.TrimSpace(record.Email)
	if email == "" {
		return SaveResult{}, ErrEmailRequired
	}
	span.SetAttributes(attribute.Bool("intake.section_given", section != nil))

	resolved, err := s.resolveAttachments(ctx, record)
	if err != nil {
		return SaveResult{}, fail(span, err)
	}
	resolved.Email = email

	existing, found, err := s.current(ctx, email)
	if err != nil {
		return SaveResult{}, fail(span, err)
	}

	sub := ToSubmission(resolved)
	lastSection := 0
	if section != nil {
		lastSection = *section
	}
	sub.LastSection = lastSection

	if found {
		completed := form.NewSections(existing.CompletedSections...)
		if section != nil {
			completed = completed.With(*section)
		}
		sub.CompletedSections = completed.Ints()
		sub.Status = existing.Status

		updated, err := s.store.Update(ctx, existing.ID, sub)
		if err != nil {
			return SaveResult{}, fail(span, persistenceError("update", err))
		}
		s.log.Info("draft updated", "id", updated.ID, "email", email, "section", lastSection, "status", updated.Status)
		s.index(updated)
		return SaveResult{Submission: updated, Record: resolved}, nil
	}

	sub.Status = string(form.StatusDraft)
	sub.CompletedSections = []int{}
	if section != nil {
		sub.CompletedSections = []int{*section}
	}
	inserted, err := s.store.Insert(ctx, sub)
	if err != nil {
		return SaveResult{}, fail(span, persistenceError("insert", err))
	}
	s.log.Info("draft created", "id", inserted.ID, "email", email, "section", lastSection)
	s.index(inserted)
	return SaveResult{Submission: inserted, Record: resolved, Created: true}, nil
}

// Load returns the current row for email. A missing row is not an error.
func (s *Service) Load(ctx context.Context, email string) (Draft, bool, error) {
	ctx, span := tracer.Start(ctx, "intake.Load")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" {
		return Draft{}, false, ErrEmailRequired
	}
	row, found, err := s.current(ctx, email)
	if err != nil {
		return Draft{}, false, fail(span, err)
	}
	span.SetAttributes(attribute.Bool("intake.found", found))
	if !found {
		return Draft{}, false, nil
	}
	return Draft{
		Record: FromSubmission(row),
		Progress: form.Progress{
			LastSection:       row.LastSection,
			CompletedSections: form.NewSections(row.CompletedSections...),
		},
		Status:     form.Status(row.Status),
		Submission: row,
	}, true, nil
}

// Submit uploads pending attachments and writes record as completed with
// every section marked done. The finalized row is then posted to the
// webhook sink without waiting for the outcome.
func (s *Service) Submit(ctx context.Context, record form.Record) (store.Submission, error) {
	ctx, span := tracer.Start(ctx, "intake.Submit")
	defer span.End()

	email := strings.TrimSpace(record.Email)
	if email == "" {
		return store.Submission{}, ErrEmailRequired
	}

	resolved, err := s.resolveAttachments(ctx, record)
	if err != nil {
		return store.Submission{}, fail(span, err)
	}
	resolved.Email = email

	sub := ToSubmission(resolved)
	sub.Status = string(form.StatusCompleted)
	sub.CompletedSections = form.AllSections(s.definition.SectionCount()).Ints()
	sub.LastSection = s.definition.LastSection()

	existing, found, err := s.current(ctx, email)
	if err != nil {
		return store.Submission{}, fail(span, err)
	}

	var persisted store.Submission
	if found {
		persisted, err = s.store.Update(ctx, existing.ID, sub)
		if err != nil {
			return store.Submission{}, fail(span, persistenceError("update", err))
		}
	} else {
		persisted, err = s.store.Insert(ctx, sub)
		if err != nil {
			return store.Submission{}, fail(span, persistenceError("insert", err))
		}
	}
	span.SetAttributes(attribute.String("intake.submission_id", persisted.ID))
	s.log.Info("submission completed", "id", persisted.ID, "email", email, "updated_existing", found)

	s.index(persisted)
	if s.notifier != nil {
		s.notifier.Fire(ctx, persisted)
	}
	return persisted, nil
}

func (s *Service) current(ctx context.Context, email string) (store.Submission, bool, error) {
	statuses := make([]string, 0, len(form.CurrentStatuses))
	for _, status := range form.CurrentStatuses {
		statuses = append(statuses, string(status))
	}
	rows, err := s.store.Find(ctx, store.Filter{Email: email, Statuses: statuses, Limit: 1})
	if err != nil {
		return store.Submission{}, false, persistenceError("lookup", err)
	}
	if len(rows) == 0 {
		return store.Submission{}, false, nil
	}
	return rows[0], true, nil
}

// resolveAttachments uploads the pending entries of every file-bearing
// field. Existing URLs keep their place; new URLs follow them in upload order.
func (s *Service) resolveAttachments(ctx context.Context, record form.Record) (form.Record, error) {
	out := record.Clone()
	out.Normalize()
	for _, name := range form.AttachmentFields {
		list, _ := out.AttachmentField(name)
		urls, pending := form.SplitAttachments(*list)
		if len(pending) > 0 {
			uploaded, err := s.uploader.Upload(ctx, pending, out.CompanyName)
			if err != nil {
				return form.Record{}, fmt.Errorf("upload %s: %w", name, err)
			}
			urls = append(urls, uploaded...)
		}
		*list = form.UploadedAttachments(urls)
	}
	return out, nil
}

func (s *Service) index(sub store.Submission) {
	if s.indexer != nil {
		s.indexer.IndexSubmission(sub)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
