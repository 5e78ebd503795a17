package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"discovery/api/internal/form"
	"discovery/api/internal/logging"
	"discovery/api/internal/search"
	"discovery/api/internal/store"
	"discovery/api/internal/wizard"
)

type sessionRegistry interface {
	Start(ctx context.Context, id string) (*wizard.Controller, bool, error)
	Get(id string) (*wizard.Controller, error)
}

type submissionReader interface {
	GetSubmission(ctx context.Context, id string) (store.Submission, error)
	ListSubmissions(ctx context.Context, filter store.ListFilter) ([]store.SubmissionSummary, int, error)
}

type submissionSearcher interface {
	Search(ctx context.Context, q search.Query) search.Response
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Definition  *form.Definition
	Sessions    sessionRegistry
	Submissions submissionReader
	Search      submissionSearcher
	Checks      []Check
	Log         *logging.Logger
}

// Service is the application facade the HTTP layer talks to.
type Service struct {
	def         *form.Definition
	sessions    sessionRegistry
	submissions submissionReader
	search      submissionSearcher
	checks      []Check
	log         *logging.Logger
}

func NewService(deps Deps) *Service {
	def := deps.Definition
	if def == nil {
		def = form.DefaultDefinition()
	}
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		def:         def,
		sessions:    deps.Sessions,
		submissions: deps.Submissions,
		search:      deps.Search,
		checks:      deps.Checks,
		log:         log,
	}
}

func (s *Service) Definition() *form.Definition {
	return s.def
}

// StartSession returns the view of a new, live or restored session.
func (s *Service) StartSession(ctx context.Context, id string) (wizard.View, bool, error) {
	c, restored, err := s.sessions.Start(ctx, strings.TrimSpace(id))
	if err != nil {
		return wizard.View{}, false, err
	}
	return c.View(), restored, nil
}

func (s *Service) Session(id string) (*wizard.Controller, error) {
	return s.sessions.Get(id)
}

// Readiness runs every check and reports each outcome by name.
func (s *Service) Readiness(ctx context.Context) (map[string]any, bool) {
	ready := true
	checks := make(map[string]any, len(s.checks))
	for _, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			ready = false
			checks[check.Name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[check.Name] = map[string]any{"status": "ok"}
	}
	return checks, ready
}

type SubmissionQuery struct {
	Text   string
	Status string
	Limit  int
	Offset int
}

// ListSubmissions serves the operator view. Text queries go through the
// search index; plain listings read the row store.
func (s *Service) ListSubmissions(ctx context.Context, q SubmissionQuery) (map[string]any, error) {
	if q.Status != "" && !form.Status(q.Status).Valid() {
		return nil, validationError("unknown status", map[string]any{"status": q.Status})
	}
	if strings.TrimSpace(q.Text) != "" {
		if s.search == nil {
			return nil, errors.New("search is not configured")
		}
		resp := s.search.Search(ctx, search.Query{Text: q.Text, Status: q.Status, Limit: q.Limit, Offset: q.Offset})
		return map[string]any{"items": resp.Results, "total": resp.Total, "query": resp.Query}, nil
	}
	items, total, err := s.submissions.ListSubmissions(ctx, store.ListFilter{Status: q.Status, Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return map[string]any{"items": items, "total": total}, nil
}

func (s *Service) GetSubmission(ctx context.Context, id string) (store.Submission, error) {
	return s.submissions.GetSubmission(ctx, id)
}
