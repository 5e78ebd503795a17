// Package search serves operator full-text search over persisted
// submissions. Meilisearch is preferred; Postgres FTS is the fallback.
package search

import (
	"context"
	"time"

	"discovery/api/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
	ContactName string `json:"contactName"`
	Email       string `json:"email"`
	Status      string `json:"status"`
	Snippet     string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Status string // empty = all statuses
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// SubmissionRecord is the data we index for a submission.
type SubmissionRecord struct {
	ID                   string `json:"id"`
	CompanyName          string `json:"companyName"`
	ContactName          string `json:"contactName"`
	Email                string `json:"email"`
	Status               string `json:"status"`
	SpecificBusinessType string `json:"specificBusinessType"`
	AgentType            string `json:"agentType"`
	UpdatedAt            int64  `json:"updatedAt"`
}

func RecordFromSubmission(sub store.Submission) SubmissionRecord {
	return SubmissionRecord{
		ID:                   sub.ID,
		CompanyName:          sub.CompanyName,
		ContactName:          sub.ContactName,
		Email:                sub.Email,
		Status:               sub.Status,
		SpecificBusinessType: sub.SpecificBusinessType,
		AgentType:            sub.AgentType,
		UpdatedAt:            unixOrZero(sub.UpdatedAt),
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
