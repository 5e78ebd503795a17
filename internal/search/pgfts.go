package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ftsDocument must match the expression of idx_voice_ai_submissions_fts so
// the GIN index is used.
const ftsDocument = `to_tsvector('english', company_name || ' ' || contact_name || ' ' || email || ' ' || specific_business_type || ' ' || agent_type)`

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search matches the text against the submission document with
// plainto_tsquery, or as a substring of the company name or email so that
// partial words still hit.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, "%" + escapeLike(q.Text) + "%"}
	where := fmt.Sprintf("(%s @@ %s OR company_name ILIKE $2 OR email ILIKE $2)", ftsDocument, tsQuery)
	if status := strings.TrimSpace(q.Status); status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	countSQL := "SELECT count(*) FROM voice_ai_submissions WHERE " + where
	dataSQL := fmt.Sprintf(`SELECT id::text, company_name, contact_name, email, status,
			ts_headline('english', specific_business_type, %s, 'MaxFragments=1,MaxWords=30') AS snippet
		FROM voice_ai_submissions
		WHERE %s
		ORDER BY ts_rank(%s, %s) DESC, updated_at DESC
		LIMIT %d OFFSET %d`, tsQuery, where, ftsDocument, tsQuery, limit, offset)

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.CompanyName, &r.ContactName, &r.Email, &r.Status, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// LoadAllRecords returns every submission for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SubmissionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, company_name, contact_name, email, status,
			specific_business_type, agent_type, EXTRACT(EPOCH FROM updated_at)::bigint
		FROM voice_ai_submissions
	`)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	defer rows.Close()

	records := make([]SubmissionRecord, 0)
	for rows.Next() {
		var r SubmissionRecord
		if err := rows.Scan(&r.ID, &r.CompanyName, &r.ContactName, &r.Email, &r.Status,
			&r.SpecificBusinessType, &r.AgentType, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return records, nil
}
