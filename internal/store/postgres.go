package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const submissionsTable = "voice_ai_submissions"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type field struct {
	column string
	ptr    any
}

// writableFields lists every column the intake service writes, bound to the
// matching struct field. The same list drives inserts, updates and scans.
func writableFields(sub *Submission) []field {
	return []field{
		{"company_name", &sub.CompanyName},
		{"specific_business_type", &sub.SpecificBusinessType},
		{"company_website", &sub.CompanyWebsite},
		{"contact_name", &sub.ContactName},
		{"email", &sub.Email},
		{"agent_type", &sub.AgentType},
		{"lead_sources", &sub.LeadSources},
		{"lead_sources_other", &sub.LeadSourcesOther},
		{"main_purpose", &sub.MainPurpose},
		{"main_purpose_other", &sub.MainPurposeOther},
		{"brand_personality", &sub.BrandPersonality},
		{"brand_personality_other", &sub.BrandPersonalityOther},
		{"current_call_process", &sub.CurrentCallProcess},
		{"sales_scripts", &sub.SalesScripts},
		{"required_information", &sub.RequiredInformation},
		{"required_information_other", &sub.RequiredInformationOther},
		{"success_criteria", &sub.SuccessCriteria},
		{"disqualification_criteria", &sub.DisqualificationCriteria},
		{"emotional_states", &sub.EmotionalStates},
		{"emotional_states_other", &sub.EmotionalStatesOther},
		{"common_problems", &sub.CommonProblems},
		{"common_objections", &sub.CommonObjections},
		{"company_services", &sub.CompanyServices},
		{"service_areas", &sub.ServiceAreas},
		{"key_differentiators", &sub.KeyDifferentiators},
		{"topics_to_avoid", &sub.TopicsToAvoid},
		{"topics_to_avoid_other", &sub.TopicsToAvoidOther},
		{"transfer_triggers", &sub.TransferTriggers},
		{"transfer_triggers_other", &sub.TransferTriggersOther},
		{"success_definition", &sub.SuccessDefinition},
		{"target_call_length", &sub.TargetCallLength},
		{"crm_system", &sub.CRMSystem},
		{"crm_system_other", &sub.CRMSystemOther},
		{"scheduling_software", &sub.SchedulingSoftware},
		{"scheduling_software_other", &sub.SchedulingSoftwareOther},
		{"email_system", &sub.EmailSystem},
		{"email_system_other", &sub.EmailSystemOther},
		{"compliance_requirements", &sub.ComplianceRequirements},
		{"ai_name", &sub.AIName},
		{"voice_gender", &sub.VoiceGender},
		{"eleven_labs_voice_id", &sub.ElevenLabsVoiceID},
		{"additional_voice_requirements", &sub.AdditionalVoiceRequirements},
		{"status", &sub.Status},
		{"completed_sections", &sub.CompletedSections},
		{"last_section", &sub.LastSection},
	}
}

func writableColumns() []string {
	fields := writableFields(&Submission{})
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.column
	}
	return columns
}

func writableValues(sub *Submission) []any {
	normalizeArrays(sub)
	fields := writableFields(sub)
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = f.ptr
	}
	return values
}

var (
	returningColumns = "id::text, created_at, updated_at, " + strings.Join(writableColumns(), ", ") + ", notes"
	insertSQL        = buildInsertSQL()
	updateSQL        = buildUpdateSQL()
)

func buildInsertSQL() string {
	columns := writableColumns()
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		submissionsTable, strings.Join(columns, ", "), strings.Join(placeholders, ", "), returningColumns)
}

func buildUpdateSQL() string {
	columns := writableColumns()
	assignments := make([]string, len(columns))
	for i, column := range columns {
		assignments[i] = fmt.Sprintf("%s=$%d", column, i+2)
	}
	return fmt.Sprintf(`UPDATE %s SET %s, updated_at=NOW() WHERE id=$1 RETURNING %s`,
		submissionsTable, strings.Join(assignments, ", "), returningColumns)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (Submission, error) {
	m := pgtype.NewMap()
	var sub Submission
	dest := []any{&sub.ID, &sub.CreatedAt, &sub.UpdatedAt}
	for _, f := range writableFields(&sub) {
		switch f.ptr.(type) {
		case *[]string, *[]int:
			dest = append(dest, m.SQLScanner(f.ptr))
		default:
			dest = append(dest, f.ptr)
		}
	}
	dest = append(dest, &sub.Notes)
	if err := row.Scan(dest...); err != nil {
		return Submission{}, err
	}
	normalizeArrays(&sub)
	return sub, nil
}

func normalizeArrays(sub *Submission) {
	for _, list := range []*[]string{
		&sub.LeadSources, &sub.BrandPersonality, &sub.SalesScripts, &sub.RequiredInformation,
		&sub.EmotionalStates, &sub.CommonProblems, &sub.TopicsToAvoid, &sub.TransferTriggers,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
	if sub.CompletedSections == nil {
		sub.CompletedSections = []int{}
	}
}

// Find returns rows matching filter, most recently updated first.
func (s *PostgresStore) Find(ctx context.Context, filter Filter) ([]Submission, error) {
	var conditions []string
	var args []any
	if filter.Email != "" {
		args = append(args, filter.Email)
		conditions = append(conditions, fmt.Sprintf("email = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	limit := ""
	if filter.Limit > 0 {
		limit = fmt.Sprintf("LIMIT %d", filter.Limit)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY updated_at DESC
		%s
	`, returningColumns, submissionsTable, where, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	defer rows.Close()

	items := make([]Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		items = append(items, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Insert(ctx context.Context, sub Submission) (Submission, error) {
	inserted, err := scanSubmission(s.db.QueryRowContext(ctx, insertSQL, writableValues(&sub)...))
	if err != nil {
		return Submission{}, fmt.Errorf("insert submission: %w", classify(err))
	}
	return inserted, nil
}

// Update overwrites every writable column of row id and bumps updated_at.
func (s *PostgresStore) Update(ctx context.Context, id string, sub Submission) (Submission, error) {
	args := append([]any{id}, writableValues(&sub)...)
	updated, err := scanSubmission(s.db.QueryRowContext(ctx, updateSQL, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, err
	}
	if err != nil {
		return Submission{}, fmt.Errorf("update submission %s: %w", id, classify(err))
	}
	return updated, nil
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Submission{}, sql.ErrNoRows
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, returningColumns, submissionsTable)
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, err
	}
	if err != nil {
		return Submission{}, fmt.Errorf("get submission %s: %w", id, err)
	}
	return sub, nil
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, filter ListFilter) ([]SubmissionSummary, int, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if filter.Status != "" {
		where = "WHERE status = $1"
		args = append(args, filter.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s %s`, submissionsTable, where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id::text, company_name, contact_name, email, specific_business_type, agent_type,
			status, completed_sections, last_section, created_at, updated_at
		FROM %s
		%s
		ORDER BY updated_at DESC
		LIMIT %d OFFSET %d
	`, submissionsTable, where, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	m := pgtype.NewMap()
	items := make([]SubmissionSummary, 0)
	for rows.Next() {
		var item SubmissionSummary
		if err := rows.Scan(
			&item.ID, &item.CompanyName, &item.ContactName, &item.Email, &item.SpecificBusinessType, &item.AgentType,
			&item.Status, m.SQLScanner(&item.CompletedSections), &item.LastSection, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan submission summary: %w", err)
		}
		if item.CompletedSections == nil {
			item.CompletedSections = []int{}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate submissions: %w", err)
	}
	return items, total, nil
}
