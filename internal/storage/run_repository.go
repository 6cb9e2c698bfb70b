package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ops_gateway/internal/models"
)

// RunRepository handles automation run record database operations
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run record repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{
		db: db,
	}
}

const runInsertQuery = `
	INSERT INTO runs (id, request_id, api_key_id, action, provider, model, input_tokens, output_tokens, duration_ms, status, error_message)
	VALUES (:id, :request_id, :api_key_id, :action, :provider, :model, :input_tokens, :output_tokens, :duration_ms, :status, :error_message)
`

// Create inserts a single run record
func (r *RunRepository) Create(ctx context.Context, record *models.RunRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if _, err := r.db.conn.NamedExecContext(ctx, runInsertQuery, record); err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}

	return nil
}

// CreateBatch inserts multiple run records in a single transaction
func (r *RunRepository) CreateBatch(ctx context.Context, records []*models.RunRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range records {
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		if _, err := tx.NamedExecContext(ctx, runInsertQuery, record); err != nil {
			return fmt.Errorf("failed to insert run record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByRequestID retrieves a run record by its request correlation ID
func (r *RunRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.RunRecord, error) {
	var record models.RunRecord
	query := `
		SELECT id, request_id, api_key_id, action, provider, model, input_tokens, output_tokens, duration_ms, status, error_message, created_at
		FROM runs
		WHERE request_id = $1
	`

	err := r.db.conn.GetContext(ctx, &record, query, requestID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run record: %w", err)
	}

	return &record, nil
}

// RunFilter narrows List results. Zero values mean no filtering.
type RunFilter struct {
	Action   string
	Provider string
	Status   string
	APIKeyID uuid.UUID
	Limit    int
	Offset   int
}

// List retrieves run records matching the filter, newest first
func (r *RunRepository) List(ctx context.Context, filter RunFilter) ([]*models.RunRecord, error) {
	var conditions []string
	var args []interface{}

	addCondition := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Action != "" {
		addCondition("action", filter.Action)
	}
	if filter.Provider != "" {
		addCondition("provider", filter.Provider)
	}
	if filter.Status != "" {
		addCondition("status", filter.Status)
	}
	if filter.APIKeyID != uuid.Nil {
		addCondition("api_key_id", filter.APIKeyID)
	}

	query := `
		SELECT id, request_id, api_key_id, action, provider, model, input_tokens, output_tokens, duration_ms, status, error_message, created_at
		FROM runs
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	records := make([]*models.RunRecord, 0)
	if err := r.db.conn.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}

	return records, nil
}

// Count returns the number of run records matching the filter
func (r *RunRepository) Count(ctx context.Context, filter RunFilter) (int, error) {
	var conditions []string
	var args []interface{}

	addCondition := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Action != "" {
		addCondition("action", filter.Action)
	}
	if filter.Provider != "" {
		addCondition("provider", filter.Provider)
	}
	if filter.Status != "" {
		addCondition("status", filter.Status)
	}
	if filter.APIKeyID != uuid.Nil {
		addCondition("api_key_id", filter.APIKeyID)
	}

	query := "SELECT COUNT(*) FROM runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := r.db.conn.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count run records: %w", err)
	}

	return count, nil
}
