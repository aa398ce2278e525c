package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
	"github.com/garyjia/staff-approvals/internal/infrastructure/persistence/sqlite"
)

const defaultListLimit = 50

// RequestRepository implements port.RequestRepository on SQLite.
// Steps and kind-specific details are stored as JSON columns.
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `id, kind, category, requester_id, requester_name, requester_email,
	department, school, status, current_step, approval_steps, details,
	version, created_at, updated_at`

// Create inserts a new request
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	steps, details, err := encodeRequest(req)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO requests (
			id, kind, category, requester_id, requester_name, requester_email,
			department, school, status, current_step, current_role,
			approval_steps, details, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		req.ID,
		req.Kind,
		req.Category,
		req.Requester.UserID,
		req.Requester.Name,
		req.Requester.Email,
		req.Department,
		req.School,
		req.Status,
		req.CurrentStep,
		currentRole(req),
		steps,
		details,
		req.Version,
		req.CreatedAt.UTC(),
		req.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := scanRequest(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("request_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// Save writes req only while the stored version equals expectedVersion
func (r *RequestRepository) Save(ctx context.Context, req *entity.Request, expectedVersion int64) error {
	steps, details, err := encodeRequest(req)
	if err != nil {
		return err
	}

	query := `
		UPDATE requests SET
			status = ?, current_step = ?, current_role = ?,
			approval_steps = ?, details = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	exec := r.getExecutor(ctx)
	result, err := exec.ExecContext(ctx, query,
		req.Status,
		req.CurrentStep,
		currentRole(req),
		steps,
		details,
		expectedVersion+1,
		req.UpdatedAt.UTC(),
		req.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to save request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to save request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return r.unsavedError(ctx, exec, req.ID, expectedVersion)
	}

	req.Version = expectedVersion + 1
	return nil
}

// unsavedError explains an update that matched no row: the request is
// missing, or it moved past expectedVersion
func (r *RequestRepository) unsavedError(ctx context.Context, exec sqlite.Executor, id string, expectedVersion int64) error {
	var exists int
	err := exec.QueryRowContext(ctx, `SELECT 1 FROM requests WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to check request", zap.String("request_id", id), zap.Error(err))
		return fmt.Errorf("failed to check request: %w", err)
	}
	return fmt.Errorf("%w: request %s is no longer at version %d", workflow.ErrConflict, id, expectedVersion)
}

// List returns requests matching filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, value interface{}) {
		where = append(where, clause)
		args = append(args, value)
	}

	if filter.RequesterID != "" {
		add("requester_id = ?", filter.RequesterID)
	}
	if filter.Kind != "" {
		add("kind = ?", filter.Kind)
	}
	if filter.Category != "" {
		add("category = ?", filter.Category)
	}
	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	if filter.CurrentRole != "" {
		add("current_role = ?", filter.CurrentRole)
	}
	if filter.Department != "" {
		add("department = ?", filter.Department)
	}
	if filter.School != "" {
		add("school = ?", filter.School)
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*entity.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.Request, error) {
	var (
		req     entity.Request
		steps   string
		details string
	)

	err := row.Scan(
		&req.ID,
		&req.Kind,
		&req.Category,
		&req.Requester.UserID,
		&req.Requester.Name,
		&req.Requester.Email,
		&req.Department,
		&req.School,
		&req.Status,
		&req.CurrentStep,
		&steps,
		&details,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(steps), &req.ApprovalSteps); err != nil {
		return nil, fmt.Errorf("failed to decode approval steps of %s: %w", req.ID, err)
	}

	switch req.Kind {
	case entity.KindMission:
		req.Mission = &entity.MissionDetails{}
		err = json.Unmarshal([]byte(details), req.Mission)
	case entity.KindLeave:
		req.Leave = &entity.LeaveDetails{}
		err = json.Unmarshal([]byte(details), req.Leave)
	default:
		err = fmt.Errorf("unknown kind %q", req.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode details of %s: %w", req.ID, err)
	}

	return &req, nil
}

func encodeRequest(req *entity.Request) (steps, details []byte, err error) {
	steps, err = json.Marshal(req.ApprovalSteps)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode approval steps: %w", err)
	}

	switch req.Kind {
	case entity.KindMission:
		details, err = json.Marshal(req.Mission)
	case entity.KindLeave:
		details, err = json.Marshal(req.Leave)
	default:
		return nil, nil, fmt.Errorf("%w: unknown request kind %q", workflow.ErrValidation, req.Kind)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode details: %w", err)
	}
	return steps, details, nil
}

// currentRole is denormalized so actionable lookups can use an index
func currentRole(req *entity.Request) string {
	if req.Status != workflow.StatusPending {
		return ""
	}
	if step, ok := req.CurrentApprovalStep(); ok {
		return step.Role.String()
	}
	return ""
}

var _ port.RequestRepository = (*RequestRepository)(nil)

func (r *RequestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}
