package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a decision record
func (r *HistoryRepository) Create(ctx context.Context, record *entity.DecisionRecord) error {
	query := `
		INSERT INTO request_history (
			request_id, actor_user_id, actor_role, step_index,
			previous_status, new_status, action, comment, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.RequestID,
		record.ActorUserID,
		record.ActorRole,
		record.StepIndex,
		record.PreviousStatus,
		record.NewStatus,
		record.Action,
		record.Comment,
		record.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("request_id", record.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByRequestID returns the records of a request in insertion order
func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.DecisionRecord, error) {
	query := `
		SELECT id, request_id, actor_user_id, actor_role, step_index,
			previous_status, new_status, action, comment, timestamp
		FROM request_history
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get history by request ID", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.DecisionRecord, 0)
	for rows.Next() {
		var record entity.DecisionRecord
		err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.ActorUserID,
			&record.ActorRole,
			&record.StepIndex,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Action,
			&record.Comment,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
