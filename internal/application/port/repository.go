package port

import (
	"context"

	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// RequestFilter narrows List results. Zero values do not filter.
type RequestFilter struct {
	RequesterID string
	Kind        entity.Kind
	Category    workflow.Category
	Status      workflow.Status
	// CurrentRole matches pending requests whose current step belongs to this role
	CurrentRole workflow.Role
	Department  string
	School      string
	Limit       int
	Offset      int
}

// Matches reports whether req passes every set field of the filter.
// Limit and Offset are not considered.
func (f RequestFilter) Matches(req *entity.Request) bool {
	switch {
	case f.RequesterID != "" && req.Requester.UserID != f.RequesterID:
		return false
	case f.Kind != "" && req.Kind != f.Kind:
		return false
	case f.Category != "" && req.Category != f.Category:
		return false
	case f.Status != "" && req.Status != f.Status:
		return false
	case f.Department != "" && req.Department != f.Department:
		return false
	case f.School != "" && req.School != f.School:
		return false
	}
	if f.CurrentRole != "" {
		if req.Status != workflow.StatusPending {
			return false
		}
		step, ok := req.CurrentApprovalStep()
		if !ok || step.Role != f.CurrentRole {
			return false
		}
	}
	return true
}

// RequestRepository persists requests with optimistic concurrency.
// GetByID returns an error wrapping workflow.ErrNotFound for unknown ids.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id string) (*entity.Request, error)

	// Save stores req only if the stored version still equals expectedVersion.
	// On success req.Version is expectedVersion+1; otherwise the error wraps
	// workflow.ErrConflict and nothing is written.
	Save(ctx context.Context, req *entity.Request, expectedVersion int64) error

	// List returns requests ordered by creation time, newest first
	List(ctx context.Context, filter RequestFilter) ([]*entity.Request, error)
}

// HistoryRepository persists decision records
type HistoryRepository interface {
	Create(ctx context.Context, record *entity.DecisionRecord) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.DecisionRecord, error)
}

// TransactionManager handles database transactions.
// Repositories called with the ctx passed to fn join the transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
