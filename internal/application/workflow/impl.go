package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/staff-approvals/internal/application/dispatcher"
	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/event"
	"github.com/garyjia/staff-approvals/internal/domain/policy"
	domainwf "github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type engineImpl struct {
	requestRepo port.RequestRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides time.Now for decision timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requestRepo port.RequestRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		requestRepo: requestRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		logger:      nopLogger{},
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Decide(ctx context.Context, cmd DecideCommand) (*entity.Request, error) {
	current, err := e.requestRepo.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	updated, err := Apply(ctx, current, cmd.Actor, cmd.Decision, now)
	if err != nil {
		e.logger.Info("Decision refused",
			"request_id", cmd.RequestID,
			"actor_id", cmd.Actor.UserID,
			"actor_role", cmd.Actor.Role,
			"action", cmd.Decision.Action,
			"error", err,
		)
		return nil, err
	}

	record := &entity.DecisionRecord{
		RequestID:      updated.ID,
		ActorUserID:    cmd.Actor.UserID,
		ActorRole:      cmd.Actor.Role.String(),
		StepIndex:      current.CurrentStep,
		PreviousStatus: current.Status.String(),
		NewStatus:      updated.Status.String(),
		Action:         actionName(cmd.Decision.Action),
		Comment:        cmd.Decision.Comment,
		Timestamp:      now,
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requestRepo.Save(txCtx, updated, current.Version); err != nil {
			return err
		}
		if err := e.historyRepo.Create(txCtx, record); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to persist decision",
			"request_id", cmd.RequestID,
			"expected_version", current.Version,
			"error", err,
		)
		return nil, err
	}

	e.logger.Info("Decision recorded",
		"request_id", updated.ID,
		"step", current.CurrentStep,
		"role", cmd.Actor.Role,
		"action", cmd.Decision.Action,
		"status", updated.Status,
		"version", updated.Version,
	)

	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, decisionEvent(current, updated, cmd))
	}

	return updated, nil
}

func (e *engineImpl) CanAct(ctx context.Context, actor entity.Actor, requestID string) (bool, error) {
	req, err := e.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return false, err
	}
	return policy.CanAct(actor, req), nil
}

func actionName(d domainwf.Decision) string {
	if d == domainwf.DecisionReject {
		return entity.ActionReject
	}
	return entity.ActionApprove
}

func decisionEvent(before, after *entity.Request, cmd DecideCommand) *event.Event {
	eventType := event.TypeStepApproved
	switch after.Status {
	case domainwf.StatusApproved:
		eventType = event.TypeRequestApproved
	case domainwf.StatusRejected:
		eventType = event.TypeRequestRejected
	}

	return event.NewEvent(eventType, after.ID, map[string]interface{}{
		event.KeyCategory:  after.Category.String(),
		event.KeyStepIndex: before.CurrentStep,
		event.KeyRole:      cmd.Actor.Role.String(),
		event.KeyActorID:   cmd.Actor.UserID,
		event.KeyStatus:    after.Status.String(),
	})
}
