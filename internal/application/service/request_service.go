package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/staff-approvals/internal/application/dispatcher"
	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/event"
	"github.com/garyjia/staff-approvals/internal/domain/policy"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
	"github.com/garyjia/staff-approvals/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateMissionCommand is a staff member's mission submission
type CreateMissionCommand struct {
	Actor       entity.Actor
	Type        entity.MissionType
	Destination string
	Purpose     string
	District    string
	StartDate   time.Time
	EndDate     time.Time
}

// CreateLeaveCommand is a staff member's leave submission
type CreateLeaveCommand struct {
	Actor     entity.Actor
	Type      entity.LeaveType
	OtherType string
	Reason    string
	StartDate time.Time
	EndDate   time.Time
}

// RequestService creates and queries mission and leave requests.
// Decisions go through the workflow engine.
type RequestService interface {
	CreateMission(ctx context.Context, cmd CreateMissionCommand) (*entity.Request, error)
	CreateLeave(ctx context.Context, cmd CreateLeaveCommand) (*entity.Request, error)
	GetRequest(ctx context.Context, id string) (*entity.Request, error)
	ListRequests(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error)

	// ListActionable returns pending requests whose current step actor may decide
	ListActionable(ctx context.Context, actor entity.Actor, limit, offset int) ([]*entity.Request, error)

	History(ctx context.Context, id string) ([]*entity.DecisionRecord, error)
}

type requestServiceImpl struct {
	requestRepo port.RequestRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// Option configures the services in this package
type Option func(*options)

type options struct {
	dispatcher dispatcher.Dispatcher
	now        func() time.Time
}

// WithDispatcher publishes request events through d
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewRequestService creates a new RequestService
func NewRequestService(
	requestRepo port.RequestRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) RequestService {
	o := buildOptions(opts)
	return &requestServiceImpl{
		requestRepo: requestRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		dispatcher:  o.dispatcher,
		logger:      logger,
		now:         o.now,
	}
}

// CreateMission validates and stores a mission request at the head of its chain
func (s *requestServiceImpl) CreateMission(ctx context.Context, cmd CreateMissionCommand) (*entity.Request, error) {
	now := s.now().UTC()
	if err := validateMission(cmd, now); err != nil {
		return nil, err
	}

	details := entity.MissionDetails{
		Type:        cmd.Type,
		Destination: utils.SanitizeString(strings.TrimSpace(cmd.Destination)),
		Purpose:     utils.SanitizeString(strings.TrimSpace(cmd.Purpose)),
		StartDate:   utils.TruncateDay(cmd.StartDate),
		EndDate:     utils.TruncateDay(cmd.EndDate),
	}
	if cmd.Type == entity.MissionTypeLocal {
		details.District = utils.SanitizeString(strings.TrimSpace(cmd.District))
	}

	req, err := entity.NewMissionRequest(uuid.NewString(), cmd.Actor.AsRequester(),
		cmd.Actor.Department, cmd.Actor.School, details, now)
	if err != nil {
		return nil, err
	}

	return req, s.store(ctx, req, cmd.Actor)
}

// CreateLeave validates and stores a leave request at the head of its chain
func (s *requestServiceImpl) CreateLeave(ctx context.Context, cmd CreateLeaveCommand) (*entity.Request, error) {
	now := s.now().UTC()
	if err := validateLeave(cmd, now); err != nil {
		return nil, err
	}

	details := entity.LeaveDetails{
		Type:      cmd.Type,
		Reason:    utils.SanitizeString(strings.TrimSpace(cmd.Reason)),
		StartDate: utils.TruncateDay(cmd.StartDate),
		EndDate:   utils.TruncateDay(cmd.EndDate),
		Duration:  utils.InclusiveDays(cmd.StartDate, cmd.EndDate),
	}
	if cmd.Type == entity.LeaveTypeOther {
		details.OtherType = utils.SanitizeString(strings.TrimSpace(cmd.OtherType))
	}

	req, err := entity.NewLeaveRequest(uuid.NewString(), cmd.Actor.AsRequester(),
		cmd.Actor.Department, cmd.Actor.School, details, now)
	if err != nil {
		return nil, err
	}

	return req, s.store(ctx, req, cmd.Actor)
}

func (s *requestServiceImpl) store(ctx context.Context, req *entity.Request, actor entity.Actor) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requestRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		record := &entity.DecisionRecord{
			RequestID:      req.ID,
			ActorUserID:    actor.UserID,
			ActorRole:      actor.Role.String(),
			StepIndex:      0,
			PreviousStatus: "",
			NewStatus:      req.Status.String(),
			Action:         entity.ActionCreate,
			Timestamp:      req.CreatedAt,
		}
		if err := s.historyRepo.Create(txCtx, record); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create request", "requester", actor.UserID, "kind", req.Kind, "error", err)
		return err
	}

	s.logger.Info("Request created",
		"request_id", req.ID,
		"kind", req.Kind,
		"category", req.Category,
		"requester", actor.UserID,
		"steps", len(req.ApprovalSteps),
	)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeRequestCreated, req.ID, map[string]interface{}{
			event.KeyCategory: req.Category.String(),
			event.KeyActorID:  actor.UserID,
			event.KeyStatus:   req.Status.String(),
		}))
	}
	return nil
}

// GetRequest retrieves a request by ID
func (s *requestServiceImpl) GetRequest(ctx context.Context, id string) (*entity.Request, error) {
	return s.requestRepo.GetByID(ctx, id)
}

// ListRequests lists requests matching filter
func (s *requestServiceImpl) ListRequests(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	return s.requestRepo.List(ctx, filter)
}

// ListActionable narrows by role and scope in the store, then re-checks each
// request with the same policy Decide uses.
func (s *requestServiceImpl) ListActionable(ctx context.Context, actor entity.Actor, limit, offset int) ([]*entity.Request, error) {
	if actor.Role == workflow.RoleEmployee || !actor.Role.IsValid() {
		return []*entity.Request{}, nil
	}

	department, school := policy.ScopeFor(actor)
	candidates, err := s.requestRepo.List(ctx, port.RequestFilter{
		Status:      workflow.StatusPending,
		CurrentRole: actor.Role,
		Department:  department,
		School:      school,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}

	result := make([]*entity.Request, 0, len(candidates))
	for _, req := range candidates {
		if policy.CanAct(actor, req) {
			result = append(result, req)
		}
	}
	return result, nil
}

// History returns the decision records of a request, oldest first
func (s *requestServiceImpl) History(ctx context.Context, id string) ([]*entity.DecisionRecord, error) {
	if _, err := s.requestRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.historyRepo.GetByRequestID(ctx, id)
}
