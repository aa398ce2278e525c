package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/garyjia/staff-approvals/internal/application/dispatcher"
	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/event"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
	"github.com/garyjia/staff-approvals/pkg/utils"
)

// AttachDocumentCommand uploads the invitation (missions) or supporting
// document (leave) for a request
type AttachDocumentCommand struct {
	RequestID   string
	Actor       entity.Actor
	FileName    string
	ContentType string
	Content     []byte
}

// DocumentService manages request attachments and approval forms
type DocumentService interface {
	AttachDocument(ctx context.Context, cmd AttachDocumentCommand) (*entity.Request, error)

	// ReadDocument returns the attached document and its content
	ReadDocument(ctx context.Context, requestID string) (*entity.DocumentRef, []byte, error)

	// ExportApprovalForm writes the approval form of an approved request to w
	// and returns a suggested file name
	ExportApprovalForm(ctx context.Context, requestID string, w io.Writer) (string, error)

	// FormContentType is the media type ExportApprovalForm writes
	FormContentType() string
}

type documentServiceImpl struct {
	requestRepo port.RequestRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	storage     port.FileStorage
	renderer    port.FormRenderer
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	requestRepo port.RequestRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	storage port.FileStorage,
	renderer port.FormRenderer,
	logger Logger,
	opts ...Option,
) DocumentService {
	o := buildOptions(opts)
	return &documentServiceImpl{
		requestRepo: requestRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		storage:     storage,
		renderer:    renderer,
		dispatcher:  o.dispatcher,
		logger:      logger,
		now:         o.now,
	}
}

// AttachDocument stores the file, then saves the reference conditionally on
// the version read. The stored file is removed if the save fails.
func (s *documentServiceImpl) AttachDocument(ctx context.Context, cmd AttachDocumentCommand) (*entity.Request, error) {
	current, err := s.requestRepo.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}

	if cmd.Actor.UserID == "" || cmd.Actor.UserID != current.Requester.UserID {
		return nil, fmt.Errorf("%w: request %s", workflow.ErrNotRequester, current.ID)
	}
	if current.Status != workflow.StatusPending {
		return nil, fmt.Errorf("%w: request %s is %s", workflow.ErrRequestNotActionable, current.ID, current.Status)
	}
	if err := validateDocument(cmd); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	name := utils.SanitizeFileName(cmd.FileName)
	relPath := path.Join("requests", current.ID, fmt.Sprintf("%d-%s", now.UnixNano(), name))

	if err := s.storage.Save(ctx, relPath, cmd.Content); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	updated := current.Clone()
	doc := &entity.DocumentRef{
		Name:        name,
		Path:        relPath,
		Size:        int64(len(cmd.Content)),
		ContentType: cmd.ContentType,
		UploadedAt:  now,
	}
	if err := updated.SetDocument(doc); err != nil {
		s.removeQuietly(ctx, relPath)
		return nil, err
	}
	updated.UpdatedAt = now

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requestRepo.Save(txCtx, updated, current.Version); err != nil {
			return err
		}
		return s.historyRepo.Create(txCtx, &entity.DecisionRecord{
			RequestID:      current.ID,
			ActorUserID:    cmd.Actor.UserID,
			ActorRole:      cmd.Actor.Role.String(),
			StepIndex:      current.CurrentStep,
			PreviousStatus: current.Status.String(),
			NewStatus:      updated.Status.String(),
			Action:         entity.ActionDocument,
			Comment:        name,
			Timestamp:      now,
		})
	})
	if err != nil {
		s.removeQuietly(ctx, relPath)
		s.logger.Error("Failed to attach document", "request_id", current.ID, "error", err)
		return nil, err
	}

	if previous := current.Document(); previous != nil {
		s.removeQuietly(ctx, previous.Path)
	}

	s.logger.Info("Document attached", "request_id", current.ID, "path", relPath, "size", doc.Size)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeDocumentAttached, current.ID, map[string]interface{}{
			event.KeyActorID:  cmd.Actor.UserID,
			event.KeyDocument: relPath,
		}))
	}

	return updated, nil
}

func (s *documentServiceImpl) ReadDocument(ctx context.Context, requestID string) (*entity.DocumentRef, []byte, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	doc := req.Document()
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: request %s has no document", workflow.ErrNotFound, requestID)
	}

	content, err := s.storage.Read(ctx, doc.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read document: %w", err)
	}
	return doc, content, nil
}

func (s *documentServiceImpl) ExportApprovalForm(ctx context.Context, requestID string, w io.Writer) (string, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.Status != workflow.StatusApproved {
		return "", fmt.Errorf("%w: request %s is %s", workflow.ErrNotApproved, req.ID, req.Status)
	}

	if err := s.renderer.Render(ctx, req, w); err != nil {
		s.logger.Error("Failed to render approval form", "request_id", req.ID, "error", err)
		return "", fmt.Errorf("failed to render approval form: %w", err)
	}

	return fmt.Sprintf("%s-approval-%s%s", req.Kind, req.ID, s.renderer.Extension()), nil
}

func (s *documentServiceImpl) FormContentType() string {
	return s.renderer.ContentType()
}

func (s *documentServiceImpl) removeQuietly(ctx context.Context, relPath string) {
	if err := s.storage.Delete(ctx, relPath); err != nil {
		s.logger.Error("Failed to remove document", "path", relPath, "error", err)
	}
}

func validateDocument(cmd AttachDocumentCommand) error {
	if len(cmd.Content) == 0 {
		return fmt.Errorf("%w: document is empty", workflow.ErrValidation)
	}
	if len(cmd.Content) > entity.MaxDocumentSize {
		return fmt.Errorf("%w: document is %d bytes, limit is %d", workflow.ErrValidation, len(cmd.Content), entity.MaxDocumentSize)
	}
	if err := utils.ValidateFileExtension(cmd.FileName, entity.AllowedDocumentExtensions); err != nil {
		return fmt.Errorf("%w: %w", workflow.ErrValidation, err)
	}
	return nil
}
