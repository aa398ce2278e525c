package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/application/service"
	appwf "github.com/garyjia/staff-approvals/internal/application/workflow"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/policy"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// Version is reported by the health check
const Version = "1.0.0"

const multipartOverhead = 1 << 20

// Handlers contains all HTTP request handlers
type Handlers struct {
	requestService  service.RequestService
	documentService service.DocumentService
	engine          appwf.Engine
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	requestService service.RequestService,
	documentService service.DocumentService,
	engine appwf.Engine,
	logger Logger,
) *Handlers {
	return &Handlers{
		requestService:  requestService,
		documentService: documentService,
		engine:          engine,
		logger:          logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// CreateMission handles POST /api/requests/missions
func (h *Handlers) CreateMission(c *gin.Context) {
	actor, _ := actorFrom(c)

	var body CreateMissionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid request body: " + err.Error()})
		return
	}

	start, end, err := parseDates(body.StartDate, body.EndDate)
	if err != nil {
		h.respondError(c, "create mission", err)
		return
	}

	req, err := h.requestService.CreateMission(c.Request.Context(), service.CreateMissionCommand{
		Actor:       actor,
		Type:        entity.MissionType(body.Type),
		Destination: body.Destination,
		Purpose:     body.Purpose,
		District:    body.District,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		h.respondError(c, "create mission", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: req})
}

// CreateLeave handles POST /api/requests/leaves
func (h *Handlers) CreateLeave(c *gin.Context) {
	actor, _ := actorFrom(c)

	var body CreateLeaveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid request body: " + err.Error()})
		return
	}

	start, end, err := parseDates(body.StartDate, body.EndDate)
	if err != nil {
		h.respondError(c, "create leave", err)
		return
	}

	req, err := h.requestService.CreateLeave(c.Request.Context(), service.CreateLeaveCommand{
		Actor:     actor,
		Type:      entity.LeaveType(body.Type),
		OtherType: body.OtherType,
		Reason:    body.Reason,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.respondError(c, "create leave", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: req})
}

// ListRequests handles GET /api/requests.
// Employees and mine=true see their own requests; hod and dean are held to
// their scope.
func (h *Handlers) ListRequests(c *gin.Context) {
	actor, _ := actorFrom(c)

	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid query parameters"})
		return
	}
	limit, offset := normalizePage(q.Limit, q.Offset)

	filter := port.RequestFilter{
		Kind:     entity.Kind(q.Kind),
		Category: workflow.Category(q.Category),
		Status:   workflow.Status(q.Status),
		Limit:    limit,
		Offset:   offset,
	}
	if q.Mine || actor.Role == workflow.RoleEmployee {
		filter.RequesterID = actor.UserID
	} else {
		filter.Department, filter.School = policy.ScopeFor(actor)
	}

	requests, err := h.requestService.ListRequests(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "list requests", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// ListActionable handles GET /api/requests/actionable
func (h *Handlers) ListActionable(c *gin.Context) {
	actor, _ := actorFrom(c)

	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid query parameters"})
		return
	}
	limit, offset := normalizePage(q.Limit, q.Offset)

	requests, err := h.requestService.ListActionable(c.Request.Context(), actor, limit, offset)
	if err != nil {
		h.respondError(c, "list actionable", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, ok := h.loadVisible(c, "get request")
	if !ok {
		return
	}
	actor, _ := actorFrom(c)

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    RequestResponse{Request: req, CanAct: policy.CanAct(actor, req)},
	})
}

// Decide handles PATCH /api/requests/:id/status
func (h *Handlers) Decide(c *gin.Context) {
	actor, _ := actorFrom(c)

	var body DecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid request body: " + err.Error()})
		return
	}

	decision, err := workflow.ParseDecision(body.Status)
	if err != nil {
		h.respondError(c, "decide", err)
		return
	}

	req, err := h.engine.Decide(c.Request.Context(), appwf.DecideCommand{
		RequestID: c.Param("id"),
		Actor:     actor,
		Decision: appwf.Decision{
			Action:    decision,
			Comment:   body.Comment,
			Signature: body.Signature,
		},
	})
	if err != nil {
		h.respondError(c, "decide", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// History handles GET /api/requests/:id/history
func (h *Handlers) History(c *gin.Context) {
	req, ok := h.loadVisible(c, "history")
	if !ok {
		return
	}

	records, err := h.requestService.History(c.Request.Context(), req.ID)
	if err != nil {
		h.respondError(c, "history", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// UploadDocument handles POST /api/requests/:id/documents (multipart field "file")
func (h *Handlers) UploadDocument(c *gin.Context) {
	actor, _ := actorFrom(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, entity.MaxDocumentSize+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{Error: "document exceeds size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, Response{Error: "multipart field \"file\" is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.respondError(c, "upload document", fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, entity.MaxDocumentSize+1))
	if err != nil {
		h.respondError(c, "upload document", fmt.Errorf("failed to read upload: %w", err))
		return
	}

	req, err := h.documentService.AttachDocument(c.Request.Context(), service.AttachDocumentCommand{
		RequestID:   c.Param("id"),
		Actor:       actor,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		h.respondError(c, "upload document", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// DownloadDocument handles GET /api/requests/:id/document
func (h *Handlers) DownloadDocument(c *gin.Context) {
	if _, ok := h.loadVisible(c, "download document"); !ok {
		return
	}

	doc, content, err := h.documentService.ReadDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "download document", err)
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	c.Data(http.StatusOK, contentType, content)
}

// ApprovalForm handles GET /api/requests/:id/approval-form
func (h *Handlers) ApprovalForm(c *gin.Context) {
	if _, ok := h.loadVisible(c, "approval form"); !ok {
		return
	}

	var buf bytes.Buffer
	name, err := h.documentService.ExportApprovalForm(c.Request.Context(), c.Param("id"), &buf)
	if err != nil {
		h.respondError(c, "approval form", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, h.documentService.FormContentType(), buf.Bytes())
}

// loadVisible fetches the :id request and checks the caller may read it
func (h *Handlers) loadVisible(c *gin.Context, op string) (*entity.Request, bool) {
	actor, _ := actorFrom(c)

	req, err := h.requestService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, op, err)
		return nil, false
	}
	if err := policy.CanView(actor, req); err != nil {
		h.respondError(c, op, err)
		return nil, false
	}
	return req, true
}
