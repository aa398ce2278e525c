package http

import (
	"fmt"
	"time"

	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

const dateLayout = "2006-01-02"

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateMissionRequest is the body of POST /api/requests/missions
type CreateMissionRequest struct {
	Type        string `json:"type" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Purpose     string `json:"purpose" binding:"required"`
	District    string `json:"district"`
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
}

// CreateLeaveRequest is the body of POST /api/requests/leaves
type CreateLeaveRequest struct {
	Type      string `json:"type" binding:"required"`
	OtherType string `json:"other_type"`
	Reason    string `json:"reason" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// DecisionRequest is the body of PATCH /api/requests/:id/status
type DecisionRequest struct {
	Status    string `json:"status" binding:"required"`
	Comment   string `json:"comment"`
	Signature string `json:"signature"`
}

// ListRequestsQuery holds the query parameters of GET /api/requests
type ListRequestsQuery struct {
	Kind     string `form:"kind"`
	Category string `form:"category"`
	Status   string `form:"status"`
	Mine     bool   `form:"mine"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// PageQuery holds limit and offset
type PageQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// RequestResponse is a request plus whether the caller may decide it now
type RequestResponse struct {
	*entity.Request
	CanAct bool `json:"can_act"`
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseDates reads YYYY-MM-DD dates as UTC midnight
func parseDates(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", workflow.ErrValidation)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", workflow.ErrValidation)
	}
	return s, e, nil
}
