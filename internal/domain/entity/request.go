package entity

import (
	"fmt"
	"time"

	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// Requester references the user who submitted a request
type Requester struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}

// DocumentRef points at an uploaded file in file storage
type DocumentRef struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// MissionDetails holds the mission-specific fields
type MissionDetails struct {
	Type        MissionType  `json:"type"`
	Destination string       `json:"destination"`
	Purpose     string       `json:"purpose"`
	District    string       `json:"district,omitempty"` // local missions only
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	Invitation  *DocumentRef `json:"invitation,omitempty"`
}

// LeaveDetails holds the leave-specific fields
type LeaveDetails struct {
	Type               LeaveType    `json:"type"`
	OtherType          string       `json:"other_type,omitempty"`
	Reason             string       `json:"reason"`
	StartDate          time.Time    `json:"start_date"`
	EndDate            time.Time    `json:"end_date"`
	Duration           int          `json:"duration"`
	SupportingDocument *DocumentRef `json:"supporting_document,omitempty"`
}

// ApprovalStep is one materialized position of a request's approval chain
type ApprovalStep struct {
	Role              workflow.Role   `json:"role"`
	Status            workflow.Status `json:"status"`
	Comment           string          `json:"comment,omitempty"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy        string          `json:"approved_by,omitempty"`
	Signature         string          `json:"signature,omitempty"`
	RequiresSignature bool            `json:"requires_signature"`
}

// Request is a mission or leave request with its workflow state.
// Exactly one of Mission and Leave is set, selected by Kind.
type Request struct {
	ID            string            `json:"id"`
	Kind          Kind              `json:"kind"`
	Category      workflow.Category `json:"category"`
	Requester     Requester         `json:"requester"`
	Department    string            `json:"department"`
	School        string            `json:"school"`
	Status        workflow.Status   `json:"status"`
	CurrentStep   int               `json:"current_step"`
	ApprovalSteps []ApprovalStep    `json:"approval_steps"`
	Mission       *MissionDetails   `json:"mission,omitempty"`
	Leave         *LeaveDetails     `json:"leave,omitempty"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewMissionRequest materializes a mission request; the category follows the mission type.
func NewMissionRequest(id string, requester Requester, department, school string, details MissionDetails, now time.Time) (*Request, error) {
	var category workflow.Category
	switch details.Type {
	case MissionTypeLocal:
		category = workflow.CategoryLocalMission
	case MissionTypeInternational:
		category = workflow.CategoryInternationalMission
	default:
		return nil, fmt.Errorf("%w: mission type %q", workflow.ErrInvalidCategory, details.Type)
	}

	req, err := newRequest(id, KindMission, category, requester, department, school, now)
	if err != nil {
		return nil, err
	}
	req.Mission = &details
	return req, nil
}

// NewLeaveRequest materializes a leave request
func NewLeaveRequest(id string, requester Requester, department, school string, details LeaveDetails, now time.Time) (*Request, error) {
	req, err := newRequest(id, KindLeave, workflow.CategoryLeave, requester, department, school, now)
	if err != nil {
		return nil, err
	}
	req.Leave = &details
	return req, nil
}

func newRequest(id string, kind Kind, category workflow.Category, requester Requester, department, school string, now time.Time) (*Request, error) {
	def, err := workflow.DefinitionFor(category)
	if err != nil {
		return nil, err
	}

	steps := make([]ApprovalStep, def.Len())
	for i, sd := range def.Steps {
		steps[i] = ApprovalStep{
			Role:              sd.Role,
			Status:            workflow.StatusIdle,
			RequiresSignature: sd.RequiresSignature,
		}
	}
	steps[0].Status = workflow.StatusPending

	return &Request{
		ID:            id,
		Kind:          kind,
		Category:      category,
		Requester:     requester,
		Department:    department,
		School:        school,
		Status:        workflow.StatusPending,
		CurrentStep:   0,
		ApprovalSteps: steps,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CurrentApprovalStep returns the step awaiting a decision, if any
func (r *Request) CurrentApprovalStep() (*ApprovalStep, bool) {
	if r.CurrentStep < 0 || r.CurrentStep >= len(r.ApprovalSteps) {
		return nil, false
	}
	return &r.ApprovalSteps[r.CurrentStep], true
}

// IsTerminal returns true once the request is approved or rejected
func (r *Request) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// Document returns the attached document for either variant
func (r *Request) Document() *DocumentRef {
	switch r.Kind {
	case KindMission:
		if r.Mission != nil {
			return r.Mission.Invitation
		}
	case KindLeave:
		if r.Leave != nil {
			return r.Leave.SupportingDocument
		}
	}
	return nil
}

// SetDocument attaches a document to whichever variant the request carries
func (r *Request) SetDocument(doc *DocumentRef) error {
	switch {
	case r.Kind == KindMission && r.Mission != nil:
		r.Mission.Invitation = doc
	case r.Kind == KindLeave && r.Leave != nil:
		r.Leave.SupportingDocument = doc
	default:
		return fmt.Errorf("request %s has no %s details", r.ID, r.Kind)
	}
	return nil
}

// Period returns the start and end dates of the mission or leave
func (r *Request) Period() (time.Time, time.Time) {
	switch {
	case r.Mission != nil:
		return r.Mission.StartDate, r.Mission.EndDate
	case r.Leave != nil:
		return r.Leave.StartDate, r.Leave.EndDate
	}
	return time.Time{}, time.Time{}
}

// Clone returns a deep copy
func (r *Request) Clone() *Request {
	out := *r
	out.ApprovalSteps = make([]ApprovalStep, len(r.ApprovalSteps))
	for i, s := range r.ApprovalSteps {
		if s.ApprovedAt != nil {
			t := *s.ApprovedAt
			s.ApprovedAt = &t
		}
		out.ApprovalSteps[i] = s
	}
	if r.Mission != nil {
		m := *r.Mission
		m.Invitation = cloneDoc(m.Invitation)
		out.Mission = &m
	}
	if r.Leave != nil {
		l := *r.Leave
		l.SupportingDocument = cloneDoc(l.SupportingDocument)
		out.Leave = &l
	}
	return &out
}

func cloneDoc(d *DocumentRef) *DocumentRef {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// CheckInvariants verifies the workflow state is internally consistent
func (r *Request) CheckInvariants() error {
	n := len(r.ApprovalSteps)
	if n == 0 {
		return fmt.Errorf("request %s has no approval steps", r.ID)
	}
	if (r.Kind == KindMission) == (r.Mission == nil) || (r.Kind == KindLeave) == (r.Leave == nil) {
		return fmt.Errorf("request %s kind %q does not match its details", r.ID, r.Kind)
	}

	var pending, approved, rejected int
	for i, s := range r.ApprovalSteps {
		switch s.Status {
		case workflow.StatusPending:
			pending++
			if i != r.CurrentStep {
				return fmt.Errorf("request %s: step %d pending but current step is %d", r.ID, i, r.CurrentStep)
			}
		case workflow.StatusApproved:
			approved++
		case workflow.StatusRejected:
			rejected++
		case workflow.StatusIdle:
		default:
			return fmt.Errorf("request %s: step %d has invalid status %q", r.ID, i, s.Status)
		}
	}

	switch r.Status {
	case workflow.StatusApproved:
		if approved != n || r.CurrentStep != n {
			return fmt.Errorf("request %s approved with %d/%d steps approved at step %d", r.ID, approved, n, r.CurrentStep)
		}
	case workflow.StatusRejected:
		if rejected != 1 || pending != 0 {
			return fmt.Errorf("request %s rejected with %d rejected and %d pending steps", r.ID, rejected, pending)
		}
		if r.CurrentStep < 0 || r.CurrentStep >= n || r.ApprovalSteps[r.CurrentStep].Status != workflow.StatusRejected {
			return fmt.Errorf("request %s rejected but current step %d is not the rejected one", r.ID, r.CurrentStep)
		}
	case workflow.StatusPending:
		if r.CurrentStep < 0 || r.CurrentStep >= n {
			return fmt.Errorf("request %s pending with out-of-range current step %d", r.ID, r.CurrentStep)
		}
		if rejected != 0 || pending != 1 || approved != r.CurrentStep {
			return fmt.Errorf("request %s pending with %d approved, %d pending, %d rejected at step %d", r.ID, approved, pending, rejected, r.CurrentStep)
		}
	default:
		return fmt.Errorf("request %s has invalid status %q", r.ID, r.Status)
	}
	return nil
}
