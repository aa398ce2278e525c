package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testRequester() Requester {
	return Requester{UserID: "u-1", Name: "Amina", Email: "amina@example.edu"}
}

func TestNewMissionRequest_MaterializesChain(t *testing.T) {
	tests := []struct {
		name     string
		typ      MissionType
		category workflow.Category
		steps    int
	}{
		{"local", MissionTypeLocal, workflow.CategoryLocalMission, 4},
		{"international", MissionTypeInternational, workflow.CategoryInternationalMission, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewMissionRequest("r-1", testRequester(), "CS", "Science", MissionDetails{
				Type:        tt.typ,
				Destination: "Kigali",
				Purpose:     "Conference",
				StartDate:   testNow,
				EndDate:     testNow.AddDate(0, 0, 3),
			}, testNow)
			require.NoError(t, err)

			assert.Equal(t, KindMission, req.Kind)
			assert.Equal(t, tt.category, req.Category)
			assert.Equal(t, workflow.StatusPending, req.Status)
			assert.Equal(t, 0, req.CurrentStep)
			assert.Equal(t, int64(1), req.Version)
			require.Len(t, req.ApprovalSteps, tt.steps)

			assert.Equal(t, workflow.StatusPending, req.ApprovalSteps[0].Status)
			for _, s := range req.ApprovalSteps[1:] {
				assert.Equal(t, workflow.StatusIdle, s.Status)
			}
			assert.Nil(t, req.Leave)
			assert.NoError(t, req.CheckInvariants())
		})
	}
}

func TestNewMissionRequest_UnknownType(t *testing.T) {
	_, err := NewMissionRequest("r-1", testRequester(), "CS", "Science", MissionDetails{Type: "orbital"}, testNow)
	assert.True(t, errors.Is(err, workflow.ErrInvalidCategory))
}

func TestNewLeaveRequest(t *testing.T) {
	req, err := NewLeaveRequest("r-2", testRequester(), "CS", "Science", LeaveDetails{
		Type:      LeaveTypeAnnual,
		Reason:    "Family visit",
		StartDate: testNow,
		EndDate:   testNow.AddDate(0, 0, 4),
		Duration:  5,
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, KindLeave, req.Kind)
	assert.Equal(t, workflow.CategoryLeave, req.Category)
	require.Len(t, req.ApprovalSteps, 3)
	assert.Equal(t, workflow.RoleHOD, req.ApprovalSteps[0].Role)
	assert.Equal(t, workflow.RoleHRManager, req.ApprovalSteps[2].Role)
	assert.True(t, req.ApprovalSteps[2].RequiresSignature)
	assert.False(t, req.ApprovalSteps[0].RequiresSignature)
	assert.NoError(t, req.CheckInvariants())
}

func TestRequest_Clone(t *testing.T) {
	req, err := NewLeaveRequest("r-3", testRequester(), "CS", "Science", LeaveDetails{
		Type:               LeaveTypeSick,
		Reason:             "Flu",
		StartDate:          testNow,
		EndDate:            testNow,
		Duration:           1,
		SupportingDocument: &DocumentRef{Name: "note.pdf"},
	}, testNow)
	require.NoError(t, err)
	at := testNow
	req.ApprovalSteps[0].ApprovedAt = &at

	c := req.Clone()
	c.ApprovalSteps[0].Status = workflow.StatusApproved
	*c.ApprovalSteps[0].ApprovedAt = testNow.Add(time.Hour)
	c.Leave.Reason = "changed"
	c.Leave.SupportingDocument.Name = "other.pdf"

	assert.Equal(t, workflow.StatusPending, req.ApprovalSteps[0].Status)
	assert.Equal(t, testNow, *req.ApprovalSteps[0].ApprovedAt)
	assert.Equal(t, "Flu", req.Leave.Reason)
	assert.Equal(t, "note.pdf", req.Leave.SupportingDocument.Name)
}

func TestRequest_Document(t *testing.T) {
	req, err := NewMissionRequest("r-4", testRequester(), "CS", "Science", MissionDetails{Type: MissionTypeLocal}, testNow)
	require.NoError(t, err)
	assert.Nil(t, req.Document())

	doc := &DocumentRef{Name: "invite.pdf", Size: 42}
	require.NoError(t, req.SetDocument(doc))
	assert.Equal(t, doc, req.Mission.Invitation)
	assert.Equal(t, doc, req.Document())

	broken := &Request{ID: "x", Kind: KindLeave}
	assert.Error(t, broken.SetDocument(doc))
}

func TestRequest_CurrentApprovalStep(t *testing.T) {
	req, err := NewLeaveRequest("r-5", testRequester(), "CS", "Science", LeaveDetails{Type: LeaveTypeAnnual}, testNow)
	require.NoError(t, err)

	step, ok := req.CurrentApprovalStep()
	require.True(t, ok)
	assert.Equal(t, workflow.RoleHOD, step.Role)

	req.CurrentStep = len(req.ApprovalSteps)
	_, ok = req.CurrentApprovalStep()
	assert.False(t, ok)
}

func TestRequest_CheckInvariants(t *testing.T) {
	base := func() *Request {
		req, err := NewLeaveRequest("r-6", testRequester(), "CS", "Science", LeaveDetails{Type: LeaveTypeAnnual}, testNow)
		require.NoError(t, err)
		return req
	}

	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr bool
	}{
		{"fresh", func(r *Request) {}, false},
		{"mid chain", func(r *Request) {
			r.ApprovalSteps[0].Status = workflow.StatusApproved
			r.ApprovalSteps[1].Status = workflow.StatusPending
			r.CurrentStep = 1
		}, false},
		{"fully approved", func(r *Request) {
			for i := range r.ApprovalSteps {
				r.ApprovalSteps[i].Status = workflow.StatusApproved
			}
			r.CurrentStep = 3
			r.Status = workflow.StatusApproved
		}, false},
		{"rejected", func(r *Request) {
			r.ApprovalSteps[0].Status = workflow.StatusApproved
			r.ApprovalSteps[1].Status = workflow.StatusRejected
			r.CurrentStep = 1
			r.Status = workflow.StatusRejected
		}, false},
		{"two pending", func(r *Request) {
			r.ApprovalSteps[1].Status = workflow.StatusPending
		}, true},
		{"pending step not current", func(r *Request) {
			r.CurrentStep = 1
		}, true},
		{"approved with idle step", func(r *Request) {
			r.ApprovalSteps[0].Status = workflow.StatusApproved
			r.CurrentStep = 3
			r.Status = workflow.StatusApproved
		}, true},
		{"pending with rejected step", func(r *Request) {
			r.ApprovalSteps[0].Status = workflow.StatusRejected
		}, true},
		{"past end while pending", func(r *Request) {
			r.ApprovalSteps[0].Status = workflow.StatusIdle
			r.CurrentStep = 3
		}, true},
		{"kind mismatch", func(r *Request) {
			r.Kind = KindMission
		}, true},
		{"empty chain", func(r *Request) {
			r.ApprovalSteps = nil
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base()
			tt.mutate(r)
			err := r.CheckInvariants()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLeaveType_IsValid(t *testing.T) {
	assert.True(t, LeaveTypeMaternity.IsValid())
	assert.True(t, LeaveTypeOther.IsValid())
	assert.False(t, LeaveType("holiday").IsValid())
	assert.True(t, MissionTypeInternational.IsValid())
	assert.False(t, MissionType("").IsValid())
}

func TestActor_AsRequester(t *testing.T) {
	a := Actor{UserID: "u-9", Name: "Joel", Email: "j@example.edu", Role: workflow.RoleEmployee}
	assert.Equal(t, Requester{UserID: "u-9", Name: "Joel", Email: "j@example.edu"}, a.AsRequester())
}
