package export

import (
	"fmt"
	"time"

	"github.com/garyjia/staff-approvals/internal/domain/entity"
)

// FormData is the flattened content of an approval form
type FormData struct {
	RequestID   string
	Title       string
	Requester   string
	Department  string
	School      string
	Category    string
	SubmittedAt time.Time
	Details     []FormField
	Steps       []FormStep
}

// FormField is one labelled detail line
type FormField struct {
	Label string
	Value string
}

// FormStep is one row of the approval chain table
type FormStep struct {
	Sequence   int
	Role       string
	Status     string
	ApprovedBy string
	ApprovedAt string
	Comment    string
	Signature  string
}

const dateLayout = "2006-01-02"

// BuildFormData flattens a request into form content
func BuildFormData(req *entity.Request) (*FormData, error) {
	data := &FormData{
		RequestID:   req.ID,
		Requester:   req.Requester.Name,
		Department:  req.Department,
		School:      req.School,
		Category:    req.Category.String(),
		SubmittedAt: req.CreatedAt,
	}
	if data.Requester == "" {
		data.Requester = req.Requester.UserID
	}

	switch req.Kind {
	case entity.KindMission:
		if req.Mission == nil {
			return nil, fmt.Errorf("mission request %s has no mission details", req.ID)
		}
		m := req.Mission
		data.Title = "Mission Approval Form"
		data.Details = []FormField{
			{Label: "Mission type", Value: string(m.Type)},
			{Label: "Destination", Value: m.Destination},
			{Label: "Purpose", Value: m.Purpose},
			{Label: "Start date", Value: m.StartDate.Format(dateLayout)},
			{Label: "End date", Value: m.EndDate.Format(dateLayout)},
		}
		if m.District != "" {
			data.Details = append(data.Details, FormField{Label: "District", Value: m.District})
		}
		if m.Invitation != nil {
			data.Details = append(data.Details, FormField{Label: "Invitation", Value: m.Invitation.Name})
		}
	case entity.KindLeave:
		if req.Leave == nil {
			return nil, fmt.Errorf("leave request %s has no leave details", req.ID)
		}
		l := req.Leave
		leaveType := string(l.Type)
		if l.Type == entity.LeaveTypeOther && l.OtherType != "" {
			leaveType = fmt.Sprintf("%s (%s)", l.Type, l.OtherType)
		}
		data.Title = "Leave Approval Form"
		data.Details = []FormField{
			{Label: "Leave type", Value: leaveType},
			{Label: "Reason", Value: l.Reason},
			{Label: "Start date", Value: l.StartDate.Format(dateLayout)},
			{Label: "End date", Value: l.EndDate.Format(dateLayout)},
			{Label: "Duration (days)", Value: fmt.Sprintf("%d", l.Duration)},
		}
		if l.SupportingDocument != nil {
			data.Details = append(data.Details, FormField{Label: "Supporting document", Value: l.SupportingDocument.Name})
		}
	default:
		return nil, fmt.Errorf("unknown request kind %q", req.Kind)
	}

	for i, step := range req.ApprovalSteps {
		row := FormStep{
			Sequence:   i + 1,
			Role:       step.Role.String(),
			Status:     step.Status.String(),
			ApprovedBy: step.ApprovedBy,
			Comment:    step.Comment,
			Signature:  step.Signature,
		}
		if step.ApprovedAt != nil {
			row.ApprovedAt = step.ApprovedAt.Format(time.RFC3339)
		}
		data.Steps = append(data.Steps, row)
	}

	return data, nil
}
