package workflow

import "fmt"

// Decision is the action an approver takes on the current step
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision accepts both verb and status spellings ("approve"/"approved").
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "approve", "approved":
		return DecisionApprove, nil
	case "reject", "rejected":
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", ErrValidation, s)
	}
}

// IsValid returns true for approve and reject
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Trigger maps the decision onto the status machine trigger
func (d Decision) Trigger() Trigger {
	if d == DecisionReject {
		return TriggerReject
	}
	return TriggerApprove
}

// String returns the string representation of the decision
func (d Decision) String() string {
	return string(d)
}
