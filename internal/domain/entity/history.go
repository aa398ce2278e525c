package entity

import "time"

// DecisionRecord is the audit trail entry written alongside every state change
type DecisionRecord struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	ActorUserID    string    `json:"actor_user_id"`
	ActorRole      string    `json:"actor_role"`
	StepIndex      int       `json:"step_index"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Action         string    `json:"action"`
	Comment        string    `json:"comment,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
