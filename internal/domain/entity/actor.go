package entity

import "github.com/garyjia/staff-approvals/internal/domain/workflow"

// Actor is the authenticated caller of an engine operation.
// It is always passed explicitly; there is no ambient session.
type Actor struct {
	UserID     string        `json:"user_id"`
	Name       string        `json:"name"`
	Email      string        `json:"email,omitempty"`
	Role       workflow.Role `json:"role"`
	Department string        `json:"department"`
	School     string        `json:"school"`
}

// AsRequester returns the requester reference for requests created by this actor
func (a Actor) AsRequester() Requester {
	return Requester{UserID: a.UserID, Name: a.Name, Email: a.Email}
}
