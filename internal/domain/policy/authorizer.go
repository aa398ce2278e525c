// Package policy decides whether an actor may act on a request's current step.
package policy

import (
	"fmt"

	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// Authorize returns nil when actor may decide the current step of req.
// Checks run in a fixed order so the first failing one names the error:
// status, role, then organizational scope.
func Authorize(actor entity.Actor, req *entity.Request) error {
	if req.Status != workflow.StatusPending {
		return fmt.Errorf("%w: request %s is %s", workflow.ErrRequestNotActionable, req.ID, req.Status)
	}

	step, ok := req.CurrentApprovalStep()
	if !ok {
		return fmt.Errorf("%w: request %s has no current step", workflow.ErrRequestNotActionable, req.ID)
	}

	if actor.Role != step.Role {
		return fmt.Errorf("%w: step %d needs %s, actor is %s", workflow.ErrWrongApprover, req.CurrentStep, step.Role, actor.Role)
	}

	return checkScope(actor, req)
}

// CanAct reports whether Authorize would succeed
func CanAct(actor entity.Actor, req *entity.Request) bool {
	return Authorize(actor, req) == nil
}

// ScopeFor returns the department and school an actor's role restricts them to.
// Empty strings mean the role is not scoped on that axis.
func ScopeFor(actor entity.Actor) (department, school string) {
	switch actor.Role {
	case workflow.RoleHOD:
		return actor.Department, ""
	case workflow.RoleDean:
		return "", actor.School
	}
	return "", ""
}

// Roles other than hod and dean are institution-wide approvers.
func checkScope(actor entity.Actor, req *entity.Request) error {
	switch actor.Role {
	case workflow.RoleHOD:
		if actor.Department == "" || actor.Department != req.Department {
			return fmt.Errorf("%w: hod of %q cannot act for department %q", workflow.ErrScopeMismatch, actor.Department, req.Department)
		}
	case workflow.RoleDean:
		if actor.School == "" || actor.School != req.School {
			return fmt.Errorf("%w: dean of %q cannot act for school %q", workflow.ErrScopeMismatch, actor.School, req.School)
		}
	}
	return nil
}

// CanView returns nil when actor may read req. Requesters always see their
// own requests; employees see nothing else; hod and dean are limited to their
// scope; other roles see everything.
func CanView(actor entity.Actor, req *entity.Request) error {
	if actor.UserID != "" && actor.UserID == req.Requester.UserID {
		return nil
	}
	if actor.Role == workflow.RoleEmployee || !actor.Role.IsValid() {
		return fmt.Errorf("%w: request %s", workflow.ErrNotRequester, req.ID)
	}
	return checkScope(actor, req)
}
