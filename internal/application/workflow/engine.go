package workflow

import (
	"context"

	"github.com/garyjia/staff-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// Decision is an approver's action on the current step
type Decision struct {
	Action    domainwf.Decision
	Comment   string
	Signature string
}

// DecideCommand carries everything Decide needs; the actor is never implicit
type DecideCommand struct {
	RequestID string
	Actor     entity.Actor
	Decision  Decision
}

// Engine drives requests through their approval chains
type Engine interface {
	// Decide applies the actor's decision to the request's current step and
	// persists it atomically with a history record. A failed call writes nothing.
	Decide(ctx context.Context, cmd DecideCommand) (*entity.Request, error)

	// CanAct loads the request and reports whether actor may decide its current step
	CanAct(ctx context.Context, actor entity.Actor, requestID string) (bool, error)
}
