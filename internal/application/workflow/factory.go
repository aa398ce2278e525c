package workflow

import (
	"context"

	domainwf "github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// BuildStepMachine creates the status machine for a single approval step.
// approved and rejected have no outgoing transitions.
func BuildStepMachine(initial domainwf.Status) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatusIdle).
		Permit(domainwf.TriggerActivate, domainwf.StatusPending)

	builder.Configure(domainwf.StatusPending).
		Permit(domainwf.TriggerApprove, domainwf.StatusApproved).
		Permit(domainwf.TriggerReject, domainwf.StatusRejected)

	return builder.Build(initial)
}

// BuildRequestMachine creates the status machine for a request whose current
// step is, or is not, the last one in its chain.
func BuildRequestMachine(initial domainwf.Status, finalStep bool) domainwf.StateMachine {
	isFinal := func(context.Context) bool { return finalStep }
	notFinal := func(context.Context) bool { return !finalStep }

	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatusPending).
		PermitIf(domainwf.TriggerApprove, domainwf.StatusApproved, isFinal).
		PermitIf(domainwf.TriggerApprove, domainwf.StatusPending, notFinal).
		Permit(domainwf.TriggerReject, domainwf.StatusRejected)

	return builder.Build(initial)
}
