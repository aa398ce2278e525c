package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/policy"
	domainwf "github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// Apply returns a copy of req with the decision applied to its current step.
// req is never modified. Errors leave no partial state behind.
func Apply(ctx context.Context, req *entity.Request, actor entity.Actor, d Decision, now time.Time) (*entity.Request, error) {
	if !d.Action.IsValid() {
		return nil, fmt.Errorf("%w: unknown decision %q", domainwf.ErrValidation, d.Action)
	}
	if err := policy.Authorize(actor, req); err != nil {
		return nil, err
	}

	idx := req.CurrentStep
	signature := strings.TrimSpace(d.Signature)
	if d.Action == domainwf.DecisionApprove && req.ApprovalSteps[idx].RequiresSignature && signature == "" {
		return nil, fmt.Errorf("%w: step %d (%s)", domainwf.ErrSignatureRequired, idx, req.ApprovalSteps[idx].Role)
	}

	trigger := d.Action.Trigger()
	stepMachine := BuildStepMachine(req.ApprovalSteps[idx].Status)
	if !stepMachine.CanFire(trigger) {
		return nil, fmt.Errorf("%w: %s on step %d (%s)",
			domainwf.ErrInvalidTransition, trigger, idx, req.ApprovalSteps[idx].Status)
	}

	out := req.Clone()
	final := idx == len(out.ApprovalSteps)-1

	step := &out.ApprovalSteps[idx]
	if err := stepMachine.Fire(ctx, trigger); err != nil {
		return nil, fmt.Errorf("step %d: %w", idx, err)
	}
	requestMachine := BuildRequestMachine(out.Status, final)
	if err := requestMachine.Fire(ctx, trigger); err != nil {
		return nil, fmt.Errorf("request %s: %w", out.ID, err)
	}

	decidedAt := now
	step.Status = stepMachine.State()
	step.Comment = d.Comment
	step.ApprovedAt = &decidedAt
	step.ApprovedBy = actor.UserID
	if d.Action == domainwf.DecisionApprove && step.RequiresSignature {
		step.Signature = signature
	}

	out.Status = requestMachine.State()
	if d.Action == domainwf.DecisionApprove {
		out.CurrentStep++
		if !final {
			next := &out.ApprovalSteps[out.CurrentStep]
			nextMachine := BuildStepMachine(next.Status)
			if err := nextMachine.Fire(ctx, domainwf.TriggerActivate); err != nil {
				return nil, fmt.Errorf("step %d: %w", out.CurrentStep, err)
			}
			next.Status = nextMachine.State()
		}
	}
	out.UpdatedAt = now

	return out, nil
}
