package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
	"github.com/garyjia/staff-approvals/pkg/utils"
)

// validateMission re-checks every field the submission form checks client-side
func validateMission(cmd CreateMissionCommand, now time.Time) error {
	var errs []error
	errs = append(errs, validateRequester(cmd.Actor))

	if !cmd.Type.IsValid() {
		errs = append(errs, fmt.Errorf("%w: mission type %q", workflow.ErrInvalidCategory, cmd.Type))
	}
	errs = append(errs,
		utils.ValidateRequired("destination", cmd.Destination),
		utils.ValidateRequired("purpose", cmd.Purpose),
		utils.ValidateDateRange(cmd.StartDate, cmd.EndDate, now),
	)
	if cmd.Type == entity.MissionTypeLocal {
		errs = append(errs, utils.ValidateRequired("district", cmd.District))
	}

	return validationError(errs)
}

func validateLeave(cmd CreateLeaveCommand, now time.Time) error {
	var errs []error
	errs = append(errs, validateRequester(cmd.Actor))

	if !cmd.Type.IsValid() {
		errs = append(errs, fmt.Errorf("leave type %q is not recognised", cmd.Type))
	}
	if cmd.Type == entity.LeaveTypeOther {
		errs = append(errs, utils.ValidateRequired("other leave type", cmd.OtherType))
	}
	errs = append(errs,
		utils.ValidateRequired("reason", cmd.Reason),
		utils.ValidateDateRange(cmd.StartDate, cmd.EndDate, now),
	)

	return validationError(errs)
}

// validateRequester requires the scope hod and dean steps are checked against
func validateRequester(actor entity.Actor) error {
	if actor.UserID == "" {
		return errors.New("requester is required")
	}
	return errors.Join(
		utils.ValidateRequired("requester department", actor.Department),
		utils.ValidateRequired("requester school", actor.School),
	)
}

func validationError(errs []error) error {
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", workflow.ErrValidation, err)
	}
	return nil
}
