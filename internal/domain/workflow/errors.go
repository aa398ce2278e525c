package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrGuardFailed is returned when every guarded transition for a trigger refuses
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrInvalidCategory is returned for a request category with no workflow definition
	ErrInvalidCategory = errors.New("invalid request category")

	// ErrNotFound is returned when a request does not exist
	ErrNotFound = errors.New("request not found")

	// ErrRequestNotActionable is returned for any action on an approved or rejected request
	ErrRequestNotActionable = errors.New("request is not actionable")

	// ErrWrongApprover is returned when the actor's role is not the current step's role
	ErrWrongApprover = errors.New("actor is not the current approver")

	// ErrScopeMismatch is returned when an hod or dean acts outside their department or school
	ErrScopeMismatch = errors.New("actor scope does not match request")

	// ErrSignatureRequired is returned when approving a signature step without a signature
	ErrSignatureRequired = errors.New("signature required for this step")

	// ErrConflict is returned when a request changed since it was read
	ErrConflict = errors.New("request was modified concurrently")

	// ErrNotRequester is returned when someone other than the requester edits a request
	ErrNotRequester = errors.New("only the requester may modify this request")

	// ErrNotApproved is returned when an approval form is requested before final approval
	ErrNotApproved = errors.New("request is not approved")

	// ErrValidation is returned when request fields fail validation
	ErrValidation = errors.New("validation failed")
)
