package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestCreated   Type = "request.created"
	TypeStepApproved     Type = "request.step_approved"
	TypeRequestApproved  Type = "request.approved"
	TypeRequestRejected  Type = "request.rejected"
	TypeDocumentAttached Type = "request.document_attached"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestCreated,
		TypeStepApproved,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeDocumentAttached:
		return true
	default:
		return false
	}
}
