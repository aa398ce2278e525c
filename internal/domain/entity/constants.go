package entity

// Kind tags which detail variant a Request carries
type Kind string

const (
	KindMission Kind = "mission"
	KindLeave   Kind = "leave"
)

// MissionType distinguishes local from international missions
type MissionType string

const (
	MissionTypeLocal         MissionType = "local"
	MissionTypeInternational MissionType = "international"
)

// LeaveType is the kind of leave requested
type LeaveType string

const (
	LeaveTypeAnnual    LeaveType = "annual"
	LeaveTypeSick      LeaveType = "sick"
	LeaveTypeStudy     LeaveType = "study"
	LeaveTypeMaternity LeaveType = "maternity"
	LeaveTypePaternity LeaveType = "paternity"
	LeaveTypeUnpaid    LeaveType = "unpaid"
	LeaveTypeOther     LeaveType = "other" // requires OtherType label
)

var validLeaveTypes = map[LeaveType]bool{
	LeaveTypeAnnual:    true,
	LeaveTypeSick:      true,
	LeaveTypeStudy:     true,
	LeaveTypeMaternity: true,
	LeaveTypePaternity: true,
	LeaveTypeUnpaid:    true,
	LeaveTypeOther:     true,
}

// IsValid returns true for a known leave type
func (t LeaveType) IsValid() bool {
	return validLeaveTypes[t]
}

// IsValid returns true for local and international
func (t MissionType) IsValid() bool {
	return t == MissionTypeLocal || t == MissionTypeInternational
}

// Supporting document limits
const (
	MaxDocumentSize = 10 << 20
)

// AllowedDocumentExtensions lists accepted upload extensions, lower-case with dot
var AllowedDocumentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// History action constants
const (
	ActionCreate   = "CREATE"
	ActionApprove  = "APPROVE"
	ActionReject   = "REJECT"
	ActionDocument = "ATTACH_DOCUMENT"
)
