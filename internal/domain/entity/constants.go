package entity

// Workflow status constants
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusEscalated = "escalated"
)

// Level status constants
const (
	LevelStatusPending   = "pending"
	LevelStatusApproved  = "approved"
	LevelStatusRejected  = "rejected"
	LevelStatusDelegated = "delegated"
)

// History action constants
const (
	ActionSubmitted = "submitted"
	ActionApproved  = "approved"
	ActionRejected  = "rejected"
	ActionDelegated = "delegated"
	ActionWithdrawn = "withdrawn"
	ActionEscalated = "escalated"
	ActionResumed   = "resumed"
)

// Priority constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Request type constants
const (
	RequestTypeLeave        = "leave"
	RequestTypePromotion    = "promotion"
	RequestTypeTransfer     = "transfer"
	RequestTypeTraining     = "training"
	RequestTypeDisciplinary = "disciplinary"
	RequestTypeExpense      = "expense"
)

// Approver role constants
const (
	RoleImmediateSupervisor     = "immediate_supervisor"
	RoleDepartmentHead          = "department_head"
	RoleHRDepartment            = "hr_department"
	RoleMinistryApproval        = "ministry_approval"
	RoleCurrentDepartmentHead   = "current_department_head"
	RoleReceivingDepartmentHead = "receiving_department_head"
)

// Leave type constants
const (
	LeaveTypeAnnual    = "annual"
	LeaveTypeCasual    = "casual"
	LeaveTypeMedical   = "medical"
	LeaveTypeMaternity = "maternity"
	LeaveTypeStudy     = "study"
)

// PerformerSystem is recorded as the actor on system-driven transitions.
const PerformerSystem = "system"

var terminalStatuses = map[string]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// IsTerminalStatus reports whether status is terminal. Escalated is not
// terminal: it can be resumed or withdrawn.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}
