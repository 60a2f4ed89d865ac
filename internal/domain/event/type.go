package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowSubmitted Type = "workflow.submitted"
	TypeWorkflowApproved  Type = "workflow.approved"
	TypeWorkflowRejected  Type = "workflow.rejected"
	TypeWorkflowDelegated Type = "workflow.delegated"
	TypeWorkflowWithdrawn Type = "workflow.withdrawn"
	TypeWorkflowEscalated Type = "workflow.escalated"
	TypeWorkflowResumed   Type = "workflow.resumed"
	TypeStatusChanged     Type = "workflow.status_changed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowSubmitted,
		TypeWorkflowApproved,
		TypeWorkflowRejected,
		TypeWorkflowDelegated,
		TypeWorkflowWithdrawn,
		TypeWorkflowEscalated,
		TypeWorkflowResumed,
		TypeStatusChanged:
		return true
	default:
		return false
	}
}
