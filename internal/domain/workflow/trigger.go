package workflow

// Trigger represents an action that can cause a status transition
type Trigger string

const (
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerDelegate Trigger = "DELEGATE"
	TriggerWithdraw Trigger = "WITHDRAW"
	TriggerEscalate Trigger = "ESCALATE"
	TriggerResume   Trigger = "RESUME"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
