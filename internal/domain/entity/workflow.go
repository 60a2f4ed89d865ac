package entity

import "time"

// ApprovalWorkflow is the aggregate root of a multi-level approval request.
// It is persisted as a single document; the engine is the only writer.
type ApprovalWorkflow struct {
	ID              string                 `json:"id"`
	RequestID       string                 `json:"requestId"`
	RequestType     string                 `json:"requestType"`
	RequestTitle    string                 `json:"requestTitle"`
	RequestTitleMM  string                 `json:"requestTitleMm,omitempty"`
	RequestedBy     string                 `json:"requestedBy"`
	RequestedFor    string                 `json:"requestedFor"`
	CurrentLevel    int                    `json:"currentLevel"`
	TotalLevels     int                    `json:"totalLevels"`
	Status          string                 `json:"status"`
	Priority        string                 `json:"priority"`
	ApprovalLevels  []ApprovalLevel        `json:"approvalLevels"`
	WorkflowHistory []WorkflowHistoryEntry `json:"workflowHistory"`
	SubmittedAt     time.Time              `json:"submittedAt"`
	Deadline        *time.Time             `json:"deadline,omitempty"`
	CompletedAt     *time.Time             `json:"completedAt,omitempty"`
	Attachments     []string               `json:"attachments,omitempty"`
	Comments        string                 `json:"comments,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// ApprovalLevel is one sequential approval gate. Level numbers are 1-based
// and unique within a workflow; only the level equal to CurrentLevel ever
// transitions away from pending.
type ApprovalLevel struct {
	Level          int             `json:"level"`
	ApproverRole   string          `json:"approverRole"`
	ApproverRoleMM string          `json:"approverRoleMm,omitempty"`
	IsRequired     bool            `json:"isRequired"`
	CanDelegate    bool            `json:"canDelegate"`
	CanSkip        bool            `json:"canSkip"`
	TimeoutHours   int             `json:"timeoutHours"`
	Status         string          `json:"status"`
	ActionDate     *time.Time      `json:"actionDate,omitempty"`
	Comments       string          `json:"comments,omitempty"`
	ApproverID     string          `json:"approverId,omitempty"`
	Delegation     *DelegationInfo `json:"delegation,omitempty"`
}

// DelegationInfo records who may act in place of the level's approver.
// Delegation never advances CurrentLevel.
type DelegationInfo struct {
	DelegatedTo     string     `json:"delegatedTo"`
	DelegatedToName string     `json:"delegatedToName"`
	DelegatedBy     string     `json:"delegatedBy"`
	DelegationDate  time.Time  `json:"delegationDate"`
	Reason          string     `json:"reason"`
	IsTemporary     bool       `json:"isTemporary"`
	ExpiryDate      *time.Time `json:"expiryDate,omitempty"`
	IsActive        bool       `json:"isActive"`
}

// WorkflowHistoryEntry is one immutable record in the workflow's audit
// ledger. Entries are append-only; the sequence reconstructs the full
// status history of the workflow.
type WorkflowHistoryEntry struct {
	ID              string    `json:"id"`
	Action          string    `json:"action"`
	PerformedBy     string    `json:"performedBy"`
	PerformedByName string    `json:"performedByName,omitempty"`
	PerformedAt     time.Time `json:"performedAt"`
	Level           int       `json:"level"`
	Comments        string    `json:"comments,omitempty"`
	PreviousStatus  string    `json:"previousStatus"`
	NewStatus       string    `json:"newStatus"`
}

// LevelAt returns the level record whose Level equals n, or nil.
// A nil result for n == CurrentLevel indicates a corrupted document.
func (w *ApprovalWorkflow) LevelAt(n int) *ApprovalLevel {
	for i := range w.ApprovalLevels {
		if w.ApprovalLevels[i].Level == n {
			return &w.ApprovalLevels[i]
		}
	}
	return nil
}

// IsTerminal reports whether the workflow reached a terminal status.
func (w *ApprovalWorkflow) IsTerminal() bool {
	return IsTerminalStatus(w.Status)
}
