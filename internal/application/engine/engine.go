// Package engine owns the approval workflow state machine: submission,
// per-level approval, rejection, delegation, escalation, withdrawal and
// the derived authorization and progress queries. It is the only writer
// of workflow documents.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shwehr/approval-engine/internal/domain/entity"
)

// CollectionWorkflows is the document collection workflows persist in.
const CollectionWorkflows = "approval_workflows"

var (
	// ErrWorkflowNotFound is returned when the workflow id is absent from the store
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidState is returned when no approval level exists at the
	// workflow's current level (corrupted document)
	ErrInvalidState = errors.New("no approval level at current level")

	// ErrInvalidOperation is returned when the action is not permitted in
	// the workflow's current status
	ErrInvalidOperation = errors.New("operation not allowed in current status")

	// ErrValidation is returned when the request itself is malformed
	// (empty comments/reason, delegation not allowed at the level)
	ErrValidation = errors.New("validation failed")
)

// Actor identifies who performs an engine operation. Identity is injected
// per call; the engine holds no ambient current user.
type Actor struct {
	ID    string
	Name  string
	Roles []string
}

// SystemActor is the actor recorded on scheduler-driven transitions.
var SystemActor = Actor{ID: entity.PerformerSystem, Name: entity.PerformerSystem}

// ApproverPolicy decides whether a user may act at an approval level.
// Injected so a real role-resolution service can replace the default
// id-or-role matcher.
type ApproverPolicy func(level entity.ApprovalLevel, userID string, roles []string) bool

// DefaultApproverPolicy matches the level's assigned approver id, or any
// holder of the level's role. The role fallback is deliberately coarse.
func DefaultApproverPolicy(level entity.ApprovalLevel, userID string, roles []string) bool {
	if level.ApproverID != "" && level.ApproverID == userID {
		return true
	}
	for _, r := range roles {
		if r == level.ApproverRole {
			return true
		}
	}
	return false
}

// DelegationRequest carries the inputs of a Delegate call.
type DelegationRequest struct {
	DelegatedTo     string
	DelegatedToName string
	Reason          string
	IsTemporary     bool
	ExpiryDate      *time.Time
}

// Engine drives workflows from submission to a terminal outcome. Every
// mutator performs one read, validates, computes the next state, appends
// exactly one history entry and persists the result as a single
// version-checked document update.
type Engine interface {
	// Create persists a draft produced by the template factory and seeds
	// the history ledger with the submitted entry.
	Create(ctx context.Context, draft *entity.ApprovalWorkflow, actor Actor) (*entity.ApprovalWorkflow, error)

	// Get loads a workflow by id.
	Get(ctx context.Context, id string) (*entity.ApprovalWorkflow, error)

	// Approve records approval at the current level. The last level's
	// approval completes the workflow; otherwise the current level
	// advances by one.
	Approve(ctx context.Context, id, comments string, actor Actor) (*entity.ApprovalWorkflow, error)

	// Reject terminates the workflow at the current level.
	Reject(ctx context.Context, id, reason string, actor Actor) (*entity.ApprovalWorkflow, error)

	// Delegate hands the current level to another approver without
	// advancing the workflow.
	Delegate(ctx context.Context, id string, req DelegationRequest, actor Actor) (*entity.ApprovalWorkflow, error)

	// Withdraw cancels the workflow on behalf of the requester.
	Withdraw(ctx context.Context, id, reason string, actor Actor) (*entity.ApprovalWorkflow, error)

	// Escalate flags the workflow for out-of-band intervention and forces
	// urgent priority.
	Escalate(ctx context.Context, id, reason string, actor Actor) (*entity.ApprovalWorkflow, error)

	// Resume returns an escalated workflow to pending at its frozen level.
	Resume(ctx context.Context, id, reason string, actor Actor) (*entity.ApprovalWorkflow, error)

	// FetchUserWorkflows lists workflows the user requested or is an
	// approver of at any level, newest submission first, optionally
	// filtered by status.
	FetchUserWorkflows(ctx context.Context, userID string, roles []string, status string) ([]*entity.ApprovalWorkflow, error)

	// IsCurrentUserApprover reports whether the user may act at the
	// workflow's current level.
	IsCurrentUserApprover(wf *entity.ApprovalWorkflow, userID string, roles []string) bool

	// CanUserDelegate reports whether the user may delegate the current level.
	CanUserDelegate(wf *entity.ApprovalWorkflow, userID string, roles []string) bool

	// TimeRemaining returns the time until the workflow deadline. The
	// second return is false when no deadline is set.
	TimeRemaining(wf *entity.ApprovalWorkflow) (time.Duration, bool)

	// IsOverdue reports whether the deadline has passed.
	IsOverdue(wf *entity.ApprovalWorkflow) bool
}
