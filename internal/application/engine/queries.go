package engine

import (
	"math"
	"time"

	"github.com/shwehr/approval-engine/internal/domain/entity"
)

// ProgressPercent returns how far the workflow has advanced through its
// levels, rounded to the nearest whole percent.
func ProgressPercent(wf *entity.ApprovalWorkflow) int {
	if wf.TotalLevels == 0 {
		return 0
	}
	return int(math.Round(float64(wf.CurrentLevel) / float64(wf.TotalLevels) * 100))
}

// CurrentApprover returns the level record awaiting action. A nil result
// means the document violates the level invariants.
func CurrentApprover(wf *entity.ApprovalWorkflow) *entity.ApprovalLevel {
	return wf.LevelAt(wf.CurrentLevel)
}

// IsCurrentUserApprover reports whether the user may act at the current level
func (e *engineImpl) IsCurrentUserApprover(wf *entity.ApprovalWorkflow, userID string, roles []string) bool {
	level := CurrentApprover(wf)
	if level == nil {
		return false
	}
	return e.policy(*level, userID, roles)
}

// CanUserDelegate reports whether the user may delegate the current level
func (e *engineImpl) CanUserDelegate(wf *entity.ApprovalWorkflow, userID string, roles []string) bool {
	level := CurrentApprover(wf)
	if level == nil {
		return false
	}
	return level.CanDelegate && e.policy(*level, userID, roles)
}

// TimeRemaining returns the duration until the deadline; ok is false when
// the workflow has no deadline.
func (e *engineImpl) TimeRemaining(wf *entity.ApprovalWorkflow) (time.Duration, bool) {
	if wf.Deadline == nil {
		return 0, false
	}
	return wf.Deadline.Sub(e.clock.Now()), true
}

// IsOverdue reports whether the deadline is set and has passed. Purely
// observational: nothing inside the engine acts on it.
func (e *engineImpl) IsOverdue(wf *entity.ApprovalWorkflow) bool {
	remaining, ok := e.TimeRemaining(wf)
	return ok && remaining <= 0
}
