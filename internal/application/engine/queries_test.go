package engine

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shwehr/approval-engine/internal/domain/entity"
)

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name         string
		currentLevel int
		totalLevels  int
		want         int
	}{
		{"first of three", 1, 3, 33},
		{"second of three", 2, 3, 67},
		{"last of three", 3, 3, 100},
		{"first of two", 1, 2, 50},
		{"single level", 1, 1, 100},
		{"zero levels", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := &entity.ApprovalWorkflow{CurrentLevel: tt.currentLevel, TotalLevels: tt.totalLevels}
			if got := ProgressPercent(wf); got != tt.want {
				t.Errorf("ProgressPercent = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCurrentApprover(t *testing.T) {
	wf := &entity.ApprovalWorkflow{
		CurrentLevel: 2,
		ApprovalLevels: []entity.ApprovalLevel{
			{Level: 1, ApproverRole: entity.RoleImmediateSupervisor},
			{Level: 2, ApproverRole: entity.RoleDepartmentHead},
		},
	}

	level := CurrentApprover(wf)
	if level == nil || level.ApproverRole != entity.RoleDepartmentHead {
		t.Errorf("unexpected current approver: %+v", level)
	}

	wf.CurrentLevel = 5
	if CurrentApprover(wf) != nil {
		t.Error("expected nil for out-of-range level")
	}
}

func TestDefaultApproverPolicy(t *testing.T) {
	level := entity.ApprovalLevel{ApproverRole: entity.RoleDepartmentHead, ApproverID: "head-1"}

	tests := []struct {
		name   string
		userID string
		roles  []string
		want   bool
	}{
		{"matches assigned approver id", "head-1", nil, true},
		{"matches role holder", "someone", []string{entity.RoleDepartmentHead}, true},
		{"no match", "someone", []string{entity.RoleHRDepartment}, false},
		{"empty roles no match", "someone", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultApproverPolicy(level, tt.userID, tt.roles); got != tt.want {
				t.Errorf("DefaultApproverPolicy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCurrentUserApprover(t *testing.T) {
	eng := newTestEngine(newMockStore())

	wf := &entity.ApprovalWorkflow{
		CurrentLevel: 1,
		ApprovalLevels: []entity.ApprovalLevel{
			{Level: 1, ApproverRole: entity.RoleImmediateSupervisor, CanDelegate: true},
			{Level: 2, ApproverRole: entity.RoleDepartmentHead},
		},
	}

	if !eng.IsCurrentUserApprover(wf, "x", []string{entity.RoleImmediateSupervisor}) {
		t.Error("expected supervisor to be current approver")
	}
	if eng.IsCurrentUserApprover(wf, "x", []string{entity.RoleDepartmentHead}) {
		t.Error("department head is not the approver at level 1")
	}
	if !eng.CanUserDelegate(wf, "x", []string{entity.RoleImmediateSupervisor}) {
		t.Error("expected supervisor to be able to delegate level 1")
	}

	wf.CurrentLevel = 2
	if eng.CanUserDelegate(wf, "x", []string{entity.RoleDepartmentHead}) {
		t.Error("level 2 forbids delegation")
	}
}

func TestInjectedApproverPolicy(t *testing.T) {
	denyAll := func(level entity.ApprovalLevel, userID string, roles []string) bool { return false }
	eng := NewEngine(newMockStore(), zap.NewNop(), WithApproverPolicy(denyAll))

	wf := &entity.ApprovalWorkflow{
		CurrentLevel: 1,
		ApprovalLevels: []entity.ApprovalLevel{
			{Level: 1, ApproverRole: entity.RoleImmediateSupervisor, ApproverID: "sup-1"},
		},
	}

	if eng.IsCurrentUserApprover(wf, "sup-1", nil) {
		t.Error("injected policy should override the default matcher")
	}
}

func TestTimeRemaining(t *testing.T) {
	eng := newTestEngine(newMockStore())

	t.Run("no deadline", func(t *testing.T) {
		wf := &entity.ApprovalWorkflow{}
		if _, ok := eng.TimeRemaining(wf); ok {
			t.Error("expected ok=false without a deadline")
		}
		if eng.IsOverdue(wf) {
			t.Error("workflow without a deadline is never overdue")
		}
	})

	t.Run("future deadline", func(t *testing.T) {
		deadline := testNow.Add(48 * time.Hour)
		wf := &entity.ApprovalWorkflow{Deadline: &deadline}

		remaining, ok := eng.TimeRemaining(wf)
		if !ok || remaining != 48*time.Hour {
			t.Errorf("TimeRemaining = %v, %v", remaining, ok)
		}
		if eng.IsOverdue(wf) {
			t.Error("future deadline should not be overdue")
		}
	})

	t.Run("past deadline", func(t *testing.T) {
		deadline := testNow.Add(-time.Minute)
		wf := &entity.ApprovalWorkflow{Deadline: &deadline}

		if !eng.IsOverdue(wf) {
			t.Error("past deadline should be overdue")
		}
	})

	t.Run("deadline exactly now", func(t *testing.T) {
		deadline := testNow
		wf := &entity.ApprovalWorkflow{Deadline: &deadline}

		if !eng.IsOverdue(wf) {
			t.Error("deadline equal to now counts as overdue")
		}
	})
}
