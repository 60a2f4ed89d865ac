// Package template builds the initial, unpersisted workflow document for
// each request type: the ordered approval levels, priority and deadline.
// Factories are pure; the engine's Create step seeds the history ledger
// and hands the draft to the store.
package template

import (
	"fmt"
	"time"

	"github.com/shwehr/approval-engine/internal/domain/entity"
)

// LeaveParams carries the domain inputs of a leave request.
type LeaveParams struct {
	RequestID    string
	RequestedBy  string
	RequestedFor string
	LeaveType    string
	DurationDays int
}

// PromotionParams carries the domain inputs of a promotion request.
type PromotionParams struct {
	RequestID    string
	RequestedBy  string
	RequestedFor string
	FromGrade    int
	ToGrade      int
}

// TransferParams carries the domain inputs of a transfer request.
type TransferParams struct {
	RequestID      string
	RequestedBy    string
	RequestedFor   string
	FromDepartment string
	ToDepartment   string
}

// leave types that always require an HR review level
var hrReviewedLeaveTypes = map[string]bool{
	entity.LeaveTypeMedical:   true,
	entity.LeaveTypeMaternity: true,
	entity.LeaveTypeStudy:     true,
}

// NewLeaveWorkflow builds the approval workflow draft for a leave request.
// Level 2 is skippable for short leaves; an HR level is appended for
// medical, maternity and study leave.
func NewLeaveWorkflow(p LeaveParams, now time.Time) *entity.ApprovalWorkflow {
	levels := []entity.ApprovalLevel{
		{
			Level:          1,
			ApproverRole:   entity.RoleImmediateSupervisor,
			ApproverRoleMM: "တိုက်ရိုက်ကြီးကြပ်သူ",
			IsRequired:     true,
			CanDelegate:    true,
			TimeoutHours:   24,
			Status:         entity.LevelStatusPending,
		},
		{
			Level:          2,
			ApproverRole:   entity.RoleDepartmentHead,
			ApproverRoleMM: "ဌာနမှူး",
			IsRequired:     p.DurationDays > 5,
			CanSkip:        p.DurationDays <= 5,
			TimeoutHours:   48,
			Status:         entity.LevelStatusPending,
		},
	}

	if hrReviewedLeaveTypes[p.LeaveType] {
		levels = append(levels, entity.ApprovalLevel{
			Level:          3,
			ApproverRole:   entity.RoleHRDepartment,
			ApproverRoleMM: "လူ့စွမ်းအားဌာန",
			IsRequired:     true,
			TimeoutHours:   72,
			Status:         entity.LevelStatusPending,
		})
	}

	priority := entity.PriorityMedium
	if p.DurationDays > 15 {
		priority = entity.PriorityHigh
	}

	deadline := now.Add(7 * 24 * time.Hour)

	return newDraft(
		p.RequestID, entity.RequestTypeLeave,
		fmt.Sprintf("Leave Request (%s, %d days)", p.LeaveType, p.DurationDays),
		"ခွင့်လျှောက်လွှာ",
		p.RequestedBy, p.RequestedFor,
		levels, priority, &deadline, now,
	)
}

// NewPromotionWorkflow builds the approval workflow draft for a promotion
// request. Promotions to grade 15 and above additionally require ministry
// approval.
func NewPromotionWorkflow(p PromotionParams, now time.Time) *entity.ApprovalWorkflow {
	levels := []entity.ApprovalLevel{
		{
			Level:          1,
			ApproverRole:   entity.RoleDepartmentHead,
			ApproverRoleMM: "ဌာနမှူး",
			IsRequired:     true,
			CanDelegate:    true,
			TimeoutHours:   72,
			Status:         entity.LevelStatusPending,
		},
		{
			Level:          2,
			ApproverRole:   entity.RoleHRDepartment,
			ApproverRoleMM: "လူ့စွမ်းအားဌာန",
			IsRequired:     true,
			TimeoutHours:   120,
			Status:         entity.LevelStatusPending,
		},
	}

	if p.ToGrade >= 15 {
		levels = append(levels, entity.ApprovalLevel{
			Level:          3,
			ApproverRole:   entity.RoleMinistryApproval,
			ApproverRoleMM: "ဝန်ကြီးဌာန အတည်ပြုချက်",
			IsRequired:     true,
			TimeoutHours:   240,
			Status:         entity.LevelStatusPending,
		})
	}

	deadline := now.Add(30 * 24 * time.Hour)

	return newDraft(
		p.RequestID, entity.RequestTypePromotion,
		fmt.Sprintf("Promotion Request (Grade %d to %d)", p.FromGrade, p.ToGrade),
		"ရာထူးတိုးလျှောက်လွှာ",
		p.RequestedBy, p.RequestedFor,
		levels, entity.PriorityHigh, &deadline, now,
	)
}

// NewTransferWorkflow builds the approval workflow draft for a transfer
// request: both department heads, then HR.
func NewTransferWorkflow(p TransferParams, now time.Time) *entity.ApprovalWorkflow {
	levels := []entity.ApprovalLevel{
		{
			Level:          1,
			ApproverRole:   entity.RoleCurrentDepartmentHead,
			ApproverRoleMM: "လက်ရှိဌာနမှူး",
			IsRequired:     true,
			CanDelegate:    true,
			TimeoutHours:   72,
			Status:         entity.LevelStatusPending,
		},
		{
			Level:          2,
			ApproverRole:   entity.RoleReceivingDepartmentHead,
			ApproverRoleMM: "လက်ခံမည့်ဌာနမှူး",
			IsRequired:     true,
			CanDelegate:    true,
			TimeoutHours:   72,
			Status:         entity.LevelStatusPending,
		},
		{
			Level:          3,
			ApproverRole:   entity.RoleHRDepartment,
			ApproverRoleMM: "လူ့စွမ်းအားဌာန",
			IsRequired:     true,
			TimeoutHours:   120,
			Status:         entity.LevelStatusPending,
		},
	}

	deadline := now.Add(21 * 24 * time.Hour)

	return newDraft(
		p.RequestID, entity.RequestTypeTransfer,
		fmt.Sprintf("Transfer Request (%s to %s)", p.FromDepartment, p.ToDepartment),
		"ပြောင်းရွှေ့လျှောက်လွှာ",
		p.RequestedBy, p.RequestedFor,
		levels, entity.PriorityMedium, &deadline, now,
	)
}

func newDraft(
	requestID, requestType, title, titleMM, requestedBy, requestedFor string,
	levels []entity.ApprovalLevel,
	priority string,
	deadline *time.Time,
	now time.Time,
) *entity.ApprovalWorkflow {
	return &entity.ApprovalWorkflow{
		RequestID:       requestID,
		RequestType:     requestType,
		RequestTitle:    title,
		RequestTitleMM:  titleMM,
		RequestedBy:     requestedBy,
		RequestedFor:    requestedFor,
		CurrentLevel:    1,
		TotalLevels:     len(levels),
		Status:          entity.StatusPending,
		Priority:        priority,
		ApprovalLevels:  levels,
		WorkflowHistory: []entity.WorkflowHistoryEntry{},
		SubmittedAt:     now,
		Deadline:        deadline,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
