package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shwehr/approval-engine/internal/application/dispatcher"
	"github.com/shwehr/approval-engine/internal/application/port"
	"github.com/shwehr/approval-engine/internal/domain/entity"
	"github.com/shwehr/approval-engine/internal/domain/event"
	domainwf "github.com/shwehr/approval-engine/internal/domain/workflow"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	store      port.WorkflowStore
	clock      port.Clock
	policy     ApproverPolicy
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
}

// Option configures the workflow engine
type Option func(*engineImpl)

// WithClock sets the time source for all engine operations
func WithClock(c port.Clock) Option {
	return func(e *engineImpl) {
		e.clock = c
	}
}

// WithApproverPolicy sets the authorization policy for approver checks
func WithApproverPolicy(p ApproverPolicy) Option {
	return func(e *engineImpl) {
		e.policy = p
	}
}

// WithDispatcher sets the event dispatcher for emitting transition events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// NewEngine creates a new workflow engine
func NewEngine(store port.WorkflowStore, logger *zap.Logger, opts ...Option) Engine {
	e := &engineImpl{
		store:  store,
		clock:  port.SystemClock{},
		policy: DefaultApproverPolicy,
		logger: logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Create persists a new workflow and seeds its history ledger
func (e *engineImpl) Create(ctx context.Context, draft *entity.ApprovalWorkflow, actor Actor) (*entity.ApprovalWorkflow, error) {
	now := e.clock.Now().UTC()

	wf := *draft
	wf.Status = entity.StatusPending
	wf.CurrentLevel = 1
	wf.TotalLevels = len(wf.ApprovalLevels)
	if wf.SubmittedAt.IsZero() {
		wf.SubmittedAt = now
	}
	wf.CreatedAt = now
	wf.UpdatedAt = now
	wf.WorkflowHistory = []entity.WorkflowHistoryEntry{{
		ID:              uuid.NewString(),
		Action:          entity.ActionSubmitted,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		PerformedAt:     now,
		Level:           0,
		PreviousStatus:  "",
		NewStatus:       entity.StatusPending,
	}}

	id, err := e.store.Create(ctx, CollectionWorkflows, &wf)
	if err != nil {
		e.logger.Error("Failed to create workflow",
			zap.String("request_id", wf.RequestID),
			zap.Error(err))
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	wf.ID = id

	e.logger.Info("Workflow created",
		zap.String("workflow_id", id),
		zap.String("request_type", wf.RequestType),
		zap.Int("total_levels", wf.TotalLevels))

	e.emit(ctx, event.TypeWorkflowSubmitted, &wf, actor, "", entity.StatusPending)
	return &wf, nil
}

// Get loads a workflow by id
func (e *engineImpl) Get(ctx context.Context, id string) (*entity.ApprovalWorkflow, error) {
	wf, _, err := e.load(ctx, "get", id)
	return wf, err
}

// Approve records approval at the current level and advances or completes
// the workflow
func (e *engineImpl) Approve(ctx context.Context, id, comments string, actor Actor) (*entity.ApprovalWorkflow, error) {
	if strings.TrimSpace(comments) == "" {
		return nil, fmt.Errorf("%w: approval comments are required", ErrValidation)
	}

	wf, version, err := e.load(ctx, "approve", id)
	if err != nil {
		return nil, err
	}

	level := wf.LevelAt(wf.CurrentLevel)
	if level == nil {
		return nil, fmt.Errorf("approve %s: level %d: %w", id, wf.CurrentLevel, ErrInvalidState)
	}

	isLastLevel := wf.CurrentLevel >= wf.TotalLevels
	machine := domainwf.BuildApprovalStateMachine(domainwf.State(wf.Status), func() bool { return isLastLevel })
	previousStatus := wf.Status
	if err := machine.Fire(ctx, domainwf.TriggerApprove); err != nil {
		return nil, fmt.Errorf("approve %s: %w", id, ErrInvalidOperation)
	}

	now := e.clock.Now().UTC()
	actedLevel := wf.CurrentLevel

	level.Status = entity.LevelStatusApproved
	level.ActionDate = &now
	level.Comments = comments
	level.ApproverID = actor.ID

	wf.Status = machine.State().String()
	if isLastLevel {
		wf.CompletedAt = &now
	} else {
		wf.CurrentLevel++
	}

	e.appendHistory(wf, entity.WorkflowHistoryEntry{
		Action:          entity.ActionApproved,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Level:           actedLevel,
		Comments:        comments,
		PreviousStatus:  previousStatus,
		NewStatus:       wf.Status,
	}, now)

	fields := map[string]interface{}{
		"status":          wf.Status,
		"currentLevel":    wf.CurrentLevel,
		"approvalLevels":  wf.ApprovalLevels,
		"workflowHistory": wf.WorkflowHistory,
		"updatedAt":       now,
	}
	if wf.CompletedAt != nil {
		fields["completedAt"] = wf.CompletedAt
	}

	if err := e.persist(ctx, "approve", id, version, fields); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow level approved",
		zap.String("workflow_id", id),
		zap.Int("level", actedLevel),
		zap.String("status", wf.Status))

	e.emit(ctx, event.TypeWorkflowApproved, wf, actor, previousStatus, wf.Status)
	return wf, nil
}

// Reject terminates the workflow at the current level
func (e *engineImpl) Reject(ctx context.Context, id, reason string, actor Actor) (*entity.ApprovalWorkflow, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	wf, version, err := e.load(ctx, "reject", id)
	if err != nil {
		return nil, err
	}

	level := wf.LevelAt(wf.CurrentLevel)
	if level == nil {
		return nil, fmt.Errorf("reject %s: level %d: %w", id, wf.CurrentLevel, ErrInvalidState)
	}

	machine := e.machineFor(wf)
	previousStatus := wf.Status
	if err := machine.Fire(ctx, domainwf.TriggerReject); err != nil {
		return nil, fmt.Errorf("reject %s: %w", id, ErrInvalidOperation)
	}

	now := e.clock.Now().UTC()

	level.Status = entity.LevelStatusRejected
	level.ActionDate = &now
	level.Comments = reason
	level.ApproverID = actor.ID

	// CurrentLevel stays at the level where rejection occurred
	wf.Status = machine.State().String()
	wf.CompletedAt = &now

	e.appendHistory(wf, entity.WorkflowHistoryEntry{
		Action:          entity.ActionRejected,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Level:           wf.CurrentLevel,
		Comments:        reason,
		PreviousStatus:  previousStatus,
		NewStatus:       wf.Status,
	}, now)

	fields := map[string]interface{}{
		"status":          wf.Status,
		"approvalLevels":  wf.ApprovalLevels,
		"workflowHistory": wf.WorkflowHistory,
		"completedAt":     wf.CompletedAt,
		"updatedAt":       now,
	}

	if err := e.persist(ctx, "reject", id, version, fields); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow rejected",
		zap.String("workflow_id", id),
		zap.Int("level", wf.CurrentLevel))

	e.emit(ctx, event.TypeWorkflowRejected, wf, actor, previousStatus, wf.Status)
	return wf, nil
}

// Delegate hands the current level to another approver
func (e *engineImpl) Delegate(ctx context.Context, id string, req DelegationRequest, actor Actor) (*entity.ApprovalWorkflow, error) {
	if strings.TrimSpace(req.DelegatedTo) == "" {
		return nil, fmt.Errorf("%w: delegate user id is required", ErrValidation)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: delegation reason is required", ErrValidation)
	}

	wf, version, err := e.load(ctx, "delegate", id)
	if err != nil {
		return nil, err
	}

	level := wf.LevelAt(wf.CurrentLevel)
	if level == nil {
		return nil, fmt.Errorf("delegate %s: level %d: %w", id, wf.CurrentLevel, ErrInvalidState)
	}
	if !level.CanDelegate {
		return nil, fmt.Errorf("%w: level %d does not allow delegation", ErrValidation, level.Level)
	}

	machine := e.machineFor(wf)
	previousStatus := wf.Status
	if err := machine.Fire(ctx, domainwf.TriggerDelegate); err != nil {
		return nil, fmt.Errorf("delegate %s: %w", id, ErrInvalidOperation)
	}

	now := e.clock.Now().UTC()
	if req.ExpiryDate != nil && !req.ExpiryDate.After(now) {
		return nil, fmt.Errorf("%w: delegation expiry must be in the future", ErrValidation)
	}

	level.Status = entity.LevelStatusDelegated
	// The delegate becomes the effective approver for authorization checks
	level.ApproverID = req.DelegatedTo
	level.Delegation = &entity.DelegationInfo{
		DelegatedTo:     req.DelegatedTo,
		DelegatedToName: req.DelegatedToName,
		DelegatedBy:     actor.ID,
		DelegationDate:  now,
		Reason:          req.Reason,
		IsTemporary:     req.IsTemporary,
		ExpiryDate:      req.ExpiryDate,
		IsActive:        true,
	}

	// Workflow status and current level are unchanged by delegation
	e.appendHistory(wf, entity.WorkflowHistoryEntry{
		Action:          entity.ActionDelegated,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Level:           wf.CurrentLevel,
		Comments:        req.Reason,
		PreviousStatus:  entity.LevelStatusPending,
		NewStatus:       entity.LevelStatusDelegated,
	}, now)
	wf.UpdatedAt = now

	fields := map[string]interface{}{
		"approvalLevels":  wf.ApprovalLevels,
		"workflowHistory": wf.WorkflowHistory,
		"updatedAt":       now,
	}

	if err := e.persist(ctx, "delegate", id, version, fields); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow level delegated",
		zap.String("workflow_id", id),
		zap.Int("level", wf.CurrentLevel),
		zap.String("delegated_to", req.DelegatedTo))

	e.emit(ctx, event.TypeWorkflowDelegated, wf, actor, previousStatus, wf.Status)
	return wf, nil
}

// Withdraw cancels the workflow on behalf of the requester
func (e *engineImpl) Withdraw(ctx context.Context, id, reason string, actor Actor) (*entity.ApprovalWorkflow, error) {
	wf, version, err := e.load(ctx, "withdraw", id)
	if err != nil {
		return nil, err
	}

	machine := e.machineFor(wf)
	previousStatus := wf.Status
	if err := machine.Fire(ctx, domainwf.TriggerWithdraw); err != nil {
		return nil, fmt.Errorf("withdraw %s: %w", id, ErrInvalidOperation)
	}

	now := e.clock.Now().UTC()

	// Approval levels are left untouched by withdrawal
	wf.Status = machine.State().String()
	wf.CompletedAt = &now

	e.appendHistory(wf, entity.WorkflowHistoryEntry{
		Action:          entity.ActionWithdrawn,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Level:           wf.CurrentLevel,
		Comments:        reason,
		PreviousStatus:  previousStatus,
		NewStatus:       wf.Status,
	}, now)

	fields := map[string]interface{}{
		"status":          wf.Status,
		"workflowHistory": wf.WorkflowHistory,
		"completedAt":     wf.CompletedAt,
		"updatedAt":       now,
	}

	if err := e.persist(ctx, "withdraw", id, version, fields); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow withdrawn", zap.String("workflow_id", id))

	e.emit(ctx, event.TypeWorkflowWithdrawn, wf, actor, previousStatus, wf.Status)
	return wf, nil
}

// Escalate flags the workflow for out-of-band intervention
func (e *engineImpl) Escalate(ctx context.Context, id, reason string, actor Actor) (*entity.ApprovalWorkflow, error) {
	wf, version, err := e.load(ctx, "escalate", id)
	if err != nil {
		return nil, err
	}

	machine := e.machineFor(wf)
	previousStatus := wf.Status
	if err := machine.Fire(ctx, domainwf.TriggerEscalate); err != nil {
		return nil, fmt.Errorf("escalate %s: %w", id, ErrInvalidOperation)
	}

	now := e.clock.Now().UTC()

	// Escalation is not terminal: CompletedAt stays unset
	wf.Status = machine.State().String()
	wf.Priority = entity.PriorityUrgent

	e.appendHistory(wf, entity.WorkflowHistoryEntry{
		Action:          entity.ActionEscalated,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Level:           wf.CurrentLevel,
		Comments:        reason,
		PreviousStatus:  previousStatus,
		NewStatus:       wf.Status,
	}, now)

	fields := map[string]interface{}{
		"status":          wf.Status,
		"priority":        wf.Priority,
		"workflowHistory": wf.WorkflowHistory,
		"updatedAt":       now,
	}

	if err := e.persist(ctx, "escalate", id, version, fields); err != nil {
		return nil, err
	}

	e.logger.Warn("Workflow escalated",
		zap.String("workflow_id", id),
		zap.String("reason", reason))

	e.emit(ctx, event.TypeWorkflowEscalated, wf, actor, previousStatus, wf.Status)
	return wf, nil
}

// Resume returns an escalated workflow to pending at its frozen level
func (e *engineImpl) Resume(ctx context.Context, id, reason string, actor Actor) (*entity.ApprovalWorkflow, error) {
	wf, version, err := e.load(ctx, "resume", id)
	if err != nil {
		return nil, err
	}

	machine := e.machineFor(wf)
	previousStatus := wf.Status
	if err := machine.Fire(ctx, domainwf.TriggerResume); err != nil {
		return nil, fmt.Errorf("resume %s: %w", id, ErrInvalidOperation)
	}

	now := e.clock.Now().UTC()

	// Priority stays urgent; the escalation already raised visibility
	wf.Status = machine.State().String()

	e.appendHistory(wf, entity.WorkflowHistoryEntry{
		Action:          entity.ActionResumed,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Level:           wf.CurrentLevel,
		Comments:        reason,
		PreviousStatus:  previousStatus,
		NewStatus:       wf.Status,
	}, now)

	fields := map[string]interface{}{
		"status":          wf.Status,
		"workflowHistory": wf.WorkflowHistory,
		"updatedAt":       now,
	}

	if err := e.persist(ctx, "resume", id, version, fields); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow resumed", zap.String("workflow_id", id))

	e.emit(ctx, event.TypeWorkflowResumed, wf, actor, previousStatus, wf.Status)
	return wf, nil
}

// FetchUserWorkflows lists workflows the user requested or approves at any level
func (e *engineImpl) FetchUserWorkflows(ctx context.Context, userID string, roles []string, status string) ([]*entity.ApprovalWorkflow, error) {
	q := port.Query{
		OrderBy:    "submittedAt",
		Descending: true,
	}
	if status != "" {
		q.Filters = append(q.Filters, port.Filter{Field: "status", Value: status})
	}

	var all []*entity.ApprovalWorkflow
	if err := e.store.Query(ctx, CollectionWorkflows, q, &all); err != nil {
		e.logger.Error("Failed to query workflows",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("fetch user workflows: %w", err)
	}

	// The store cannot express "requester OR approver at any level" over
	// the level array, so that disjunction filters here. Matching any
	// level, not only the current one, is intentional: users see
	// workflows they will act on later too.
	result := make([]*entity.ApprovalWorkflow, 0, len(all))
	for _, wf := range all {
		if wf.RequestedBy == userID || e.isApproverAtAnyLevel(wf, userID, roles) {
			result = append(result, wf)
		}
	}

	return result, nil
}

func (e *engineImpl) isApproverAtAnyLevel(wf *entity.ApprovalWorkflow, userID string, roles []string) bool {
	for _, level := range wf.ApprovalLevels {
		if e.policy(level, userID, roles) {
			return true
		}
	}
	return false
}

// machineFor builds the status machine for a loaded workflow
func (e *engineImpl) machineFor(wf *entity.ApprovalWorkflow) domainwf.StateMachine {
	isLast := wf.CurrentLevel >= wf.TotalLevels
	return domainwf.BuildApprovalStateMachine(domainwf.State(wf.Status), func() bool { return isLast })
}

// load reads a workflow and maps store errors to the engine taxonomy
func (e *engineImpl) load(ctx context.Context, op, id string) (*entity.ApprovalWorkflow, int64, error) {
	var wf entity.ApprovalWorkflow
	version, err := e.store.Get(ctx, CollectionWorkflows, id, &wf)
	if errors.Is(err, port.ErrNotFound) {
		return nil, 0, fmt.Errorf("%s %s: %w", op, id, ErrWorkflowNotFound)
	}
	if err != nil {
		e.logger.Error("Failed to load workflow",
			zap.String("operation", op),
			zap.String("workflow_id", id),
			zap.Error(err))
		return nil, 0, fmt.Errorf("%s %s: load workflow: %w", op, id, err)
	}
	return &wf, version, nil
}

// persist writes the mutated fields with a version precondition
func (e *engineImpl) persist(ctx context.Context, op, id string, version int64, fields map[string]interface{}) error {
	if err := e.store.Update(ctx, CollectionWorkflows, id, version, fields); err != nil {
		e.logger.Error("Failed to persist workflow",
			zap.String("operation", op),
			zap.String("workflow_id", id),
			zap.Int64("version", version),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	return nil
}

// appendHistory stamps and appends one ledger entry
func (e *engineImpl) appendHistory(wf *entity.ApprovalWorkflow, entry entity.WorkflowHistoryEntry, now time.Time) {
	entry.ID = uuid.NewString()
	entry.PerformedAt = now
	wf.WorkflowHistory = append(wf.WorkflowHistory, entry)
	wf.UpdatedAt = now
}

// emit dispatches transition events without blocking the caller
func (e *engineImpl) emit(ctx context.Context, t event.Type, wf *entity.ApprovalWorkflow, actor Actor, previousStatus, newStatus string) {
	if e.dispatcher == nil {
		return
	}

	payload := map[string]interface{}{
		"request_type":    wf.RequestType,
		"performed_by":    actor.ID,
		"previous_status": previousStatus,
		"new_status":      newStatus,
		"current_level":   wf.CurrentLevel,
	}

	e.dispatcher.DispatchAsync(ctx, event.NewEvent(t, wf.ID, payload))
	if previousStatus != newStatus {
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeStatusChanged, wf.ID, payload))
	}
}
