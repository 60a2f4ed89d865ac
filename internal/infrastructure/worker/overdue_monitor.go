package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shwehr/approval-engine/internal/application/engine"
	"github.com/shwehr/approval-engine/internal/application/port"
	"github.com/shwehr/approval-engine/internal/domain/entity"
)

// OverdueMonitor is the external scheduler for deadline handling: the
// engine treats deadlines as advisory data, so this worker periodically
// scans pending workflows and escalates the ones past their deadline.
type OverdueMonitor struct {
	store  port.WorkflowStore
	engine engine.Engine
	clock  port.Clock
	logger *zap.Logger

	// Configuration
	scanInterval time.Duration
	batchSize    int

	// State
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// MonitorOption configures the overdue monitor
type MonitorOption func(*OverdueMonitor)

// WithScanInterval sets how often the monitor scans for overdue workflows
func WithScanInterval(d time.Duration) MonitorOption {
	return func(m *OverdueMonitor) {
		m.scanInterval = d
	}
}

// WithBatchSize caps how many workflows one scan examines
func WithBatchSize(n int) MonitorOption {
	return func(m *OverdueMonitor) {
		m.batchSize = n
	}
}

// WithMonitorClock sets the time source used for deadline comparison
func WithMonitorClock(c port.Clock) MonitorOption {
	return func(m *OverdueMonitor) {
		m.clock = c
	}
}

// NewOverdueMonitor creates a new overdue monitor
func NewOverdueMonitor(
	store port.WorkflowStore,
	eng engine.Engine,
	logger *zap.Logger,
	opts ...MonitorOption,
) *OverdueMonitor {
	m := &OverdueMonitor{
		store:        store,
		engine:       eng,
		clock:        port.SystemClock{},
		logger:       logger,
		scanInterval: 15 * time.Minute,
		batchSize:    100,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start starts the monitor loop
func (m *OverdueMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("overdue monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.isRunning = true

	m.logger.Info("OverdueMonitor started",
		zap.Duration("scan_interval", m.scanInterval),
		zap.Int("batch_size", m.batchSize))

	go m.scanLoop()

	return nil
}

// Stop stops the monitor loop
func (m *OverdueMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return
	}

	m.isRunning = false
	if m.cancel != nil {
		m.cancel()
	}

	m.logger.Info("OverdueMonitor stopped")
}

// Name returns the worker name for identification
func (m *OverdueMonitor) Name() string {
	return "OverdueMonitor"
}

func (m *OverdueMonitor) scanLoop() {
	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := m.ScanOnce(m.ctx); err != nil {
				m.logger.Error("Overdue scan failed", zap.Error(err))
			}
		}
	}
}

// ScanOnce performs a single scan pass. Exported so a deployment can also
// drive it from an external cron instead of the ticker.
func (m *OverdueMonitor) ScanOnce(ctx context.Context) error {
	q := port.Query{
		Filters:    []port.Filter{{Field: "status", Value: entity.StatusPending}},
		OrderBy:    "submittedAt",
		Descending: false,
		Limit:      m.batchSize,
	}

	var pending []*entity.ApprovalWorkflow
	if err := m.store.Query(ctx, engine.CollectionWorkflows, q, &pending); err != nil {
		return fmt.Errorf("scan pending workflows: %w", err)
	}

	now := m.clock.Now()
	escalated := 0
	for _, wf := range pending {
		if wf.Deadline == nil || wf.Deadline.After(now) {
			continue
		}

		reason := fmt.Sprintf("deadline %s exceeded", wf.Deadline.UTC().Format(time.RFC3339))
		_, err := m.engine.Escalate(ctx, wf.ID, reason, engine.SystemActor)
		if err != nil {
			// A concurrent action beat the scan; the next pass re-evaluates
			if errors.Is(err, port.ErrVersionConflict) || errors.Is(err, engine.ErrInvalidOperation) {
				m.logger.Info("Skipping workflow changed during scan",
					zap.String("workflow_id", wf.ID))
				continue
			}
			m.logger.Error("Failed to escalate overdue workflow",
				zap.String("workflow_id", wf.ID),
				zap.Error(err))
			continue
		}
		escalated++
	}

	if escalated > 0 {
		m.logger.Info("Overdue scan completed",
			zap.Int("examined", len(pending)),
			zap.Int("escalated", escalated))
	}

	return nil
}
