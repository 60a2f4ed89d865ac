package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shwehr/approval-engine/internal/application/engine"
	"github.com/shwehr/approval-engine/internal/application/port"
	"github.com/shwehr/approval-engine/internal/domain/entity"
)

var scanNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// queryStore serves a canned pending list; the monitor never writes
type queryStore struct {
	pending []*entity.ApprovalWorkflow
	queries []port.Query
}

func (s *queryStore) Create(ctx context.Context, collection string, doc interface{}) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (s *queryStore) Get(ctx context.Context, collection, id string, out interface{}) (int64, error) {
	return 0, fmt.Errorf("not implemented")
}

func (s *queryStore) Update(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]interface{}) error {
	return fmt.Errorf("not implemented")
}

func (s *queryStore) Query(ctx context.Context, collection string, q port.Query, out interface{}) error {
	s.queries = append(s.queries, q)
	*(out.(*[]*entity.ApprovalWorkflow)) = s.pending
	return nil
}

// escalateRecorder implements engine.Engine; only Escalate is exercised
// by the monitor
type escalateRecorder struct {
	engine.Engine

	escalated   []string
	reasons     []string
	actors      []engine.Actor
	escalateErr error
}

func (r *escalateRecorder) Escalate(ctx context.Context, id, reason string, actor engine.Actor) (*entity.ApprovalWorkflow, error) {
	if r.escalateErr != nil {
		return nil, r.escalateErr
	}
	r.escalated = append(r.escalated, id)
	r.reasons = append(r.reasons, reason)
	r.actors = append(r.actors, actor)
	return &entity.ApprovalWorkflow{ID: id, Status: entity.StatusEscalated}, nil
}

func pendingWorkflow(id string, deadline *time.Time) *entity.ApprovalWorkflow {
	return &entity.ApprovalWorkflow{ID: id, Status: entity.StatusPending, Deadline: deadline}
}

func TestScanOnce(t *testing.T) {
	past := scanNow.Add(-time.Hour)
	exact := scanNow
	future := scanNow.Add(time.Hour)

	t.Run("escalates only workflows past their deadline", func(t *testing.T) {
		store := &queryStore{pending: []*entity.ApprovalWorkflow{
			pendingWorkflow("wf-overdue", &past),
			pendingWorkflow("wf-exact", &exact),
			pendingWorkflow("wf-future", &future),
			pendingWorkflow("wf-no-deadline", nil),
		}}
		rec := &escalateRecorder{}
		m := NewOverdueMonitor(store, rec, zap.NewNop(), WithMonitorClock(fixedClock{t: scanNow}))

		require.NoError(t, m.ScanOnce(context.Background()))

		assert.Equal(t, []string{"wf-overdue", "wf-exact"}, rec.escalated)
	})

	t.Run("escalates as the system actor with the deadline in the reason", func(t *testing.T) {
		store := &queryStore{pending: []*entity.ApprovalWorkflow{pendingWorkflow("wf-1", &past)}}
		rec := &escalateRecorder{}
		m := NewOverdueMonitor(store, rec, zap.NewNop(), WithMonitorClock(fixedClock{t: scanNow}))

		require.NoError(t, m.ScanOnce(context.Background()))

		require.Len(t, rec.actors, 1)
		assert.Equal(t, entity.PerformerSystem, rec.actors[0].ID)
		assert.Contains(t, rec.reasons[0], past.UTC().Format(time.RFC3339))
	})

	t.Run("queries pending workflows oldest first with batch limit", func(t *testing.T) {
		store := &queryStore{}
		rec := &escalateRecorder{}
		m := NewOverdueMonitor(store, rec, zap.NewNop(),
			WithMonitorClock(fixedClock{t: scanNow}),
			WithBatchSize(25),
		)

		require.NoError(t, m.ScanOnce(context.Background()))

		require.Len(t, store.queries, 1)
		q := store.queries[0]
		assert.Equal(t, "submittedAt", q.OrderBy)
		assert.False(t, q.Descending)
		assert.Equal(t, 25, q.Limit)
		require.Len(t, q.Filters, 1)
		assert.Equal(t, "status", q.Filters[0].Field)
		assert.Equal(t, entity.StatusPending, q.Filters[0].Value)
	})

	t.Run("tolerates workflows changed during the scan", func(t *testing.T) {
		store := &queryStore{pending: []*entity.ApprovalWorkflow{pendingWorkflow("wf-1", &past)}}
		rec := &escalateRecorder{escalateErr: fmt.Errorf("escalate wf-1: %w", engine.ErrInvalidOperation)}
		m := NewOverdueMonitor(store, rec, zap.NewNop(), WithMonitorClock(fixedClock{t: scanNow}))

		assert.NoError(t, m.ScanOnce(context.Background()))
	})

	t.Run("tolerates version conflicts", func(t *testing.T) {
		store := &queryStore{pending: []*entity.ApprovalWorkflow{pendingWorkflow("wf-1", &past)}}
		rec := &escalateRecorder{escalateErr: fmt.Errorf("escalate wf-1: %w", port.ErrVersionConflict)}
		m := NewOverdueMonitor(store, rec, zap.NewNop(), WithMonitorClock(fixedClock{t: scanNow}))

		assert.NoError(t, m.ScanOnce(context.Background()))
	})
}

func TestMonitorLifecycle(t *testing.T) {
	store := &queryStore{}
	rec := &escalateRecorder{}
	m := NewOverdueMonitor(store, rec, zap.NewNop(), WithScanInterval(time.Hour))

	assert.Equal(t, "OverdueMonitor", m.Name())

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()), "double start must fail")

	m.Stop()
	m.Stop() // idempotent
}
