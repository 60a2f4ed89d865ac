package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestBuilderPermit(t *testing.T) {
	t.Run("permits configured transition", func(t *testing.T) {
		builder := NewBuilder()
		builder.Configure(StatePending).Permit(TriggerReject, StateRejected)

		m := builder.Build(StatePending)

		if !m.CanFire(TriggerReject) {
			t.Error("expected TriggerReject to be permitted")
		}
		if err := m.Fire(context.Background(), TriggerReject); err != nil {
			t.Fatalf("fire failed: %v", err)
		}
		if m.State() != StateRejected {
			t.Errorf("expected state %s, got %s", StateRejected, m.State())
		}
	})

	t.Run("rejects unconfigured trigger", func(t *testing.T) {
		builder := NewBuilder()
		builder.Configure(StatePending).Permit(TriggerReject, StateRejected)

		m := builder.Build(StatePending)

		if m.CanFire(TriggerApprove) {
			t.Error("expected TriggerApprove not to be permitted")
		}
		err := m.Fire(context.Background(), TriggerApprove)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if m.State() != StatePending {
			t.Errorf("state changed on failed fire: %s", m.State())
		}
	})

	t.Run("rejects trigger from unconfigured state", func(t *testing.T) {
		builder := NewBuilder()
		builder.Configure(StatePending).Permit(TriggerReject, StateRejected)

		m := builder.Build(StateApproved)

		err := m.Fire(context.Background(), TriggerReject)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestBuilderPermitIf(t *testing.T) {
	t.Run("takes first transition whose guard passes", func(t *testing.T) {
		allow := false
		builder := NewBuilder()
		builder.Configure(StatePending).
			PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool { return allow }).
			PermitIf(TriggerApprove, StatePending, func(ctx context.Context) bool { return !allow })

		m := builder.Build(StatePending)
		if err := m.Fire(context.Background(), TriggerApprove); err != nil {
			t.Fatalf("fire failed: %v", err)
		}
		if m.State() != StatePending {
			t.Errorf("expected guarded self-transition to pending, got %s", m.State())
		}

		allow = true
		m2 := builder.Build(StatePending)
		if err := m2.Fire(context.Background(), TriggerApprove); err != nil {
			t.Fatalf("fire failed: %v", err)
		}
		if m2.State() != StateApproved {
			t.Errorf("expected approved, got %s", m2.State())
		}
	})

	t.Run("returns ErrGuardFailed when all guards fail", func(t *testing.T) {
		builder := NewBuilder()
		builder.Configure(StatePending).
			PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool { return false })

		m := builder.Build(StatePending)
		err := m.Fire(context.Background(), TriggerApprove)
		if !errors.Is(err, ErrGuardFailed) {
			t.Errorf("expected ErrGuardFailed, got %v", err)
		}
		if m.State() != StatePending {
			t.Errorf("state changed on failed guard: %s", m.State())
		}
	})
}

func TestBuildIsolation(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).Permit(TriggerReject, StateRejected)

	m1 := builder.Build(StatePending)
	m2 := builder.Build(StatePending)

	if err := m1.Fire(context.Background(), TriggerReject); err != nil {
		t.Fatalf("fire failed: %v", err)
	}

	if m2.State() != StatePending {
		t.Errorf("machines share state: m2 is %s", m2.State())
	}
}

func TestPermittedTriggers(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerWithdraw, StateCancelled)

	m := builder.Build(StatePending)

	triggers := m.PermittedTriggers()
	if len(triggers) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(triggers))
	}

	m2 := builder.Build(StateApproved)
	if len(m2.PermittedTriggers()) != 0 {
		t.Error("expected no triggers from unconfigured state")
	}
}

func TestStateProperties(t *testing.T) {
	tests := []struct {
		state    State
		valid    bool
		terminal bool
	}{
		{StatePending, true, false},
		{StateApproved, true, true},
		{StateRejected, true, true},
		{StateCancelled, true, true},
		{StateEscalated, true, false},
		{State("unknown"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if tt.state.IsValid() != tt.valid {
				t.Errorf("IsValid() = %v, want %v", tt.state.IsValid(), tt.valid)
			}
			if tt.state.IsTerminal() != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", tt.state.IsTerminal(), tt.terminal)
			}
		})
	}
}
