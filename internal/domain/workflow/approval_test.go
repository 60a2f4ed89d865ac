package workflow

import (
	"context"
	"errors"
	"testing"
)

func last(v bool) func() bool {
	return func() bool { return v }
}

func TestApprovalMachineFromPending(t *testing.T) {
	tests := []struct {
		name        string
		isLastLevel bool
		trigger     Trigger
		wantState   State
		wantErr     error
	}{
		{"approve at intermediate level stays pending", false, TriggerApprove, StatePending, nil},
		{"approve at last level completes", true, TriggerApprove, StateApproved, nil},
		{"reject terminates", false, TriggerReject, StateRejected, nil},
		{"delegate keeps pending", false, TriggerDelegate, StatePending, nil},
		{"withdraw cancels", false, TriggerWithdraw, StateCancelled, nil},
		{"escalate suspends", false, TriggerEscalate, StateEscalated, nil},
		{"resume not allowed while pending", false, TriggerResume, StatePending, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildApprovalStateMachine(StatePending, last(tt.isLastLevel))

			err := m.Fire(context.Background(), tt.trigger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("fire failed: %v", err)
			}

			if m.State() != tt.wantState {
				t.Errorf("expected state %s, got %s", tt.wantState, m.State())
			}
		})
	}
}

func TestApprovalMachineFromEscalated(t *testing.T) {
	t.Run("resume returns to pending", func(t *testing.T) {
		m := BuildApprovalStateMachine(StateEscalated, last(false))
		if err := m.Fire(context.Background(), TriggerResume); err != nil {
			t.Fatalf("fire failed: %v", err)
		}
		if m.State() != StatePending {
			t.Errorf("expected pending, got %s", m.State())
		}
	})

	t.Run("withdraw cancels", func(t *testing.T) {
		m := BuildApprovalStateMachine(StateEscalated, last(false))
		if err := m.Fire(context.Background(), TriggerWithdraw); err != nil {
			t.Fatalf("fire failed: %v", err)
		}
		if m.State() != StateCancelled {
			t.Errorf("expected cancelled, got %s", m.State())
		}
	})

	t.Run("approve not allowed while escalated", func(t *testing.T) {
		m := BuildApprovalStateMachine(StateEscalated, last(true))
		err := m.Fire(context.Background(), TriggerApprove)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestApprovalMachineTerminalStates(t *testing.T) {
	triggers := []Trigger{
		TriggerApprove, TriggerReject, TriggerDelegate,
		TriggerWithdraw, TriggerEscalate, TriggerResume,
	}

	for _, state := range []State{StateApproved, StateRejected, StateCancelled} {
		t.Run(state.String(), func(t *testing.T) {
			for _, trigger := range triggers {
				m := BuildApprovalStateMachine(state, last(false))
				if err := m.Fire(context.Background(), trigger); !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("trigger %s from %s: expected ErrInvalidTransition, got %v", trigger, state, err)
				}
			}
		})
	}
}
