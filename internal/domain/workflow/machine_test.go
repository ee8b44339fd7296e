package workflow

import (
	"context"
	"errors"
	"testing"
)

type guardKey struct{}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateOpen, false},
		{StateInProgress, false},
		{StateClosed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"open", StateOpen, true},
		{"in progress with space", State("In Progress"), true},
		{"closed", StateClosed, true},
		{"upper case is not a status", State("OPEN"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateOpen)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}
	if builder.Configure(StateOpen) != config {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_PanicsOnInvalidStates(t *testing.T) {
	cases := map[string]func(){
		"configure": func() { NewBuilder().Configure(State("INVALID")) },
		"build":     func() { NewBuilder().Build(State("INVALID")) },
		"permit":    func() { NewBuilder().Configure(StateOpen).Permit(TriggerAdvance, State("INVALID")) },
	}

	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s should panic on invalid state", name)
				}
			}()
			fn()
		})
	}
}

func TestStateConfiguration_PermitReentry(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateInProgress).PermitReentry(TriggerJump)

	machine := builder.Build(StateInProgress)
	if err := machine.Fire(context.Background(), TriggerJump); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StateInProgress {
		t.Errorf("State after reentry = %v, want %v", machine.State(), StateInProgress)
	}
}

func TestStateConfiguration_PermitIf(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateOpen).
		PermitIf(TriggerClose, StateClosed, func(ctx context.Context) bool {
			allowed, _ := ctx.Value(guardKey{}).(bool)
			return allowed
		})

	t.Run("guard passes", func(t *testing.T) {
		machine := builder.Build(StateOpen)
		ctx := context.WithValue(context.Background(), guardKey{}, true)
		if err := machine.Fire(ctx, TriggerClose); err != nil {
			t.Fatalf("Fire() failed: %v", err)
		}
		if machine.State() != StateClosed {
			t.Errorf("State = %v, want %v", machine.State(), StateClosed)
		}
	})

	t.Run("guard fails", func(t *testing.T) {
		machine := builder.Build(StateOpen)
		err := machine.Fire(context.Background(), TriggerClose)
		if !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
		}
		if machine.State() != StateOpen {
			t.Errorf("State should remain %v, got %v", StateOpen, machine.State())
		}
	})
}

func TestStateMachine_Fire_InvalidTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateOpen).Permit(TriggerClose, StateClosed)

	machine := builder.Build(StateClosed)

	err := machine.Fire(context.Background(), TriggerAdvance)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}

	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("Fire() error should be a *TransitionError, got %T", err)
	}
	if terr.From != StateClosed || terr.Trigger != TriggerAdvance {
		t.Errorf("TransitionError = %+v", terr)
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateOpen).
		Permit(TriggerAdvance, StateInProgress).
		Permit(TriggerClose, StateClosed)

	if got := len(builder.Build(StateOpen).PermittedTriggers()); got != 2 {
		t.Errorf("PermittedTriggers() returned %d triggers, want 2", got)
	}
	if got := len(builder.Build(StateClosed).PermittedTriggers()); got != 0 {
		t.Errorf("PermittedTriggers() on unconfigured state returned %d, want 0", got)
	}
}

func TestStateMachine_Independence(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateOpen).Permit(TriggerAdvance, StateInProgress)

	machine1 := builder.Build(StateOpen)
	machine2 := builder.Build(StateOpen)

	// Configuring after Build must not change machines already built
	builder.Configure(StateOpen).Permit(TriggerClose, StateClosed)

	if err := machine1.Fire(context.Background(), TriggerAdvance); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine2.State() != StateOpen {
		t.Errorf("machine2 state = %v, want %v", machine2.State(), StateOpen)
	}
	if machine2.CanFire(TriggerClose) {
		t.Error("machine2 should not see transitions configured after Build()")
	}
}
