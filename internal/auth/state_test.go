package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/td"
)

func TestInitialState(t *testing.T) {
	g := NewGate(nil, nil)
	if g.Current() != Unauthenticated {
		t.Errorf("initial state = %s, want UNAUTHENTICATED", g.Current())
	}
}

func TestGateOutcome(t *testing.T) {
	tests := []struct {
		name    string
		updates []td.AuthorizationState
		want    State
		wantErr error
	}{
		{"ready", []td.AuthorizationState{td.AuthorizationStateReady}, Authenticated, nil},
		{"closed", []td.AuthorizationState{td.AuthorizationStateClosed}, Closed, ErrRejected},
		{"wait phone", []td.AuthorizationState{td.AuthorizationStateWaitPhoneNumber}, WaitingPhoneNumber, ErrRejected},
		{"passes through intermediate states", []td.AuthorizationState{
			td.AuthorizationStateWaitTdlibParameters,
			td.AuthorizationStateWaitCode,
			td.AuthorizationStateReady,
		}, Authenticated, nil},
		{"first decisive state wins", []td.AuthorizationState{
			td.AuthorizationStateWaitPhoneNumber,
			td.AuthorizationStateReady,
		}, Authenticated, ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(nil, nil)
			for _, u := range tt.updates {
				g.Observe(u)
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := g.Wait(ctx)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Wait() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Wait() error = %v, want %v", err, tt.wantErr)
			}
			if g.Current() != tt.want {
				t.Errorf("state = %s, want %s", g.Current(), tt.want)
			}
		})
	}
}

func TestWaitBlocksUntilDecisiveState(t *testing.T) {
	g := NewGate(nil, nil)
	errCh := make(chan error, 1)
	go func() { errCh <- g.Wait(context.Background()) }()

	g.Observe(td.AuthorizationStateWaitTdlibParameters)
	select {
	case err := <-errCh:
		t.Fatalf("Wait returned early with %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	g.Observe(td.AuthorizationStateReady)
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Ready")
	}
}

func TestWaitInterrupted(t *testing.T) {
	g := NewGate(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Wait(ctx); !errors.Is(err, ErrInterrupted) {
		t.Errorf("Wait() error = %v, want ErrInterrupted", err)
	}
}

func TestFailReleasesGate(t *testing.T) {
	g := NewGate(nil, nil)
	boom := errors.New("boom")
	g.Fail(boom)
	g.Observe(td.AuthorizationStateReady)

	if err := g.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Wait() error = %v, want boom", err)
	}
	if g.Current() != Authenticated {
		t.Errorf("state = %s, want AUTHENTICATED", g.Current())
	}
}

func TestClosedIsTerminal(t *testing.T) {
	g := NewGate(nil, nil)
	g.Observe(td.AuthorizationStateReady)
	g.Observe(td.AuthorizationStateClosed)
	g.Observe(td.AuthorizationStateReady)
	if g.Current() != Closed {
		t.Errorf("state = %s, want CLOSED", g.Current())
	}
}

func TestTransitionPublishesEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.KindAuthorization, 10)
	defer unsub()

	g := NewGate(b, nil)
	g.Observe(td.AuthorizationStateReady)

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(Change)
		if !ok {
			t.Fatalf("payload type = %T, want Change", evt.Payload)
		}
		if change.From != Unauthenticated || change.To != Authenticated {
			t.Errorf("change = %+v, want UNAUTHENTICATED->AUTHENTICATED", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for authorization event")
	}
}
