// Package auth tracks the backend's authorization state and gates session
// startup on its first decisive value.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

var (
	// ErrRejected is returned when the backend settles on a state other
	// than Ready.
	ErrRejected = errors.New("auth: authorization rejected")
	// ErrInterrupted is returned when the wait is cancelled before the
	// backend settles.
	ErrInterrupted = errors.New("auth: authorization wait interrupted")
)

// State is the session-level authorization state.
type State string

const (
	Unauthenticated    State = "UNAUTHENTICATED"
	WaitingPhoneNumber State = "WAITING_PHONE_NUMBER"
	Authenticated      State = "AUTHENTICATED"
	Closed             State = "CLOSED"
)

var validTransitions = map[State][]State{
	Unauthenticated:    {WaitingPhoneNumber, Authenticated, Closed},
	WaitingPhoneNumber: {Authenticated, Closed},
	Authenticated:      {WaitingPhoneNumber, Closed},
	Closed:             {},
}

// Change is the payload published on bus.KindAuthorization.
type Change struct {
	From State
	To   State
}

// Gate is a one-shot latch released by the first Ready, Closed or
// WaitPhoneNumber update. Later updates keep moving Current.
type Gate struct {
	mu      sync.RWMutex
	current State
	done    chan struct{}
	result  error
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewGate creates a gate in the Unauthenticated state.
func NewGate(b *bus.Bus, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		current: Unauthenticated,
		done:    make(chan struct{}),
		bus:     b,
		logger:  logger,
	}
}

// Current returns the current state.
func (g *Gate) Current() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// Observe feeds one backend authorization update into the gate. Updates
// that do not map to a session state are ignored.
func (g *Gate) Observe(s td.AuthorizationState) {
	var to State
	switch s {
	case td.AuthorizationStateReady:
		to = Authenticated
	case td.AuthorizationStateWaitPhoneNumber:
		to = WaitingPhoneNumber
	case td.AuthorizationStateClosed:
		to = Closed
	default:
		g.logger.Debug("authorization state passed through", zap.Stringer("state", s))
		return
	}
	if err := g.transition(to); err != nil {
		g.logger.Debug("authorization transition ignored", zap.Error(err))
	}
}

// Fail releases the gate with err if it has not been released yet.
func (g *Gate) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked(err)
}

// Wait blocks until the gate is released or ctx is done. It returns nil
// only when the backend reached Ready first.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		g.mu.RLock()
		defer g.mu.RUnlock()
		return g.result
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
}

// Done is closed once the gate is released.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

func (g *Gate) transition(to State) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !slices.Contains(validTransitions[g.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", g.current, to)
	}
	from := g.current
	g.current = to

	if to == Authenticated {
		g.releaseLocked(nil)
	} else {
		g.releaseLocked(fmt.Errorf("%w: %s", ErrRejected, to))
	}

	g.logger.Info("authorization state changed", zap.String("from", string(from)), zap.String("to", string(to)))
	if g.bus != nil {
		g.bus.Emit(bus.KindAuthorization, Change{From: from, To: to})
	}
	return nil
}

func (g *Gate) releaseLocked(result error) {
	select {
	case <-g.done:
		return
	default:
	}
	g.result = result
	close(g.done)
}
