// Package bridge turns the backend's fire-and-callback requests into
// blocking calls with a bounded retry budget.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// DefaultBudget is the total number of attempts made for one call.
const DefaultBudget = 3

// Caller is the blocking call surface consumers depend on.
type Caller interface {
	Call(ctx context.Context, req td.Request) (td.Object, error)
}

// Bridge correlates requests with their callbacks. Many calls may be in
// flight at once; each owns one entry of the pending table until it
// completes, fails or is cancelled.
type Bridge struct {
	client td.Client
	budget int
	logger *zap.Logger

	mu      sync.Mutex
	next    uint64
	pending map[uint64]chan td.Object
}

var _ Caller = (*Bridge)(nil)

// New creates a bridge over client. A budget below 1 means DefaultBudget.
func New(client td.Client, budget int, logger *zap.Logger) *Bridge {
	if budget < 1 {
		budget = DefaultBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		client:  client,
		budget:  budget,
		logger:  logger,
		pending: make(map[uint64]chan td.Object),
	}
}

// Call sends req and waits for its response. Not-found errors are returned
// immediately; other backend errors are retried until the budget is spent.
func (b *Bridge) Call(ctx context.Context, req td.Request) (td.Object, error) {
	var lastErr *BackendError
	for attempt := 1; attempt <= b.budget; attempt++ {
		obj, err := b.attempt(ctx, req)
		if err != nil {
			return nil, err
		}
		tdErr, ok := obj.(*td.Error)
		if !ok {
			return obj, nil
		}
		lastErr = &BackendError{Request: req.RequestType(), Code: tdErr.Code, Message: tdErr.Message}
		if lastErr.Fatal() {
			return nil, lastErr
		}
		b.logger.Debug("backend call failed",
			zap.String("request", req.RequestType()),
			zap.Int("attempt", attempt),
			zap.Int("code", tdErr.Code),
			zap.String("message", tdErr.Message),
		)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, b.budget, lastErr)
}

// Pending returns the number of requests awaiting a callback.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bridge) attempt(ctx context.Context, req td.Request) (td.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, ch := b.register()
	defer b.release(id)

	b.client.Send(req, func(obj td.Object) { b.complete(id, obj) })

	select {
	case obj := <-ch:
		return obj, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", req.RequestType(), ctx.Err())
	}
}

func (b *Bridge) register() (uint64, chan td.Object) {
	ch := make(chan td.Object, 1)
	b.mu.Lock()
	b.next++
	id := b.next
	b.pending[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bridge) release(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// complete delivers obj to the waiting call. Callbacks for released or
// already completed entries are dropped.
func (b *Bridge) complete(id uint64, obj td.Object) {
	b.mu.Lock()
	ch, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		b.logger.Debug("dropping late callback", zap.Uint64("id", id), zap.String("type", obj.ObjectType()))
		return
	}
	ch <- obj
}

// Do is Call with the response asserted to T.
func Do[T td.Object](ctx context.Context, c Caller, req td.Request) (T, error) {
	var zero T
	obj, err := c.Call(ctx, req)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected response %s", req.RequestType(), obj.ObjectType())
	}
	return v, nil
}
