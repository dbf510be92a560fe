package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/telesync/internal/store"
	"go.uber.org/zap"
)

// DefaultInterval is how often the outbox is polled without a Notify.
const DefaultInterval = 500 * time.Millisecond

// Transport delivers one queued entry to the network.
type Transport interface {
	Deliver(ctx context.Context, entry store.OutboxEntry) (serverMsgID string, err error)
}

// Result reports the outcome of one delivery attempt.
type Result struct {
	Entry       store.OutboxEntry
	ServerMsgID string
	Err         error
}

// Sender drains the outbox through a Transport.
type Sender struct {
	db        *store.DB
	transport Transport
	onResult  func(Result)
	interval  time.Duration
	logger    *zap.Logger
	kick      chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates a new outbox sender. onResult may be nil.
func NewSender(db *store.DB, transport Transport, onResult func(Result), logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:        db,
		transport: transport,
		onResult:  onResult,
		interval:  DefaultInterval,
		logger:    logger,
		kick:      make(chan struct{}, 1),
	}
}

// Start begins polling the outbox for pending messages. Entries a previous
// run left half-sent are queued again first.
func (s *Sender) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if err := s.db.RequeueSending(); err != nil {
		s.logger.Error("failed to requeue outbox", zap.Error(err))
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop stops the sender loop and waits for it to exit.
func (s *Sender) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Notify wakes the sender without waiting for the next tick.
func (s *Sender) Notify() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Sender) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.kick:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		serverMsgID, err := s.transport.Deliver(ctx, entry)
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.report(Result{Entry: entry, Err: err})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverMsgID))
		s.report(Result{Entry: entry, ServerMsgID: serverMsgID})
	}
}

func (s *Sender) report(r Result) {
	if s.onResult != nil {
		s.onResult(r)
	}
}
