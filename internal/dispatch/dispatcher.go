// Package dispatch routes backend push updates to the components that own
// each piece of projected state.
package dispatch

import (
	"context"
	"sync"

	"github.com/matheus3301/telesync/internal/bridge"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/projection"
	"github.com/matheus3301/telesync/internal/status"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// ChatHandler reconciles chat and message updates.
type ChatHandler interface {
	NewChat(ctx context.Context, chat *td.Chat)
	NewMessage(ctx context.Context, msg *td.Message)
	MessageEdited(ctx context.Context, chatID, messageID int64)
	MessageContent(ctx context.Context, chatID, messageID int64, content td.MessageContent)
	DeleteMessages(ctx context.Context, chatID int64, ids []int64)
}

// AuthObserver consumes authorization updates.
type AuthObserver interface {
	Observe(s td.AuthorizationState)
}

// ActiveChat reports the chat whose conversation is open, or 0.
type ActiveChat interface {
	ChatID() int64
}

// Dispatcher is the backend's update handler. Updates that need backend
// calls are handled on their own goroutine so the backend's delivery
// goroutine is never blocked on a response it has yet to deliver.
type Dispatcher struct {
	auth   AuthObserver
	conn   *status.Tracker
	logger *zap.Logger

	mu     sync.RWMutex
	caller bridge.Caller
	chats  ChatHandler
	active ActiveChat

	readInbox  *projection.Value[int64]
	readOutbox *projection.Value[int64]
	folders    *folderSet

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher that already routes authorization and
// connection updates. Chat updates are dropped until Attach.
func New(auth AuthObserver, conn *status.Tracker, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		auth:       auth,
		conn:       conn,
		logger:     logger,
		readInbox:  projection.New[int64](0, b, bus.KindReadInbox),
		readOutbox: projection.New[int64](0, b, bus.KindReadOutbox),
		folders:    newFolderSet(b),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Attach wires the components that depend on a backend client, which in
// turn is built with this dispatcher as its update handler.
func (d *Dispatcher) Attach(caller bridge.Caller, chats ChatHandler, active ActiveChat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.caller = caller
	d.chats = chats
	d.active = active
}

// Stop cancels running handlers and waits for them to return. Later
// updates that need a goroutine are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
}

// ReadInbox is the last read incoming message id of the open chat.
func (d *Dispatcher) ReadInbox() *projection.Value[int64] { return d.readInbox }

// ReadOutbox is the last read outgoing message id of the open chat.
func (d *Dispatcher) ReadOutbox() *projection.Value[int64] { return d.readOutbox }

// Folders is the chat folder list.
func (d *Dispatcher) Folders() *projection.Value[[]td.ChatFolder] { return d.folders.value }

// Handle routes one update. It implements td.UpdateHandler.
func (d *Dispatcher) Handle(u td.Update) {
	switch u := u.(type) {
	case *td.UpdateAuthorizationState:
		d.auth.Observe(u.State)
		return
	case *td.UpdateConnectionState:
		d.conn.Set(status.FromBackend(u.State))
		return
	}

	d.mu.RLock()
	caller, chats, active := d.caller, d.chats, d.active
	d.mu.RUnlock()
	if chats == nil {
		d.logger.Debug("update before attach dropped", zap.String("type", u.ObjectType()))
		return
	}

	switch u := u.(type) {
	case *td.UpdateNewMessage:
		d.spawn(func(ctx context.Context) { chats.NewMessage(ctx, u.Message) })
	case *td.UpdateMessageContent:
		d.spawn(func(ctx context.Context) { chats.MessageContent(ctx, u.ChatID, u.MessageID, u.NewContent) })
	case *td.UpdateMessageEdited:
		d.spawn(func(ctx context.Context) { chats.MessageEdited(ctx, u.ChatID, u.MessageID) })
	case *td.UpdateDeleteMessages:
		d.spawn(func(ctx context.Context) { chats.DeleteMessages(ctx, u.ChatID, u.MessageIDs) })
	case *td.UpdateNewChat:
		d.spawn(func(ctx context.Context) { chats.NewChat(ctx, u.Chat) })
	case *td.UpdateChatReadInbox:
		if u.ChatID == active.ChatID() {
			d.readInbox.Store(u.LastReadInboxMessageID)
		}
	case *td.UpdateChatReadOutbox:
		if u.ChatID == active.ChatID() {
			d.readOutbox.Store(u.LastReadOutboxMessageID)
		}
	case *td.UpdateChatFolders:
		seq := d.folders.next()
		d.spawn(func(ctx context.Context) { d.folders.refresh(ctx, caller, seq, u.ChatFolders, d.logger) })
	default:
		d.logger.Debug("update dropped", zap.String("type", u.ObjectType()))
	}
}

func (d *Dispatcher) spawn(fn func(ctx context.Context)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ctx.Err() != nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(d.ctx)
	}()
}
