package model

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/telesync/internal/api"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/chatlist"
)

// chatPage is how many chats the list shows.
const chatPage = 200

// Daemon is the part of the daemon client the TUI uses.
type Daemon interface {
	GetStatus(ctx context.Context) (*api.GetStatusResponse, error)
	ListChats(ctx context.Context, limit, offset int32) (*api.ListChatsResponse, error)
	LoadChats(ctx context.Context, limit int32) (bool, error)
	OpenChat(ctx context.Context, chatID int64) error
	CloseChat(ctx context.Context) error
	ListMessages(ctx context.Context, limit int32) (*api.ListMessagesResponse, error)
	LoadMore(ctx context.Context) (int32, error)
	SendText(ctx context.Context, chatID int64, text string) (*api.Message, error)
	MarkRead(ctx context.Context, messageIDs ...int64) error
	DeleteMessage(ctx context.Context, messageID int64) error
	SearchPublicChats(ctx context.Context, query string) (*api.ListChatsResponse, error)
	JoinChat(ctx context.Context, chatID int64) error
	Download(ctx context.Context, chatID, messageID int64) (*api.DownloadResponse, error)
	Watch(ctx context.Context, prefix string, fn func(*api.Event) error) error
}

// Change flags what part of the model was refreshed.
type Change uint8

const (
	ChangedStatus Change = 1 << iota
	ChangedChats
	ChangedMessages
)

// ViewModel caches daemon state for the views and signals refreshes.
type ViewModel struct {
	mu sync.RWMutex

	daemon     Daemon
	status     *api.GetStatusResponse
	chats      []chatlist.Summary
	chatsDone  bool
	openChat   int64
	messages   []api.Message
	readOutbox int64
	Flash      Flash

	pendingMu sync.Mutex
	pending   Change
	changes   chan struct{}
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{daemon: d, changes: make(chan struct{}, 1)}
}

// Changes signals that Drain has something to report.
func (vm *ViewModel) Changes() <-chan struct{} { return vm.changes }

// Drain returns and clears the accumulated changes.
func (vm *ViewModel) Drain() Change {
	vm.pendingMu.Lock()
	defer vm.pendingMu.Unlock()
	c := vm.pending
	vm.pending = 0
	return c
}

func (vm *ViewModel) signal(c Change) {
	vm.pendingMu.Lock()
	vm.pending |= c
	vm.pendingMu.Unlock()
	select {
	case vm.changes <- struct{}{}:
	default:
	}
}

// LoadStatus fetches the session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	st, err := vm.daemon.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = st
	vm.mu.Unlock()
	vm.signal(ChangedStatus)
	return nil
}

// LoadChats fetches the chat list projection.
func (vm *ViewModel) LoadChats(ctx context.Context) error {
	resp, err := vm.daemon.ListChats(ctx, chatPage, 0)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.chats = resp.Chats
	vm.mu.Unlock()
	vm.signal(ChangedChats)
	return nil
}

// LoadMoreChats asks the daemon for the next chat page. It is a no-op once
// the list is complete.
func (vm *ViewModel) LoadMoreChats(ctx context.Context) error {
	vm.mu.RLock()
	done := vm.chatsDone
	vm.mu.RUnlock()
	if done {
		return nil
	}
	done, err := vm.daemon.LoadChats(ctx, 0)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.chatsDone = done
	vm.mu.Unlock()
	return nil
}

// OpenChat opens chatID on the daemon.
func (vm *ViewModel) OpenChat(ctx context.Context, chatID int64) error {
	if err := vm.daemon.OpenChat(ctx, chatID); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.openChat = chatID
	vm.messages = nil
	vm.readOutbox = 0
	vm.mu.Unlock()
	vm.signal(ChangedMessages)
	return vm.LoadMessages(ctx)
}

// CloseChat closes the open chat.
func (vm *ViewModel) CloseChat(ctx context.Context) error {
	vm.mu.Lock()
	vm.openChat = 0
	vm.messages = nil
	vm.mu.Unlock()
	return vm.daemon.CloseChat(ctx)
}

// LoadMessages fetches the conversation projection of the open chat.
func (vm *ViewModel) LoadMessages(ctx context.Context) error {
	if vm.OpenChatID() == 0 {
		return nil
	}
	resp, err := vm.daemon.ListMessages(ctx, 0)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if resp.ChatID == vm.openChat {
		vm.messages = resp.Messages
		vm.readOutbox = resp.ReadOutbox
	}
	vm.mu.Unlock()
	vm.signal(ChangedMessages)
	return nil
}

// LoadOlder loads one older page of the open chat.
func (vm *ViewModel) LoadOlder(ctx context.Context) (int32, error) {
	return vm.daemon.LoadMore(ctx)
}

// Send sends text to the open chat.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	chatID := vm.OpenChatID()
	if chatID == 0 {
		return nil
	}
	_, err := vm.daemon.SendText(ctx, chatID, text)
	return err
}

// MarkRead marks the loaded incoming messages of the open chat as read.
func (vm *ViewModel) MarkRead(ctx context.Context) error {
	return vm.daemon.MarkRead(ctx)
}

// Delete deletes a message of the open chat.
func (vm *ViewModel) Delete(ctx context.Context, messageID int64) error {
	return vm.daemon.DeleteMessage(ctx, messageID)
}

// Download fetches the file of a message of the open chat and returns its
// local path.
func (vm *ViewModel) Download(ctx context.Context, messageID int64) (string, error) {
	resp, err := vm.daemon.Download(ctx, vm.OpenChatID(), messageID)
	if err != nil {
		return "", err
	}
	return resp.Path, nil
}

// Search searches public chats.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]chatlist.Summary, error) {
	resp, err := vm.daemon.SearchPublicChats(ctx, query)
	if err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// Join joins a public chat.
func (vm *ViewModel) Join(ctx context.Context, chatID int64) error {
	return vm.daemon.JoinChat(ctx, chatID)
}

// Watch follows daemon events and reloads what they touch until ctx ends.
// A broken stream is retried after retryEvery.
func (vm *ViewModel) Watch(ctx context.Context, retryEvery time.Duration) {
	for ctx.Err() == nil {
		err := vm.daemon.Watch(ctx, "", func(e *api.Event) error {
			vm.apply(ctx, e.Kind)
			return nil
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			vm.Flash.Error("daemon stream lost: "+err.Error(), retryEvery)
		}
		select {
		case <-ctx.Done():
		case <-time.After(retryEvery):
		}
	}
}

// apply reloads the projection an event kind refers to. Reload errors are
// shown and otherwise dropped; the next event retries.
func (vm *ViewModel) apply(ctx context.Context, kind string) {
	var err error
	switch {
	case kind == bus.KindChats:
		err = vm.LoadChats(ctx)
	case kind == bus.KindConversation, kind == bus.KindReadOutbox:
		err = vm.LoadMessages(ctx)
	case strings.HasPrefix(kind, "session."):
		err = vm.LoadStatus(ctx)
	}
	if err != nil && ctx.Err() == nil {
		vm.Flash.Error(err.Error(), 5*time.Second)
	}
}

// Status returns the last fetched status, or nil.
func (vm *ViewModel) Status() *api.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Chats returns the cached chat list.
func (vm *ViewModel) Chats() []chatlist.Summary {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.chats
}

// Messages returns the cached conversation and outbox read marker.
func (vm *ViewModel) Messages() ([]api.Message, int64) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages, vm.readOutbox
}

// OpenChatID returns the chat the model follows, or 0.
func (vm *ViewModel) OpenChatID() int64 {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.openChat
}
