package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/bridge"
	"github.com/matheus3301/telesync/internal/status"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/td/tdfake"
	"go.uber.org/zap/zaptest"
)

type call struct {
	kind   string
	chatID int64
	ids    []int64
}

type recordingChats struct {
	calls chan call
}

func (r *recordingChats) NewChat(_ context.Context, chat *td.Chat) {
	r.calls <- call{kind: "new_chat", chatID: chat.ID}
}

func (r *recordingChats) NewMessage(_ context.Context, msg *td.Message) {
	r.calls <- call{kind: "new_message", chatID: msg.ChatID, ids: []int64{msg.ID}}
}

func (r *recordingChats) MessageEdited(_ context.Context, chatID, messageID int64) {
	r.calls <- call{kind: "edited", chatID: chatID, ids: []int64{messageID}}
}

func (r *recordingChats) MessageContent(_ context.Context, chatID, messageID int64, _ td.MessageContent) {
	r.calls <- call{kind: "content", chatID: chatID, ids: []int64{messageID}}
}

func (r *recordingChats) DeleteMessages(_ context.Context, chatID int64, ids []int64) {
	r.calls <- call{kind: "delete", chatID: chatID, ids: ids}
}

type recordingAuth struct {
	mu     sync.Mutex
	states []td.AuthorizationState
}

func (r *recordingAuth) Observe(s td.AuthorizationState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

type fixedChat int64

func (f fixedChat) ChatID() int64 { return int64(f) }

func setup(t *testing.T, fake *tdfake.Client) (*Dispatcher, *recordingChats, *recordingAuth, *status.Tracker) {
	t.Helper()
	chats := &recordingChats{calls: make(chan call, 16)}
	auth := &recordingAuth{}
	tracker := status.NewTracker(nil, nil)
	d := New(auth, tracker, nil, zaptest.NewLogger(t))
	d.Attach(bridge.New(fake, 3, zaptest.NewLogger(t)), chats, fixedChat(7))
	t.Cleanup(d.Stop)
	return d, chats, auth, tracker
}

func expectCall(t *testing.T, ch <-chan call, kind string, chatID int64) call {
	t.Helper()
	select {
	case c := <-ch:
		if c.kind != kind || c.chatID != chatID {
			t.Fatalf("got %s for chat %d, want %s for chat %d", c.kind, c.chatID, kind, chatID)
		}
		return c
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s", kind)
	}
	return call{}
}

func TestRoutesChatUpdates(t *testing.T) {
	d, chats, _, _ := setup(t, tdfake.New())

	d.Handle(&td.UpdateNewChat{Chat: &td.Chat{ID: 1}})
	expectCall(t, chats.calls, "new_chat", 1)

	d.Handle(&td.UpdateNewMessage{Message: &td.Message{ID: 5, ChatID: 2}})
	expectCall(t, chats.calls, "new_message", 2)

	d.Handle(&td.UpdateMessageEdited{ChatID: 3, MessageID: 6})
	expectCall(t, chats.calls, "edited", 3)

	d.Handle(&td.UpdateMessageContent{ChatID: 4, MessageID: 8, NewContent: &td.MessageText{}})
	expectCall(t, chats.calls, "content", 4)

	d.Handle(&td.UpdateDeleteMessages{ChatID: 5, MessageIDs: []int64{9, 10}})
	c := expectCall(t, chats.calls, "delete", 5)
	if len(c.ids) != 2 {
		t.Errorf("delete ids = %v, want two", c.ids)
	}
}

func TestUnroutedUpdatesAreDropped(t *testing.T) {
	d, chats, auth, _ := setup(t, tdfake.New())

	d.Handle(&td.UpdateUser{User: &td.User{ID: 1}})
	d.Handle(&td.UpdateOption{Name: "version", Value: "1"})

	select {
	case c := <-chats.calls:
		t.Errorf("unexpected call %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
	if len(auth.states) != 0 {
		t.Errorf("auth observed %v", auth.states)
	}
}

func TestAuthorizationAndConnection(t *testing.T) {
	d, _, auth, tracker := setup(t, tdfake.New())

	d.Handle(&td.UpdateAuthorizationState{State: td.AuthorizationStateReady})
	d.Handle(&td.UpdateConnectionState{State: td.ConnectionStateUpdating})

	if len(auth.states) != 1 || auth.states[0] != td.AuthorizationStateReady {
		t.Errorf("auth observed %v, want [ready]", auth.states)
	}
	if tracker.Current() != status.Updating {
		t.Errorf("connection = %s, want UPDATING", tracker.Current())
	}
}

func TestAuthorizationRoutedBeforeAttach(t *testing.T) {
	auth := &recordingAuth{}
	d := New(auth, status.NewTracker(nil, nil), nil, zaptest.NewLogger(t))
	defer d.Stop()

	d.Handle(&td.UpdateAuthorizationState{State: td.AuthorizationStateWaitTdlibParameters})
	d.Handle(&td.UpdateNewChat{Chat: &td.Chat{ID: 1}})

	if len(auth.states) != 1 {
		t.Errorf("auth observed %v, want one state", auth.states)
	}
}

func TestReadStateOnlyForOpenChat(t *testing.T) {
	d, _, _, _ := setup(t, tdfake.New())

	d.Handle(&td.UpdateChatReadInbox{ChatID: 8, LastReadInboxMessageID: 100})
	d.Handle(&td.UpdateChatReadOutbox{ChatID: 8, LastReadOutboxMessageID: 100})
	if d.ReadInbox().Load() != 0 || d.ReadOutbox().Load() != 0 {
		t.Error("read state of another chat was recorded")
	}

	d.Handle(&td.UpdateChatReadInbox{ChatID: 7, LastReadInboxMessageID: 41})
	d.Handle(&td.UpdateChatReadOutbox{ChatID: 7, LastReadOutboxMessageID: 40})
	if got := d.ReadInbox().Load(); got != 41 {
		t.Errorf("read inbox = %d, want 41", got)
	}
	if got := d.ReadOutbox().Load(); got != 40 {
		t.Errorf("read outbox = %d, want 40", got)
	}
}

func TestFoldersDropFailures(t *testing.T) {
	fake := tdfake.New()
	fake.Respond("getChatFolder", func(req td.Request) td.Object {
		id := req.(*td.GetChatFolder).ChatFolderID
		if id == 2 {
			return &td.Error{Code: 404, Message: "Chat folder not found"}
		}
		time.Sleep(time.Duration(5-id) * time.Millisecond)
		return &td.ChatFolder{IncludedChatIDs: []int64{int64(id)}}
	})
	d, _, _, _ := setup(t, fake)

	d.Handle(&td.UpdateChatFolders{ChatFolders: []td.ChatFolderInfo{
		{ID: 1, Title: "Work"},
		{ID: 2, Title: "Gone"},
		{ID: 3, Title: "Family"},
	}})

	deadline := time.After(2 * time.Second)
	for len(d.Folders().Load()) == 0 {
		select {
		case <-deadline:
			t.Fatal("folders never committed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	got := d.Folders().Load()
	if len(got) != 2 {
		t.Fatalf("folders = %+v, want two", got)
	}
	if got[0].ID != 1 || got[0].Title != "Work" || got[1].ID != 3 || got[1].Title != "Family" {
		t.Errorf("folders = %+v, want Work then Family", got)
	}
}

func TestStaleFolderRefreshIsDropped(t *testing.T) {
	fs := newFolderSet(nil)
	fake := tdfake.New()
	fake.Respond("getChatFolder", func(req td.Request) td.Object {
		return &td.ChatFolder{}
	})
	caller := bridge.New(fake, 3, zaptest.NewLogger(t))
	logger := zaptest.NewLogger(t)

	first, second := fs.next(), fs.next()
	fs.refresh(context.Background(), caller, second, []td.ChatFolderInfo{{ID: 2, Title: "new"}}, logger)
	fs.refresh(context.Background(), caller, first, []td.ChatFolderInfo{{ID: 1, Title: "old"}}, logger)

	got := fs.value.Load()
	if len(got) != 1 || got[0].Title != "new" {
		t.Errorf("folders = %+v, want only the newer set", got)
	}
}

func TestStopDropsLaterUpdates(t *testing.T) {
	d, chats, _, _ := setup(t, tdfake.New())
	d.Stop()
	d.Handle(&td.UpdateNewChat{Chat: &td.Chat{ID: 1}})
	select {
	case c := <-chats.calls:
		t.Errorf("unexpected call after Stop: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}
