package session

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/auth"
	"github.com/matheus3301/telesync/internal/bridge"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/td/tdfake"
	"go.uber.org/zap/zaptest"
)

func testParams() Params {
	cfg := config.Default()
	cfg.API = config.API{ID: 42, Hash: "hash"}
	return Params{
		Name:        "test",
		Config:      cfg,
		Account:     &config.Account{EncryptionKey: "0a0b0c"},
		DatabaseDir: "/tmp/db",
		FilesDir:    "/tmp/files",
	}
}

// authorizeWith answers the startup parameters and then pushes state.
func authorizeWith(fake *tdfake.Client, state td.AuthorizationState) {
	fake.Handle("setTdlibParameters", func(_ td.Request, reply func(td.Object)) {
		reply(&td.Ok{})
		fake.Push(&td.UpdateAuthorizationState{State: state})
	})
	fake.Respond("close", func(td.Request) td.Object { return &td.Ok{} })
}

func openReady(t *testing.T, fake *tdfake.Client) *Session {
	t.Helper()
	authorizeWith(fake, td.AuthorizationStateReady)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := Open(ctx, testParams(), fake.Factory(), bus.New(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestOpenReady(t *testing.T) {
	fake := tdfake.New()
	s := openReady(t, fake)

	if got := s.Authorization(); got != auth.Authenticated {
		t.Errorf("Authorization() = %s, want %s", got, auth.Authenticated)
	}
	calls := fake.Calls("setTdlibParameters")
	if len(calls) != 1 {
		t.Fatalf("setTdlibParameters sent %d times", len(calls))
	}
	params := calls[0].(*td.SetTdlibParameters)
	if params.APIID != 42 || params.APIHash != "hash" || params.DatabaseDirectory != "/tmp/db" {
		t.Errorf("params = %+v", params)
	}
	if !bytes.Equal(params.DatabaseEncryptionKey, []byte{0x0a, 0x0b, 0x0c}) {
		t.Errorf("key = %x", params.DatabaseEncryptionKey)
	}
	if params.SystemLanguageCode != "en" {
		t.Errorf("language = %q, want en", params.SystemLanguageCode)
	}
}

func TestOpenRejected(t *testing.T) {
	tests := []struct {
		name  string
		state td.AuthorizationState
	}{
		{"needs phone number", td.AuthorizationStateWaitPhoneNumber},
		{"closed", td.AuthorizationStateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := tdfake.New()
			authorizeWith(fake, tt.state)

			_, err := Open(context.Background(), testParams(), fake.Factory(), nil, zaptest.NewLogger(t))
			if !errors.Is(err, auth.ErrRejected) {
				t.Fatalf("Open() error = %v, want ErrRejected", err)
			}
			if fake.CallCount("close") != 1 {
				t.Errorf("close sent %d times, want 1", fake.CallCount("close"))
			}
		})
	}
}

func TestOpenMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"missing key", func(p *Params) { p.Account.EncryptionKey = "" }},
		{"bad key", func(p *Params) { p.Account.EncryptionKey = "xyz" }},
		{"missing api id", func(p *Params) { p.Config.API.ID = 0 }},
		{"missing account", func(p *Params) { p.Account = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := tdfake.New()
			p := testParams()
			tt.mutate(&p)

			_, err := Open(context.Background(), p, fake.Factory(), nil, zaptest.NewLogger(t))
			if !errors.Is(err, config.ErrMalformed) {
				t.Fatalf("Open() error = %v, want ErrMalformed", err)
			}
			if n := len(fake.Calls("")); n != 0 {
				t.Errorf("%d requests sent for malformed config", n)
			}
		})
	}
}

func TestOpenParametersRejected(t *testing.T) {
	fake := tdfake.New()
	fake.Respond("setTdlibParameters", func(td.Request) td.Object {
		return &td.Error{Code: 400, Message: "bad api hash"}
	})

	_, err := Open(context.Background(), testParams(), fake.Factory(), nil, zaptest.NewLogger(t))
	var be *bridge.BackendError
	if !errors.As(err, &be) || be.Code != 400 {
		t.Fatalf("Open() error = %v, want backend error 400", err)
	}
}

func TestOpenInterrupted(t *testing.T) {
	fake := tdfake.New()
	fake.Handle("setTdlibParameters", func(td.Request, func(td.Object)) {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Open(ctx, testParams(), fake.Factory(), nil, zaptest.NewLogger(t))
	if !errors.Is(err, auth.ErrInterrupted) {
		t.Fatalf("Open() error = %v, want ErrInterrupted", err)
	}
}

func TestActionsNeedOpenChat(t *testing.T) {
	s := openReady(t, tdfake.New())
	ctx := context.Background()

	if err := s.MarkRead(ctx, 1); !errors.Is(err, ErrNoOpenChat) {
		t.Errorf("MarkRead() error = %v, want ErrNoOpenChat", err)
	}
	if err := s.DeleteMessage(ctx, 1); !errors.Is(err, ErrNoOpenChat) {
		t.Errorf("DeleteMessage() error = %v, want ErrNoOpenChat", err)
	}
	if _, err := s.LoadMore(ctx); !errors.Is(err, ErrNoOpenChat) {
		t.Errorf("LoadMore() error = %v, want ErrNoOpenChat", err)
	}
}

func TestOpenChatSeedsReadMarkers(t *testing.T) {
	fake := tdfake.New()
	fake.Respond("getChat", func(req td.Request) td.Object {
		return &td.Chat{ID: req.(*td.GetChat).ChatID, LastReadInboxMessageID: 7, LastReadOutboxMessageID: 5}
	})
	fake.Respond("getChatHistory", func(td.Request) td.Object { return &td.Messages{} })
	fake.Respond("viewMessages", func(td.Request) td.Object { return &td.Ok{} })
	s := openReady(t, fake)
	ctx := context.Background()

	if err := s.OpenChat(ctx, 9); err != nil {
		t.Fatalf("OpenChat() error = %v", err)
	}
	if s.OpenChatID() != 9 || s.ReadInbox().Load() != 7 || s.ReadOutbox().Load() != 5 {
		t.Errorf("open chat %d inbox %d outbox %d", s.OpenChatID(), s.ReadInbox().Load(), s.ReadOutbox().Load())
	}

	if err := s.MarkRead(ctx, 8); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	req := fake.Calls("viewMessages")[0].(*td.ViewMessages)
	if req.ChatID != 9 || !req.ForceRead {
		t.Errorf("viewMessages = %+v", req)
	}

	s.CloseChat()
	s.CloseChat()
	if s.OpenChatID() != 0 || s.ReadInbox().Load() != 0 {
		t.Errorf("after close chat %d inbox %d", s.OpenChatID(), s.ReadInbox().Load())
	}
}

func TestLoadChats(t *testing.T) {
	fake := tdfake.New()
	var exhausted atomic.Bool
	fake.Respond("loadChats", func(td.Request) td.Object {
		if exhausted.Load() {
			return &td.Error{Code: bridge.CodeNotFound, Message: "no more chats"}
		}
		return &td.Ok{}
	})
	s := openReady(t, fake)
	ctx := context.Background()

	done, err := s.LoadChats(ctx, 0)
	if err != nil || done {
		t.Fatalf("LoadChats() = %v, %v, want false, nil", done, err)
	}
	if got := fake.Calls("loadChats")[0].(*td.LoadChats).Limit; got != 15 {
		t.Errorf("limit = %d, want configured 15", got)
	}

	exhausted.Store(true)
	done, err = s.LoadChats(ctx, 5)
	if err != nil || !done {
		t.Fatalf("LoadChats() = %v, %v, want true, nil", done, err)
	}
}

func TestSearchPublicChatsKeepsOrder(t *testing.T) {
	fake := tdfake.New()
	fake.Respond("searchPublicChats", func(td.Request) td.Object {
		return &td.Chats{TotalCount: 3, ChatIDs: []int64{30, 10, 20}}
	})
	fake.Respond("getChat", func(req td.Request) td.Object {
		id := req.(*td.GetChat).ChatID
		if id == 10 {
			return &td.Error{Code: bridge.CodeNotFound, Message: "chat not found"}
		}
		return &td.Chat{ID: id, Title: "chat", Type: td.ChatType{Kind: td.ChatKindSupergroup, IsChannel: true}}
	})
	s := openReady(t, fake)

	got, err := s.SearchPublicChats(context.Background(), "news")
	if err != nil {
		t.Fatalf("SearchPublicChats() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != 30 || got[1].ID != 20 {
		t.Fatalf("results = %+v, want [30 20]", got)
	}
	if !got[0].IsChannel {
		t.Error("channel flag lost")
	}
	if stored := s.SearchResults().Load(); len(stored) != 2 {
		t.Errorf("search projection = %+v", stored)
	}
}

func TestRefreshContacts(t *testing.T) {
	fake := tdfake.New()
	fake.Respond("getContacts", func(td.Request) td.Object {
		return &td.Users{TotalCount: 2, UserIDs: []int64{1, 2}}
	})
	fake.Respond("getUser", func(req td.Request) td.Object {
		id := req.(*td.GetUser).UserID
		if id == 2 {
			return &td.User{ID: 2, Username: "helper_bot", Type: td.UserTypeBot}
		}
		return &td.User{ID: 1, FirstName: "Ada", LastName: "Lovelace"}
	})
	s := openReady(t, fake)

	got, err := s.RefreshContacts(context.Background())
	if err != nil {
		t.Fatalf("RefreshContacts() error = %v", err)
	}
	want := []Contact{
		{ID: 1, Name: "Ada Lovelace"},
		{ID: 2, Name: "Unknown user", Username: "helper_bot", IsBot: true},
	}
	if len(got) != len(want) {
		t.Fatalf("contacts = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("contact[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMeIsCached(t *testing.T) {
	fake := tdfake.New()
	fake.Respond("getMe", func(td.Request) td.Object { return &td.User{ID: 5, FirstName: "Me"} })
	s := openReady(t, fake)

	for range 3 {
		me, err := s.Me(context.Background())
		if err != nil || me.ID != 5 {
			t.Fatalf("Me() = %+v, %v", me, err)
		}
	}
	if fake.CallCount("getMe") != 1 {
		t.Errorf("getMe sent %d times, want 1", fake.CallCount("getMe"))
	}
}

func TestCloseOnce(t *testing.T) {
	fake := tdfake.New()
	s := openReady(t, fake)

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if fake.CallCount("close") != 1 {
		t.Errorf("close sent %d times, want 1", fake.CallCount("close"))
	}
}
