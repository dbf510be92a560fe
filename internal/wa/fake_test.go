package wa

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
)

var ownJID = types.NewJID("15550000000", types.DefaultUserServer)

type sentText struct {
	To   types.JID
	ID   types.MessageID
	Text string
}

type readReceipt struct {
	Chat, Sender types.JID
	IDs          []types.MessageID
}

// fakeMessenger records what the backend asks of WhatsApp.
type fakeMessenger struct {
	mu         sync.Mutex
	loggedIn   bool
	handler    func(any)
	nextID     int
	sent       []sentText
	sendErr    error
	revoked    []types.MessageID
	reads      []readReceipt
	lids       map[types.JID]types.JID
	contacts   map[types.JID]types.ContactInfo
	media      []byte
	connected  bool
	connectErr error
	loggedOut  bool
}

var _ Messenger = (*fakeMessenger)(nil)

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{loggedIn: true, lids: make(map[types.JID]types.JID)}
}

func (f *fakeMessenger) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeMessenger) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeMessenger) IsLoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn
}

func (f *fakeMessenger) OwnJID() types.JID {
	if !f.IsLoggedIn() {
		return types.EmptyJID
	}
	return ownJID
}

func (f *fakeMessenger) PushName() string { return "Me" }

func (f *fakeMessenger) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = false
	f.loggedOut = true
	return nil
}

func (f *fakeMessenger) OnEvent(handler func(evt any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

// emit delivers a whatsmeow event the way the client would.
func (f *fakeMessenger) emit(evt any) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(evt)
	}
}

func (f *fakeMessenger) GenerateMessageID() types.MessageID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("OUT%d", f.nextID)
}

func (f *fakeMessenger) SendText(_ context.Context, to types.JID, id types.MessageID, text string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return time.Time{}, f.sendErr
	}
	f.sent = append(f.sent, sentText{To: to, ID: id, Text: text})
	return time.Now(), nil
}

func (f *fakeMessenger) Sent() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.sent...)
}

func (f *fakeMessenger) Revoke(_ context.Context, _ types.JID, id types.MessageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, id)
	return nil
}

func (f *fakeMessenger) MarkRead(_ context.Context, chat, sender types.JID, ids []types.MessageID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, readReceipt{Chat: chat, Sender: sender, IDs: ids})
	return nil
}

func (f *fakeMessenger) Download(context.Context, *store.File) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.media == nil {
		return nil, errors.New("media expired")
	}
	return f.media, nil
}

func (f *fakeMessenger) ResolveLID(_ context.Context, jid types.JID) types.JID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pn, ok := f.lids[jid]; ok {
		return pn
	}
	return jid
}

func (f *fakeMessenger) Contacts(context.Context) (map[types.JID]types.ContactInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts, nil
}

func (f *fakeMessenger) GetQRChannel(context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	return nil, errors.New("already logged in")
}

// updateLog collects pushed updates.
type updateLog struct {
	mu      sync.Mutex
	updates []td.Update
	notify  chan struct{}
}

func newUpdateLog() *updateLog {
	return &updateLog{notify: make(chan struct{}, 1)}
}

func (l *updateLog) push(u td.Update) {
	l.mu.Lock()
	l.updates = append(l.updates, u)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *updateLog) all() []td.Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]td.Update(nil), l.updates...)
}

// ofType returns the pushed updates of type T, in order.
func ofType[T td.Update](l *updateLog) []T {
	var out []T
	for _, u := range l.all() {
		if v, ok := u.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// waitFor blocks until an update of type T satisfying match was pushed.
func waitFor[T td.Update](t *testing.T, l *updateLog, match func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, u := range ofType[T](l) {
			if match == nil || match(u) {
				return u
			}
		}
		select {
		case <-l.notify:
		case <-deadline:
			var zero T
			t.Fatalf("timeout waiting for %T", zero)
			return zero
		}
	}
}

func testStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), store.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestHandler(t *testing.T) (*EventHandler, *fakeMessenger, *updateLog, *store.DB) {
	t.Helper()
	db := testStore(t)
	m := newFakeMessenger()
	log := newUpdateLog()
	h := NewEventHandler(db, m, log.push, zap.NewNop())
	m.OnEvent(h.Handle)
	return h, m, log, db
}
