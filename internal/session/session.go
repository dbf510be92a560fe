package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matheus3301/telesync/internal/auth"
	"github.com/matheus3301/telesync/internal/bridge"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/chatlist"
	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/conversation"
	"github.com/matheus3301/telesync/internal/dispatch"
	"github.com/matheus3301/telesync/internal/download"
	"github.com/matheus3301/telesync/internal/labels"
	"github.com/matheus3301/telesync/internal/projection"
	"github.com/matheus3301/telesync/internal/status"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoOpenChat is returned by actions that target the open conversation
// when none is bound.
var ErrNoOpenChat = errors.New("session: no open chat")

// lookupLimit bounds concurrent detail fetches for search and contacts.
const lookupLimit = 8

// Params locates the on-disk state of one session.
type Params struct {
	Name        string
	Config      *config.Config
	Account     *config.Account
	DatabaseDir string
	FilesDir    string
}

// Contact is one entry of the contacts projection.
type Contact struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	IsBot    bool   `json:"is_bot"`
}

// Session owns one backend client and every projection derived from it.
// Nothing is shared between sessions.
type Session struct {
	name       string
	cfg        *config.Config
	client     td.Client
	bridge     *bridge.Bridge
	gate       *auth.Gate
	conn       *status.Tracker
	dispatcher *dispatch.Dispatcher
	chats      *chatlist.Reconciler
	pager      *conversation.Pager
	downloads  *download.Downloader
	contacts   *projection.Value[[]Contact]
	search     *projection.Value[[]chatlist.Summary]
	labels     *labels.Labels
	logger     *zap.Logger

	// ctx outlives individual requests and scopes history walks.
	ctx    context.Context
	cancel context.CancelFunc

	meMu sync.Mutex
	me   *td.User

	closeOnce sync.Once
	closeErr  error
}

// Open validates the configuration, starts a backend client, sends the
// startup parameters and blocks until the backend authorizes or rejects
// the session. On failure the backend is closed and nothing leaks.
func Open(ctx context.Context, p Params, newClient td.NewClientFunc, b *bus.Bus, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.Config == nil || p.Account == nil {
		return nil, fmt.Errorf("%w: missing configuration", config.ErrMalformed)
	}
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	key, err := p.Account.Key()
	if err != nil {
		return nil, err
	}

	cfg := p.Config
	l := labels.New(cfg.Language)
	gate := auth.NewGate(b, logger.Named("auth"))
	conn := status.NewTracker(l, b)
	d := dispatch.New(gate, conn, b, logger.Named("dispatch"))

	client, err := newClient(d.Handle)
	if err != nil {
		d.Stop()
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	br := bridge.New(client, cfg.Sync.RetryBudget, logger.Named("bridge"))
	pager := conversation.New(br, b, cfg.Sync.PageSize, logger.Named("conversation"))
	chats := chatlist.New(br, pager, b, l, logger.Named("chatlist"))
	d.Attach(br, chats, pager)

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		name:       p.Name,
		cfg:        cfg,
		client:     client,
		bridge:     br,
		gate:       gate,
		conn:       conn,
		dispatcher: d,
		chats:      chats,
		pager:      pager,
		downloads:  download.New(client, logger.Named("download")),
		contacts:   projection.New[[]Contact](nil, b, bus.KindContacts),
		search:     projection.New[[]chatlist.Summary](nil, b, bus.KindSearch),
		labels:     l,
		logger:     logger,
		ctx:        sctx,
		cancel:     cancel,
	}

	params := &td.SetTdlibParameters{
		DatabaseDirectory:     p.DatabaseDir,
		FilesDirectory:        p.FilesDir,
		UseMessageDatabase:    cfg.Sync.UseMessageDatabase,
		APIID:                 cfg.API.ID,
		APIHash:               cfg.API.Hash,
		SystemLanguageCode:    l.Tag().String(),
		DeviceModel:           cfg.Device.Model,
		SystemVersion:         cfg.Device.SystemVersion,
		ApplicationVersion:    cfg.Device.ApplicationVersion,
		DatabaseEncryptionKey: key,
	}
	client.Send(params, func(obj td.Object) {
		if e, ok := obj.(*td.Error); ok {
			gate.Fail(&bridge.BackendError{Request: params.RequestType(), Code: e.Code, Message: e.Message})
		}
	})

	if err := gate.Wait(ctx); err != nil {
		logger.Warn("session not authorized", zap.String("session", p.Name), zap.Error(err))
		client.Send(&td.Close{}, func(td.Object) {})
		s.shutdown()
		return nil, err
	}
	logger.Info("session ready", zap.String("session", p.Name))
	return s, nil
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Labels returns the session's localized labels.
func (s *Session) Labels() *labels.Labels { return s.labels }

// Authorization returns the current authorization state.
func (s *Session) Authorization() auth.State { return s.gate.Current() }

// Connection returns the current connection state.
func (s *Session) Connection() status.State { return s.conn.Current() }

// ConnectionTitle returns the localized connection banner, empty when ready.
func (s *Session) ConnectionTitle() string { return s.conn.Title() }

// Chats is the chat-list projection, most recent first.
func (s *Session) Chats() *projection.Value[[]chatlist.Summary] { return s.chats.Chats() }

// Conversation is the open chat's messages, newest first.
func (s *Session) Conversation() *projection.Value[[]*td.Message] { return s.pager.Messages() }

// ReadInbox is the last read incoming message id of the open chat.
func (s *Session) ReadInbox() *projection.Value[int64] { return s.dispatcher.ReadInbox() }

// ReadOutbox is the last read outgoing message id of the open chat.
func (s *Session) ReadOutbox() *projection.Value[int64] { return s.dispatcher.ReadOutbox() }

// Folders is the chat folder projection.
func (s *Session) Folders() *projection.Value[[]td.ChatFolder] { return s.dispatcher.Folders() }

// Contacts is the contacts projection.
func (s *Session) Contacts() *projection.Value[[]Contact] { return s.contacts }

// SearchResults is the last public chat search.
func (s *Session) SearchResults() *projection.Value[[]chatlist.Summary] { return s.search }

// OpenChat binds the conversation to chatID and starts loading its history.
// Read markers are seeded from the chat detail when it can be fetched.
func (s *Session) OpenChat(ctx context.Context, chatID int64) error {
	s.pager.Bind(s.ctx, chatID)
	chat, err := bridge.Do[*td.Chat](ctx, s.bridge, &td.GetChat{ChatID: chatID})
	if err != nil {
		return fmt.Errorf("open chat %d: %w", chatID, err)
	}
	if s.pager.ChatID() == chatID {
		s.dispatcher.ReadInbox().Store(chat.LastReadInboxMessageID)
		s.dispatcher.ReadOutbox().Store(chat.LastReadOutboxMessageID)
	}
	return nil
}

// CloseChat leaves the open conversation. Closing twice is harmless.
func (s *Session) CloseChat() {
	s.pager.Unbind()
	s.dispatcher.ReadInbox().Store(0)
	s.dispatcher.ReadOutbox().Store(0)
}

// OpenChatID returns the bound chat id, or 0.
func (s *Session) OpenChatID() int64 { return s.pager.ChatID() }

// LoadMore fetches one older page of the open conversation.
func (s *Session) LoadMore(ctx context.Context) (int, error) {
	if s.pager.ChatID() == 0 {
		return 0, ErrNoOpenChat
	}
	return s.pager.LoadMore(ctx)
}

// LoadChats asks the backend to announce more chats of the main list. It
// reports done once the backend has nothing left to announce.
func (s *Session) LoadChats(ctx context.Context, limit int) (done bool, err error) {
	if limit <= 0 {
		limit = s.cfg.Sync.LoadChatsLimit
	}
	_, err = bridge.Do[*td.Ok](ctx, s.bridge, &td.LoadChats{Limit: int32(limit)})
	if bridge.IsBackendCode(err, bridge.CodeNotFound) {
		return true, nil
	}
	return false, err
}

// SendMessage sends a text message. The chat list and conversation pick it
// up from the resulting update.
func (s *Session) SendMessage(ctx context.Context, chatID int64, text string) (*td.Message, error) {
	return bridge.Do[*td.Message](ctx, s.bridge, &td.SendMessage{ChatID: chatID, Text: text})
}

// MarkRead marks messages of the open chat as read.
func (s *Session) MarkRead(ctx context.Context, messageIDs ...int64) error {
	chatID := s.pager.ChatID()
	if chatID == 0 {
		return ErrNoOpenChat
	}
	_, err := bridge.Do[*td.Ok](ctx, s.bridge, &td.ViewMessages{ChatID: chatID, MessageIDs: messageIDs, ForceRead: true})
	return err
}

// DeleteMessage deletes a message of the open chat for everyone.
func (s *Session) DeleteMessage(ctx context.Context, messageID int64) error {
	chatID := s.pager.ChatID()
	if chatID == 0 {
		return ErrNoOpenChat
	}
	_, err := bridge.Do[*td.Ok](ctx, s.bridge, &td.DeleteMessages{ChatID: chatID, MessageIDs: []int64{messageID}, Revoke: true})
	return err
}

// CreatePrivateChat opens (or creates) the private chat with userID.
func (s *Session) CreatePrivateChat(ctx context.Context, userID int64) (*td.Chat, error) {
	return bridge.Do[*td.Chat](ctx, s.bridge, &td.CreatePrivateChat{UserID: userID})
}

// SearchPublicChat resolves a public username to a chat summary.
func (s *Session) SearchPublicChat(ctx context.Context, username string) (chatlist.Summary, error) {
	chat, err := bridge.Do[*td.Chat](ctx, s.bridge, &td.SearchPublicChat{Username: username})
	if err != nil {
		return chatlist.Summary{}, err
	}
	summary, _, err := s.chats.Describe(ctx, chat.ID)
	if err != nil {
		return chatlist.Summary{}, err
	}
	s.search.Store([]chatlist.Summary{summary})
	return summary, nil
}

// SearchPublicChats searches public chats by query and replaces the search
// projection with the results in backend order. Chats whose detail cannot
// be fetched are left out.
func (s *Session) SearchPublicChats(ctx context.Context, query string) ([]chatlist.Summary, error) {
	found, err := bridge.Do[*td.Chats](ctx, s.bridge, &td.SearchPublicChats{Query: query})
	if err != nil {
		return nil, err
	}
	results := make([]*chatlist.Summary, len(found.ChatIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupLimit)
	for i, id := range found.ChatIDs {
		g.Go(func() error {
			summary, _, err := s.chats.Describe(gctx, id)
			if err != nil {
				s.logger.Debug("search result dropped", zap.Int64("chat_id", id), zap.Error(err))
				return nil
			}
			results[i] = &summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]chatlist.Summary, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	s.search.Store(out)
	return out, nil
}

// JoinChat joins a public chat and adds it to the chat list.
func (s *Session) JoinChat(ctx context.Context, chatID int64) error {
	if _, err := bridge.Do[*td.Ok](ctx, s.bridge, &td.JoinChat{ChatID: chatID}); err != nil {
		return err
	}
	s.chats.AddChat(ctx, chatID)
	return nil
}

// RefreshContacts reloads the contacts projection.
func (s *Session) RefreshContacts(ctx context.Context) ([]Contact, error) {
	users, err := bridge.Do[*td.Users](ctx, s.bridge, &td.GetContacts{})
	if err != nil {
		return nil, err
	}
	found := make([]*Contact, len(users.UserIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupLimit)
	for i, id := range users.UserIDs {
		g.Go(func() error {
			u, err := bridge.Do[*td.User](gctx, s.bridge, &td.GetUser{UserID: id})
			if err != nil {
				s.logger.Debug("contact dropped", zap.Int64("user_id", id), zap.Error(err))
				return nil
			}
			found[i] = &Contact{ID: u.ID, Name: s.displayName(u), Username: u.Username, IsBot: u.Type == td.UserTypeBot}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]Contact, 0, len(found))
	for _, c := range found {
		if c != nil {
			out = append(out, *c)
		}
	}
	s.contacts.Store(out)
	return out, nil
}

// Me returns the signed-in user, fetched once.
func (s *Session) Me(ctx context.Context) (*td.User, error) {
	s.meMu.Lock()
	defer s.meMu.Unlock()
	if s.me != nil {
		return s.me, nil
	}
	me, err := bridge.Do[*td.User](ctx, s.bridge, &td.GetMe{})
	if err != nil {
		return nil, err
	}
	s.me = me
	return me, nil
}

// UserName returns a user's display name, or the unknown-user label.
func (s *Session) UserName(ctx context.Context, userID int64) string {
	u, err := bridge.Do[*td.User](ctx, s.bridge, &td.GetUser{UserID: userID})
	if err != nil {
		return s.labels.Get(labels.UnknownUser)
	}
	return s.displayName(u)
}

func (s *Session) displayName(u *td.User) string {
	if name := u.FullName(); name != "" {
		return name
	}
	return s.labels.Get(labels.UnknownUser)
}

// Message fetches a single message.
func (s *Session) Message(ctx context.Context, chatID, messageID int64) (*td.Message, error) {
	return bridge.Do[*td.Message](ctx, s.bridge, &td.GetMessage{ChatID: chatID, MessageID: messageID})
}

// DownloadFile fetches a file, reporting progress until done is called.
func (s *Session) DownloadFile(file *td.File, progress download.ProgressFunc, done download.DoneFunc) {
	s.downloads.DownloadFile(file, progress, done)
}

// DownloadPhoto fetches a photo without progress reporting.
func (s *Session) DownloadPhoto(file *td.File, done download.DoneFunc) {
	s.downloads.DownloadPhoto(file, done)
}

// LogOut signs the account out. The session must still be closed.
func (s *Session) LogOut(ctx context.Context) error {
	_, err := bridge.Do[*td.Ok](ctx, s.bridge, &td.LogOut{})
	return err
}

// Close releases the backend and stops all background work. It is safe to
// call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		_, err := bridge.Do[*td.Ok](ctx, s.bridge, &td.Close{})
		if err != nil {
			s.logger.Warn("backend close failed", zap.Error(err))
			s.closeErr = err
		}
		s.shutdown()
		s.logger.Info("session closed", zap.String("session", s.name))
	})
	return s.closeErr
}

func (s *Session) shutdown() {
	s.cancel()
	s.pager.Unbind()
	s.dispatcher.Stop()
	s.pager.Wait()
}
