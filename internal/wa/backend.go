package wa

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/telesync/internal/outbox"
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
)

// Backend error codes.
const (
	codeBadRequest   = 400
	codeUnauthorized = 401
	codeNotFound     = 404
	codeInternal     = 500
)

// searchLimit caps the chats returned by a public chat search.
const searchLimit = 20

// OpenMessengerFunc opens the WhatsApp client whose device store lives at
// path.
type OpenMessengerFunc func(ctx context.Context, path string, logger *zap.Logger) (Messenger, error)

// OpenAdapter is the OpenMessengerFunc for a real WhatsApp connection.
func OpenAdapter(ctx context.Context, path string, logger *zap.Logger) (Messenger, error) {
	return NewAdapter(ctx, path, logger)
}

// Backend serves the td request protocol from a local message database
// kept in sync with WhatsApp. Every request is answered on its own
// goroutine; updates are delivered one at a time, in order.
type Backend struct {
	onUpdate td.UpdateHandler
	open     OpenMessengerFunc
	logger   *zap.Logger

	pushMu sync.Mutex

	mu        sync.Mutex
	db        *store.DB
	messenger Messenger
	events    *EventHandler
	sender    *outbox.Sender
	filesDir  string
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
}

var _ td.Client = (*Backend)(nil)

// New creates a backend that pushes updates to onUpdate. Nothing is
// opened until SetTdlibParameters.
func New(onUpdate td.UpdateHandler, open OpenMessengerFunc, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if open == nil {
		open = OpenAdapter
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Backend{
		onUpdate: onUpdate,
		open:     open,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// NewClientFunc returns a td.NewClientFunc building Backends.
func NewClientFunc(open OpenMessengerFunc, logger *zap.Logger) td.NewClientFunc {
	return func(onUpdate td.UpdateHandler) (td.Client, error) {
		return New(onUpdate, open, logger), nil
	}
}

// Send implements td.Client.
func (b *Backend) Send(req td.Request, handler td.ResultHandler) {
	go b.serve(req, handler)
}

func (b *Backend) push(u td.Update) {
	b.pushMu.Lock()
	defer b.pushMu.Unlock()
	b.onUpdate(u)
}

func fail(code int, format string, args ...any) *td.Error {
	return &td.Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func internalError(err error) *td.Error {
	return &td.Error{Code: codeInternal, Message: err.Error()}
}

// session returns the opened store and messenger, or the error to reply
// with.
func (b *Backend) session() (*store.DB, Messenger, *td.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed:
		return nil, nil, fail(codeBadRequest, "backend is closed")
	case b.db == nil:
		return nil, nil, fail(codeBadRequest, "parameters not set")
	}
	return b.db, b.messenger, nil
}

func (b *Backend) serve(req td.Request, reply td.ResultHandler) {
	if p, ok := req.(*td.SetTdlibParameters); ok {
		b.setParameters(p, reply)
		return
	}
	if _, ok := req.(*td.Close); ok {
		b.close()
		reply(&td.Ok{})
		return
	}

	db, messenger, terr := b.session()
	if terr != nil {
		reply(terr)
		return
	}
	ctx := b.ctx

	switch r := req.(type) {
	case *td.GetChat:
		reply(b.getChat(db, r.ChatID))
	case *td.GetUser:
		reply(b.getUser(db, r.UserID))
	case *td.GetMe:
		reply(b.getMe(db, messenger))
	case *td.GetMessage:
		reply(b.getMessage(db, r.ChatID, r.MessageID))
	case *td.GetChatHistory:
		reply(b.getChatHistory(db, r))
	case *td.SearchPublicChat:
		reply(b.searchPublicChat(db, r.Username))
	case *td.SearchPublicChats:
		reply(b.searchPublicChats(db, r.Query))
	case *td.JoinChat:
		reply(b.joinChat(db, r.ChatID))
	case *td.GetContacts:
		reply(b.getContacts(ctx, db, messenger))
	case *td.GetChatFolder:
		reply(fail(codeNotFound, "chat folder %d not found", r.ChatFolderID))
	case *td.CreatePrivateChat:
		reply(b.createPrivateChat(db, r.UserID))
	case *td.SendMessage:
		reply(b.sendMessage(db, r))
	case *td.LoadChats:
		reply(b.loadChats(db, r.Limit))
	case *td.DeleteMessages:
		reply(b.deleteMessages(ctx, db, messenger, r))
	case *td.ViewMessages:
		reply(b.viewMessages(ctx, db, messenger, r))
	case *td.DownloadFile:
		b.downloadFile(ctx, db, messenger, r, reply)
	case *td.LogOut:
		reply(b.logOut(ctx, messenger))
	case *td.SetTdlibParameters, *td.Close:
		// handled above
	}
}

func (b *Backend) setParameters(p *td.SetTdlibParameters, reply td.ResultHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		reply(fail(codeBadRequest, "backend is closed"))
		return
	}
	if b.db != nil {
		reply(fail(codeBadRequest, "parameters already set"))
		return
	}
	if p.DatabaseDirectory == "" || p.FilesDirectory == "" {
		reply(fail(codeBadRequest, "database and files directories are required"))
		return
	}
	for _, dir := range []string{p.DatabaseDirectory, p.FilesDirectory} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			reply(internalError(err))
			return
		}
	}

	db, err := store.Open(filepath.Join(p.DatabaseDirectory, store.FileName))
	if err != nil {
		reply(internalError(err))
		return
	}
	mig, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		reply(internalError(err))
		return
	}
	b.logger.Info("store ready", zap.Uint("schema_version", mig.Version), zap.Bool("migrated", mig.Changed))
	if err := checkKey(db, p.DatabaseEncryptionKey); err != nil {
		_ = db.Close()
		if errors.Is(err, errWrongKey) {
			reply(fail(codeUnauthorized, "%v", err))
			return
		}
		reply(internalError(err))
		return
	}
	if err := db.ResetAnnounced(); err != nil {
		_ = db.Close()
		reply(internalError(err))
		return
	}

	messenger, err := b.open(b.ctx, filepath.Join(p.DatabaseDirectory, DeviceFileName), b.logger.Named("whatsmeow"))
	if err != nil {
		_ = db.Close()
		reply(internalError(err))
		return
	}

	b.db = db
	b.messenger = messenger
	b.filesDir = p.FilesDirectory
	b.events = NewEventHandler(db, messenger, b.push, b.logger.Named("events"))
	messenger.OnEvent(b.events.Handle)
	b.sender = outbox.NewSender(db, &transport{db: db, messenger: messenger}, b.delivered, b.logger.Named("outbox"))
	b.sender.Start(b.ctx)

	reply(&td.Ok{})

	if !messenger.IsLoggedIn() {
		b.logger.Info("no paired device, login required")
		b.push(&td.UpdateAuthorizationState{State: td.AuthorizationStateWaitPhoneNumber})
		return
	}
	b.push(&td.UpdateAuthorizationState{State: td.AuthorizationStateReady})
	b.events.SetConnection(td.ConnectionStateConnecting)
	go func() {
		if err := messenger.Connect(); err != nil {
			b.logger.Warn("connect failed", zap.Error(err))
			b.events.SetConnection(td.ConnectionStateWaitingForNetwork)
		}
	}()
}

func (b *Backend) delivered(r outbox.Result) {
	if r.Err != nil {
		b.logger.Warn("message delivery failed",
			zap.Int64("chat_id", r.Entry.ChatID),
			zap.Int64("message_id", r.Entry.MessageID),
			zap.Error(r.Err),
		)
	}
}

// close releases everything opened by SetTdlibParameters and reports the
// backend closed. Later calls are no-ops.
func (b *Backend) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	db, messenger, sender := b.db, b.messenger, b.sender
	b.mu.Unlock()

	b.push(&td.UpdateAuthorizationState{State: td.AuthorizationStateClosing})
	b.cancel()
	if sender != nil {
		sender.Stop()
	}
	if messenger != nil {
		messenger.Disconnect()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			b.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	b.push(&td.UpdateAuthorizationState{State: td.AuthorizationStateClosed})
}

func (b *Backend) logOut(ctx context.Context, messenger Messenger) td.Object {
	b.push(&td.UpdateAuthorizationState{State: td.AuthorizationStateLoggingOut})
	if messenger.IsLoggedIn() {
		if err := messenger.Logout(ctx); err != nil {
			b.logger.Warn("logout failed", zap.Error(err))
		}
	}
	b.close()
	return &td.Ok{}
}

func (b *Backend) chatObject(db *store.DB, c *store.Chat) (*td.Chat, error) {
	var last *td.Message
	if c.LastMessageID != 0 {
		m, err := b.message(db, c.ID, c.LastMessageID)
		if err != nil {
			return nil, err
		}
		last = m
	}
	return toChat(c, last), nil
}

// message loads a message with its file, or nil when unknown.
func (b *Backend) message(db *store.DB, chatID, id int64) (*td.Message, error) {
	m, err := db.GetMessage(chatID, id)
	if err != nil || m == nil {
		return nil, err
	}
	var f *store.File
	if m.FileID != 0 {
		if f, err = db.GetFile(m.FileID); err != nil {
			return nil, err
		}
	}
	return toMessage(m, f), nil
}

func (b *Backend) getChat(db *store.DB, id int64) td.Object {
	c, err := db.GetChat(id)
	if err != nil {
		return internalError(err)
	}
	if c == nil {
		return fail(codeNotFound, "chat %d not found", id)
	}
	chat, err := b.chatObject(db, c)
	if err != nil {
		return internalError(err)
	}
	return chat
}

func (b *Backend) getUser(db *store.DB, id int64) td.Object {
	u, err := db.GetUser(id)
	if err != nil {
		return internalError(err)
	}
	if u == nil {
		return fail(codeNotFound, "user %d not found", id)
	}
	return toUser(u)
}

func (b *Backend) getMe(db *store.DB, messenger Messenger) td.Object {
	if !messenger.IsLoggedIn() {
		return fail(codeUnauthorized, "not logged in")
	}
	id, err := b.events.OwnID()
	if err != nil {
		return internalError(err)
	}
	return b.getUser(db, id)
}

func (b *Backend) getMessage(db *store.DB, chatID, id int64) td.Object {
	m, err := b.message(db, chatID, id)
	if err != nil {
		return internalError(err)
	}
	if m == nil {
		return fail(codeNotFound, "message %d not found", id)
	}
	return m
}

func (b *Backend) getChatHistory(db *store.DB, r *td.GetChatHistory) td.Object {
	if r.Limit <= 0 {
		return fail(codeBadRequest, "limit must be positive")
	}
	offset := max(int(r.Offset), 0)
	rows, err := db.ListMessages(r.ChatID, r.FromMessageID, offset, int(r.Limit))
	if err != nil {
		return internalError(err)
	}
	total, err := db.CountMessages(r.ChatID)
	if err != nil {
		return internalError(err)
	}
	out := &td.Messages{TotalCount: int32(total), Messages: make([]*td.Message, 0, len(rows))}
	for i := range rows {
		var f *store.File
		if rows[i].FileID != 0 {
			if f, err = db.GetFile(rows[i].FileID); err != nil {
				return internalError(err)
			}
		}
		out.Messages = append(out.Messages, toMessage(&rows[i], f))
	}
	return out
}

func (b *Backend) searchPublicChat(db *store.DB, username string) td.Object {
	id, err := db.FindByUsername(username)
	if err != nil {
		return internalError(err)
	}
	if id == 0 {
		return fail(codeNotFound, "username %q not found", username)
	}
	return b.getChat(db, id)
}

func (b *Backend) searchPublicChats(db *store.DB, query string) td.Object {
	ids, err := db.SearchChats(query, searchLimit)
	if err != nil {
		return internalError(err)
	}
	return &td.Chats{TotalCount: int32(len(ids)), ChatIDs: ids}
}

// joinChat puts a known chat into the chat list.
func (b *Backend) joinChat(db *store.DB, id int64) td.Object {
	c, err := db.GetChat(id)
	if err != nil {
		return internalError(err)
	}
	if c == nil {
		return fail(codeNotFound, "chat %d not found", id)
	}
	if c.Position == 0 {
		c.Position = time.Now().Unix()
		if err := db.UpsertChat(c); err != nil {
			return internalError(err)
		}
	}
	return &td.Ok{}
}

func (b *Backend) getContacts(ctx context.Context, db *store.DB, messenger Messenger) td.Object {
	if messenger.IsLoggedIn() {
		if err := b.importContacts(ctx, db, messenger); err != nil {
			b.logger.Warn("contact import failed", zap.Error(err))
		}
	}
	ids, err := db.ContactIDs()
	if err != nil {
		return internalError(err)
	}
	return &td.Users{TotalCount: int32(len(ids)), UserIDs: ids}
}

// importContacts copies the device's address book into the users table.
func (b *Backend) importContacts(ctx context.Context, db *store.DB, messenger Messenger) error {
	contacts, err := messenger.Contacts(ctx)
	if err != nil {
		return fmt.Errorf("read contacts: %w", err)
	}
	users := make([]store.User, 0, len(contacts))
	for jid, info := range contacts {
		if jid.Server != types.DefaultUserServer || !info.Found {
			continue
		}
		id, err := db.PeerID(jid.ToNonAD().String())
		if err != nil {
			return err
		}
		first := info.FullName
		if first == "" {
			first = info.FirstName
		}
		users = append(users, store.User{
			ID:        id,
			FirstName: first,
			Username:  jid.User,
			PushName:  info.PushName,
			IsContact: first != "",
		})
	}
	return db.BulkUpsertUsers(users)
}

func (b *Backend) createPrivateChat(db *store.DB, userID int64) td.Object {
	u, err := db.GetUser(userID)
	if err != nil {
		return internalError(err)
	}
	if u == nil {
		return fail(codeNotFound, "user %d not found", userID)
	}
	c, err := db.GetChat(userID)
	if err != nil {
		return internalError(err)
	}
	if c == nil {
		title := toUser(u).FullName()
		if title == "" {
			title = "+" + u.Username
		}
		c = &store.Chat{ID: userID, Title: title, Kind: store.KindPrivate, UserID: userID}
		if err := db.UpsertChat(c); err != nil {
			return internalError(err)
		}
	}
	chat, err := b.chatObject(db, c)
	if err != nil {
		return internalError(err)
	}
	return chat
}

// sendMessage stores the message optimistically and queues it for
// delivery.
func (b *Backend) sendMessage(db *store.DB, r *td.SendMessage) td.Object {
	if r.Text == "" {
		return fail(codeBadRequest, "message text is empty")
	}
	c, err := db.GetChat(r.ChatID)
	if err != nil {
		return internalError(err)
	}
	if c == nil {
		return fail(codeNotFound, "chat %d not found", r.ChatID)
	}
	me, err := b.events.OwnID()
	if err != nil {
		return internalError(err)
	}

	b.mu.Lock()
	messenger, sender := b.messenger, b.sender
	b.mu.Unlock()

	m := &store.Message{
		ChatID:      r.ChatID,
		RemoteID:    messenger.GenerateMessageID(),
		SenderID:    me,
		Date:        time.Now().Unix(),
		IsOutgoing:  true,
		ContentType: ContentText,
		Text:        r.Text,
	}
	if _, err := db.InsertMessage(m); err != nil {
		return internalError(err)
	}
	if err := db.TouchChat(r.ChatID, m.ID, m.Date); err != nil {
		return internalError(err)
	}
	if err := db.QueueOutbox(uuid.NewString(), r.ChatID, m.ID, r.Text); err != nil {
		return internalError(err)
	}
	sender.Notify()

	msg := toMessage(m, nil)
	b.push(&td.UpdateNewMessage{Message: msg})
	return msg
}

func (b *Backend) loadChats(db *store.DB, limit int32) td.Object {
	if limit <= 0 {
		return fail(codeBadRequest, "limit must be positive")
	}
	chats, err := db.NextUnannounced(int(limit))
	if err != nil {
		return internalError(err)
	}
	if len(chats) == 0 {
		return fail(codeNotFound, "all chats have been loaded")
	}
	for i := range chats {
		chat, err := b.chatObject(db, &chats[i])
		if err != nil {
			return internalError(err)
		}
		if err := db.MarkAnnounced(chats[i].ID); err != nil {
			return internalError(err)
		}
		b.push(&td.UpdateNewChat{Chat: chat})
	}
	return &td.Ok{}
}

func (b *Backend) deleteMessages(ctx context.Context, db *store.DB, messenger Messenger, r *td.DeleteMessages) td.Object {
	if len(r.MessageIDs) == 0 {
		return &td.Ok{}
	}
	jid, err := db.PeerJID(r.ChatID)
	if err != nil {
		return internalError(err)
	}
	if jid == "" {
		return fail(codeNotFound, "chat %d not found", r.ChatID)
	}
	chatJID, err := types.ParseJID(jid)
	if err != nil {
		return internalError(err)
	}

	msgs, err := db.GetMessages(r.ChatID, r.MessageIDs)
	if err != nil {
		return internalError(err)
	}
	if r.Revoke {
		for _, m := range msgs {
			if !m.IsOutgoing {
				continue
			}
			if err := messenger.Revoke(ctx, chatJID, m.RemoteID); err != nil {
				return internalError(err)
			}
		}
	}

	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return &td.Ok{}
	}
	if err := b.events.RemoveMessages(r.ChatID, ids); err != nil {
		return internalError(err)
	}
	return &td.Ok{}
}

// viewMessages sends read receipts for the incoming messages among ids and
// moves the chat's read marker.
func (b *Backend) viewMessages(ctx context.Context, db *store.DB, messenger Messenger, r *td.ViewMessages) td.Object {
	jid, err := db.PeerJID(r.ChatID)
	if err != nil {
		return internalError(err)
	}
	if jid == "" {
		return fail(codeNotFound, "chat %d not found", r.ChatID)
	}
	chatJID, err := types.ParseJID(jid)
	if err != nil {
		return internalError(err)
	}
	msgs, err := db.GetMessages(r.ChatID, r.MessageIDs)
	if err != nil {
		return internalError(err)
	}

	var last int64
	bySender := make(map[int64][]types.MessageID)
	for _, m := range msgs {
		last = max(last, m.ID)
		if !m.IsOutgoing {
			bySender[m.SenderID] = append(bySender[m.SenderID], m.RemoteID)
		}
	}
	if last == 0 {
		return &td.Ok{}
	}

	if messenger.IsLoggedIn() {
		for senderID, ids := range bySender {
			sender := types.EmptyJID
			if chatJID.Server == types.GroupServer {
				s, err := db.PeerJID(senderID)
				if err != nil {
					return internalError(err)
				}
				if sender, err = types.ParseJID(s); err != nil {
					b.logger.Debug("receipt sender unknown", zap.Int64("sender_id", senderID))
					continue
				}
			}
			if err := messenger.MarkRead(ctx, chatJID, sender, ids, time.Now()); err != nil {
				b.logger.Warn("read receipt failed", zap.Error(err), zap.Int64("chat_id", r.ChatID))
			}
		}
	}

	b.events.MarkInboxRead(r.ChatID, last)
	return &td.Ok{}
}

// downloadFile answers with a progress File before fetching and a final
// File once the content is on disk.
func (b *Backend) downloadFile(ctx context.Context, db *store.DB, messenger Messenger, r *td.DownloadFile, reply td.ResultHandler) {
	f, err := db.GetFile(int64(r.FileID))
	if err != nil {
		reply(internalError(err))
		return
	}
	if f == nil {
		reply(fail(codeNotFound, "file %d not found", r.FileID))
		return
	}
	if f.Completed {
		reply(toFile(f))
		return
	}
	reply(toFile(f))

	data, err := messenger.Download(ctx, f)
	if err != nil {
		reply(internalError(err))
		return
	}

	b.mu.Lock()
	dir := b.filesDir
	b.mu.Unlock()
	path := filepath.Join(dir, strconv.FormatInt(f.ID, 10)+extension(f.MimeType))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		reply(internalError(err))
		return
	}
	if err := db.MarkFileDownloaded(f.ID, path, int64(len(data))); err != nil {
		reply(internalError(err))
		return
	}
	f.LocalPath, f.DownloadedSize, f.Completed = path, int64(len(data)), true
	if f.Size == 0 {
		f.Size = int64(len(data))
	}
	reply(toFile(f))
}

func extension(mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// transport delivers outbox entries as WhatsApp text messages under the id
// their optimistic copy was stored with.
type transport struct {
	db        *store.DB
	messenger Messenger
}

func (t *transport) Deliver(ctx context.Context, entry store.OutboxEntry) (string, error) {
	jid, err := t.db.PeerJID(entry.ChatID)
	if err != nil {
		return "", err
	}
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("chat %d: %w", entry.ChatID, err)
	}
	m, err := t.db.GetMessage(entry.ChatID, entry.MessageID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", fmt.Errorf("message %d was deleted before delivery", entry.MessageID)
	}
	if _, err := t.messenger.SendText(ctx, to, m.RemoteID, entry.Body); err != nil {
		return "", err
	}
	return m.RemoteID, nil
}
