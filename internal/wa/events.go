package wa

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// EventHandler applies whatsmeow events to the store and reports what
// changed as backend updates. Events are handled one at a time.
type EventHandler struct {
	db        *store.DB
	messenger Messenger
	push      func(td.Update)
	logger    *zap.Logger

	mu   sync.Mutex
	conn td.ConnectionState
}

// NewEventHandler creates a new event handler.
func NewEventHandler(db *store.DB, messenger Messenger, push func(td.Update), logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{
		db:        db,
		messenger: messenger,
		push:      push,
		logger:    logger,
		conn:      td.ConnectionStateWaitingForNetwork,
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		h.setConnection(td.ConnectionStateUpdating)
	case *events.OfflineSyncCompleted:
		h.logger.Info("offline sync completed", zap.Int("count", evt.Count))
		h.setConnection(td.ConnectionStateReady)
	case *events.KeepAliveRestored:
		h.setConnection(td.ConnectionStateReady)
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		h.setConnection(td.ConnectionStateConnecting)
	case *events.KeepAliveTimeout:
		h.logger.Warn("WhatsApp keepalive timeout", zap.Int("error_count", evt.ErrorCount))
		h.setConnection(td.ConnectionStateConnecting)
	case *events.ConnectFailure:
		h.logger.Warn("WhatsApp connect failure", zap.String("reason", evt.Reason.String()))
		h.setConnection(td.ConnectionStateWaitingForNetwork)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		h.push(&td.UpdateAuthorizationState{State: td.AuthorizationStateClosed})
	case *events.StreamReplaced:
		h.logger.Warn("WhatsApp session replaced by another client")
		h.push(&td.UpdateAuthorizationState{State: td.AuthorizationStateClosed})
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.PushName:
		h.handlePushName(evt.JID, evt.NewPushName)
	case *events.Contact:
		h.handleContact(evt)
	case *events.JoinedGroup:
		h.handleJoinedGroup(evt)
	case *events.GroupInfo:
		if evt.Name != nil {
			h.renameGroup(evt.JID, evt.Name.Name)
		}
	case *events.Pin:
		h.updateChat(evt.JID, "pin", func(id int64) error { return h.db.SetPinned(id, evt.Action.GetPinned()) })
	case *events.Archive:
		h.updateChat(evt.JID, "archive", func(id int64) error { return h.db.SetArchived(id, evt.Action.GetArchived()) })
	case *events.MarkChatAsRead:
		h.handleMarkChatAsRead(evt)
	}
}

// Connection returns the last connection state reported.
func (h *EventHandler) Connection() td.ConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// SetConnection reports a connection state that did not come from an event,
// such as the start of a connection attempt.
func (h *EventHandler) SetConnection(s td.ConnectionState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setConnection(s)
}

// OwnID returns the peer id of the logged-in account, or 0.
func (h *EventHandler) OwnID() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ownID()
}

// RemoveMessages deletes messages of a chat and announces the deletion.
func (h *EventHandler) RemoveMessages(chatID int64, ids []int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeMessages(chatID, ids)
}

// MarkInboxRead records incoming messages up to lastRead as read and
// announces the new read marker.
func (h *EventHandler) MarkInboxRead(chatID, lastRead int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.markInboxRead(chatID, lastRead)
}

func (h *EventHandler) setConnection(s td.ConnectionState) {
	if h.conn == s {
		return
	}
	h.conn = s
	h.push(&td.UpdateConnectionState{State: s})
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if evt.Info.Chat.Server == types.BroadcastServer {
		return
	}
	// The first live message after connecting means catch-up is over.
	if h.conn == td.ConnectionStateUpdating {
		h.setConnection(td.ConnectionStateReady)
	}

	switch action, target, edited := classifyProtocol(evt.Message); action {
	case actionEdit:
		h.applyEdit(evt.Info.Chat, target, ParseHistoryMessage(edited, evt.Info), evt.Info.Timestamp)
		return
	case actionRevoke:
		h.applyRevoke(evt.Info.Chat, target)
		return
	case actionNone:
	}
	if isIgnorable(evt.Message) {
		return
	}

	if _, err := h.ingest(ParseLiveMessage(evt), true); err != nil {
		h.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", evt.Info.ID))
	}
}

// ingest stores p and, when live, announces it. It returns the stored
// message, or nil when p was already known.
func (h *EventHandler) ingest(p *ParsedMessage, live bool) (*store.Message, error) {
	chatJID := h.resolve(p.ChatJID)
	title := ""
	if chatJID.Server == types.DefaultUserServer && !p.FromMe {
		title = p.PushName
	}
	chat, created, err := h.ensureChat(chatJID, title)
	if err != nil {
		return nil, err
	}

	senderID, err := h.senderID(p, chatJID)
	if err != nil {
		return nil, err
	}

	if p.Media != nil {
		if err := h.db.InsertFile(p.Media); err != nil {
			return nil, err
		}
	}
	m := p.ToStoreMessage(chat.ID, senderID)
	inserted, err := h.db.InsertMessage(m)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	if err := h.db.TouchChat(chat.ID, m.ID, m.Date); err != nil {
		return nil, err
	}
	if !live {
		return m, nil
	}

	var unread int
	if p.FromMe {
		unread, err = h.db.MarkChatRead(chat.ID, m.ID)
	} else {
		err = h.db.IncrementUnread(chat.ID)
	}
	if err != nil {
		return nil, err
	}

	if created {
		h.announce(chat.ID)
	}
	h.push(&td.UpdateNewMessage{Message: toMessage(m, p.Media)})
	if p.FromMe {
		h.push(&td.UpdateChatReadInbox{ChatID: chat.ID, LastReadInboxMessageID: m.ID, UnreadCount: int32(unread)})
	}
	return m, nil
}

// senderID returns the peer id of the message author, recording incoming
// senders as users.
func (h *EventHandler) senderID(p *ParsedMessage, chatJID types.JID) (int64, error) {
	if p.FromMe {
		return h.ownID()
	}
	sender := chatJID
	if !p.SenderJID.IsEmpty() {
		sender = h.resolve(p.SenderJID)
	}
	id, err := h.db.PeerID(sender.String())
	if err != nil {
		return 0, err
	}
	if sender.Server == types.DefaultUserServer {
		if err := h.db.UpsertUser(&store.User{ID: id, Username: sender.User, PushName: p.PushName}); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (h *EventHandler) ownID() (int64, error) {
	own := h.messenger.OwnJID()
	if own.IsEmpty() {
		return 0, nil
	}
	id, err := h.db.PeerID(own.String())
	if err != nil {
		return 0, err
	}
	return id, h.db.UpsertUser(&store.User{ID: id, Username: own.User, PushName: h.messenger.PushName()})
}

// ensureChat returns the stored chat for jid, creating it when missing.
// title fills in a chat that has none yet.
func (h *EventHandler) ensureChat(jid types.JID, title string) (*store.Chat, bool, error) {
	id, err := h.db.PeerID(jid.String())
	if err != nil {
		return nil, false, err
	}
	chat, err := h.db.GetChat(id)
	if err != nil {
		return nil, false, err
	}
	if chat != nil {
		if title != "" && chat.Title == placeholderTitle(jid) {
			chat.Title = title
			err = h.db.RenameChat(id, title)
		}
		return chat, false, err
	}

	chat = &store.Chat{ID: id, Title: title}
	switch jid.Server {
	case types.GroupServer:
		chat.Kind = store.KindBasicGroup
	case types.NewsletterServer:
		chat.Kind = store.KindSupergroup
		chat.IsChannel = true
	default:
		chat.Kind = store.KindPrivate
		chat.UserID = id
		if err := h.db.UpsertUser(&store.User{ID: id, Username: jid.User}); err != nil {
			return nil, false, err
		}
	}
	if chat.Title == "" {
		chat.Title = placeholderTitle(jid)
	}
	if err := h.db.UpsertChat(chat); err != nil {
		return nil, false, err
	}
	return chat, true, nil
}

// placeholderTitle names a chat whose real name is not known yet.
func placeholderTitle(jid types.JID) string {
	if jid.Server == types.DefaultUserServer {
		return "+" + jid.User
	}
	return jid.User
}

// resolve maps a LID to its phone number JID, folding any history already
// stored under the LID into the phone number's peer.
func (h *EventHandler) resolve(jid types.JID) types.JID {
	jid = jid.ToNonAD()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pn := h.messenger.ResolveLID(ctx, jid)
	if pn == jid {
		return jid
	}
	pn = pn.ToNonAD()
	if _, err := h.db.AliasPeer(jid.String(), pn.String()); err != nil {
		h.logger.Warn("failed to alias peer", zap.Error(err), zap.Stringer("lid", jid), zap.Stringer("pn", pn))
	}
	return pn
}

// lookupChat returns the id of an existing chat, or 0.
func (h *EventHandler) lookupChat(jid types.JID) int64 {
	id, err := h.db.PeerID(h.resolve(jid).String())
	if err != nil {
		h.logger.Error("failed to look up peer", zap.Error(err), zap.Stringer("jid", jid))
		return 0
	}
	chat, err := h.db.GetChat(id)
	if err != nil || chat == nil {
		return 0
	}
	return id
}

// announce pushes the chat as new and stops LoadChats from announcing it
// again.
func (h *EventHandler) announce(chatID int64) {
	chat, err := h.db.GetChat(chatID)
	if err != nil || chat == nil {
		h.logger.Error("failed to read chat for announcement", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	var last *td.Message
	if chat.LastMessageID != 0 {
		if m, err := h.db.GetMessage(chatID, chat.LastMessageID); err == nil && m != nil {
			last = toMessage(m, nil)
		}
	}
	if err := h.db.MarkAnnounced(chatID); err != nil {
		h.logger.Error("failed to mark chat announced", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	h.push(&td.UpdateNewChat{Chat: toChat(chat, last)})
}

func (h *EventHandler) applyEdit(chat types.JID, target string, edited *ParsedMessage, at time.Time) {
	chatID := h.lookupChat(chat)
	if chatID == 0 {
		return
	}
	m, err := h.db.MessageByRemoteID(chatID, target)
	if err != nil || m == nil {
		h.logger.Debug("edit for unknown message", zap.String("msg_id", target), zap.Error(err))
		return
	}
	if err := h.db.EditMessage(chatID, m.ID, edited.Text, at.Unix()); err != nil {
		h.logger.Error("failed to edit message", zap.Error(err), zap.String("msg_id", target))
		return
	}
	m.Text = edited.Text
	m.EditDate = at.Unix()

	var file *store.File
	if m.FileID != 0 {
		file, _ = h.db.GetFile(m.FileID)
	}
	h.push(&td.UpdateMessageContent{ChatID: chatID, MessageID: m.ID, NewContent: toContent(m, file)})
	h.push(&td.UpdateMessageEdited{ChatID: chatID, MessageID: m.ID, EditDate: m.EditDate})
}

func (h *EventHandler) applyRevoke(chat types.JID, target string) {
	chatID := h.lookupChat(chat)
	if chatID == 0 {
		return
	}
	m, err := h.db.MessageByRemoteID(chatID, target)
	if err != nil || m == nil {
		h.logger.Debug("revoke for unknown message", zap.String("msg_id", target), zap.Error(err))
		return
	}
	if err := h.removeMessages(chatID, []int64{m.ID}); err != nil {
		h.logger.Error("failed to delete revoked message", zap.Error(err), zap.String("msg_id", target))
	}
}

// removeMessages deletes ids from the store and announces the deletion.
func (h *EventHandler) removeMessages(chatID int64, ids []int64) error {
	if _, err := h.db.DeleteMessages(chatID, ids); err != nil {
		return err
	}
	if _, err := h.db.RefreshLastMessage(chatID); err != nil {
		return err
	}
	h.push(&td.UpdateDeleteMessages{ChatID: chatID, MessageIDs: ids, IsPermanent: true})
	return nil
}

func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	if evt.Type != types.ReceiptTypeRead && evt.Type != types.ReceiptTypeReadSelf {
		return
	}
	chatID := h.lookupChat(evt.Chat)
	if chatID == 0 {
		return
	}

	var last int64
	for _, id := range evt.MessageIDs {
		m, err := h.db.MessageByRemoteID(chatID, id)
		if err == nil && m != nil && m.ID > last {
			last = m.ID
		}
	}
	if last == 0 {
		return
	}

	if evt.Type == types.ReceiptTypeReadSelf {
		h.markInboxRead(chatID, last)
		return
	}
	if err := h.db.SetReadOutbox(chatID, last); err != nil {
		h.logger.Error("failed to record outbox read", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	h.push(&td.UpdateChatReadOutbox{ChatID: chatID, LastReadOutboxMessageID: last})
}

// markInboxRead records incoming messages up to lastRead as read.
func (h *EventHandler) markInboxRead(chatID, lastRead int64) {
	unread, err := h.db.MarkChatRead(chatID, lastRead)
	if err != nil {
		h.logger.Error("failed to mark chat read", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	h.push(&td.UpdateChatReadInbox{ChatID: chatID, LastReadInboxMessageID: lastRead, UnreadCount: int32(unread)})
}

func (h *EventHandler) handleMarkChatAsRead(evt *events.MarkChatAsRead) {
	chatID := h.lookupChat(evt.JID)
	if chatID == 0 {
		return
	}
	if !evt.Action.GetRead() {
		if err := h.db.SetMarkedUnread(chatID, true); err != nil {
			h.logger.Error("failed to mark chat unread", zap.Error(err), zap.Int64("chat_id", chatID))
		}
		return
	}
	last, err := h.db.LatestMessageID(chatID)
	if err != nil {
		h.logger.Error("failed to read latest message", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	h.markInboxRead(chatID, last)
}

func (h *EventHandler) updateChat(jid types.JID, what string, fn func(id int64) error) {
	chatID := h.lookupChat(jid)
	if chatID == 0 {
		return
	}
	if err := fn(chatID); err != nil {
		h.logger.Error("failed to update chat", zap.Error(err), zap.String("update", what), zap.Int64("chat_id", chatID))
	}
}

func (h *EventHandler) handlePushName(jid types.JID, name string) {
	if name == "" {
		return
	}
	jid = h.resolve(jid)
	id, err := h.db.PeerID(jid.String())
	if err != nil {
		h.logger.Error("failed to look up peer", zap.Error(err), zap.Stringer("jid", jid))
		return
	}
	if err := h.db.UpsertUser(&store.User{ID: id, Username: jid.User, PushName: name}); err != nil {
		h.logger.Error("failed to store push name", zap.Error(err), zap.Stringer("jid", jid))
		return
	}
	if chat, err := h.db.GetChat(id); err == nil && chat != nil && chat.Title == placeholderTitle(jid) {
		_ = h.db.RenameChat(id, name)
	}
}

func (h *EventHandler) handleContact(evt *events.Contact) {
	jid := h.resolve(evt.JID)
	id, err := h.db.PeerID(jid.String())
	if err != nil {
		h.logger.Error("failed to look up peer", zap.Error(err), zap.Stringer("jid", jid))
		return
	}
	name := evt.Action.GetFullName()
	if name == "" {
		name = evt.Action.GetFirstName()
	}
	if err := h.db.UpsertUser(&store.User{ID: id, FirstName: name, Username: jid.User, IsContact: true}); err != nil {
		h.logger.Error("failed to store contact", zap.Error(err), zap.Stringer("jid", jid))
		return
	}
	if chat, err := h.db.GetChat(id); err == nil && chat != nil && name != "" {
		_ = h.db.RenameChat(id, name)
	}
}

func (h *EventHandler) handleJoinedGroup(evt *events.JoinedGroup) {
	chat, created, err := h.ensureChat(evt.JID, evt.Name)
	if err != nil {
		h.logger.Error("failed to store joined group", zap.Error(err), zap.Stringer("jid", evt.JID))
		return
	}
	if chat.Title != evt.Name && evt.Name != "" {
		_ = h.db.RenameChat(chat.ID, evt.Name)
	}
	chat.Position = time.Now().Unix()
	if err := h.db.UpsertChat(chat); err != nil {
		h.logger.Error("failed to position joined group", zap.Error(err), zap.Stringer("jid", evt.JID))
		return
	}
	if created {
		h.announce(chat.ID)
	}
}

func (h *EventHandler) renameGroup(jid types.JID, name string) {
	if name == "" {
		return
	}
	h.updateChat(jid, "rename", func(id int64) error { return h.db.RenameChat(id, name) })
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	for _, pn := range data.GetPushnames() {
		jid, err := types.ParseJID(pn.GetID())
		if err != nil {
			continue
		}
		h.handlePushName(jid, pn.GetPushname())
	}

	var fresh []*store.Chat
	msgCount := 0
	for _, conv := range data.GetConversations() {
		jid, err := types.ParseJID(conv.GetID())
		if err != nil || jid.Server == types.BroadcastServer {
			continue
		}
		jid = h.resolve(jid)
		chat, created, err := h.ensureChat(jid, conv.GetName())
		if err != nil {
			h.logger.Error("failed to store history chat", zap.Error(err), zap.Stringer("jid", jid))
			continue
		}
		chat.Position = int64(conv.GetConversationTimestamp())
		chat.IsPinned = conv.GetPinned() > 0
		chat.IsArchived = conv.GetArchived()
		if err := h.db.UpsertChat(chat); err != nil {
			h.logger.Error("failed to position history chat", zap.Error(err), zap.Stringer("jid", jid))
			continue
		}

		for _, hm := range conv.GetMessages() {
			web := hm.GetMessage()
			msg := web.GetMessage()
			if isIgnorable(msg) {
				continue
			}
			key := web.GetKey()
			info := types.MessageInfo{
				MessageSource: types.MessageSource{
					Chat:     jid,
					IsFromMe: key.GetFromMe(),
					IsGroup:  jid.Server == types.GroupServer,
				},
				ID:        key.GetID(),
				PushName:  web.GetPushName(),
				Timestamp: time.Unix(int64(web.GetMessageTimestamp()), 0),
			}
			participant := key.GetParticipant()
			if participant == "" {
				participant = web.GetParticipant()
			}
			if participant != "" {
				if sender, err := types.ParseJID(participant); err == nil {
					info.Sender = sender
				}
			}
			m, err := h.ingest(ParseHistoryMessage(msg, info), false)
			if err != nil {
				h.logger.Error("failed to ingest history message", zap.Error(err), zap.String("msg_id", info.ID))
				continue
			}
			if m != nil {
				msgCount++
			}
		}

		if err := h.db.SetUnreadCount(chat.ID, int(conv.GetUnreadCount())); err != nil {
			h.logger.Error("failed to set unread count", zap.Error(err), zap.Int64("chat_id", chat.ID))
		}
		if conv.GetMarkedAsUnread() {
			_ = h.db.SetMarkedUnread(chat.ID, true)
		}
		if created {
			fresh = append(fresh, chat)
		}
	}

	// Oldest first, so the newest ends up on top of a front-inserted list.
	slices.SortFunc(fresh, func(a, b *store.Chat) int {
		return cmp.Compare(a.Position, b.Position)
	})
	for _, c := range fresh {
		if c.Position > 0 {
			h.announce(c.ID)
		}
	}
	h.logger.Info("history batch ingested",
		zap.Stringer("type", data.GetSyncType()),
		zap.Int("chats", len(data.GetConversations())),
		zap.Int("messages", msgCount),
	)
}
