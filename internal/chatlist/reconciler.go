// Package chatlist keeps the ordered chat summaries eventually consistent
// with the backend by re-fetching canonical detail on every push event.
package chatlist

import (
	"context"

	"github.com/matheus3301/telesync/internal/bridge"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/labels"
	"github.com/matheus3301/telesync/internal/preview"
	"github.com/matheus3301/telesync/internal/projection"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// maxDeleteBatch is the largest removal a delete event may commit to the
// open conversation.
const maxDeleteBatch = 1

// Conversation is the open-chat surface the reconciler drives.
type Conversation interface {
	ChatID() int64
	Prepend(msg *td.Message) bool
	Replace(msg *td.Message) bool
	PatchContent(chatID, messageID int64, content td.MessageContent) bool
	Remove(chatID int64, ids []int64, maxRemoved int) (removed int, committed bool)
	Reload(ctx context.Context, messageID int64) error
}

// Reconciler owns the chat-list projection.
type Reconciler struct {
	caller bridge.Caller
	conv   Conversation
	chats  *projection.Value[[]Summary]
	labels *labels.Labels
	logger *zap.Logger
}

// New creates a reconciler with an empty chat list.
func New(caller bridge.Caller, conv Conversation, b *bus.Bus, l *labels.Labels, logger *zap.Logger) *Reconciler {
	if l == nil {
		l = labels.New("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		caller: caller,
		conv:   conv,
		chats:  projection.New[[]Summary](nil, b, bus.KindChats),
		labels: l,
		logger: logger,
	}
}

// Chats returns the chat-list projection, most recent first.
func (r *Reconciler) Chats() *projection.Value[[]Summary] {
	return r.chats
}

// Describe fetches the canonical chat and builds its summary. For private
// chats the peer is fetched too so bots can be told apart; a failed peer
// fetch only loses that flag.
func (r *Reconciler) Describe(ctx context.Context, chatID int64) (Summary, *td.Chat, error) {
	chat, err := bridge.Do[*td.Chat](ctx, r.caller, &td.GetChat{ChatID: chatID})
	if err != nil {
		return Summary{}, nil, err
	}
	var user *td.User
	if chat.Type.Kind == td.ChatKindPrivate && chat.Type.UserID != 0 {
		user, err = bridge.Do[*td.User](ctx, r.caller, &td.GetUser{UserID: chat.Type.UserID})
		if err != nil {
			r.logger.Debug("peer lookup failed", zap.Int64("chat_id", chatID), zap.Error(err))
			user = nil
		}
	}
	return Summarize(chat, user, r.labels), chat, nil
}

// NewChat handles a chat announcement. The summary starts from the announced
// payload and is overlaid with the canonical chat. A listed chat is always
// replaced and moved to the front; an absent one is inserted only when the
// canonical chat has a position in some chat list.
func (r *Reconciler) NewChat(ctx context.Context, announced *td.Chat) {
	if announced == nil {
		return
	}
	log := r.logger.With(zap.Int64("chat_id", announced.ID))
	initial := Summarize(announced, nil, r.labels)
	summary, chat, err := r.Describe(ctx, announced.ID)
	if err != nil {
		log.Warn("chat detail fetch failed", zap.Error(err))
		return
	}
	if chat.Title == "" && announced.Title != "" {
		summary.Title = initial.Title
	}
	if chat.LastMessage == nil && announced.LastMessage != nil {
		summary.LastMessagePreview = initial.LastMessagePreview
	}

	positioned := chat.HasPositions()
	committed := r.chats.Update(func(cur []Summary) ([]Summary, bool) {
		if !positioned && indexOf(cur, summary.ID) < 0 {
			return nil, false
		}
		return moveToFront(cur, summary), true
	})
	if !committed {
		log.Debug("chat has no position, not listed")
	}
}

// AddChat lists chatID the way an announcement would.
func (r *Reconciler) AddChat(ctx context.Context, chatID int64) {
	r.NewChat(ctx, &td.Chat{ID: chatID})
}

// NewMessage handles an incoming or outgoing message.
func (r *Reconciler) NewMessage(ctx context.Context, msg *td.Message) {
	if msg == nil {
		return
	}
	text := preview.Message(msg, r.labels)
	if r.conv.ChatID() == msg.ChatID {
		r.conv.Prepend(msg)
	}

	summary, _, err := r.Describe(ctx, msg.ChatID)
	if err != nil {
		r.logger.Warn("chat detail fetch failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		r.touch(msg.ChatID, text, true)
		return
	}
	summary.LastMessagePreview = text
	r.upsert(summary)
}

// MessageEdited refreshes an edited message in the open conversation and
// the chat's preview.
func (r *Reconciler) MessageEdited(ctx context.Context, chatID, messageID int64) {
	log := r.logger.With(zap.Int64("chat_id", chatID), zap.Int64("message_id", messageID))
	if r.conv.ChatID() == chatID {
		msg, err := bridge.Do[*td.Message](ctx, r.caller, &td.GetMessage{ChatID: chatID, MessageID: messageID})
		if err != nil {
			log.Warn("edited message fetch failed", zap.Error(err))
		} else {
			r.conv.Replace(msg)
		}
	}
	r.refreshPreview(ctx, chatID)
}

// MessageContent patches a message whose content changed in place.
func (r *Reconciler) MessageContent(_ context.Context, chatID, messageID int64, content td.MessageContent) {
	r.conv.PatchContent(chatID, messageID, content)
}

// DeleteMessages handles a deletion batch. The lead id decides whether the
// batch is a real delete; only then is the open conversation touched.
func (r *Reconciler) DeleteMessages(ctx context.Context, chatID int64, ids []int64) {
	if len(ids) == 0 {
		return
	}
	log := r.logger.With(zap.Int64("chat_id", chatID), zap.Int64("lead_id", ids[0]), zap.Int("count", len(ids)))

	_, err := bridge.Do[*td.Message](ctx, r.caller, &td.GetMessage{ChatID: chatID, MessageID: ids[0]})
	if err != nil && r.conv.ChatID() == chatID {
		removed, committed := r.conv.Remove(chatID, ids, maxDeleteBatch)
		if removed > maxDeleteBatch {
			log.Info("batch removal skipped", zap.Int("matched", removed))
		}
		if committed {
			log.Debug("messages removed from conversation", zap.Int("removed", removed))
		}
		if rerr := r.conv.Reload(ctx, ids[0]); rerr != nil {
			log.Debug("lead message reload failed", zap.Error(rerr))
		}
	}
	r.refreshPreview(ctx, chatID)
}

// refreshPreview re-reads the chat's last message and moves an already
// listed chat to the front. Chats not listed stay unlisted.
func (r *Reconciler) refreshPreview(ctx context.Context, chatID int64) {
	chat, err := bridge.Do[*td.Chat](ctx, r.caller, &td.GetChat{ChatID: chatID})
	if err != nil {
		r.logger.Warn("chat detail fetch failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	r.touch(chatID, preview.Message(chat.LastMessage, r.labels), false)
}

// touch sets the preview of chatID and moves it to the front. Missing chats
// are inserted with a placeholder title only when insert is set.
func (r *Reconciler) touch(chatID int64, text string, insert bool) {
	r.chats.Update(func(cur []Summary) ([]Summary, bool) {
		i := indexOf(cur, chatID)
		if i < 0 {
			if !insert {
				return nil, false
			}
			return moveToFront(cur, Summary{ID: chatID, Title: r.labels.Get(labels.UnknownChat), LastMessagePreview: text}), true
		}
		s := cur[i]
		s.LastMessagePreview = text
		return moveToFront(cur, s), true
	})
}

func (r *Reconciler) upsert(s Summary) {
	r.chats.Update(func(cur []Summary) ([]Summary, bool) {
		return moveToFront(cur, s), true
	})
}

// Remove drops chatID from the list.
func (r *Reconciler) Remove(chatID int64) bool {
	return r.chats.Update(func(cur []Summary) ([]Summary, bool) {
		i := indexOf(cur, chatID)
		if i < 0 {
			return nil, false
		}
		next := make([]Summary, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		return append(next, cur[i+1:]...), true
	})
}
