package api

import (
	"github.com/matheus3301/telesync/internal/chatlist"
	"github.com/matheus3301/telesync/internal/codec"
	"github.com/matheus3301/telesync/internal/labels"
	"github.com/matheus3301/telesync/internal/preview"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/td"
)

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Session         string `cbor:"session"`
	Authorization   string `cbor:"authorization"`
	Connection      string `cbor:"connection"`
	ConnectionTitle string `cbor:"connection_title,omitempty"`
	OpenChatID      int64  `cbor:"open_chat_id,omitempty"`
	ChatCount       int32  `cbor:"chat_count"`
	UptimeMs        int64  `cbor:"uptime_ms"`
}

type ListChatsRequest struct {
	Limit  int32 `cbor:"limit,omitempty"`
	Offset int32 `cbor:"offset,omitempty"`
}

type ListChatsResponse struct {
	Chats []chatlist.Summary `cbor:"chats"`
	Total int32              `cbor:"total"`
}

type OpenChatRequest struct {
	ChatID int64 `cbor:"chat_id"`
}

type ListMessagesRequest struct {
	Limit int32 `cbor:"limit,omitempty"`
}

type ListMessagesResponse struct {
	ChatID     int64     `cbor:"chat_id"`
	Messages   []Message `cbor:"messages"`
	ReadInbox  int64     `cbor:"read_inbox,omitempty"`
	ReadOutbox int64     `cbor:"read_outbox,omitempty"`
}

type LoadMoreResponse struct {
	Loaded int32 `cbor:"loaded"`
}

type SendTextRequest struct {
	ChatID int64  `cbor:"chat_id"`
	Text   string `cbor:"text"`
}

type SendTextResponse struct {
	Message Message `cbor:"message"`
}

type MarkReadRequest struct {
	MessageIDs []int64 `cbor:"message_ids"`
}

type DeleteMessageRequest struct {
	MessageID int64 `cbor:"message_id"`
}

type SearchRequest struct {
	Query string `cbor:"query"`
}

type JoinChatRequest struct {
	ChatID int64 `cbor:"chat_id"`
}

type ListContactsRequest struct {
	Refresh bool `cbor:"refresh,omitempty"`
}

type ListContactsResponse struct {
	Contacts []session.Contact `cbor:"contacts"`
}

type LoadChatsRequest struct {
	Limit int32 `cbor:"limit,omitempty"`
}

type LoadChatsResponse struct {
	Done bool `cbor:"done"`
}

type DownloadRequest struct {
	ChatID    int64 `cbor:"chat_id"`
	MessageID int64 `cbor:"message_id"`
}

type DownloadResponse struct {
	Path string `cbor:"path"`
	Size int64  `cbor:"size"`
}

type User struct {
	ID       int64  `cbor:"id"`
	Name     string `cbor:"name"`
	Username string `cbor:"username,omitempty"`
	IsBot    bool   `cbor:"is_bot,omitempty"`
}

type WatchRequest struct {
	// Prefix filters event kinds; empty watches everything.
	Prefix string `cbor:"prefix,omitempty"`
}

// Event is one change notification of the Watch stream. Payload holds the
// new snapshot for projection kinds and the change record for session
// kinds.
type Event struct {
	ID               string           `cbor:"id"`
	Session          string           `cbor:"session"`
	Kind             string           `cbor:"kind"`
	OccurredAtUnixMs int64            `cbor:"occurred_at_unix_ms"`
	Payload          codec.RawMessage `cbor:"payload,omitempty"`
}

// Message is the wire form of a conversation message.
type Message struct {
	ID         int64  `cbor:"id"`
	ChatID     int64  `cbor:"chat_id"`
	SenderID   int64  `cbor:"sender_id"`
	Date       int64  `cbor:"date"`
	EditDate   int64  `cbor:"edit_date,omitempty"`
	IsOutgoing bool   `cbor:"is_outgoing,omitempty"`
	Kind       string `cbor:"kind"`
	Text       string `cbor:"text,omitempty"`
	Preview    string `cbor:"preview"`
	HasFile    bool   `cbor:"has_file,omitempty"`
}

// FromMessage converts a backend message for the wire.
func FromMessage(m *td.Message, l *labels.Labels) Message {
	out := Message{
		ID:         m.ID,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		Date:       m.Date,
		EditDate:   m.EditDate,
		IsOutgoing: m.IsOutgoing,
		Preview:    preview.Message(m, l),
		HasFile:    td.ContentFile(m.Content) != nil,
	}
	if m.Content != nil {
		out.Kind = m.Content.ContentType()
	}
	switch c := m.Content.(type) {
	case *td.MessageText:
		out.Text = c.Text
	case *td.MessagePhoto:
		out.Text = c.Caption
	case *td.MessageVideo:
		out.Text = c.Caption
	case *td.MessageVoiceNote:
		out.Text = c.Caption
	case *td.MessageAnimation:
		out.Text = c.Caption
	case *td.MessageSticker:
		out.Text = c.Emoji
	case *td.MessageAnimatedEmoji:
		out.Text = c.Emoji
	case *td.MessageUnsupported, nil:
	}
	return out
}

// FromMessages converts a page of messages, keeping order.
func FromMessages(msgs []*td.Message, l *labels.Labels) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, FromMessage(m, l))
	}
	return out
}
