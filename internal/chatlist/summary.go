package chatlist

import (
	"github.com/matheus3301/telesync/internal/labels"
	"github.com/matheus3301/telesync/internal/preview"
	"github.com/matheus3301/telesync/internal/td"
)

// Summary is the list-view representation of one chat.
type Summary struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	LastMessagePreview string `json:"last_message_preview"`
	IsPinned           bool   `json:"is_pinned"`
	IsRead             bool   `json:"is_read"`
	IsBot              bool   `json:"is_bot"`
	IsChannel          bool   `json:"is_channel"`
	IsGroup            bool   `json:"is_group"`
	IsPrivate          bool   `json:"is_private"`
}

// Summarize builds a summary from a chat and, for private chats, the peer.
// user may be nil.
func Summarize(chat *td.Chat, user *td.User, l *labels.Labels) Summary {
	s := Summary{
		ID:                 chat.ID,
		Title:              chat.Title,
		LastMessagePreview: preview.Message(chat.LastMessage, l),
		IsPinned:           chat.IsPinned(),
		IsRead:             !chat.IsMarkedAsUnread && chat.UnreadCount == 0,
	}
	if s.Title == "" {
		s.Title = l.Get(labels.UnknownChat)
	}
	switch chat.Type.Kind {
	case td.ChatKindSupergroup:
		if chat.Type.IsChannel {
			s.IsChannel = true
		} else {
			s.IsGroup = true
		}
	case td.ChatKindBasicGroup:
		s.IsGroup = true
	case td.ChatKindPrivate, td.ChatKindSecret:
		s.IsPrivate = true
		s.IsBot = user != nil && user.Type == td.UserTypeBot
	}
	return s
}

func indexOf(list []Summary, id int64) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// moveToFront returns a new list with s at index 0 and any previous entry
// with the same id removed.
func moveToFront(list []Summary, s Summary) []Summary {
	next := make([]Summary, 0, len(list)+1)
	next = append(next, s)
	for _, cur := range list {
		if cur.ID != s.ID {
			next = append(next, cur)
		}
	}
	return next
}
