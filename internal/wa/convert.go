package wa

import (
	"github.com/matheus3301/telesync/internal/store"
	"github.com/matheus3301/telesync/internal/td"
)

func toChat(c *store.Chat, last *td.Message) *td.Chat {
	chat := &td.Chat{
		ID:    c.ID,
		Title: c.Title,
		Type: td.ChatType{
			Kind:      td.ChatKind(c.Kind),
			UserID:    c.UserID,
			IsChannel: c.IsChannel,
		},
		IsMarkedAsUnread:        c.IsMarkedUnread,
		UnreadCount:             int32(c.UnreadCount),
		LastMessage:             last,
		LastReadInboxMessageID:  c.LastReadInboxID,
		LastReadOutboxMessageID: c.LastReadOutboxID,
	}
	if c.Position > 0 {
		chat.Positions = []td.ChatPosition{{
			List:     td.ChatList{Archive: c.IsArchived},
			Order:    c.Position,
			IsPinned: c.IsPinned,
		}}
	}
	return chat
}

func toUser(u *store.User) *td.User {
	user := &td.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Type:      td.UserTypeRegular,
	}
	if user.FirstName == "" && user.LastName == "" {
		user.FirstName = u.PushName
	}
	if u.IsBot {
		user.Type = td.UserTypeBot
	}
	return user
}

func toFile(f *store.File) *td.File {
	if f == nil {
		return nil
	}
	return &td.File{
		ID:           int32(f.ID),
		Size:         f.Size,
		ExpectedSize: f.Size,
		Local: td.LocalFile{
			Path:                   f.LocalPath,
			IsDownloadingCompleted: f.Completed,
			DownloadedSize:         f.DownloadedSize,
		},
	}
}

func toContent(m *store.Message, f *store.File) td.MessageContent {
	file := toFile(f)
	switch m.ContentType {
	case ContentText:
		return &td.MessageText{Text: m.Text}
	case ContentPhoto:
		return &td.MessagePhoto{Caption: m.Text, Photo: file}
	case ContentVideo:
		return &td.MessageVideo{Caption: m.Text, Video: file}
	case ContentAnimation:
		return &td.MessageAnimation{Caption: m.Text, Animation: file}
	case ContentVoice:
		return &td.MessageVoiceNote{Caption: m.Text, Duration: int32(m.Duration), Voice: file}
	case ContentSticker:
		return &td.MessageSticker{Emoji: m.Emoji, Sticker: file}
	default:
		return &td.MessageUnsupported{Kind: m.ContentType}
	}
}

func toMessage(m *store.Message, f *store.File) *td.Message {
	return &td.Message{
		ID:         m.ID,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		Date:       m.Date,
		EditDate:   m.EditDate,
		IsOutgoing: m.IsOutgoing,
		Content:    toContent(m, f),
	}
}
