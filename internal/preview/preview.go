// Package preview renders the one-line summary of a message shown in the
// chat list.
package preview

import (
	"github.com/matheus3301/telesync/internal/labels"
	"github.com/matheus3301/telesync/internal/td"
)

// MaxTextRunes is how much of a text message the summary keeps.
const MaxTextRunes = 20

const ellipsis = "..."

// Summarize returns the chat-list preview of content.
func Summarize(content td.MessageContent, l *labels.Labels) string {
	switch c := content.(type) {
	case *td.MessageText:
		return truncate(c.Text)
	case *td.MessagePhoto:
		return l.Get(labels.Photo)
	case *td.MessageVideo:
		return l.Get(labels.Video)
	case *td.MessageVoiceNote:
		return l.Get(labels.Voice)
	case *td.MessageAnimation:
		return l.Get(labels.Animation)
	case *td.MessageSticker:
		return emojiOrUnknown(c.Emoji, l)
	case *td.MessageAnimatedEmoji:
		return emojiOrUnknown(c.Emoji, l)
	default:
		return l.Get(labels.UnknownMessage)
	}
}

// Message is Summarize for a possibly nil message.
func Message(msg *td.Message, l *labels.Labels) string {
	if msg == nil {
		return l.Get(labels.UnknownMessage)
	}
	return Summarize(msg.Content, l)
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxTextRunes {
		return text
	}
	return string(runes[:MaxTextRunes]) + ellipsis
}

func emojiOrUnknown(emoji string, l *labels.Labels) string {
	if emoji == "" {
		return l.Get(labels.UnknownMessage)
	}
	return emoji
}
