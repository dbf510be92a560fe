package wa

import (
	"time"

	"github.com/matheus3301/telesync/internal/store"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// Stored content types.
const (
	ContentText      = "text"
	ContentPhoto     = "photo"
	ContentVideo     = "video"
	ContentVoice     = "voice"
	ContentAnimation = "animation"
	ContentSticker   = "sticker"
	ContentAudio     = "audio"
	ContentDocument  = "document"
	ContentContact   = "contact"
	ContentLocation  = "location"
	ContentUnknown   = "unknown"
)

// ParsedMessage is a normalized message ready for ingestion.
type ParsedMessage struct {
	ChatJID     types.JID
	RemoteID    string
	SenderJID   types.JID
	PushName    string
	Text        string
	ContentType string
	Duration    int
	Media       *store.File
	FromMe      bool
	Timestamp   time.Time
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	return ParseHistoryMessage(evt.Message, evt.Info)
}

// ParseHistoryMessage normalizes a message with its info.
func ParseHistoryMessage(msg *waE2E.Message, info types.MessageInfo) *ParsedMessage {
	p := &ParsedMessage{
		ChatJID:     info.Chat.ToNonAD(),
		RemoteID:    info.ID,
		SenderJID:   info.Sender.ToNonAD(),
		PushName:    info.PushName,
		Text:        extractTextBody(msg),
		ContentType: detectMessageType(msg),
		FromMe:      info.IsFromMe,
		Timestamp:   info.Timestamp,
	}
	if p.Text == "" {
		p.Text = extractCaption(msg)
	}
	p.Media, p.Duration = extractMedia(msg)
	return p
}

// ToStoreMessage converts a ParsedMessage to a store.Message for the given
// chat and sender ids.
func (p *ParsedMessage) ToStoreMessage(chatID, senderID int64) *store.Message {
	m := &store.Message{
		ChatID:      chatID,
		RemoteID:    p.RemoteID,
		SenderID:    senderID,
		Date:        p.Timestamp.Unix(),
		IsOutgoing:  p.FromMe,
		ContentType: p.ContentType,
		Text:        p.Text,
		Duration:    p.Duration,
	}
	if p.Media != nil {
		m.FileID = p.Media.ID
	}
	return m
}

// unwrap strips the ephemeral, view-once and edit envelopes.
func unwrap(msg *waE2E.Message) *waE2E.Message {
	for msg != nil {
		switch {
		case msg.GetEphemeralMessage() != nil:
			msg = msg.GetEphemeralMessage().GetMessage()
		case msg.GetViewOnceMessage() != nil:
			msg = msg.GetViewOnceMessage().GetMessage()
		case msg.GetViewOnceMessageV2() != nil:
			msg = msg.GetViewOnceMessageV2().GetMessage()
		case msg.GetDocumentWithCaptionMessage() != nil:
			msg = msg.GetDocumentWithCaptionMessage().GetMessage()
		case msg.GetEditedMessage() != nil:
			msg = msg.GetEditedMessage().GetMessage()
		default:
			return msg
		}
	}
	return nil
}

func extractTextBody(msg *waE2E.Message) string {
	msg = unwrap(msg)
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func extractCaption(msg *waE2E.Message) string {
	msg = unwrap(msg)
	switch {
	case msg == nil:
		return ""
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	msg = unwrap(msg)
	if msg == nil {
		return ContentUnknown
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return ContentText
	case msg.GetImageMessage() != nil:
		return ContentPhoto
	case msg.GetVideoMessage() != nil:
		if msg.GetVideoMessage().GetGifPlayback() {
			return ContentAnimation
		}
		return ContentVideo
	case msg.GetAudioMessage() != nil:
		if msg.GetAudioMessage().GetPTT() {
			return ContentVoice
		}
		return ContentAudio
	case msg.GetDocumentMessage() != nil:
		return ContentDocument
	case msg.GetStickerMessage() != nil:
		return ContentSticker
	case msg.GetContactMessage() != nil:
		return ContentContact
	case msg.GetLocationMessage() != nil:
		return ContentLocation
	default:
		return ContentUnknown
	}
}

// extractMedia returns the downloadable attachment of msg, unsaved, and
// the voice duration in seconds.
func extractMedia(msg *waE2E.Message) (*store.File, int) {
	msg = unwrap(msg)
	if msg == nil {
		return nil, 0
	}
	switch {
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		return &store.File{
			MediaType: ContentPhoto, MimeType: m.GetMimetype(), Size: int64(m.GetFileLength()),
			DirectPath: m.GetDirectPath(), MediaKey: m.GetMediaKey(),
			FileSHA256: m.GetFileSHA256(), FileEncSHA256: m.GetFileEncSHA256(),
		}, 0
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		return &store.File{
			MediaType: ContentVideo, MimeType: m.GetMimetype(), Size: int64(m.GetFileLength()),
			DirectPath: m.GetDirectPath(), MediaKey: m.GetMediaKey(),
			FileSHA256: m.GetFileSHA256(), FileEncSHA256: m.GetFileEncSHA256(),
		}, 0
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		return &store.File{
			MediaType: ContentAudio, MimeType: m.GetMimetype(), Size: int64(m.GetFileLength()),
			DirectPath: m.GetDirectPath(), MediaKey: m.GetMediaKey(),
			FileSHA256: m.GetFileSHA256(), FileEncSHA256: m.GetFileEncSHA256(),
		}, int(m.GetSeconds())
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		return &store.File{
			MediaType: ContentSticker, MimeType: m.GetMimetype(), Size: int64(m.GetFileLength()),
			DirectPath: m.GetDirectPath(), MediaKey: m.GetMediaKey(),
			FileSHA256: m.GetFileSHA256(), FileEncSHA256: m.GetFileEncSHA256(),
		}, 0
	}
	return nil, 0
}

// protocolAction classifies edit and revoke envelopes. target is the id of
// the message acted on.
type protocolAction int

const (
	actionNone protocolAction = iota
	actionEdit
	actionRevoke
)

func classifyProtocol(msg *waE2E.Message) (action protocolAction, target string, edited *waE2E.Message) {
	pm := unwrap(msg).GetProtocolMessage()
	if pm == nil {
		return actionNone, "", nil
	}
	switch pm.GetType() {
	case waE2E.ProtocolMessage_MESSAGE_EDIT:
		return actionEdit, pm.GetKey().GetID(), pm.GetEditedMessage()
	case waE2E.ProtocolMessage_REVOKE:
		return actionRevoke, pm.GetKey().GetID(), nil
	}
	return actionNone, "", nil
}

// isIgnorable reports messages that never become chat history.
func isIgnorable(msg *waE2E.Message) bool {
	msg = unwrap(msg)
	switch {
	case msg == nil:
		return true
	case msg.GetReactionMessage() != nil, msg.GetProtocolMessage() != nil:
		return true
	case msg.GetSenderKeyDistributionMessage() != nil:
		return detectMessageType(msg) == ContentUnknown
	}
	return false
}
