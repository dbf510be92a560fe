package store

// Chat kinds, matching the backend protocol's chat kinds.
const (
	KindPrivate = iota
	KindBasicGroup
	KindSupergroup
	KindSecret
)

// Chat represents a stored chat. Position orders the main chat list; a
// zero position means the chat is not in any list.
type Chat struct {
	ID               int64
	Title            string
	Kind             int
	IsChannel        bool
	UserID           int64
	Position         int64
	IsPinned         bool
	IsArchived       bool
	IsMarkedUnread   bool
	UnreadCount      int
	LastMessageID    int64
	LastReadInboxID  int64
	LastReadOutboxID int64
}

// User represents a stored user.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	PushName  string
	IsBot     bool
	IsContact bool
}

// Message represents a stored message. RemoteID is the network's id for
// the message and is unique per chat.
type Message struct {
	ID          int64
	ChatID      int64
	RemoteID    string
	SenderID    int64
	Date        int64
	EditDate    int64
	IsOutgoing  bool
	ContentType string
	Text        string
	Emoji       string
	Duration    int
	FileID      int64
}

// File holds what is needed to fetch a media attachment and where it
// landed locally.
type File struct {
	ID             int64
	MediaType      string
	MimeType       string
	Size           int64
	DirectPath     string
	MediaKey       []byte
	FileSHA256     []byte
	FileEncSHA256  []byte
	LocalPath      string
	DownloadedSize int64
	Completed      bool
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatID       int64
	MessageID    int64
	Body         string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	ServerMsgID  string
}
