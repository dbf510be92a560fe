package td

import "strings"

// Object is any value a backend hands to a handler: a response or an update.
// The set of implementations is closed to this package.
type Object interface {
	ObjectType() string
	isObject()
}

// Ok is the empty success response.
type Ok struct{}

// Error is the failure response. Code follows HTTP-like classes; 404 means
// the requested entity does not exist.
type Error struct {
	Code    int
	Message string
}

// ChatKind distinguishes the backend chat types.
type ChatKind int

const (
	ChatKindPrivate ChatKind = iota
	ChatKindBasicGroup
	ChatKindSupergroup
	ChatKindSecret
)

// ChatType describes what kind of chat a Chat is. UserID is set for private
// and secret chats; IsChannel only for supergroups.
type ChatType struct {
	Kind      ChatKind
	UserID    int64
	IsChannel bool
}

// ChatList identifies which list a chat position belongs to.
type ChatList struct {
	FolderID int32 // 0 is the main list
	Archive  bool
}

// ChatPosition places a chat inside a chat list.
type ChatPosition struct {
	List     ChatList
	Order    int64
	IsPinned bool
}

// Chat is the canonical chat record.
type Chat struct {
	ID                      int64
	Title                   string
	Type                    ChatType
	Positions               []ChatPosition
	IsMarkedAsUnread        bool
	UnreadCount             int32
	LastMessage             *Message
	LastReadInboxMessageID  int64
	LastReadOutboxMessageID int64
}

// Chats is a list of chat ids.
type Chats struct {
	TotalCount int32
	ChatIDs    []int64
}

// UserType distinguishes regular accounts from bots.
type UserType int

const (
	UserTypeRegular UserType = iota
	UserTypeBot
	UserTypeDeleted
	UserTypeUnknown
)

// User is a backend account.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Type      UserType
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Users is a list of user ids.
type Users struct {
	TotalCount int32
	UserIDs    []int64
}

// Message is a single chat message. Date and EditDate are unix seconds.
type Message struct {
	ID         int64
	ChatID     int64
	SenderID   int64
	Date       int64
	EditDate   int64
	IsOutgoing bool
	Content    MessageContent
}

// Messages is a page of messages. TotalCount is the number of messages the
// backend holds for the whole history query, not just this page.
type Messages struct {
	TotalCount int32
	Messages   []*Message
}

// ChatFolderInfo is the short folder description carried by the folders
// update.
type ChatFolderInfo struct {
	ID    int32
	Title string
}

// ChatFolder is the full folder record.
type ChatFolder struct {
	ID              int32
	Title           string
	IncludedChatIDs []int64
	PinnedChatIDs   []int64
}

// LocalFile is the on-device part of a File.
type LocalFile struct {
	Path                   string
	IsDownloadingCompleted bool
	DownloadedSize         int64
}

// File is a downloadable remote file.
type File struct {
	ID           int32
	Size         int64
	ExpectedSize int64
	Local        LocalFile
}

func (*Ok) ObjectType() string         { return "ok" }
func (*Error) ObjectType() string      { return "error" }
func (*Chat) ObjectType() string       { return "chat" }
func (*Chats) ObjectType() string      { return "chats" }
func (*User) ObjectType() string       { return "user" }
func (*Users) ObjectType() string      { return "users" }
func (*Message) ObjectType() string    { return "message" }
func (*Messages) ObjectType() string   { return "messages" }
func (*ChatFolder) ObjectType() string { return "chatFolder" }
func (*File) ObjectType() string       { return "file" }

func (*Ok) isObject()         {}
func (*Error) isObject()      {}
func (*Chat) isObject()       {}
func (*Chats) isObject()      {}
func (*User) isObject()       {}
func (*Users) isObject()      {}
func (*Message) isObject()    {}
func (*Messages) isObject()   {}
func (*ChatFolder) isObject() {}
func (*File) isObject()       {}

func (e *Error) Error() string {
	return e.Message
}

// HasPositions reports whether the chat carries any position metadata.
func (c *Chat) HasPositions() bool {
	return len(c.Positions) > 0
}

// IsPinned reports whether the chat is pinned in its first position.
func (c *Chat) IsPinned() bool {
	return len(c.Positions) > 0 && c.Positions[0].IsPinned
}
