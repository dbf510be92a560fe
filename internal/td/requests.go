package td

// Request is an outbound backend call. The set of implementations is closed
// to this package.
type Request interface {
	RequestType() string
	isRequest()
}

// SetTdlibParameters opens the backend's local storage and starts the
// authorization flow.
type SetTdlibParameters struct {
	DatabaseDirectory     string
	FilesDirectory        string
	UseMessageDatabase    bool
	APIID                 int32
	APIHash               string
	SystemLanguageCode    string
	DeviceModel           string
	SystemVersion         string
	ApplicationVersion    string
	DatabaseEncryptionKey []byte
}

type GetChat struct {
	ChatID int64
}

type GetUser struct {
	UserID int64
}

type GetMe struct{}

type GetMessage struct {
	ChatID    int64
	MessageID int64
}

// GetChatHistory returns messages older than FromMessageID, newest first.
// FromMessageID 0 starts from the newest message.
type GetChatHistory struct {
	ChatID        int64
	FromMessageID int64
	Offset        int32
	Limit         int32
	OnlyLocal     bool
}

type SearchPublicChat struct {
	Username string
}

type SearchPublicChats struct {
	Query string
}

type JoinChat struct {
	ChatID int64
}

type GetContacts struct{}

type GetChatFolder struct {
	ChatFolderID int32
}

type CreatePrivateChat struct {
	UserID int64
	Force  bool
}

type SendMessage struct {
	ChatID int64
	Text   string
}

// LoadChats asks the backend to announce more chats of List through
// UpdateNewChat. A 404 error means every chat has been announced.
type LoadChats struct {
	List  ChatList
	Limit int32
}

type DeleteMessages struct {
	ChatID     int64
	MessageIDs []int64
	Revoke     bool
}

type ViewMessages struct {
	ChatID     int64
	MessageIDs []int64
	ForceRead  bool
}

// DownloadFile fetches a remote file. Partial progress is reported through
// the request's handler before the final File.
type DownloadFile struct {
	FileID      int32
	Priority    int32
	Offset      int64
	Limit       int64
	Synchronous bool
}

type LogOut struct{}

type Close struct{}

func (*SetTdlibParameters) RequestType() string { return "setTdlibParameters" }
func (*GetChat) RequestType() string            { return "getChat" }
func (*GetUser) RequestType() string            { return "getUser" }
func (*GetMe) RequestType() string              { return "getMe" }
func (*GetMessage) RequestType() string         { return "getMessage" }
func (*GetChatHistory) RequestType() string     { return "getChatHistory" }
func (*SearchPublicChat) RequestType() string   { return "searchPublicChat" }
func (*SearchPublicChats) RequestType() string  { return "searchPublicChats" }
func (*JoinChat) RequestType() string           { return "joinChat" }
func (*GetContacts) RequestType() string        { return "getContacts" }
func (*GetChatFolder) RequestType() string      { return "getChatFolder" }
func (*CreatePrivateChat) RequestType() string  { return "createPrivateChat" }
func (*SendMessage) RequestType() string        { return "sendMessage" }
func (*LoadChats) RequestType() string          { return "loadChats" }
func (*DeleteMessages) RequestType() string     { return "deleteMessages" }
func (*ViewMessages) RequestType() string       { return "viewMessages" }
func (*DownloadFile) RequestType() string       { return "downloadFile" }
func (*LogOut) RequestType() string             { return "logOut" }
func (*Close) RequestType() string              { return "close" }

func (*SetTdlibParameters) isRequest() {}
func (*GetChat) isRequest()            {}
func (*GetUser) isRequest()            {}
func (*GetMe) isRequest()              {}
func (*GetMessage) isRequest()         {}
func (*GetChatHistory) isRequest()     {}
func (*SearchPublicChat) isRequest()   {}
func (*SearchPublicChats) isRequest()  {}
func (*JoinChat) isRequest()           {}
func (*GetContacts) isRequest()        {}
func (*GetChatFolder) isRequest()      {}
func (*CreatePrivateChat) isRequest()  {}
func (*SendMessage) isRequest()        {}
func (*LoadChats) isRequest()          {}
func (*DeleteMessages) isRequest()     {}
func (*ViewMessages) isRequest()       {}
func (*DownloadFile) isRequest()       {}
func (*LogOut) isRequest()             {}
func (*Close) isRequest()              {}
