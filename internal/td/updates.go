package td

// Update is a push notification from the backend. The set of
// implementations is closed to this package.
type Update interface {
	Object
	isUpdate()
}

// AuthorizationState is the backend's login state.
type AuthorizationState int

const (
	AuthorizationStateWaitTdlibParameters AuthorizationState = iota
	AuthorizationStateWaitPhoneNumber
	AuthorizationStateWaitCode
	AuthorizationStateWaitPassword
	AuthorizationStateReady
	AuthorizationStateLoggingOut
	AuthorizationStateClosing
	AuthorizationStateClosed
)

var authorizationStateNames = map[AuthorizationState]string{
	AuthorizationStateWaitTdlibParameters: "wait_parameters",
	AuthorizationStateWaitPhoneNumber:     "wait_phone_number",
	AuthorizationStateWaitCode:            "wait_code",
	AuthorizationStateWaitPassword:        "wait_password",
	AuthorizationStateReady:               "ready",
	AuthorizationStateLoggingOut:          "logging_out",
	AuthorizationStateClosing:             "closing",
	AuthorizationStateClosed:              "closed",
}

func (s AuthorizationState) String() string {
	if name, ok := authorizationStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ConnectionState is the backend's network state.
type ConnectionState int

const (
	ConnectionStateWaitingForNetwork ConnectionState = iota
	ConnectionStateConnectingToProxy
	ConnectionStateConnecting
	ConnectionStateUpdating
	ConnectionStateReady
)

var connectionStateNames = map[ConnectionState]string{
	ConnectionStateWaitingForNetwork: "waiting_for_network",
	ConnectionStateConnectingToProxy: "connecting_to_proxy",
	ConnectionStateConnecting:        "connecting",
	ConnectionStateUpdating:          "updating",
	ConnectionStateReady:             "ready",
}

func (s ConnectionState) String() string {
	if name, ok := connectionStateNames[s]; ok {
		return name
	}
	return "unknown"
}

type UpdateAuthorizationState struct {
	State AuthorizationState
}

type UpdateNewMessage struct {
	Message *Message
}

type UpdateMessageContent struct {
	ChatID     int64
	MessageID  int64
	NewContent MessageContent
}

type UpdateMessageEdited struct {
	ChatID    int64
	MessageID int64
	EditDate  int64
}

type UpdateDeleteMessages struct {
	ChatID      int64
	MessageIDs  []int64
	IsPermanent bool
	FromCache   bool
}

type UpdateNewChat struct {
	Chat *Chat
}

type UpdateConnectionState struct {
	State ConnectionState
}

type UpdateChatReadInbox struct {
	ChatID                 int64
	LastReadInboxMessageID int64
	UnreadCount            int32
}

type UpdateChatReadOutbox struct {
	ChatID                  int64
	LastReadOutboxMessageID int64
}

type UpdateChatFolders struct {
	ChatFolders []ChatFolderInfo
}

// UpdateUser and UpdateOption are delivered by backends but carry nothing
// the session layer projects.
type UpdateUser struct {
	User *User
}

type UpdateOption struct {
	Name  string
	Value string
}

func (*UpdateAuthorizationState) ObjectType() string { return "updateAuthorizationState" }
func (*UpdateNewMessage) ObjectType() string         { return "updateNewMessage" }
func (*UpdateMessageContent) ObjectType() string     { return "updateMessageContent" }
func (*UpdateMessageEdited) ObjectType() string      { return "updateMessageEdited" }
func (*UpdateDeleteMessages) ObjectType() string     { return "updateDeleteMessages" }
func (*UpdateNewChat) ObjectType() string            { return "updateNewChat" }
func (*UpdateConnectionState) ObjectType() string    { return "updateConnectionState" }
func (*UpdateChatReadInbox) ObjectType() string      { return "updateChatReadInbox" }
func (*UpdateChatReadOutbox) ObjectType() string     { return "updateChatReadOutbox" }
func (*UpdateChatFolders) ObjectType() string        { return "updateChatFolders" }
func (*UpdateUser) ObjectType() string               { return "updateUser" }
func (*UpdateOption) ObjectType() string             { return "updateOption" }

func (*UpdateAuthorizationState) isObject() {}
func (*UpdateNewMessage) isObject()         {}
func (*UpdateMessageContent) isObject()     {}
func (*UpdateMessageEdited) isObject()      {}
func (*UpdateDeleteMessages) isObject()     {}
func (*UpdateNewChat) isObject()            {}
func (*UpdateConnectionState) isObject()    {}
func (*UpdateChatReadInbox) isObject()      {}
func (*UpdateChatReadOutbox) isObject()     {}
func (*UpdateChatFolders) isObject()        {}
func (*UpdateUser) isObject()               {}
func (*UpdateOption) isObject()             {}

func (*UpdateAuthorizationState) isUpdate() {}
func (*UpdateNewMessage) isUpdate()         {}
func (*UpdateMessageContent) isUpdate()     {}
func (*UpdateMessageEdited) isUpdate()      {}
func (*UpdateDeleteMessages) isUpdate()     {}
func (*UpdateNewChat) isUpdate()            {}
func (*UpdateConnectionState) isUpdate()    {}
func (*UpdateChatReadInbox) isUpdate()      {}
func (*UpdateChatReadOutbox) isUpdate()     {}
func (*UpdateChatFolders) isUpdate()        {}
func (*UpdateUser) isUpdate()               {}
func (*UpdateOption) isUpdate()             {}
