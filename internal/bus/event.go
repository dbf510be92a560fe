package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Projection change kinds. The payload is the new snapshot.
const (
	KindChats        = "projection.chats"
	KindConversation = "projection.conversation"
	KindFolders      = "projection.folders"
	KindContacts     = "projection.contacts"
	KindSearch       = "projection.search"
	KindReadInbox    = "projection.read_inbox"
	KindReadOutbox   = "projection.read_outbox"
)

// Session kinds.
const (
	KindAuthorization = "session.authorization_changed"
	KindConnection    = "session.connection_changed"
)
