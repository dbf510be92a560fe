package wa

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/telesync/internal/store"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// DeviceFileName is the whatsmeow device store inside the database directory.
const DeviceFileName = "device.db"

// Messenger is the part of the WhatsApp client the backend drives.
type Messenger interface {
	Connect() error
	Disconnect()
	IsLoggedIn() bool
	OwnJID() types.JID
	PushName() string
	Logout(ctx context.Context) error
	OnEvent(handler func(evt any))
	GenerateMessageID() types.MessageID
	SendText(ctx context.Context, to types.JID, id types.MessageID, text string) (time.Time, error)
	Revoke(ctx context.Context, chat types.JID, id types.MessageID) error
	MarkRead(ctx context.Context, chat, sender types.JID, ids []types.MessageID, at time.Time) error
	Download(ctx context.Context, f *store.File) ([]byte, error)
	ResolveLID(ctx context.Context, jid types.JID) types.JID
	Contacts(ctx context.Context) (map[types.JID]types.ContactInfo, error)
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
}

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *zap.Logger
}

var _ Messenger = (*Adapter)(nil)

// NewAdapter opens the device store at dbPath and creates a client for it.
func NewAdapter(ctx context.Context, dbPath string, logger *zap.Logger) (*Adapter, error) {
	// Set device name shown on the phone's linked devices list.
	wastore.SetOSInfo("telesync", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		newWALogger(logger.Named("store")),
	)
	if err != nil {
		return nil, fmt.Errorf("create device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Adapter{
		client:    whatsmeow.NewClient(deviceStore, newWALogger(logger.Named("client"))),
		container: container,
		logger:    logger,
	}, nil
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// OwnJID returns the account's own non-device JID, or the empty JID.
func (a *Adapter) OwnJID() types.JID {
	if a.client.Store.ID == nil {
		return types.EmptyJID
	}
	return a.client.Store.ID.ToNonAD()
}

// PushName returns the display name of the account.
func (a *Adapter) PushName() string {
	return a.client.Store.PushName
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// OnEvent adds a handler for whatsmeow events.
func (a *Adapter) OnEvent(handler func(evt any)) {
	a.client.AddEventHandler(handler)
}

// GenerateMessageID returns a fresh id for an outgoing message.
func (a *Adapter) GenerateMessageID() types.MessageID {
	return a.client.GenerateMessageID()
}

// SendText sends a text message with a preassigned id and returns the
// server timestamp.
func (a *Adapter) SendText(ctx context.Context, to types.JID, id types.MessageID, text string) (time.Time, error) {
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	}, whatsmeow.SendRequestExtra{ID: id})
	if err != nil {
		return time.Time{}, fmt.Errorf("send message: %w", err)
	}
	return resp.Timestamp, nil
}

// Revoke deletes one of our messages for everyone.
func (a *Adapter) Revoke(ctx context.Context, chat types.JID, id types.MessageID) error {
	_, err := a.client.SendMessage(ctx, chat, a.client.BuildRevoke(chat, types.EmptyJID, id))
	if err != nil {
		return fmt.Errorf("revoke message: %w", err)
	}
	return nil
}

// MarkRead sends read receipts for messages from sender.
func (a *Adapter) MarkRead(ctx context.Context, chat, sender types.JID, ids []types.MessageID, at time.Time) error {
	return a.client.MarkRead(ctx, ids, at, chat, sender)
}

// Download fetches and decrypts a stored media attachment.
func (a *Adapter) Download(ctx context.Context, f *store.File) ([]byte, error) {
	msg, err := downloadable(f)
	if err != nil {
		return nil, err
	}
	return a.client.Download(ctx, msg)
}

// downloadable rebuilds the message stub whatsmeow needs to fetch f.
func downloadable(f *store.File) (whatsmeow.DownloadableMessage, error) {
	length := proto.Uint64(uint64(f.Size))
	switch f.MediaType {
	case ContentPhoto:
		return &waE2E.ImageMessage{
			DirectPath: proto.String(f.DirectPath), MediaKey: f.MediaKey, FileLength: length,
			FileSHA256: f.FileSHA256, FileEncSHA256: f.FileEncSHA256, Mimetype: proto.String(f.MimeType),
		}, nil
	case ContentVideo:
		return &waE2E.VideoMessage{
			DirectPath: proto.String(f.DirectPath), MediaKey: f.MediaKey, FileLength: length,
			FileSHA256: f.FileSHA256, FileEncSHA256: f.FileEncSHA256, Mimetype: proto.String(f.MimeType),
		}, nil
	case ContentAudio:
		return &waE2E.AudioMessage{
			DirectPath: proto.String(f.DirectPath), MediaKey: f.MediaKey, FileLength: length,
			FileSHA256: f.FileSHA256, FileEncSHA256: f.FileEncSHA256, Mimetype: proto.String(f.MimeType),
		}, nil
	case ContentSticker:
		return &waE2E.StickerMessage{
			DirectPath: proto.String(f.DirectPath), MediaKey: f.MediaKey, FileLength: length,
			FileSHA256: f.FileSHA256, FileEncSHA256: f.FileEncSHA256, Mimetype: proto.String(f.MimeType),
		}, nil
	}
	return nil, fmt.Errorf("media type %q is not downloadable", f.MediaType)
}

// GetQRChannel returns the QR channel for pairing. Must be called before Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

// Contacts returns all contacts from the whatsmeow device store.
func (a *Adapter) Contacts(ctx context.Context) (map[types.JID]types.ContactInfo, error) {
	return a.client.Store.Contacts.GetAllContacts(ctx)
}

// ResolveLID resolves a LID JID to its phone number JID using the device store mapping.
// Returns the original JID if it's not a LID or if resolution fails.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

// waLogger routes whatsmeow's logging into zap.
type waLogger struct {
	s *zap.SugaredLogger
}

func newWALogger(l *zap.Logger) waLog.Logger {
	return waLogger{s: l.Sugar()}
}

func (w waLogger) Warnf(msg string, args ...any)  { w.s.Warnf(msg, args...) }
func (w waLogger) Errorf(msg string, args ...any) { w.s.Errorf(msg, args...) }
func (w waLogger) Infof(msg string, args ...any)  { w.s.Infof(msg, args...) }
func (w waLogger) Debugf(msg string, args ...any) { w.s.Debugf(msg, args...) }
func (w waLogger) Sub(module string) waLog.Logger {
	return waLogger{s: w.s.Named(module)}
}
