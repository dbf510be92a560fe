package wa

import (
	"context"

	"go.mau.fi/whatsmeow"
)

// AuthEventType enumerates auth event types.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent represents an auth lifecycle event.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// StartQRAuth links m as a new device. The returned channel carries a QR
// code each time the previous one expires and is closed after the final
// event.
func StartQRAuth(ctx context.Context, m Messenger) (<-chan AuthEvent, error) {
	qrChan, err := m.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 10)

	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := m.Connect(); err != nil {
			out <- AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()}
			return
		}

		for item := range qrChan {
			if evt, final := authEvent(item); evt.Type != "" {
				out <- evt
				if final {
					return
				}
			}
		}
	}()

	return out, nil
}

// authEvent maps a QR channel item. final is set for the events that end
// the pairing attempt.
func authEvent(item whatsmeow.QRChannelItem) (evt AuthEvent, final bool) {
	switch item.Event {
	case whatsmeow.QRChannelEventCode:
		return AuthEvent{Type: AuthEventQRCode, QRCode: item.Code}, false
	case whatsmeow.QRChannelSuccess.Event:
		return AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"}, true
	case whatsmeow.QRChannelTimeout.Event:
		return AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"}, true
	}
	if item.Error != nil {
		return AuthEvent{Type: AuthEventAuthFailed, Message: item.Error.Error()}, true
	}
	return AuthEvent{}, false
}
