// Package status tracks the backend's connectivity and renders it as the
// title shown above the chat list.
package status

import (
	"sync"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/labels"
	"github.com/matheus3301/telesync/internal/td"
)

// State represents a connectivity state.
type State string

const (
	WaitingForNetwork State = "WAITING_FOR_NETWORK"
	ConnectingToProxy State = "CONNECTING_TO_PROXY"
	Connecting        State = "CONNECTING"
	Updating          State = "UPDATING"
	Ready             State = "READY"
)

var fromBackend = map[td.ConnectionState]State{
	td.ConnectionStateWaitingForNetwork: WaitingForNetwork,
	td.ConnectionStateConnectingToProxy: ConnectingToProxy,
	td.ConnectionStateConnecting:        Connecting,
	td.ConnectionStateUpdating:          Updating,
	td.ConnectionStateReady:             Ready,
}

// FromBackend maps a backend connection state.
func FromBackend(s td.ConnectionState) State {
	if st, ok := fromBackend[s]; ok {
		return st
	}
	return Connecting
}

// StatusChange is the payload for bus.KindConnection events.
type StatusChange struct {
	From  State
	To    State
	Title string
}

// Tracker holds the latest connectivity state. The backend may repeat or
// reorder states freely, so every value is accepted.
type Tracker struct {
	mu      sync.RWMutex
	current State
	labels  *labels.Labels
	bus     *bus.Bus
}

// NewTracker creates a tracker starting in Connecting.
func NewTracker(l *labels.Labels, b *bus.Bus) *Tracker {
	if l == nil {
		l = labels.New("")
	}
	return &Tracker{
		current: Connecting,
		labels:  l,
		bus:     b,
	}
}

// Current returns the current state.
func (t *Tracker) Current() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Title returns the connectivity title for the current state.
func (t *Tracker) Title() string {
	return t.TitleFor(t.Current())
}

// TitleFor renders s. Ready renders as the empty string.
func (t *Tracker) TitleFor(s State) string {
	switch s {
	case Ready:
		return ""
	case Updating:
		return t.labels.Get(labels.Updating)
	case WaitingForNetwork:
		return t.labels.Get(labels.Offline)
	default:
		return t.labels.Get(labels.Connecting)
	}
}

// Set records a new state and reports whether it changed.
func (t *Tracker) Set(to State) bool {
	t.mu.Lock()
	from := t.current
	if from == to {
		t.mu.Unlock()
		return false
	}
	t.current = to
	t.mu.Unlock()

	t.bus.Emit(bus.KindConnection, StatusChange{From: from, To: to, Title: t.TitleFor(to)})
	return true
}
