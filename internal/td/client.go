// Package td models the request, response and update objects exchanged with
// a callback-driven messaging backend.
package td

// ResultHandler receives the response to a single request. Backends invoke it
// exactly once per request, except for DownloadFile which also reports
// partial progress through the same handler.
type ResultHandler func(Object)

// UpdateHandler receives push updates. It is the single inbound entry point
// from the backend.
type UpdateHandler func(Update)

// Client is the send side of a backend connection. Send must not block on
// the handler; responses are delivered on the backend's own goroutines.
type Client interface {
	Send(req Request, handler ResultHandler)
}

// NewClientFunc constructs a backend client that pushes updates to onUpdate.
type NewClientFunc func(onUpdate UpdateHandler) (Client, error)
