// Package tdfake provides a scripted in-memory backend for tests.
package tdfake

import (
	"sync"

	"github.com/matheus3301/telesync/internal/td"
)

// HandlerFunc answers one request. It may call reply any number of times,
// including zero to leave the request pending forever.
type HandlerFunc func(req td.Request, reply func(td.Object))

// Client is a td.Client whose answers are scripted per request type.
// Replies are delivered on a fresh goroutine, like a real backend.
type Client struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    []td.Request
	onUpdate td.UpdateHandler
}

// New creates an empty fake. Unscripted requests fail with code 400.
func New() *Client {
	return &Client{handlers: make(map[string]HandlerFunc)}
}

// Handle scripts the answer for requestType.
func (c *Client) Handle(requestType string, fn HandlerFunc) {
	c.mu.Lock()
	c.handlers[requestType] = fn
	c.mu.Unlock()
}

// Respond scripts a single-reply answer for requestType.
func (c *Client) Respond(requestType string, fn func(req td.Request) td.Object) {
	c.Handle(requestType, func(req td.Request, reply func(td.Object)) {
		reply(fn(req))
	})
}

// Send implements td.Client.
func (c *Client) Send(req td.Request, handler td.ResultHandler) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	fn := c.handlers[req.RequestType()]
	c.mu.Unlock()

	go func() {
		if fn == nil {
			handler(&td.Error{Code: 400, Message: "unscripted request " + req.RequestType()})
			return
		}
		fn(req, func(obj td.Object) { handler(obj) })
	}()
}

// Calls returns the recorded requests of requestType, or all requests when
// requestType is empty.
func (c *Client) Calls(requestType string) []td.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []td.Request
	for _, r := range c.calls {
		if requestType == "" || r.RequestType() == requestType {
			out = append(out, r)
		}
	}
	return out
}

// CallCount returns how many requests of requestType were sent.
func (c *Client) CallCount(requestType string) int {
	return len(c.Calls(requestType))
}

// Factory returns a td.NewClientFunc that binds the update handler to this
// fake and hands it out as the client.
func (c *Client) Factory() td.NewClientFunc {
	return func(onUpdate td.UpdateHandler) (td.Client, error) {
		c.mu.Lock()
		c.onUpdate = onUpdate
		c.mu.Unlock()
		return c, nil
	}
}

// Push delivers an update to the bound handler synchronously.
func (c *Client) Push(u td.Update) {
	c.mu.Lock()
	h := c.onUpdate
	c.mu.Unlock()
	if h != nil {
		h(u)
	}
}
