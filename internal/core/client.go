package core

import (
	"context"
	"sync"
)

const defaultEventBuffer = 256

// Client is a transport connection as seen by the core layer.
// Its ID doubles as the session identity.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	mu     sync.Mutex
	closed bool

	evictOnce sync.Once
	evicted   chan struct{}
}

// NewClient constructs a client with initialized channels.
// eventBuffer bounds how far the client may fall behind before it is evicted.
func NewClient(id string, eventBuffer int) *Client {
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, eventBuffer),
		evicted:  make(chan struct{}),
	}
}

// Submit queues a command for the hub. It fails once the client is unregistered.
func (c *Client) Submit(ctx context.Context, cmd *Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientGone
	}
	select {
	case c.Commands <- cmd:
		return nil
	case <-c.evicted:
		return ErrClientGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Evicted is closed when the hub gives up on the client (slow consumer or shutdown).
// Transports must close the underlying connection when it fires.
func (c *Client) Evicted() <-chan struct{} {
	return c.evicted
}

func (c *Client) evict() {
	c.evictOnce.Do(func() { close(c.evicted) })
}

// deliver never blocks the hub loop. A full buffer evicts the client.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		c.evict()
		return false
	}
}

// closeCommands stops further submissions; the hub pump drains what is queued.
func (c *Client) closeCommands() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.Commands)
	return true
}
