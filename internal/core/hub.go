package core

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const inboxSize = 1024

// Hub owns every room and session and runs all state-machine operations on a
// single goroutine. Transports talk to it through Client channels and the
// Register/Unregister calls; nothing else touches the registries.
type Hub struct {
	store    *Store
	machine  *Machine
	dispatch *clientDispatcher
	policy   Policy
	log      *zerolog.Logger

	inbox chan func()
	done  chan struct{}

	connections atomic.Int64
	startedAt   time.Time
}

// Stats is a point-in-time view for health reporting.
type Stats struct {
	StartedAt   time.Time
	Connections int
	Sessions    int
	Rooms       []RoomSummary
}

// NewHub creates a hub with a fresh store.
func NewHub(policy Policy, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	store := NewStore()
	h := &Hub{
		store:     store,
		dispatch:  newClientDispatcher(store.Rooms, logger),
		policy:    policy,
		log:       logger,
		inbox:     make(chan func(), inboxSize),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	h.machine = NewMachine(store, policy, h.dispatch, h, logger)
	return h
}

// Run processes hub work until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	var sweep <-chan time.Time
	if h.policy.JanitorInterval > 0 {
		ticker := time.NewTicker(h.policy.JanitorInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	h.log.Info().Msg("hub running")
	for {
		select {
		case fn := <-h.inbox:
			h.safely("task", nil, fn)
		case now := <-sweep:
			h.safely("sweep", nil, func() { h.machine.Sweep(now) })
		case <-ctx.Done():
			h.stop()
			return
		}
	}
}

func (h *Hub) stop() {
	h.machine.Stop()
	for _, client := range h.dispatch.clients {
		client.evict()
	}
	h.log.Info().Int("clients", len(h.dispatch.clients)).Msg("hub stopped")
}

// post queues fn for the loop. It reports false once the hub has stopped.
func (h *Hub) post(fn func()) bool {
	select {
	case h.inbox <- fn:
		return true
	case <-h.done:
		return false
	}
}

// Schedule implements Scheduler: fn runs on the hub loop after d.
func (h *Hub) Schedule(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, func() { h.post(fn) })
	return t.Stop
}

// RegisterClient attaches a new transport connection and starts forwarding its commands.
func (h *Hub) RegisterClient(c *Client) {
	h.connections.Add(1)
	registered := h.post(func() {
		h.dispatch.clients[c.ID] = c
		h.log.Debug().Str("conn_id", c.ID).Msg("client registered")
	})
	if !registered {
		c.evict()
	}
	go h.pump(c)
}

// UnregisterClient stops accepting commands from c. Commands already queued are
// processed before the disconnect runs. Safe to call more than once.
func (h *Hub) UnregisterClient(c *Client) {
	c.closeCommands()
}

// pump preserves per-client ordering: commands first, disconnect last.
func (h *Hub) pump(c *Client) {
	for cmd := range c.Commands {
		if !h.post(func() { h.handle(c, cmd) }) {
			break
		}
	}
	h.post(func() { h.disconnect(c) })
	h.connections.Add(-1)
}

func (h *Hub) disconnect(c *Client) {
	if _, ok := h.dispatch.clients[c.ID]; !ok {
		return
	}
	h.machine.Disconnect(c.ID)
	delete(h.dispatch.clients, c.ID)
	h.log.Debug().Str("conn_id", c.ID).Msg("client unregistered")
}

// handle is the error boundary for client commands: a failing or panicking
// operation produces an error event for the sender and nothing else.
func (h *Hub) handle(c *Client, cmd *Command) {
	h.safely("command", c, func() {
		if err := h.machine.Apply(c.ID, cmd); err != nil {
			h.replyError(c, err)
		}
	})
}

func (h *Hub) safely(what string, c *Client, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ev := h.log.Error().
			Str("what", what).
			Interface("panic", r).
			Bytes("stack", debug.Stack())
		if c != nil {
			ev = ev.Str("conn_id", c.ID)
		}
		ev.Msg("recovered from panic in hub")
		if c != nil {
			h.replyError(c, coreError(ErrCodeInternal, "internal server error"))
		}
	}()
	fn()
}

func (h *Hub) replyError(c *Client, err error) {
	ce, domain := AsCoreError(err)
	if !domain {
		h.log.Error().Err(err).Str("conn_id", c.ID).Msg("command failed")
	} else {
		h.log.Debug().Str("conn_id", c.ID).Str("code", ce.Code).Msg("command rejected")
	}
	c.deliver(errorEvent(ce))
}

// query runs fn on the loop and waits for it.
func (h *Hub) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	ok := h.post(func() {
		defer close(finished)
		fn()
	})
	if !ok {
		return ErrHubStopped
	}
	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rooms lists room summaries ordered by key.
func (h *Hub) Rooms(ctx context.Context) ([]RoomSummary, error) {
	var out []RoomSummary
	err := h.query(ctx, func() { out = h.machine.Summaries() })
	return out, err
}

// Room describes a single room; the key is case-insensitive.
func (h *Hub) Room(ctx context.Context, key string) (RoomDetail, bool, error) {
	var (
		detail RoomDetail
		found  bool
	)
	err := h.query(ctx, func() { detail, found = h.machine.Detail(key) })
	return detail, found, err
}

// Stats gathers counters and room summaries for health reporting.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{StartedAt: h.startedAt}
	err := h.query(ctx, func() {
		stats.Sessions = h.machine.SessionCount()
		stats.Rooms = h.machine.Summaries()
	})
	stats.Connections = h.Connections()
	return stats, err
}

// Connections is the number of registered transport connections.
func (h *Hub) Connections() int {
	return int(h.connections.Load())
}
