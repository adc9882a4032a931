package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/whiteboard-relay/internal/auth"
	"github.com/vovakirdan/whiteboard-relay/internal/config"
	"github.com/vovakirdan/whiteboard-relay/internal/core"
	"github.com/vovakirdan/whiteboard-relay/internal/proto"
	"github.com/vovakirdan/whiteboard-relay/internal/utils"
)

const (
	pollRepliesBuffer = 16
	pollMaxBatch      = 128
)

// pollConn is one long-polling client. Transport-level errors have no socket to
// be written to, so they are queued in replies and merged into the next poll.
type pollConn struct {
	client   *core.Client
	limiter  *rateLimiter
	replies  chan proto.Outbound
	lastSeen atomic.Int64

	// receiving serializes GET requests so events are not split across concurrent polls.
	receiving sync.Mutex
}

func (p *pollConn) touch(now time.Time) {
	p.lastSeen.Store(now.UnixNano())
}

func (p *pollConn) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, p.lastSeen.Load()))
}

func (p *pollConn) reply(out proto.Outbound) bool {
	select {
	case p.replies <- out:
		return true
	default:
		return false
	}
}

// PollHandler is the fallback transport for clients that cannot hold a websocket.
type PollHandler struct {
	hub ClientHub
	cfg config.Config
	jwt *auth.JWTConfig
	log *zerolog.Logger

	mu    sync.Mutex
	conns map[string]*pollConn
}

// NewPollHandler creates a polling transport. Call Run to reap idle connections.
func NewPollHandler(hub ClientHub, cfg config.Config, jwtConfig *auth.JWTConfig, logger *zerolog.Logger) *PollHandler {
	return &PollHandler{
		hub:   hub,
		cfg:   cfg,
		jwt:   jwtConfig,
		log:   logger,
		conns: make(map[string]*pollConn),
	}
}

func (h *PollHandler) get(sid string) (*pollConn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pc, ok := h.conns[sid]
	return pc, ok
}

// drop unregisters the connection once; later calls are no-ops.
func (h *PollHandler) drop(sid, reason string) {
	h.mu.Lock()
	pc, ok := h.conns[sid]
	delete(h.conns, sid)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.hub.UnregisterClient(pc.client)
	h.log.Debug().Str("conn_id", sid).Str("transport", "poll").Str("reason", reason).Msg("poll disconnected")
}

// Len is the number of open polling connections.
func (h *PollHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Open starts a polling connection.
// POST /poll
func (h *PollHandler) Open(c *gin.Context) {
	sid := utils.NewID()
	token, err := auth.GenerateToken(h.jwt, sid)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to sign poll token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	pc := &pollConn{
		client:  core.NewClient(sid, h.cfg.EventBuffer),
		limiter: newRateLimiter(h.cfg.MessagesPerMinute),
		replies: make(chan proto.Outbound, pollRepliesBuffer),
	}
	pc.touch(time.Now())

	h.mu.Lock()
	h.conns[sid] = pc
	h.mu.Unlock()
	h.hub.RegisterClient(pc.client)

	h.log.Debug().Str("conn_id", sid).Str("transport", "poll").Msg("poll connected")
	c.JSON(http.StatusCreated, proto.PollSession{SID: sid, Token: token})
}

// Receive long-polls for outbound events.
// GET /poll/:sid
func (h *PollHandler) Receive(c *gin.Context) {
	sid := c.GetString(ContextKeyPollSID)
	pc, ok := h.get(sid)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "poll session not found"})
		return
	}
	if !pc.receiving.TryLock() {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "poll already in progress"})
		return
	}
	defer pc.receiving.Unlock()

	pc.touch(time.Now())
	defer func() { pc.touch(time.Now()) }()

	batch, evicted := h.collect(c.Request.Context(), pc)
	if evicted && len(batch) == 0 {
		h.drop(sid, "evicted")
		c.JSON(http.StatusGone, ErrorResponse{Error: "connection closed"})
		return
	}
	c.JSON(http.StatusOK, proto.PollBatch{Events: batch})
}

// collect waits for the first outbound message, then takes whatever else is ready.
func (h *PollHandler) collect(ctx context.Context, pc *pollConn) ([]proto.Outbound, bool) {
	timer := time.NewTimer(h.cfg.PollTimeout)
	defer timer.Stop()

	batch := make([]proto.Outbound, 0, 8)
	select {
	case out := <-pc.replies:
		batch = append(batch, out)
	case ev := <-pc.client.Events:
		batch = append(batch, outboundFromEvent(ev))
	case <-pc.client.Evicted():
		return batch, true
	case <-timer.C:
		return batch, false
	case <-ctx.Done():
		return batch, false
	}

	for len(batch) < pollMaxBatch {
		select {
		case out := <-pc.replies:
			batch = append(batch, out)
		case ev := <-pc.client.Events:
			batch = append(batch, outboundFromEvent(ev))
		default:
			return batch, false
		}
	}
	return batch, false
}

// Send accepts one envelope or an array of envelopes.
// POST /poll/:sid
func (h *PollHandler) Send(c *gin.Context) {
	sid := c.GetString(ContextKeyPollSID)
	pc, ok := h.get(sid)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "poll session not found"})
		return
	}
	pc.touch(time.Now())

	if h.cfg.MaxMessageBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxMessageBytes)
	}
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "message too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	inbound, err := decodeInbound(body)
	if err != nil {
		h.log.Debug().Err(err).Str("conn_id", sid).Msg("malformed poll body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	accepted := 0
	for _, in := range inbound {
		if !pc.limiter.allow() {
			h.log.Warn().Str("conn_id", sid).Msg("rate limit exceeded")
			pc.reply(errorOutbound(protoError(core.ErrCodeRateLimited, "too many messages")))
			continue
		}
		cmd, protoErr := inboundToCommand(in)
		if protoErr != nil {
			pc.reply(errorOutbound(protoErr))
			continue
		}
		if err := pc.client.Submit(c.Request.Context(), cmd); err != nil {
			h.drop(sid, "submit failed")
			c.JSON(http.StatusGone, ErrorResponse{Error: "connection closed"})
			return
		}
		accepted++
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}

// Close ends a polling connection.
// DELETE /poll/:sid
func (h *PollHandler) Close(c *gin.Context) {
	h.drop(c.GetString(ContextKeyPollSID), "closed by client")
	c.Status(http.StatusNoContent)
}

func decodeInbound(body []byte) ([]proto.Inbound, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var batch []proto.Inbound
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	var single proto.Inbound
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []proto.Inbound{single}, nil
}

// Run disconnects idle or evicted polling clients until ctx is cancelled.
func (h *PollHandler) Run(ctx context.Context) {
	interval := h.cfg.PollIdleTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			h.reap(now)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *PollHandler) reap(now time.Time) int {
	var stale []string
	h.mu.Lock()
	for sid, pc := range h.conns {
		select {
		case <-pc.client.Evicted():
			stale = append(stale, sid)
			continue
		default:
		}
		if h.cfg.PollIdleTimeout > 0 && pc.idleSince(now) >= h.cfg.PollIdleTimeout {
			stale = append(stale, sid)
		}
	}
	h.mu.Unlock()

	for _, sid := range stale {
		h.drop(sid, "idle")
	}
	return len(stale)
}

func (h *PollHandler) closeAll() {
	h.mu.Lock()
	sids := make([]string, 0, len(h.conns))
	for sid := range h.conns {
		sids = append(sids, sid)
	}
	h.mu.Unlock()

	for _, sid := range sids {
		h.drop(sid, "shutdown")
	}
}
