package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/whiteboard-relay/internal/core"
)

// HubReader answers read-only queries from the hub loop.
type HubReader interface {
	Rooms(ctx context.Context) ([]core.RoomSummary, error)
	Room(ctx context.Context, key string) (core.RoomDetail, bool, error)
	Stats(ctx context.Context) (core.Stats, error)
}

// RoomHandlers provides HTTP handlers for room status endpoints.
type RoomHandlers struct {
	hub HubReader
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub HubReader, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub: hub,
		log: logger,
	}
}

// RoomResponse represents a room summary in API responses.
type RoomResponse struct {
	RoomKey       string `json:"roomKey"`
	Professors    int    `json:"professors"`
	Students      int    `json:"students"`
	Total         int    `json:"total"`
	HistoryLength int    `json:"historyLength"`
	CreatedBy     string `json:"createdBy"`
	CreatedAt     string `json:"createdAt"`
	LastActivity  string `json:"lastActivity"`
	State         string `json:"state"`
}

// RoomDetailResponse adds participant names.
type RoomDetailResponse struct {
	RoomResponse
	ProfessorNames []string `json:"professorNames"`
	StudentNames   []string `json:"studentNames"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string         `json:"status"`
	Timestamp     string         `json:"timestamp"`
	UptimeSeconds int64          `json:"uptimeSeconds"`
	Connections   int            `json:"connections"`
	Sessions      int            `json:"sessions"`
	RoomCount     int            `json:"roomCount"`
	Rooms         []RoomResponse `json:"rooms"`
}

func roomToResponse(s core.RoomSummary) RoomResponse {
	return RoomResponse{
		RoomKey:       s.Key,
		Professors:    s.Professors,
		Students:      s.Students,
		Total:         s.Total,
		HistoryLength: s.HistoryLength,
		CreatedBy:     s.CreatedBy,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		LastActivity:  s.LastActivity.Format(time.RFC3339),
		State:         s.State,
	}
}

func roomsToResponse(in []core.RoomSummary) []RoomResponse {
	out := make([]RoomResponse, 0, len(in))
	for _, s := range in {
		out = append(out, roomToResponse(s))
	}
	return out
}

// Health reports process status and per-room occupancy.
// GET /health
func (h *RoomHandlers) Health(c *gin.Context) {
	stats, err := h.hub.Stats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to collect stats")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable"})
		return
	}

	now := time.Now()
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Timestamp:     now.Format(time.RFC3339),
		UptimeSeconds: int64(now.Sub(stats.StartedAt).Seconds()),
		Connections:   stats.Connections,
		Sessions:      stats.Sessions,
		RoomCount:     len(stats.Rooms),
		Rooms:         roomsToResponse(stats.Rooms),
	})
}

// ListRooms handles listing active rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.hub.Rooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable"})
		return
	}

	h.log.Debug().Int("room_count", len(rooms)).Msg("rooms listed")
	c.JSON(http.StatusOK, roomsToResponse(rooms))
}

// GetRoom returns one room. The key is case-insensitive.
// GET /api/rooms/:roomKey
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	key := c.Param("roomKey")
	detail, found, err := h.hub.Room(c.Request.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Str("room", key).Msg("failed to get room")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}

	c.JSON(http.StatusOK, RoomDetailResponse{
		RoomResponse:   roomToResponse(detail.RoomSummary),
		ProfessorNames: detail.ProfessorNames,
		StudentNames:   detail.StudentNames,
	})
}
