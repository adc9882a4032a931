package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventJoinProfessor = "join-room-as-professor"
	EventJoinStudent   = "join-room-as-student"
	EventDrawCommand   = "draw-command"
	EventClearCanvas   = "clear-canvas"
)

// Outbound event names.
const (
	EventRoomJoined       = "room-joined"
	EventRoomError        = "room-error"
	EventRoomHistory      = "room-history"
	EventCanvasCleared    = "canvas-cleared"
	EventUserListUpdate   = "user-list-update"
	EventPermissionDenied = "permission-denied"
)

// JoinProfessorData is sent to create or join a room as its professor.
// A missing CreateIfNotExists means true.
type JoinProfessorData struct {
	RoomKey           string `json:"roomKey,omitempty"`
	ProfessorName     string `json:"professorName"`
	CreateIfNotExists *bool  `json:"createIfNotExists,omitempty"`
}

// JoinStudentData joins an existing room as a viewer.
type JoinStudentData struct {
	RoomKey     string `json:"roomKey"`
	StudentName string `json:"studentName"`
}

// DrawData is a stroke from a professor. Path is a list of points, each an array
// starting with x and y; trailing values are discarded. A path with any point
// lacking two finite coordinates is dropped instead of failing the message.
type DrawData struct {
	Path  json.RawMessage `json:"path"`
	Color string          `json:"color"`
	Width float64         `json:"width"`
}

// RoomJoined confirms a join to the joiner.
type RoomJoined struct {
	Success        bool   `json:"success"`
	RoomKey        string `json:"roomKey"`
	Role           string `json:"role"`
	Name           string `json:"name"`
	Created        bool   `json:"created"`
	UserCount      int    `json:"userCount"`
	ProfessorCount int    `json:"professorCount"`
	StudentCount   int    `json:"studentCount"`
}

// DrawCommand is a recorded stroke as replayed and relayed to clients.
// Timestamp is milliseconds since the Unix epoch.
type DrawCommand struct {
	ID         string       `json:"id"`
	Path       [][2]float64 `json:"path"`
	Color      string       `json:"color"`
	Width      float64      `json:"width"`
	Timestamp  int64        `json:"timestamp"`
	AuthorID   string       `json:"authorId"`
	AuthorName string       `json:"authorName"`
	RoomKey    string       `json:"roomKey"`
}

// RoomHistory replays the room's strokes in append order.
type RoomHistory struct {
	RoomKey  string        `json:"roomKey"`
	Commands []DrawCommand `json:"commands"`
}

// CanvasCleared is broadcast to every participant when a professor clears the canvas.
type CanvasCleared struct {
	Timestamp int64  `json:"timestamp"`
	ClearedBy string `json:"clearedBy"`
}

// User is an entry of a user list.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserListUpdate carries room occupancy.
type UserListUpdate struct {
	RoomKey    string `json:"roomKey"`
	Total      int    `json:"total"`
	Professors []User `json:"professors"`
	Students   []User `json:"students"`
}

// Error describes a protocol-level error response.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// PollSession is returned when a polling connection is opened.
type PollSession struct {
	SID   string `json:"sid"`
	Token string `json:"token"`
}

// PollBatch is the body of a long-poll response.
type PollBatch struct {
	Events []Outbound `json:"events"`
}
