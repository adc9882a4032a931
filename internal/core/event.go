package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomJoined confirms a successful join to the joiner.
	EventRoomJoined EventKind = iota
	// EventRoomHistory replays the room history to a new participant.
	EventRoomHistory
	// EventDraw delivers a live stroke.
	EventDraw
	// EventCanvasCleared tells every participant to wipe the canvas.
	EventCanvasCleared
	// EventUserList carries the current participant list.
	EventUserList
	// EventRoomError reports a failed operation to the sender.
	EventRoomError
	// EventPermissionDenied reports a role violation to the sender.
	EventPermissionDenied
)

func (k EventKind) String() string {
	switch k {
	case EventRoomJoined:
		return "room-joined"
	case EventRoomHistory:
		return "room-history"
	case EventDraw:
		return "draw-command"
	case EventCanvasCleared:
		return "canvas-cleared"
	case EventUserList:
		return "user-list-update"
	case EventRoomError:
		return "room-error"
	case EventPermissionDenied:
		return "permission-denied"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// A single Event value may be shared by many recipients and must not be modified.
type Event struct {
	Kind    EventKind
	Room    string
	Joined  *JoinResult
	History []DrawCommand
	Draw    *DrawCommand
	Cleared *ClearNotice
	Users   *UserList
	Error   *CoreError
}

// JoinResult describes a successful join.
type JoinResult struct {
	RoomKey        string
	Role           Role
	Name           string
	Created        bool
	UserCount      int
	ProfessorCount int
	StudentCount   int
}

// ClearNotice is broadcast when a professor clears the canvas.
type ClearNotice struct {
	Timestamp time.Time
	ClearedBy string
}

// Participant is one entry of a user list.
type Participant struct {
	ID   string
	Name string
}

// UserList is the occupancy broadcast after joins and leaves.
type UserList struct {
	Total      int
	Professors []Participant
	Students   []Participant
}

func errorEvent(err *CoreError) *Event {
	kind := EventRoomError
	if err.IsAuthorization() {
		kind = EventPermissionDenied
	}
	return &Event{Kind: kind, Error: err}
}
