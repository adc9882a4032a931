package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinProfessor creates or joins a room with drawing rights.
	CommandJoinProfessor CommandKind = iota
	// CommandJoinStudent joins an existing room as a viewer.
	CommandJoinStudent
	// CommandDraw records and relays a stroke.
	CommandDraw
	// CommandClear wipes the room history.
	CommandClear
)

// Command represents an action requested by a client. The role is never read
// from a command: it comes from the sender's session.
type Command struct {
	Kind           CommandKind
	RoomKey        string
	Name           string
	CreateIfAbsent bool

	// Path is nil when the client sent a missing or malformed path.
	Path  []Point
	Color string
	Width float64
}
