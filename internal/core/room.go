package core

import (
	"slices"
	"time"
)

// RoomState is the lifecycle stage of a registered room.
type RoomState int

const (
	// RoomActive has at least one participant.
	RoomActive RoomState = iota
	// RoomDraining is empty and waiting for its grace period to elapse.
	RoomDraining
)

func (s RoomState) String() string {
	switch s {
	case RoomActive:
		return "active"
	case RoomDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Room is an isolated whiteboard with its participants and draw history.
// Participant slices hold connection ids only; sessions are owned by the SessionRegistry.
type Room struct {
	Key          string
	CreatedBy    string
	CreatedAt    time.Time
	LastActivity time.Time
	State        RoomState

	professors []string
	students   []string
	history    []DrawCommand

	drainGen    uint64
	cancelDrain func() bool
}

// NewRoom constructs an active room with no participants.
func NewRoom(key, createdBy string, now time.Time) *Room {
	return &Room{
		Key:          key,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		LastActivity: now,
		State:        RoomActive,
	}
}

// AddParticipant inserts a connection under the given role. Returns true if newly added.
func (r *Room) AddParticipant(id string, role Role) bool {
	if _, ok := r.RoleOf(id); ok {
		return false
	}
	if role == RoleProfessor {
		r.professors = append(r.professors, id)
	} else {
		r.students = append(r.students, id)
	}
	return true
}

// RemoveParticipant deletes a connection from whichever set holds it.
func (r *Room) RemoveParticipant(id string) (Role, bool) {
	if i := slices.Index(r.professors, id); i >= 0 {
		r.professors = slices.Delete(r.professors, i, i+1)
		return RoleProfessor, true
	}
	if i := slices.Index(r.students, id); i >= 0 {
		r.students = slices.Delete(r.students, i, i+1)
		return RoleStudent, true
	}
	return "", false
}

// RoleOf reports the role a connection holds in this room.
func (r *Room) RoleOf(id string) (Role, bool) {
	if slices.Contains(r.professors, id) {
		return RoleProfessor, true
	}
	if slices.Contains(r.students, id) {
		return RoleStudent, true
	}
	return "", false
}

// Professors returns professor connection ids in join order.
func (r *Room) Professors() []string { return slices.Clone(r.professors) }

// Students returns student connection ids in join order.
func (r *Room) Students() []string { return slices.Clone(r.students) }

// Members returns professors followed by students.
func (r *Room) Members() []string {
	out := make([]string, 0, r.Occupancy())
	out = append(out, r.professors...)
	return append(out, r.students...)
}

// Occupancy is professors plus students.
func (r *Room) Occupancy() int {
	return len(r.professors) + len(r.students)
}

// Empty returns true if no participants are in the room.
func (r *Room) Empty() bool {
	return r.Occupancy() == 0
}

// History returns a snapshot of the draw history in append order.
func (r *Room) History() []DrawCommand {
	return slices.Clone(r.history)
}

// HistoryLen is the number of recorded commands.
func (r *Room) HistoryLen() int {
	return len(r.history)
}

func (r *Room) appendHistory(cmd DrawCommand, bound HistoryBound) {
	r.history = bound.Append(r.history, cmd)
}

func (r *Room) clearHistory() {
	r.history = nil
}

func (r *Room) touch(now time.Time) {
	r.LastActivity = now
}

// activate cancels any pending drain. Stale drain callbacks are ignored via drainGen.
func (r *Room) activate() {
	if r.cancelDrain != nil {
		r.cancelDrain()
		r.cancelDrain = nil
	}
	if r.State == RoomDraining {
		r.drainGen++
	}
	r.State = RoomActive
}

// RoomSummary is a read-only view of a room for status reporting.
type RoomSummary struct {
	Key           string
	Professors    int
	Students      int
	Total         int
	HistoryLength int
	CreatedBy     string
	CreatedAt     time.Time
	LastActivity  time.Time
	State         string
}

// Summary snapshots the room counters.
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		Key:           r.Key,
		Professors:    len(r.professors),
		Students:      len(r.students),
		Total:         r.Occupancy(),
		HistoryLength: len(r.history),
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		LastActivity:  r.LastActivity,
		State:         r.State.String(),
	}
}

// RoomDetail adds participant names to a summary.
type RoomDetail struct {
	RoomSummary
	ProfessorNames []string
	StudentNames   []string
}
