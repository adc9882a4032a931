package core

import (
	"time"

	"github.com/vovakirdan/whiteboard-relay/internal/config"
)

// Policy holds the admission, history and cleanup rules applied to every room.
type Policy struct {
	// SingleProfessor rejects a second professor with PROFESSOR_EXISTS.
	// Otherwise up to MaxProfessors are admitted.
	SingleProfessor bool
	MaxProfessors   int
	// MaxStudents of 0 means no student cap.
	MaxStudents int
	// MaxParticipants > 0 caps professors and students together.
	MaxParticipants  int
	RequireProfessor bool

	History HistoryBound

	// GracePeriod of 0 deletes an emptied room immediately.
	GracePeriod time.Duration
	InactiveTTL time.Duration
	// JanitorInterval of 0 disables the periodic sweep.
	JanitorInterval time.Duration
}

// PolicyFromConfig translates room configuration.
func PolicyFromConfig(c config.RoomConfig) Policy {
	p := Policy{
		SingleProfessor:  c.ProfessorMode == config.ProfessorModeSingle,
		MaxProfessors:    c.MaxProfessors,
		MaxStudents:      c.MaxStudents,
		MaxParticipants:  c.MaxParticipants,
		RequireProfessor: c.RequireProfessor,
		History:          HistoryBound{Limit: c.HistoryLimit, TrimTo: c.HistoryTrimTo},
		GracePeriod:      c.GracePeriod,
		InactiveTTL:      c.InactiveTTL,
		JanitorInterval:  c.JanitorInterval,
	}
	if p.SingleProfessor || p.MaxProfessors < 1 {
		p.MaxProfessors = 1
	}
	return p
}

// DefaultPolicy is the multi-professor, professor-optional policy.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultRoom())
}
