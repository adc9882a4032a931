package core

import "time"

// Point is a single 2D coordinate of a stroke.
type Point [2]float64

// DrawCommand is one recorded stroke. It is never mutated after it is appended to a room history.
type DrawCommand struct {
	ID         string
	Path       []Point
	Color      string
	Width      float64
	Timestamp  time.Time
	AuthorID   string
	AuthorName string
	RoomKey    string
}

// HistoryBound caps a room history. Once its length exceeds Limit the oldest
// entries are evicted so that only the most recent TrimTo remain.
type HistoryBound struct {
	Limit  int
	TrimTo int
}

// Append adds cmd to history and applies the eviction policy.
func (b HistoryBound) Append(history []DrawCommand, cmd DrawCommand) []DrawCommand {
	history = append(history, cmd)
	if b.Limit <= 0 || len(history) <= b.Limit {
		return history
	}

	keep := b.TrimTo
	if keep > len(history) {
		keep = len(history)
	}
	// Copy into a fresh array so snapshots handed out earlier never observe the eviction.
	trimmed := make([]DrawCommand, keep, b.Limit+1)
	copy(trimmed, history[len(history)-keep:])
	return trimmed
}
