package core

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"
)

// RoomRegistry maps normalized room keys to rooms. It is owned by the hub loop
// and performs no locking of its own.
type RoomRegistry struct {
	rooms map[string]*Room
}

// NewRoomRegistry returns an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*Room)}
}

// Get looks up a room by normalized key.
func (r *RoomRegistry) Get(key string) (*Room, bool) {
	room, ok := r.rooms[key]
	return room, ok
}

// Create registers a new room. It fails with ErrRoomExists if the key is taken.
func (r *RoomRegistry) Create(key, createdBy string, now time.Time) (*Room, error) {
	if _, exists := r.rooms[key]; exists {
		return nil, fmt.Errorf("create room %q: %w", key, ErrRoomExists)
	}
	room := NewRoom(key, createdBy, now)
	r.rooms[key] = room
	return room, nil
}

// Delete removes a room. Returns true if it existed.
func (r *RoomRegistry) Delete(key string) bool {
	if _, ok := r.rooms[key]; !ok {
		return false
	}
	delete(r.rooms, key)
	return true
}

// Len is the number of registered rooms.
func (r *RoomRegistry) Len() int {
	return len(r.rooms)
}

// List yields (key, summary) pairs ordered by key. Summaries are computed as the
// sequence is consumed and every range over the result starts from scratch.
func (r *RoomRegistry) List() iter.Seq2[string, RoomSummary] {
	return func(yield func(string, RoomSummary) bool) {
		for _, key := range slices.Sorted(maps.Keys(r.rooms)) {
			room, ok := r.rooms[key]
			if !ok {
				continue
			}
			if !yield(key, room.Summary()) {
				return
			}
		}
	}
}

// SessionRegistry maps connection ids to sessions.
type SessionRegistry struct {
	sessions map[string]*Session
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Get looks up the session bound to a connection.
func (s *SessionRegistry) Get(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// Set binds a session to a connection, replacing any previous one.
func (s *SessionRegistry) Set(id string, sess *Session) {
	s.sessions[id] = sess
}

// Delete unbinds a connection. Returns true if it had a session.
func (s *SessionRegistry) Delete(id string) bool {
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Has reports whether a connection has joined a room.
func (s *SessionRegistry) Has(id string) bool {
	_, ok := s.sessions[id]
	return ok
}

// Len is the number of bound sessions.
func (s *SessionRegistry) Len() int {
	return len(s.sessions)
}

// Store groups the registries. One Store is built at process start and injected
// into the state machine; tests build a fresh one per case.
type Store struct {
	Rooms    *RoomRegistry
	Sessions *SessionRegistry
}

// NewStore returns a store with empty registries.
func NewStore() *Store {
	return &Store{
		Rooms:    NewRoomRegistry(),
		Sessions: NewSessionRegistry(),
	}
}
