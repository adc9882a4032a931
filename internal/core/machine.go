package core

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/whiteboard-relay/internal/utils"
)

// Machine is the room state machine. Every method must be called from a single
// goroutine (the hub loop); it never blocks and never locks.
type Machine struct {
	store  *Store
	policy Policy
	out    Dispatcher
	sched  Scheduler
	log    *zerolog.Logger

	now    func() time.Time
	newKey func() string
	newID  func() string
}

// NewMachine builds a state machine over store.
func NewMachine(store *Store, policy Policy, out Dispatcher, sched Scheduler, logger *zerolog.Logger) *Machine {
	return &Machine{
		store:  store,
		policy: policy,
		out:    out,
		sched:  sched,
		log:    logger,
		now:    time.Now,
		newKey: utils.NewRoomKey,
		newID:  utils.NewID,
	}
}

// Apply routes a client command to the matching operation.
func (m *Machine) Apply(connID string, cmd *Command) error {
	switch cmd.Kind {
	case CommandJoinProfessor:
		_, err := m.JoinAsProfessor(connID, cmd.RoomKey, cmd.Name, cmd.CreateIfAbsent)
		return err
	case CommandJoinStudent:
		_, err := m.JoinAsStudent(connID, cmd.RoomKey, cmd.Name)
		return err
	case CommandDraw:
		return m.Draw(connID, cmd.Path, cmd.Color, cmd.Width)
	case CommandClear:
		return m.Clear(connID)
	default:
		return errUnknownKind
	}
}

// JoinAsProfessor creates or joins a room with drawing rights. An empty roomKey
// generates a random one when creation is allowed.
func (m *Machine) JoinAsProfessor(connID, roomKey, name string, createIfAbsent bool) (*JoinResult, error) {
	if roomKey == "" && !createIfAbsent {
		return nil, coreError(ErrCodeMissingData, "room key is required")
	}
	name, cerr := NormalizeName(name)
	if cerr != nil {
		return nil, cerr
	}

	if roomKey == "" {
		roomKey = m.newKey()
	} else if roomKey, cerr = NormalizeRoomKey(roomKey); cerr != nil {
		return nil, cerr
	}

	room, exists := m.store.Rooms.Get(roomKey)
	if !exists && !createIfAbsent {
		return nil, coreError(ErrCodeRoomNotFound, "room not found")
	}
	if exists {
		if err := m.admitProfessor(room, connID); err != nil {
			return nil, err
		}
	}

	return m.join(connID, roomKey, name, RoleProfessor)
}

// JoinAsStudent joins an existing room as a viewer.
func (m *Machine) JoinAsStudent(connID, roomKey, name string) (*JoinResult, error) {
	if roomKey == "" {
		return nil, coreError(ErrCodeMissingData, "room key is required")
	}
	name, cerr := NormalizeName(name)
	if cerr != nil {
		return nil, cerr
	}
	if roomKey, cerr = NormalizeRoomKey(roomKey); cerr != nil {
		return nil, cerr
	}

	room, exists := m.store.Rooms.Get(roomKey)
	if !exists {
		return nil, coreError(ErrCodeRoomNotFound, "room not found")
	}
	if err := m.admitStudent(room, connID); err != nil {
		return nil, err
	}

	return m.join(connID, roomKey, name, RoleStudent)
}

// counts excludes connID so a re-join of the same connection is not counted twice.
func counts(room *Room, connID string) (professors, students int) {
	professors, students = len(room.professors), len(room.students)
	switch role, ok := room.RoleOf(connID); {
	case ok && role == RoleProfessor:
		professors--
	case ok && role == RoleStudent:
		students--
	}
	return professors, students
}

func (m *Machine) admitProfessor(room *Room, connID string) *CoreError {
	professors, students := counts(room, connID)
	if professors >= m.policy.MaxProfessors {
		if m.policy.SingleProfessor {
			return coreError(ErrCodeProfessorExists, "room already has a professor")
		}
		return coreError(ErrCodeProfessorLimitReached, "room has reached its professor limit")
	}
	if m.policy.MaxParticipants > 0 && professors+students >= m.policy.MaxParticipants {
		return coreError(ErrCodeRoomFull, "room is full")
	}
	return nil
}

func (m *Machine) admitStudent(room *Room, connID string) *CoreError {
	professors, students := counts(room, connID)
	if m.policy.RequireProfessor && professors == 0 {
		return coreError(ErrCodeNoProfessor, "no professor in the room")
	}
	if m.policy.MaxStudents > 0 && students >= m.policy.MaxStudents {
		return coreError(ErrCodeRoomFull, "room is full")
	}
	if m.policy.MaxParticipants > 0 && professors+students >= m.policy.MaxParticipants {
		return coreError(ErrCodeRoomFull, "room is full")
	}
	return nil
}

// join runs after admission succeeded: it registers the session, then replays
// history to the joiner and broadcasts the user list.
func (m *Machine) join(connID, roomKey, name string, role Role) (*JoinResult, error) {
	now := m.now()

	if prev, ok := m.store.Sessions.Get(connID); ok {
		if prev.RoomKey == roomKey {
			if room, found := m.store.Rooms.Get(roomKey); found {
				room.RemoveParticipant(connID)
			}
		} else {
			m.leave(prev)
		}
	}

	room, exists := m.store.Rooms.Get(roomKey)
	created := false
	if !exists {
		var err error
		room, err = m.store.Rooms.Create(roomKey, name, now)
		if err != nil {
			return nil, err
		}
		created = true
		m.log.Info().Str("room", roomKey).Str("created_by", name).Msg("room created")
	}

	room.activate()
	room.AddParticipant(connID, role)
	room.touch(now)

	m.store.Sessions.Set(connID, &Session{
		ID:       connID,
		Role:     role,
		Name:     name,
		RoomKey:  roomKey,
		JoinedAt: now,
	})

	result := &JoinResult{
		RoomKey:        roomKey,
		Role:           role,
		Name:           name,
		Created:        created,
		UserCount:      room.Occupancy(),
		ProfessorCount: len(room.professors),
		StudentCount:   len(room.students),
	}

	m.log.Info().
		Str("conn_id", connID).
		Str("room", roomKey).
		Str("role", string(role)).
		Str("name", name).
		Int("occupancy", result.UserCount).
		Msg("participant joined")

	m.out.ToConnection(connID, &Event{Kind: EventRoomJoined, Room: roomKey, Joined: result})
	m.out.ToConnection(connID, &Event{Kind: EventRoomHistory, Room: roomKey, History: room.History()})
	m.out.ToRoom(roomKey, &Event{Kind: EventUserList, Room: roomKey, Users: m.userList(room)})

	return result, nil
}

// authorize returns the sender's session and room for a professor-only action.
func (m *Machine) authorize(connID, action string) (*Session, *Room, error) {
	sess, ok := m.store.Sessions.Get(connID)
	if !ok {
		return nil, nil, coreError(ErrCodeSessionNotFound, "join a room first")
	}
	if sess.Role != RoleProfessor {
		m.log.Warn().
			Str("conn_id", connID).
			Str("room", sess.RoomKey).
			Str("name", sess.Name).
			Str("role", string(sess.Role)).
			Str("action", action).
			Msg("permission denied")
		return nil, nil, coreError(ErrCodePermissionDenied, "only professors can "+action)
	}
	room, ok := m.store.Rooms.Get(sess.RoomKey)
	if !ok {
		return nil, nil, coreError(ErrCodeRoomGone, "room no longer exists")
	}
	return sess, room, nil
}

// Draw appends a stroke to the sender's room and relays it to everyone else.
// Missing or empty paths are dropped without an error.
func (m *Machine) Draw(connID string, path []Point, color string, width float64) error {
	sess, room, err := m.authorize(connID, "draw")
	if err != nil {
		return err
	}
	if len(path) == 0 {
		m.log.Debug().Str("conn_id", connID).Str("room", room.Key).Msg("dropping draw command without path")
		return nil
	}

	now := m.now()
	cmd := DrawCommand{
		ID:         m.newID(),
		Path:       path,
		Color:      color,
		Width:      width,
		Timestamp:  now,
		AuthorID:   sess.ID,
		AuthorName: sess.Name,
		RoomKey:    room.Key,
	}
	room.appendHistory(cmd, m.policy.History)
	room.touch(now)

	m.out.ToRoomExcept(room.Key, connID, &Event{Kind: EventDraw, Room: room.Key, Draw: &cmd})
	return nil
}

// Clear empties the room history and notifies every participant, sender included.
func (m *Machine) Clear(connID string) error {
	sess, room, err := m.authorize(connID, "clear the canvas")
	if err != nil {
		return err
	}

	now := m.now()
	room.clearHistory()
	room.touch(now)

	m.log.Info().Str("room", room.Key).Str("name", sess.Name).Msg("canvas cleared")
	m.out.ToRoom(room.Key, &Event{
		Kind:    EventCanvasCleared,
		Room:    room.Key,
		Cleared: &ClearNotice{Timestamp: now, ClearedBy: sess.Name},
	})
	return nil
}

// Disconnect removes the connection's session. Unknown connections are ignored.
func (m *Machine) Disconnect(connID string) {
	sess, ok := m.store.Sessions.Get(connID)
	if !ok {
		return
	}
	m.leave(sess)
}

func (m *Machine) leave(sess *Session) {
	m.store.Sessions.Delete(sess.ID)

	room, ok := m.store.Rooms.Get(sess.RoomKey)
	if !ok {
		return
	}
	room.RemoveParticipant(sess.ID)
	room.touch(m.now())

	m.log.Info().
		Str("conn_id", sess.ID).
		Str("room", room.Key).
		Str("role", string(sess.Role)).
		Int("occupancy", room.Occupancy()).
		Msg("participant left")

	if room.Empty() {
		m.drain(room)
		return
	}
	m.out.ToRoom(room.Key, &Event{Kind: EventUserList, Room: room.Key, Users: m.userList(room)})
}

func (m *Machine) drain(room *Room) {
	if m.policy.GracePeriod <= 0 || m.sched == nil {
		m.deleteRoom(room, "empty")
		return
	}

	room.drainGen++
	gen := room.drainGen
	key := room.Key
	room.State = RoomDraining
	room.cancelDrain = m.sched.Schedule(m.policy.GracePeriod, func() {
		m.expireDrain(key, gen)
	})
	m.log.Debug().Str("room", key).Dur("grace", m.policy.GracePeriod).Msg("room draining")
}

// expireDrain runs when a grace period elapses. It looks the room up again and
// only deletes it if it is still the same drain and still empty.
func (m *Machine) expireDrain(key string, gen uint64) {
	room, ok := m.store.Rooms.Get(key)
	if !ok {
		return
	}
	if room.State != RoomDraining || room.drainGen != gen || !room.Empty() {
		return
	}
	m.deleteRoom(room, "grace period elapsed")
}

func (m *Machine) deleteRoom(room *Room, reason string) {
	if room.cancelDrain != nil {
		room.cancelDrain()
		room.cancelDrain = nil
	}
	m.store.Rooms.Delete(room.Key)
	m.log.Info().Str("room", room.Key).Str("reason", reason).Msg("room deleted")
}

// Sweep deletes empty rooms whose last activity is older than the inactivity TTL.
func (m *Machine) Sweep(now time.Time) int {
	var stale []*Room
	for key := range m.store.Rooms.List() {
		room, _ := m.store.Rooms.Get(key)
		if room.Empty() && now.Sub(room.LastActivity) >= m.policy.InactiveTTL {
			stale = append(stale, room)
		}
	}
	for _, room := range stale {
		m.deleteRoom(room, "inactive")
	}
	if len(stale) > 0 {
		m.log.Info().Int("removed", len(stale)).Msg("janitor sweep")
	}
	return len(stale)
}

// Stop cancels every pending drain timer.
func (m *Machine) Stop() {
	for key := range m.store.Rooms.List() {
		room, _ := m.store.Rooms.Get(key)
		if room.cancelDrain != nil {
			room.cancelDrain()
			room.cancelDrain = nil
		}
	}
}

// Summaries lists all rooms ordered by key.
func (m *Machine) Summaries() []RoomSummary {
	out := make([]RoomSummary, 0, m.store.Rooms.Len())
	for _, summary := range m.store.Rooms.List() {
		out = append(out, summary)
	}
	return out
}

// Detail describes one room. key is normalized like every other entry point.
func (m *Machine) Detail(key string) (RoomDetail, bool) {
	key, cerr := NormalizeRoomKey(key)
	if cerr != nil {
		return RoomDetail{}, false
	}
	room, ok := m.store.Rooms.Get(key)
	if !ok {
		return RoomDetail{}, false
	}
	users := m.userList(room)
	detail := RoomDetail{
		RoomSummary:    room.Summary(),
		ProfessorNames: make([]string, 0, len(users.Professors)),
		StudentNames:   make([]string, 0, len(users.Students)),
	}
	for _, p := range users.Professors {
		detail.ProfessorNames = append(detail.ProfessorNames, p.Name)
	}
	for _, s := range users.Students {
		detail.StudentNames = append(detail.StudentNames, s.Name)
	}
	return detail, true
}

// SessionCount is the number of joined connections.
func (m *Machine) SessionCount() int {
	return m.store.Sessions.Len()
}

func (m *Machine) userList(room *Room) *UserList {
	list := &UserList{
		Total:      room.Occupancy(),
		Professors: make([]Participant, 0, len(room.professors)),
		Students:   make([]Participant, 0, len(room.students)),
	}
	for _, id := range room.professors {
		list.Professors = append(list.Professors, m.participant(id))
	}
	for _, id := range room.students {
		list.Students = append(list.Students, m.participant(id))
	}
	return list
}

func (m *Machine) participant(id string) Participant {
	p := Participant{ID: id}
	if sess, ok := m.store.Sessions.Get(id); ok {
		p.Name = sess.Name
	}
	return p
}
