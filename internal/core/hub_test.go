package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, tweak func(*Policy)) (*Hub, context.CancelFunc) {
	t.Helper()

	policy := DefaultPolicy()
	if tweak != nil {
		tweak(&policy)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	hub := NewHub(policy, nil)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func submit(t *testing.T, c *Client, cmd *Command) {
	t.Helper()
	require.NoError(t, c.Submit(context.Background(), cmd), "submit")
}

func TestHubJoinDrawAndLeave(t *testing.T) {
	hub, _ := startHub(t, nil)

	prof := NewClient("p", 0)
	student := NewClient("s", 0)
	hub.RegisterClient(prof)
	hub.RegisterClient(student)

	submit(t, prof, &Command{Kind: CommandJoinProfessor, RoomKey: "math1", Name: "Ada", CreateIfAbsent: true})
	joined := mustEvent(t, prof.Events, EventRoomJoined)
	assert.Equal(t, "MATH1", joined.Joined.RoomKey)
	assert.True(t, joined.Joined.Created)

	submit(t, student, &Command{Kind: CommandJoinStudent, RoomKey: "MATH1", Name: "Bob"})
	mustEvent(t, student.Events, EventRoomHistory)
	users := mustEvent(t, prof.Events, EventUserList)
	assert.Equal(t, 2, users.Users.Total)

	submit(t, prof, &Command{Kind: CommandDraw, Path: []Point{{1, 1}, {2, 2}}, Color: "#00f", Width: 2})
	draw := mustEvent(t, student.Events, EventDraw)
	assert.Equal(t, "Ada", draw.Draw.AuthorName)
	assert.Len(t, draw.Draw.Path, 2)
	mustNoEvent(t, prof.Events, EventDraw, 100*time.Millisecond)

	hub.UnregisterClient(student)
	left := mustEvent(t, prof.Events, EventUserList)
	assert.Equal(t, 1, left.Users.Total)
}

func TestHubStudentDrawDenied(t *testing.T) {
	hub, _ := startHub(t, nil)

	prof := NewClient("p", 0)
	student := NewClient("s", 0)
	hub.RegisterClient(prof)
	hub.RegisterClient(student)

	submit(t, prof, &Command{Kind: CommandJoinProfessor, RoomKey: "ROOM1", Name: "Ada", CreateIfAbsent: true})
	mustEvent(t, prof.Events, EventRoomJoined)
	submit(t, student, &Command{Kind: CommandJoinStudent, RoomKey: "ROOM1", Name: "Bob"})
	mustEvent(t, student.Events, EventRoomJoined)

	submit(t, student, &Command{Kind: CommandDraw, Path: []Point{{0, 0}}})
	ev := mustEvent(t, student.Events, EventPermissionDenied)
	require.NotNil(t, ev.Error)
	assert.Equal(t, ErrCodePermissionDenied, ev.Error.Code)
	mustNoEvent(t, prof.Events, EventDraw, 100*time.Millisecond)
}

func TestHubJoinUnknownRoomProducesError(t *testing.T) {
	hub, _ := startHub(t, nil)

	alice := NewClient("a", 0)
	hub.RegisterClient(alice)

	submit(t, alice, &Command{Kind: CommandJoinStudent, RoomKey: "GHOST", Name: "Alice"})
	ev := mustEvent(t, alice.Events, EventRoomError)
	require.NotNil(t, ev.Error)
	assert.Equal(t, ErrCodeRoomNotFound, ev.Error.Code)

	rooms, err := hub.Rooms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestHubUnknownCommandIsInternalError(t *testing.T) {
	hub, _ := startHub(t, nil)

	alice := NewClient("a", 0)
	hub.RegisterClient(alice)

	submit(t, alice, &Command{Kind: CommandKind(42)})
	ev := mustEvent(t, alice.Events, EventRoomError)
	require.NotNil(t, ev.Error)
	assert.Equal(t, ErrCodeInternal, ev.Error.Code)
}

func TestHubRecoversFromPanickingCommand(t *testing.T) {
	hub, _ := startHub(t, nil)

	prof := NewClient("p", 0)
	student := NewClient("s", 0)
	hub.RegisterClient(prof)
	hub.RegisterClient(student)

	submit(t, prof, &Command{Kind: CommandJoinProfessor, RoomKey: "ROOM1", Name: "Ada", CreateIfAbsent: true})
	mustEvent(t, prof.Events, EventRoomJoined)
	submit(t, student, &Command{Kind: CommandJoinStudent, RoomKey: "ROOM1", Name: "Bob"})
	mustEvent(t, student.Events, EventRoomHistory)

	// A nil command dereferences inside the state machine.
	submit(t, student, nil)
	ev := mustEvent(t, student.Events, EventRoomError)
	require.NotNil(t, ev.Error)
	assert.Equal(t, ErrCodeInternal, ev.Error.Code)
	mustNoEvent(t, prof.Events, EventRoomError, 100*time.Millisecond)

	// The loop keeps serving both connections.
	submit(t, prof, &Command{Kind: CommandDraw, Path: []Point{{0, 0}, {1, 1}}, Color: "#000", Width: 1})
	draw := mustEvent(t, student.Events, EventDraw)
	assert.Equal(t, "Ada", draw.Draw.AuthorName)

	submit(t, prof, &Command{Kind: CommandClear})
	mustEvent(t, prof.Events, EventCanvasCleared)
	mustEvent(t, student.Events, EventCanvasCleared)

	stats, err := hub.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sessions)
}

func TestHubGracePeriodDeletesRoom(t *testing.T) {
	hub, _ := startHub(t, func(p *Policy) { p.GracePeriod = 50 * time.Millisecond })

	prof := NewClient("p", 0)
	hub.RegisterClient(prof)
	submit(t, prof, &Command{Kind: CommandJoinProfessor, RoomKey: "ROOM1", Name: "Ada", CreateIfAbsent: true})
	mustEvent(t, prof.Events, EventRoomJoined)

	hub.UnregisterClient(prof)

	require.Eventually(t, func() bool {
		_, found, err := hub.Room(context.Background(), "room1")
		return err == nil && !found
	}, 2*time.Second, 10*time.Millisecond, "room was not deleted after grace period")
}

func TestHubEvictsSlowConsumer(t *testing.T) {
	hub, _ := startHub(t, nil)

	prof := NewClient("p", 0)
	slow := NewClient("slow", 2)
	hub.RegisterClient(prof)
	hub.RegisterClient(slow)

	submit(t, prof, &Command{Kind: CommandJoinProfessor, RoomKey: "ROOM1", Name: "Ada", CreateIfAbsent: true})
	mustEvent(t, prof.Events, EventRoomJoined)
	// room-joined and room-history fill the buffer; the user-list broadcast overflows it.
	submit(t, slow, &Command{Kind: CommandJoinStudent, RoomKey: "ROOM1", Name: "Bob"})

	select {
	case <-slow.Evicted():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "slow client was not evicted")
	}

	// Other participants keep receiving events.
	submit(t, prof, &Command{Kind: CommandClear})
	mustEvent(t, prof.Events, EventCanvasCleared)
}

func TestHubStats(t *testing.T) {
	hub, _ := startHub(t, nil)

	prof := NewClient("p", 0)
	hub.RegisterClient(prof)
	submit(t, prof, &Command{Kind: CommandJoinProfessor, RoomKey: "ROOM1", Name: "Ada", CreateIfAbsent: true})
	mustEvent(t, prof.Events, EventRoomJoined)

	stats, err := hub.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, 1, stats.Sessions)
	assert.Len(t, stats.Rooms, 1)
}

func TestHubShutdownEvictsClients(t *testing.T) {
	hub, cancel := startHub(t, nil)

	alice := NewClient("a", 0)
	hub.RegisterClient(alice)
	submit(t, alice, &Command{Kind: CommandJoinProfessor, RoomKey: "ROOM1", Name: "Ada", CreateIfAbsent: true})
	mustEvent(t, alice.Events, EventRoomJoined)

	cancel()

	select {
	case <-alice.Evicted():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "client not evicted on shutdown")
	}

	_, err := hub.Rooms(context.Background())
	assert.ErrorIs(t, err, ErrHubStopped)
}

func TestClientSubmitAfterUnregister(t *testing.T) {
	hub, _ := startHub(t, nil)

	alice := NewClient("a", 0)
	hub.RegisterClient(alice)
	hub.UnregisterClient(alice)
	hub.UnregisterClient(alice)

	err := alice.Submit(context.Background(), &Command{Kind: CommandClear})
	assert.ErrorIs(t, err, ErrClientGone)
}
