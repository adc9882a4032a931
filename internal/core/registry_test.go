package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRegistryCreateAndList(t *testing.T) {
	reg := NewRoomRegistry()
	now := time.Now()

	_, err := reg.Create("BETA", "Ada", now)
	require.NoError(t, err)
	_, err = reg.Create("ALPHA", "Grace", now)
	require.NoError(t, err)

	_, err = reg.Create("BETA", "Eve", now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRoomExists))

	var keys []string
	for key, summary := range reg.List() {
		keys = append(keys, key)
		assert.Equal(t, key, summary.Key)
	}
	assert.Equal(t, []string{"ALPHA", "BETA"}, keys)

	assert.True(t, reg.Delete("ALPHA"))
	assert.False(t, reg.Delete("ALPHA"))
	assert.Equal(t, 1, reg.Len())
}

func TestRoomRegistryListStopsEarly(t *testing.T) {
	reg := NewRoomRegistry()
	for _, key := range []string{"AAA", "BBB", "CCC"} {
		_, err := reg.Create(key, "x", time.Now())
		require.NoError(t, err)
	}

	seen := 0
	for range reg.List() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestSessionRegistry(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Set("c1", &Session{ID: "c1", Role: RoleStudent, Name: "Bob", RoomKey: "ROOM1"})

	sess, ok := reg.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "Bob", sess.Name)
	assert.True(t, reg.Has("c1"))
	assert.Equal(t, 1, reg.Len())

	assert.True(t, reg.Delete("c1"))
	assert.False(t, reg.Delete("c1"))
	assert.False(t, reg.Has("c1"))
}

func TestRoomParticipants(t *testing.T) {
	room := NewRoom("ROOM1", "Ada", time.Now())

	assert.True(t, room.AddParticipant("p1", RoleProfessor))
	assert.True(t, room.AddParticipant("s1", RoleStudent))
	assert.False(t, room.AddParticipant("s1", RoleProfessor))

	role, ok := room.RoleOf("s1")
	require.True(t, ok)
	assert.Equal(t, RoleStudent, role)
	assert.Equal(t, []string{"p1", "s1"}, room.Members())

	role, ok = room.RemoveParticipant("p1")
	require.True(t, ok)
	assert.Equal(t, RoleProfessor, role)
	_, ok = room.RemoveParticipant("p1")
	assert.False(t, ok)

	room.RemoveParticipant("s1")
	assert.True(t, room.Empty())
}

func TestHistoryBound(t *testing.T) {
	bound := HistoryBound{Limit: 10, TrimTo: 4}

	var hist []DrawCommand
	for i := range 10 {
		hist = bound.Append(hist, DrawCommand{ID: string(rune('a' + i))})
	}
	require.Len(t, hist, 10)

	hist = bound.Append(hist, DrawCommand{ID: "k"})
	require.Len(t, hist, 4)
	assert.Equal(t, "h", hist[0].ID)
	assert.Equal(t, "k", hist[3].ID)
}

func TestHistoryBoundUnlimited(t *testing.T) {
	var bound HistoryBound
	var hist []DrawCommand
	for range 50 {
		hist = bound.Append(hist, DrawCommand{})
	}
	assert.Len(t, hist, 50)
}

func TestNormalizeRoomKey(t *testing.T) {
	key, err := NormalizeRoomKey(" abc9z ")
	require.Nil(t, err)
	assert.Equal(t, "ABC9Z", key)

	_, err = NormalizeRoomKey("ab")
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeInvalidRoomKey, err.Code)
}

func TestNormalizeName(t *testing.T) {
	name, err := NormalizeName("  Ada Lovelace ")
	require.Nil(t, err)
	assert.Equal(t, "Ada Lovelace", name)

	_, err = NormalizeName("")
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeMissingData, err.Code)
}
