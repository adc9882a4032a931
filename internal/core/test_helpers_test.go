package core

import (
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	require.FailNow(t, "event not received", "expected event kind %v", kind)
	return nil
}

// mustNoEvent fails if an event of kind arrives within wait.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				require.FailNow(t, "unexpected event", "%v: %+v", kind, ev)
			}
		case <-timer.C:
			return
		}
	}
}

// recorder is a Dispatcher that keeps every delivery per connection in order.
type recorder struct {
	rooms *RoomRegistry
	got   map[string][]*Event
}

func newRecorder(rooms *RoomRegistry) *recorder {
	return &recorder{rooms: rooms, got: make(map[string][]*Event)}
}

func (r *recorder) ToRoom(roomKey string, ev *Event) {
	r.ToRoomExcept(roomKey, "", ev)
}

func (r *recorder) ToRoomExcept(roomKey, excludeID string, ev *Event) {
	room, ok := r.rooms.Get(roomKey)
	if !ok {
		return
	}
	for _, id := range room.Members() {
		if id != excludeID {
			r.ToConnection(id, ev)
		}
	}
}

func (r *recorder) ToConnection(id string, ev *Event) {
	r.got[id] = append(r.got[id], ev)
}

func (r *recorder) kinds(id string) []EventKind {
	out := make([]EventKind, 0, len(r.got[id]))
	for _, ev := range r.got[id] {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) last(id string, kind EventKind) *Event {
	events := r.got[id]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i]
		}
	}
	return nil
}

func (r *recorder) reset() {
	r.got = make(map[string][]*Event)
}

// manualScheduler holds tasks until the test fires them.
type manualScheduler struct {
	tasks []*manualTask
}

type manualTask struct {
	after     time.Duration
	fn        func()
	cancelled bool
	fired     bool
}

func (s *manualScheduler) Schedule(d time.Duration, fn func()) func() bool {
	task := &manualTask{after: d, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() bool {
		if task.cancelled || task.fired {
			return false
		}
		task.cancelled = true
		return true
	}
}

// fireAll runs every pending task, including cancelled ones when force is set,
// which mimics a timer that already fired before it could be stopped.
func (s *manualScheduler) fireAll(force bool) {
	for _, task := range s.tasks {
		if task.fired || (task.cancelled && !force) {
			continue
		}
		task.fired = true
		task.fn()
	}
}

func (s *manualScheduler) pending() int {
	n := 0
	for _, task := range s.tasks {
		if !task.fired && !task.cancelled {
			n++
		}
	}
	return n
}

type machineFixture struct {
	store *Store
	m     *Machine
	out   *recorder
	sched *manualScheduler
	now   time.Time
}

func newMachineFixture(t *testing.T, tweak func(*Policy)) *machineFixture {
	t.Helper()

	policy := DefaultPolicy()
	if tweak != nil {
		tweak(&policy)
	}
	store := NewStore()
	f := &machineFixture{
		store: store,
		out:   newRecorder(store.Rooms),
		sched: &manualScheduler{},
		now:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	logger := zerolog.Nop()
	f.m = NewMachine(store, policy, f.out, f.sched, &logger)
	f.m.now = func() time.Time { return f.now }

	seq := 0
	f.m.newID = func() string {
		seq++
		return "cmd-" + strconv.Itoa(seq)
	}
	f.m.newKey = func() string { return "GEN123" }
	return f
}

func line(n int) []Point {
	return []Point{{0, 0}, {float64(n), float64(n)}}
}
