package core

import "github.com/rs/zerolog"

// Dispatcher fans events out to connections. Membership is read at call time;
// connections joining or leaving concurrently are not covered.
type Dispatcher interface {
	ToRoom(roomKey string, ev *Event)
	ToRoomExcept(roomKey, excludeID string, ev *Event)
	ToConnection(id string, ev *Event)
}

// clientDispatcher delivers to registered clients using room membership from the registry.
type clientDispatcher struct {
	rooms   *RoomRegistry
	clients map[string]*Client
	log     *zerolog.Logger
}

func newClientDispatcher(rooms *RoomRegistry, logger *zerolog.Logger) *clientDispatcher {
	return &clientDispatcher{
		rooms:   rooms,
		clients: make(map[string]*Client),
		log:     logger,
	}
}

func (d *clientDispatcher) ToRoom(roomKey string, ev *Event) {
	d.ToRoomExcept(roomKey, "", ev)
}

func (d *clientDispatcher) ToRoomExcept(roomKey, excludeID string, ev *Event) {
	room, ok := d.rooms.Get(roomKey)
	if !ok {
		return
	}
	for _, id := range room.Members() {
		if id == excludeID {
			continue
		}
		d.ToConnection(id, ev)
	}
}

func (d *clientDispatcher) ToConnection(id string, ev *Event) {
	client, ok := d.clients[id]
	if !ok {
		return
	}
	if !client.deliver(ev) {
		d.log.Warn().
			Str("conn_id", id).
			Str("event", ev.Kind.String()).
			Msg("event buffer full, evicting slow client")
	}
}
