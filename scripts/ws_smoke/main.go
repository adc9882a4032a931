package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/whiteboard-relay/internal/proto"
)

type incoming struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	name := flag.String("name", "Smoke Tester", "professor name")
	room := flag.String("room", "", "room key (generated when empty)")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(event string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", event, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Event: event, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", event, err)
		}
		return nil
	}

	if err := send(proto.EventJoinProfessor, proto.JoinProfessorData{RoomKey: *room, ProfessorName: *name}); err != nil {
		return err
	}

	for {
		var msg incoming
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("event=%s data=%s\n", msg.Event, msg.Data)

		switch msg.Event {
		case proto.EventRoomJoined:
			var joined proto.RoomJoined
			if err := json.Unmarshal(msg.Data, &joined); err != nil {
				return fmt.Errorf("unmarshal room-joined: %w", err)
			}
			fmt.Printf("joined room %s as %s (%d users)\n", joined.RoomKey, joined.Role, joined.UserCount)
		case proto.EventRoomHistory:
			stroke := map[string]any{
				"path":  [][2]float64{{0, 0}, {50, 50}, {100, 0}},
				"color": "#1e88e5",
				"width": 3,
			}
			if err := send(proto.EventDrawCommand, stroke); err != nil {
				return err
			}
			if err := send(proto.EventClearCanvas, struct{}{}); err != nil {
				return err
			}
		case proto.EventCanvasCleared:
			fmt.Println("smoke test passed")
			return nil
		case proto.EventRoomError, proto.EventPermissionDenied:
			var perr proto.Error
			_ = json.Unmarshal(msg.Data, &perr)
			return fmt.Errorf("server error %s: %s", perr.Code, perr.Message)
		}
	}
}
