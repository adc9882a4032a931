package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

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
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	name := flag.String("name", "cli-user", "display name")
	room := flag.String("room", "", "room key (professors may leave it empty to create one)")
	role := flag.String("role", "student", "professor or student")
	color := flag.String("color", "#000000", "stroke color")
	width := flag.Float64("width", 2, "stroke width")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
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
		return wsjson.Write(ctx, conn, proto.Inbound{Event: event, Data: payload})
	}

	switch *role {
	case "professor":
		err = send(proto.EventJoinProfessor, proto.JoinProfessorData{RoomKey: *room, ProfessorName: *name})
	case "student":
		err = send(proto.EventJoinStudent, proto.JoinStudentData{RoomKey: *room, StudentName: *name})
	default:
		return fmt.Errorf("unknown role %q", *role)
	}
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}

	fmt.Printf("Connected to %s as %s (%s)\n", *addr, *name, *role)
	if *role == "professor" {
		fmt.Println("Enter `x1 y1 x2 y2` to draw a line, `clear` to wipe the canvas. Ctrl+C to exit.")
	}

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, send, *color, *width)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var msg incoming
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch msg.Event {
		case proto.EventRoomJoined:
			var evt proto.RoomJoined
			if err := json.Unmarshal(msg.Data, &evt); err == nil {
				fmt.Printf("joined room %s as %s, %d users\n", evt.RoomKey, evt.Role, evt.UserCount)
			}
		case proto.EventRoomHistory:
			var evt proto.RoomHistory
			if err := json.Unmarshal(msg.Data, &evt); err == nil {
				fmt.Printf("history: %d strokes\n", len(evt.Commands))
			}
		case proto.EventDrawCommand:
			var evt proto.DrawCommand
			if err := json.Unmarshal(msg.Data, &evt); err == nil {
				fmt.Printf("[%s] %s drew %d points in %s\n", evt.RoomKey, evt.AuthorName, len(evt.Path), evt.Color)
			}
		case proto.EventCanvasCleared:
			var evt proto.CanvasCleared
			if err := json.Unmarshal(msg.Data, &evt); err == nil {
				fmt.Printf("canvas cleared by %s\n", evt.ClearedBy)
			}
		case proto.EventUserListUpdate:
			var evt proto.UserListUpdate
			if err := json.Unmarshal(msg.Data, &evt); err == nil {
				fmt.Printf("users: %d (%d professors, %d students)\n", evt.Total, len(evt.Professors), len(evt.Students))
			}
		case proto.EventRoomError, proto.EventPermissionDenied:
			var evt proto.Error
			if err := json.Unmarshal(msg.Data, &evt); err == nil {
				fmt.Printf("%s: %s (%s)\n", msg.Event, evt.Message, evt.Code)
			}
		default:
			fmt.Printf("event=%s data=%s\n", msg.Event, msg.Data)
		}
	}
}

func writeLoop(ctx context.Context, send func(string, any) error, color string, width float64) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if text == "clear" {
				if err := send(proto.EventClearCanvas, struct{}{}); err != nil {
					log.Printf("send error: %v", err)
					return
				}
				continue
			}

			path, err := parseLine(text)
			if err != nil {
				fmt.Println(err)
				continue
			}
			stroke := map[string]any{"path": path, "color": color, "width": width}
			if err := send(proto.EventDrawCommand, stroke); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}

func parseLine(text string) ([][2]float64, error) {
	fields := strings.Fields(text)
	if len(fields) != 4 {
		return nil, errors.New("expected: x1 y1 x2 y2")
	}
	var coords [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q", f)
		}
		coords[i] = v
	}
	return [][2]float64{{coords[0], coords[1]}, {coords[2], coords[3]}}, nil
}
