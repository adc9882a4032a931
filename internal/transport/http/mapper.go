package http

import (
	"encoding/json"
	"math"

	"github.com/vovakirdan/whiteboard-relay/internal/core"
	"github.com/vovakirdan/whiteboard-relay/internal/proto"
)

func protoError(code, msg string) *proto.Error {
	return &proto.Error{Code: code, Message: msg}
}

// inboundToCommand maps a client envelope to a hub command. A non-nil proto.Error
// is sent back to the client instead.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Event {
	case proto.EventJoinProfessor:
		var join proto.JoinProfessorData
		if !decodeData(inbound.Data, &join) {
			return nil, protoError(core.ErrCodeMissingData, "invalid join payload")
		}
		create := true
		if join.CreateIfNotExists != nil {
			create = *join.CreateIfNotExists
		}
		return &core.Command{
			Kind:           core.CommandJoinProfessor,
			RoomKey:        join.RoomKey,
			Name:           join.ProfessorName,
			CreateIfAbsent: create,
		}, nil
	case proto.EventJoinStudent:
		var join proto.JoinStudentData
		if !decodeData(inbound.Data, &join) {
			return nil, protoError(core.ErrCodeMissingData, "invalid join payload")
		}
		return &core.Command{
			Kind:    core.CommandJoinStudent,
			RoomKey: join.RoomKey,
			Name:    join.StudentName,
		}, nil
	case proto.EventDrawCommand:
		// A bad payload still reaches the hub so that role checks apply; the empty path is dropped there.
		var draw proto.DrawData
		_ = decodeData(inbound.Data, &draw)
		return &core.Command{
			Kind:  core.CommandDraw,
			Path:  decodePath(draw.Path),
			Color: draw.Color,
			Width: draw.Width,
		}, nil
	case proto.EventClearCanvas:
		return &core.Command{Kind: core.CommandClear}, nil
	default:
		return nil, protoError(core.ErrCodeUnknownEvent, "unknown event")
	}
}

// decodeData treats an absent payload as empty.
func decodeData(raw json.RawMessage, v any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	return json.Unmarshal(raw, v) == nil
}

// decodePath returns nil unless every element holds at least two finite
// coordinates. Extra per-point values such as pressure are ignored.
func decodePath(raw json.RawMessage) []core.Point {
	if len(raw) == 0 {
		return nil
	}
	var pairs [][]float64
	if err := json.Unmarshal(raw, &pairs); err != nil || len(pairs) == 0 {
		return nil
	}
	path := make([]core.Point, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 || !finite(p[0]) || !finite(p[1]) {
			return nil
		}
		path = append(path, core.Point{p[0], p[1]})
	}
	return path
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomJoined:
		j := event.Joined
		return proto.Outbound{
			Event: proto.EventRoomJoined,
			Data: proto.RoomJoined{
				Success:        true,
				RoomKey:        j.RoomKey,
				Role:           string(j.Role),
				Name:           j.Name,
				Created:        j.Created,
				UserCount:      j.UserCount,
				ProfessorCount: j.ProfessorCount,
				StudentCount:   j.StudentCount,
			},
		}
	case core.EventRoomHistory:
		commands := make([]proto.DrawCommand, 0, len(event.History))
		for i := range event.History {
			commands = append(commands, drawToProto(&event.History[i]))
		}
		return proto.Outbound{
			Event: proto.EventRoomHistory,
			Data:  proto.RoomHistory{RoomKey: event.Room, Commands: commands},
		}
	case core.EventDraw:
		return proto.Outbound{
			Event: proto.EventDrawCommand,
			Data:  drawToProto(event.Draw),
		}
	case core.EventCanvasCleared:
		return proto.Outbound{
			Event: proto.EventCanvasCleared,
			Data: proto.CanvasCleared{
				Timestamp: event.Cleared.Timestamp.UnixMilli(),
				ClearedBy: event.Cleared.ClearedBy,
			},
		}
	case core.EventUserList:
		return proto.Outbound{
			Event: proto.EventUserListUpdate,
			Data: proto.UserListUpdate{
				RoomKey:    event.Room,
				Total:      event.Users.Total,
				Professors: usersToProto(event.Users.Professors),
				Students:   usersToProto(event.Users.Students),
			},
		}
	case core.EventRoomError, core.EventPermissionDenied:
		name := proto.EventRoomError
		if event.Kind == core.EventPermissionDenied {
			name = proto.EventPermissionDenied
		}
		if event.Error == nil {
			return proto.Outbound{Event: name, Data: protoError(core.ErrCodeInternal, "internal server error")}
		}
		return proto.Outbound{Event: name, Data: protoError(event.Error.Code, event.Error.Message)}
	default:
		return proto.Outbound{Event: event.Kind.String()}
	}
}

func errorOutbound(perr *proto.Error) proto.Outbound {
	return proto.Outbound{Event: proto.EventRoomError, Data: perr}
}

func drawToProto(cmd *core.DrawCommand) proto.DrawCommand {
	path := make([][2]float64, len(cmd.Path))
	for i, p := range cmd.Path {
		path[i] = p
	}
	return proto.DrawCommand{
		ID:         cmd.ID,
		Path:       path,
		Color:      cmd.Color,
		Width:      cmd.Width,
		Timestamp:  cmd.Timestamp.UnixMilli(),
		AuthorID:   cmd.AuthorID,
		AuthorName: cmd.AuthorName,
		RoomKey:    cmd.RoomKey,
	}
}

func usersToProto(in []core.Participant) []proto.User {
	out := make([]proto.User, 0, len(in))
	for _, p := range in {
		out = append(out, proto.User{ID: p.ID, Name: p.Name})
	}
	return out
}
