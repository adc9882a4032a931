package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/vovakirdan/whiteboard-relay/internal/config"
	"github.com/vovakirdan/whiteboard-relay/internal/proto"
)

type pollClient struct {
	t       *testing.T
	http    *http.Client
	baseURL string
	session proto.PollSession
}

func openPoll(t *testing.T, client *http.Client, baseURL string) *pollClient {
	t.Helper()

	resp, err := client.Post(baseURL+"/poll", "application/json", nil)
	if err != nil {
		t.Fatalf("open poll: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open poll: status %d", resp.StatusCode)
	}

	pc := &pollClient{t: t, http: client, baseURL: baseURL}
	if err := json.NewDecoder(resp.Body).Decode(&pc.session); err != nil {
		t.Fatalf("decode poll session: %v", err)
	}
	if pc.session.SID == "" || pc.session.Token == "" {
		t.Fatalf("incomplete poll session: %+v", pc.session)
	}
	return pc
}

func (p *pollClient) do(method string, body []byte, token string) *http.Response {
	p.t.Helper()

	req, err := http.NewRequest(method, p.baseURL+"/poll/"+p.session.SID, bytes.NewReader(body))
	if err != nil {
		p.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.http.Do(req)
	if err != nil {
		p.t.Fatalf("%s poll: %v", method, err)
	}
	return resp
}

func (p *pollClient) send(inbound ...proto.Inbound) {
	p.t.Helper()

	body, _ := json.Marshal(inbound)
	resp := p.do(http.MethodPost, body, p.session.Token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		p.t.Fatalf("send: status %d", resp.StatusCode)
	}
}

// waitFor polls until an event with the given name is returned.
func (p *pollClient) waitFor(event string, out any) {
	p.t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp := p.do(http.MethodGet, nil, p.session.Token)
		var batch struct {
			Events []wireMessage `json:"events"`
		}
		err := json.NewDecoder(resp.Body).Decode(&batch)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || err != nil {
			p.t.Fatalf("poll: status %d err %v", resp.StatusCode, err)
		}
		for _, msg := range batch.Events {
			if msg.Event != event {
				continue
			}
			if out != nil {
				if err := json.Unmarshal(msg.Data, out); err != nil {
					p.t.Fatalf("unmarshal %s: %v", event, err)
				}
			}
			return
		}
	}
	p.t.Fatalf("event %s not received", event)
}

func inbound(t *testing.T, event string, data any) proto.Inbound {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return proto.Inbound{Event: event, Data: raw}
}

func TestPollJoinAndReceiveDraws(t *testing.T) {
	ts, hub := startTestServer(t, nil)

	prof := openPoll(t, ts.Client(), ts.URL)
	student := openPoll(t, ts.Client(), ts.URL)

	prof.send(inbound(t, proto.EventJoinProfessor, proto.JoinProfessorData{RoomKey: "POLL1", ProfessorName: "Ada"}))
	var joined proto.RoomJoined
	prof.waitFor(proto.EventRoomJoined, &joined)
	if joined.RoomKey != "POLL1" {
		t.Fatalf("unexpected join: %+v", joined)
	}

	student.send(inbound(t, proto.EventJoinStudent, proto.JoinStudentData{RoomKey: "poll1", StudentName: "Bob"}))
	student.waitFor(proto.EventRoomHistory, nil)

	// A batch is processed in order.
	prof.send(
		inbound(t, proto.EventDrawCommand, map[string]any{"path": [][2]float64{{1, 1}, {2, 2}}, "color": "#123", "width": 1}),
		inbound(t, proto.EventDrawCommand, map[string]any{"path": [][2]float64{{3, 3}}, "color": "#456", "width": 1}),
	)
	var draw proto.DrawCommand
	student.waitFor(proto.EventDrawCommand, &draw)
	if draw.Color != "#123" {
		t.Fatalf("expected first stroke first, got %+v", draw)
	}

	detail, found, err := hub.Room(t.Context(), "POLL1")
	if err != nil || !found {
		t.Fatalf("room lookup: found=%v err=%v", found, err)
	}
	if detail.Total != 2 {
		t.Fatalf("expected 2 participants, got %d", detail.Total)
	}
}

func TestPollUnknownEventReply(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	pc := openPoll(t, ts.Client(), ts.URL)
	pc.send(proto.Inbound{Event: "dance"})

	var perr proto.Error
	pc.waitFor(proto.EventRoomError, &perr)
	if perr.Code != "UNKNOWN_EVENT" {
		t.Fatalf("unexpected error: %+v", perr)
	}
}

func TestPollRequiresMatchingToken(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	a := openPoll(t, ts.Client(), ts.URL)
	b := openPoll(t, ts.Client(), ts.URL)

	resp := a.do(http.MethodGet, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = a.do(http.MethodGet, nil, b.session.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for another session's token, got %d", resp.StatusCode)
	}
}

func TestPollEmptyBatchOnTimeout(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	pc := openPoll(t, ts.Client(), ts.URL)
	start := time.Now()
	resp := pc.do(http.MethodGet, nil, pc.session.Token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if time.Since(start) < 150*time.Millisecond {
		t.Fatal("poll returned before the timeout")
	}
}

func TestPollCloseDisconnects(t *testing.T) {
	ts, hub := startTestServer(t, nil)

	pc := openPoll(t, ts.Client(), ts.URL)
	pc.send(inbound(t, proto.EventJoinProfessor, proto.JoinProfessorData{RoomKey: "GONE1", ProfessorName: "Ada"}))
	pc.waitFor(proto.EventRoomJoined, nil)

	resp := pc.do(http.MethodDelete, nil, pc.session.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		detail, found, err := hub.Room(t.Context(), "GONE1")
		if err != nil {
			t.Fatalf("room lookup: %v", err)
		}
		if found && detail.Total == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("participant not removed: %+v", detail)
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp = pc.do(http.MethodGet, nil, pc.session.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", resp.StatusCode)
	}
}

func TestPollIdleConnectionsAreReaped(t *testing.T) {
	ts, hub := startTestServer(t, func(cfg *config.Config) {
		cfg.PollTimeout = 50 * time.Millisecond
		cfg.PollIdleTimeout = 100 * time.Millisecond
	})

	openPoll(t, ts.Client(), ts.URL)

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connections() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("idle poll connection not reaped, %d open", hub.Connections())
		}
		time.Sleep(20 * time.Millisecond)
	}
}
