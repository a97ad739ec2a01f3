package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"remindme-service/internal/domain"
)

func dial(t *testing.T, ts *testServer, playerID string) *websocket.Conn {
	t.Helper()
	u := "ws" + ts.URL[len("http"):] + "/ws?playerId=" + playerID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketQuizFlow(t *testing.T) {
	ts := newTestServer(t,
		domain.NewPersonInput{Name: "Alice", Relation: strPtr("Daughter")},
		domain.NewPersonInput{Name: "Bob", Relation: strPtr("Friend")},
	)
	conn := dial(t, ts, "p1")

	// Expect the idle snapshot first.
	_, payload := readNext(conn, t, "state")
	if payload["status"] != "idle" {
		t.Fatalf("expected idle, got %v", payload["status"])
	}

	send(t, conn, map[string]any{"type": "start"})
	_, payload = readNext(conn, t, "state")
	if payload["status"] != "running" || payload["kind"] != "name" || payload["round"] != float64(1) {
		t.Fatalf("unexpected running view %v", payload)
	}
	choices, _ := payload["choices"].([]any)
	if len(choices) != 2 {
		t.Fatalf("expected 2 choices, got %v", payload["choices"])
	}
	if _, leaked := payload["answer"]; leaked {
		t.Fatalf("view must not carry the answer")
	}

	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"choice": choices[0]}})
	_, payload = readNext(conn, t, "state")
	if payload["kind"] != "relation" || payload["prompt"] != "What is their relation?" {
		t.Fatalf("expected relation question, got %v", payload)
	}

	send(t, conn, map[string]any{"type": "answer"})
	_, payload = readNext(conn, t, "error")
	if payload["message"] != "invalid answer payload" {
		t.Fatalf("unexpected error %v", payload)
	}

	send(t, conn, map[string]any{"type": "close"})
	_, payload = readNext(conn, t, "state")
	if payload["status"] != "idle" {
		t.Fatalf("expected idle after close, got %v", payload["status"])
	}
}

func TestWebSocketRosterChangeResetsQuiz(t *testing.T) {
	ts := newTestServer(t, domain.NewPersonInput{Name: "Alice"})
	conn := dial(t, ts, "p1")
	readNext(conn, t, "state")

	send(t, conn, map[string]any{"type": "start"})
	readNext(conn, t, "state")

	if _, err := ts.people.Add(context.Background(), domain.NewPersonInput{Name: "Bob"}); err != nil {
		t.Fatalf("add person: %v", err)
	}
	send(t, conn, map[string]any{"type": "refresh"})

	// the refresh reply and the invalidation broadcast both report idle
	_, payload := readNext(conn, t, "state")
	if payload["status"] != "idle" {
		t.Fatalf("expected idle after roster change, got %v", payload)
	}
}

func TestWebSocketDisconnectDropsIdleSession(t *testing.T) {
	ts := newTestServer(t, domain.NewPersonInput{Name: "Alice"})
	conn := dial(t, ts, "p1")
	readNext(conn, t, "state")

	if _, ok := ts.sessions.Get("p1"); !ok {
		t.Fatalf("expected a session while connected")
	}
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := ts.sessions.Get("p1"); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("session still stored after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketDisconnectKeepsRunningQuiz(t *testing.T) {
	ts := newTestServer(t, domain.NewPersonInput{Name: "Alice"})
	conn := dial(t, ts, "p1")
	readNext(conn, t, "state")
	send(t, conn, map[string]any{"type": "start"})
	readNext(conn, t, "state")
	_ = conn.Close()

	// a fresh connection resumes the quiz
	conn = dial(t, ts, "p1")
	_, payload := readNext(conn, t, "state")
	if payload["status"] != "running" {
		t.Fatalf("expected running quiz to survive disconnect, got %v", payload["status"])
	}
}

func TestWebSocketErrors(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, "p1")
	readNext(conn, t, "state")

	send(t, conn, map[string]any{"type": "start"})
	_, payload := readNext(conn, t, "error")
	if payload["message"] != domain.ErrEmptyRoster.Error() {
		t.Fatalf("expected empty roster error, got %v", payload)
	}

	send(t, conn, map[string]any{"type": "dance"})
	readNext(conn, t, "error")

	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without playerId, got %d", resp.StatusCode)
	}
}

func TestWebSocketPushesNotifications(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, "p1")
	readNext(conn, t, "state")

	ctx := context.Background()
	if _, err := ts.dispatcher.ScheduleTest(ctx, "Take BP tablet", "After breakfast", 1); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	ts.clock = ts.clock.Add(2 * time.Second)
	if n, err := ts.dispatcher.Tick(ctx); err != nil || n != 1 {
		t.Fatalf("tick: n=%d err=%v", n, err)
	}

	_, payload := readNext(conn, t, "notification")
	if payload["speechText"] != "Take BP tablet. After breakfast" || payload["speak"] != true {
		t.Fatalf("unexpected delivery %v", payload)
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %v: %v", msg["type"], err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, msg.Payload)
	}
	var payload map[string]any
	_ = json.Unmarshal(msg.Payload, &payload)
	return msg.Type, payload
}
