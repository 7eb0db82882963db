package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsServer accepts one connection at a time and hands it to the test.
type wsServer struct {
	*httptest.Server
	conns  chan *websocket.Conn
	tokens chan string
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s := &wsServer{
		conns:  make(chan *websocket.Conn, 4),
		tokens: make(chan string, 4),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		s.conns <- conn
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatalf("no connection arrived")
		return nil
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType EventType, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(Envelope{Type: eventType, Payload: raw}); err != nil {
		t.Fatalf("write envelope: %v", err)
	}
}

func waitForQueueLen(t *testing.T, q *Queue, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if q.Len() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("queue never reached %d notifications, have %d", want, q.Len())
}

func waitForState(t *testing.T, c *Channel, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("channel never reached state %s, stuck at %s", want, c.State())
}

func TestConnectSendsToken(t *testing.T) {
	srv := newWSServer(t)
	c := New(srv.wsURL(), "tok-42")
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	srv.accept(t)

	if got := <-srv.tokens; got != "tok-42" {
		t.Fatalf("expected token in query, got %q", got)
	}
	if !c.Connected() {
		t.Fatalf("expected connected state")
	}
}

func TestEmitWhileDisconnectedDropped(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", "tok")
	defer c.Close()

	// Never connected: emits vanish without error or queueing.
	c.SendLocation(Position{VehicleID: "bus-1", Latitude: 1, Longitude: 2})
	c.SendEmergency(Alert{Description: "help"})

	if c.Notifications().Len() != 0 {
		t.Fatalf("expected dropped emits to leave the queue empty")
	}
}

func TestEmitReachesServer(t *testing.T) {
	srv := newWSServer(t)
	c := New(srv.wsURL(), "tok")
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := srv.accept(t)

	c.SendLocation(Position{VehicleID: "bus-7", Latitude: 48.8, Longitude: 2.3})

	env := readEnvelope(t, conn)
	if env.Type != EvtDriverLocation {
		t.Fatalf("expected driver_location, got %s", env.Type)
	}
	var p Position
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.VehicleID != "bus-7" {
		t.Fatalf("expected vehicle bus-7, got %q", p.VehicleID)
	}
}

func TestInboundEventsBecomeNotifications(t *testing.T) {
	srv := newWSServer(t)
	c := New(srv.wsURL(), "tok")
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := srv.accept(t)

	sendEvent(t, conn, EvtEmergencyAlert, Alert{Description: "fire"})
	sendEvent(t, conn, EvtStudentBoarded, Boarding{})
	sendEvent(t, conn, EvtTripUpdate, TripEvent{TripID: "t1", Status: "started"})
	waitForQueueLen(t, c.Notifications(), 3)

	items := c.Notifications().List()
	// Newest first.
	if items[0].Type != TypeInfo || items[0].Message != "Trip started" {
		t.Fatalf("unexpected trip notification: %+v", items[0])
	}
	if items[1].Type != TypeSuccess || items[1].Message != "Student has boarded the bus" {
		t.Fatalf("expected empty boarding payload to default, got %+v", items[1])
	}
	if items[2].Type != TypeAlert || items[2].Title != "Emergency Alert" || items[2].Message != "fire" {
		t.Fatalf("unexpected emergency notification: %+v", items[2])
	}
}

func TestEmergencyDefaultMessage(t *testing.T) {
	srv := newWSServer(t)
	c := New(srv.wsURL(), "tok")
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := srv.accept(t)

	sendEvent(t, conn, EvtEmergencyAlert, Alert{})
	waitForQueueLen(t, c.Notifications(), 1)

	if got := c.Notifications().List()[0].Message; got != "Emergency reported" {
		t.Fatalf("expected default emergency message, got %q", got)
	}
}

func TestUnknownInboundEventIgnored(t *testing.T) {
	srv := newWSServer(t)
	c := New(srv.wsURL(), "tok")
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := srv.accept(t)

	sendEvent(t, conn, EventType("mystery_event"), map[string]string{"x": "y"})
	sendEvent(t, conn, EvtEmergencyAlert, Alert{Description: "real"})
	waitForQueueLen(t, c.Notifications(), 1)

	if got := c.Notifications().List()[0].Message; got != "real" {
		t.Fatalf("expected only the known event, got %q", got)
	}
}

func TestDisconnectKeepsQueue(t *testing.T) {
	srv := newWSServer(t)
	c := New(srv.wsURL(), "tok")
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := srv.accept(t)

	sendEvent(t, conn, EvtEmergencyAlert, Alert{Description: "fire"})
	waitForQueueLen(t, c.Notifications(), 1)

	conn.Close()
	waitForState(t, c, StateDisconnected)

	if c.Notifications().Len() != 1 {
		t.Fatalf("expected disconnect to leave the queue intact")
	}

	// Emits after the drop are discarded, not errors.
	c.SendLocation(Position{VehicleID: "bus-1"})
}

func TestReconnectAfterDrop(t *testing.T) {
	srv := newWSServer(t)
	c := New(srv.wsURL(), "tok")
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	srv.accept(t).Close()
	waitForState(t, c, StateDisconnected)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	srv.accept(t)
	if !c.Connected() {
		t.Fatalf("expected connected after redial")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	srv := newWSServer(t)
	c := New(srv.wsURL(), "tok")

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	srv.accept(t)

	c.Close()
	c.Close() // idempotent

	if c.State() != StateClosed {
		t.Fatalf("expected closed state, got %s", c.State())
	}
	if err := c.Connect(context.Background()); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
