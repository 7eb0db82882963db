package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	connectTimeout = 20 * time.Second
	writeTimeout   = 10 * time.Second
	redialDelay    = 2 * time.Second

	queueCapacity = 10
)

// State is the channel's connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

// ErrClosed is returned by Connect after the channel has been torn down.
var ErrClosed = errors.New("realtime: channel closed")

// Channel owns one live connection to the server. Outbound emits are
// fire-and-forget and silently dropped while disconnected; inbound events
// land in the notification queue. Connection errors only flip liveness,
// they never clear the queue.
type Channel struct {
	url           string
	token         string
	notifications *Queue

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	state   State
	lost    chan struct{}
}

// New creates a channel targeting the given WebSocket URL
// (e.g. "ws://127.0.0.1:8080/ws"). It does not connect.
func New(wsURL, token string) *Channel {
	return &Channel{
		url:           wsURL,
		token:         token,
		notifications: NewQueue(queueCapacity),
		state:         StateDisconnected,
	}
}

// Notifications returns the channel's queue. The queue outlives any number
// of disconnects.
func (c *Channel) Notifications() *Queue {
	return c.notifications
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports current liveness.
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// Connect performs a single dial attempt. On success a background read
// loop runs until the connection drops.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, _, err := dialer.DialContext(ctx, c.dialURL(), nil)
	if err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.state = StateConnected
	c.lost = make(chan struct{})
	lost := c.lost
	c.mu.Unlock()

	go c.readLoop(conn, lost)
	return nil
}

// Run keeps the link alive until the context ends or Close is called:
// dial, serve until the connection drops, redial after a fixed delay.
// No backoff; this carries live telemetry, not transactional writes.
func (c *Channel) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil || c.State() == StateClosed {
			return
		}

		if err := c.Connect(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			log.Printf("realtime: dial failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(redialDelay):
			}
			continue
		}

		c.mu.Lock()
		lost := c.lost
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-lost:
		}
	}
}

// Close tears the channel down for good. Emits and Connect calls after
// Close are no-ops.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.state = StateClosed
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}
}

// SendLocation pushes a location sample. Dropped while disconnected.
func (c *Channel) SendLocation(p Position) {
	c.emit(EvtDriverLocation, p)
}

// SendBoardingEvent pushes a boarding confirmation. Dropped while
// disconnected.
func (c *Channel) SendBoardingEvent(b Boarding) {
	c.emit(EvtStudentBoarding, b)
}

// SendEmergency pushes an SOS. Dropped while disconnected.
func (c *Channel) SendEmergency(a Alert) {
	c.emit(EvtEmergencySOS, a)
}

// SendTripStart pushes a trip start transition. Dropped while disconnected.
func (c *Channel) SendTripStart(t TripEvent) {
	c.emit(EvtTripStarted, t)
}

// SendTripEnd pushes a trip end transition. Dropped while disconnected.
func (c *Channel) SendTripEnd(t TripEvent) {
	c.emit(EvtTripEnded, t)
}

func (c *Channel) dialURL() string {
	if c.token == "" {
		return c.url
	}
	parsed, err := url.Parse(c.url)
	if err != nil {
		return c.url
	}
	query := parsed.Query()
	query.Set("token", c.token)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// emit writes one envelope if the channel is live; otherwise the event is
// discarded, not queued and not retried.
func (c *Channel) emit(eventType EventType, payload interface{}) {
	c.mu.Lock()
	conn := c.conn
	live := c.state == StateConnected
	c.mu.Unlock()
	if !live || conn == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("realtime: marshal error: %v", err)
		return
	}
	data, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	if err != nil {
		log.Printf("realtime: marshal error: %v", err)
		return
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	writeErr := conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.drop(conn)
	}
}

func (c *Channel) readLoop(conn *websocket.Conn, lost chan struct{}) {
	defer close(lost)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.dispatch(env)
	}
}

// drop marks the connection dead if it is still the current one. The
// notification queue is left untouched.
func (c *Channel) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.state == StateConnected {
			c.state = StateDisconnected
		}
	}
	c.mu.Unlock()
	conn.Close()
}

// dispatch converts one inbound event into a notification. Payloads with
// missing fields get documented defaults instead of being rejected.
func (c *Channel) dispatch(env Envelope) {
	switch env.Type {
	case EvtLocationUpdate:
		var p Position
		_ = json.Unmarshal(env.Payload, &p)
		message := "Vehicle location updated"
		if p.VehicleID != "" {
			message = "Vehicle " + p.VehicleID + " location updated"
		}
		c.notifications.Push(TypeInfo, "Location Update", message)

	case EvtStudentBoarded:
		var p Boarding
		_ = json.Unmarshal(env.Payload, &p)
		name := p.Name
		if name == "" {
			name = "Student"
		}
		c.notifications.Push(TypeSuccess, "Student Boarded", name+" has boarded the bus")

	case EvtEmergencyAlert:
		var p Alert
		_ = json.Unmarshal(env.Payload, &p)
		message := p.Description
		if message == "" {
			message = "Emergency reported"
		}
		c.notifications.Push(TypeAlert, "Emergency Alert", message)

	case EvtTripUpdate:
		var p TripEvent
		_ = json.Unmarshal(env.Payload, &p)
		var message string
		switch p.Status {
		case "started":
			message = "Trip started"
		case "ended":
			message = "Trip ended"
		default:
			message = "Trip status updated"
		}
		c.notifications.Push(TypeInfo, "Trip Update", message)
	}
}
