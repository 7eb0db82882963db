package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campustransit/internal/model"
	"campustransit/internal/positions"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// positionWriteTimeout bounds the cache write on the read path so a
// stalled Redis cannot wedge a client's read loop.
const positionWriteTimeout = 2 * time.Second

// PositionStore receives the last reported position per vehicle.
type PositionStore interface {
	Set(ctx context.Context, position model.VehiclePosition) error
}

// Hub fans inbound client events back out to every connected client and
// keeps the vehicle position cache current.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]bool
	positions PositionStore
}

func New(cache *positions.Cache) *Hub {
	h := &Hub{clients: make(map[*client]bool)}
	if cache != nil {
		h.positions = cache
	}
	return h
}

func (h *Hub) addClient(conn *websocket.Conn) *client {
	c := newClient(conn)
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an envelope to every connected client. A client whose
// send buffer is full misses the message rather than blocking the hub.
func (h *Hub) Broadcast(eventType EventType, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("hub marshal error: %v", err)
		return
	}
	data, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	if err != nil {
		log.Printf("hub marshal error: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// route converts one inbound client event into its broadcast form. Unknown
// event types and undecodable payloads are dropped.
func (h *Hub) route(ctx context.Context, senderID string, env Envelope) {
	switch env.Type {
	case EvtDriverLocation:
		var p LocationPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.VehicleID == "" {
			return
		}
		if p.DriverID == "" {
			p.DriverID = senderID
		}
		if p.Timestamp.IsZero() {
			p.Timestamp = time.Now().UTC()
		}
		if h.positions != nil {
			setCtx, cancel := context.WithTimeout(ctx, positionWriteTimeout)
			err := h.positions.Set(setCtx, model.VehiclePosition{
				VehicleID: p.VehicleID,
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Timestamp: p.Timestamp,
			})
			cancel()
			if err != nil {
				log.Printf("position cache error: %v", err)
			}
		}
		h.Broadcast(EvtLocationUpdate, p)

	case EvtStudentBoarding:
		var p BoardingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		if p.StudentID == "" {
			p.StudentID = senderID
		}
		if p.Timestamp.IsZero() {
			p.Timestamp = time.Now().UTC()
		}
		h.Broadcast(EvtStudentBoarded, p)

	case EvtEmergencySOS:
		var p EmergencyPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		if p.UserID == "" {
			p.UserID = senderID
		}
		if p.Timestamp.IsZero() {
			p.Timestamp = time.Now().UTC()
		}
		h.Broadcast(EvtEmergencyAlert, p)

	case EvtTripStarted, EvtTripEnded:
		var p TripPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.TripID == "" {
			return
		}
		if p.DriverID == "" {
			p.DriverID = senderID
		}
		if p.Status == "" {
			if env.Type == EvtTripStarted {
				p.Status = "started"
			} else {
				p.Status = "ended"
			}
		}
		if p.Timestamp.IsZero() {
			p.Timestamp = time.Now().UTC()
		}
		h.Broadcast(EvtTripUpdate, p)
	}
}
