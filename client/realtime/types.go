// Package realtime maintains the client side of the live event link: one
// WebSocket connection, typed outbound emitters gated on liveness, and a
// bounded notification queue fed by inbound events. Wire types mirror the
// hub protocol without importing server packages.
package realtime

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of realtime event on the wire.
type EventType string

// Outbound events, emitted by this client.
const (
	EvtDriverLocation  EventType = "driver_location"
	EvtStudentBoarding EventType = "student_boarding"
	EvtEmergencySOS    EventType = "emergency_sos"
	EvtTripStarted     EventType = "trip_started"
	EvtTripEnded       EventType = "trip_ended"
)

// Inbound events, broadcast by the server.
const (
	EvtLocationUpdate EventType = "location_update"
	EvtStudentBoarded EventType = "student_boarded"
	EvtEmergencyAlert EventType = "emergency_alert"
	EvtTripUpdate     EventType = "trip_update"
)

// Envelope is the wire format for all realtime messages.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Position is a live location sample for a vehicle.
type Position struct {
	VehicleID string    `json:"vehicleId"`
	DriverID  string    `json:"driverId,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Boarding is a student boarding confirmation.
type Boarding struct {
	StudentID string    `json:"studentId"`
	Name      string    `json:"name,omitempty"`
	VehicleID string    `json:"vehicleId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert is an SOS payload with a free-text description.
type Alert struct {
	UserID      string    `json:"userId,omitempty"`
	Role        string    `json:"role,omitempty"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// TripEvent is a trip lifecycle transition.
type TripEvent struct {
	TripID    string    `json:"tripId"`
	VehicleID string    `json:"vehicleId,omitempty"`
	RouteID   string    `json:"routeId,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
