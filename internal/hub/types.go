package hub

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of realtime event.
type EventType string

// Inbound events, sent by clients.
const (
	EvtDriverLocation  EventType = "driver_location"
	EvtStudentBoarding EventType = "student_boarding"
	EvtEmergencySOS    EventType = "emergency_sos"
	EvtTripStarted     EventType = "trip_started"
	EvtTripEnded       EventType = "trip_ended"
)

// Outbound events, broadcast to every connected client.
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

type LocationPayload struct {
	VehicleID string    `json:"vehicleId"`
	DriverID  string    `json:"driverId,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

type BoardingPayload struct {
	StudentID string    `json:"studentId"`
	Name      string    `json:"name,omitempty"`
	VehicleID string    `json:"vehicleId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type EmergencyPayload struct {
	UserID      string    `json:"userId"`
	Role        string    `json:"role,omitempty"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

type TripPayload struct {
	TripID    string    `json:"tripId"`
	VehicleID string    `json:"vehicleId,omitempty"`
	RouteID   string    `json:"routeId,omitempty"`
	DriverID  string    `json:"driverId,omitempty"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
