package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Role struct {
	UserID   string
	UserType string
}

const (
	RoleStudent = "student"
	RoleDriver  = "driver"
	RoleParent  = "parent"
	RoleAdmin   = "admin"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleDriver, RoleParent, RoleAdmin:
		return true
	default:
		return false
	}
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

type Vehicle struct {
	ID           string
	Registration string
	Model        string
	Capacity     int
	Status       string
	RouteID      *string
	DriverID     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TransitRoute struct {
	ID         string
	Name       string
	StartPoint string
	EndPoint   string
	Stops      []string
	CreatedAt  time.Time
}

type Trip struct {
	ID        string
	VehicleID string
	RouteID   string
	DriverID  string
	Status    string
	StartedAt *time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
}

// VehiclePosition is the last live location sample for a vehicle. It is
// cached, not stored durably, and ages out with the cache TTL.
type VehiclePosition struct {
	VehicleID string    `json:"vehicleId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

type DashboardStats struct {
	TotalVehicles int `json:"totalVehicles"`
	ActiveTrips   int `json:"activeTrips"`
	TotalRoutes   int `json:"totalRoutes"`
	TotalStudents int `json:"totalStudents"`
	TotalDrivers  int `json:"totalDrivers"`
}
