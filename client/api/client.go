// Package api is the REST client for the campustransit service. Response
// types mirror the service wire format without importing server packages.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// StatusError is a non-2xx response, carrying the service's error code.
type StatusError struct {
	Status int
	Code   string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: status %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// Client makes REST calls to the campustransit service.
type Client struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client targeting the given base URL (e.g. "http://127.0.0.1:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken sets the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
}

type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         User   `json:"user"`
}

type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
}

type Vehicle struct {
	ID           string    `json:"id"`
	Registration string    `json:"registration"`
	Model        string    `json:"model"`
	Capacity     int       `json:"capacity"`
	Status       string    `json:"status"`
	RouteID      string    `json:"routeId,omitempty"`
	DriverID     string    `json:"driverId,omitempty"`
	Position     *Position `json:"position,omitempty"`
}

type Position struct {
	VehicleID string    `json:"vehicleId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

type Trip struct {
	ID        string     `json:"id"`
	VehicleID string     `json:"vehicleId"`
	RouteID   string     `json:"routeId"`
	DriverID  string     `json:"driverId"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

type Route struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	StartPoint string   `json:"startPoint"`
	EndPoint   string   `json:"endPoint"`
	Stops      []string `json:"stops"`
}

type DashboardStats struct {
	TotalVehicles int `json:"totalVehicles"`
	ActiveTrips   int `json:"activeTrips"`
	TotalRoutes   int `json:"totalRoutes"`
	TotalStudents int `json:"totalStudents"`
	TotalDrivers  int `json:"totalDrivers"`
}

// Login exchanges credentials for a token and user profile.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var out AuthResponse
	if err := c.post(ctx, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a new account and returns the same shape as Login.
func (c *Client) Register(ctx context.Context, reg Registration) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.post(ctx, "/api/auth/register", reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProfile fetches the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context) (*User, error) {
	var out User
	if err := c.get(ctx, "/api/auth/profile", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left
// unchanged by the server.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Password  *string `json:"password,omitempty"`
}

// UpdateProfile applies a partial profile update and returns the new profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var out User
	if err := c.put(ctx, "/api/auth/profile", update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetVehicles fetches /api/vehicles.
func (c *Client) GetVehicles(ctx context.Context) ([]Vehicle, error) {
	var out []Vehicle
	if err := c.get(ctx, "/api/vehicles", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTrips fetches /api/trips.
func (c *Client) GetTrips(ctx context.Context) ([]Trip, error) {
	var out []Trip
	if err := c.get(ctx, "/api/trips", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRoutes fetches /api/routes.
func (c *Client) GetRoutes(ctx context.Context) ([]Route, error) {
	var out []Route
	if err := c.get(ctx, "/api/routes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDashboardStats fetches /api/dashboard/stats. Admin only.
func (c *Client) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var out DashboardStats
	if err := c.get(ctx, "/api/dashboard/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) put(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &body)
		return &StatusError{Status: resp.StatusCode, Code: body.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
