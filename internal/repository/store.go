package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campustransit/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, phone, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, phone, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) GetRole(ctx context.Context, userID string) (model.Role, error) {
	role := model.Role{UserID: userID}
	row := s.pool.QueryRow(ctx, `SELECT user_type FROM user_roles WHERE user_id = $1`, userID)
	if err := row.Scan(&role.UserType); err != nil {
		return role, err
	}
	return role, nil
}

func (s *Store) CreateUserWithRole(ctx context.Context, user model.User, userType string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, user_type)
		VALUES ($1, $2)
	`, user.ID, userType)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

type UserUpdate struct {
	Email        *string
	FirstName    *string
	LastName     *string
	Phone        *string
	PasswordHash *string
}

func (s *Store) UpdateUser(ctx context.Context, userID string, update UserUpdate) (model.User, error) {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET email = COALESCE($2, email),
		    first_name = COALESCE($3, first_name),
		    last_name = COALESCE($4, last_name),
		    phone = COALESCE($5, phone),
		    password_hash = COALESCE($6, password_hash),
		    updated_at = $7
		WHERE id = $1
	`, userID, update.Email, update.FirstName, update.LastName, update.Phone, update.PasswordHash, time.Now().UTC())
	if err != nil {
		return model.User{}, err
	}
	return s.GetUserByID(ctx, userID)
}

func (s *Store) CreateRefreshSession(ctx context.Context, session model.RefreshSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_token_sessions (id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt, session.RevokedAt, session.UserAgent, session.IPAddress)
	return err
}

func (s *Store) RevokeRefreshSessionsByUser(ctx context.Context, userID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_token_sessions
		SET revoked_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL
	`, revokedAt, userID)
	return err
}

func (s *Store) ListVehicles(ctx context.Context, limit int) ([]model.Vehicle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, registration, model, capacity, status, route_id, driver_id, created_at, updated_at
		FROM vehicles
		ORDER BY registration
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		var vehicle model.Vehicle
		if err := rows.Scan(
			&vehicle.ID,
			&vehicle.Registration,
			&vehicle.Model,
			&vehicle.Capacity,
			&vehicle.Status,
			&vehicle.RouteID,
			&vehicle.DriverID,
			&vehicle.CreatedAt,
			&vehicle.UpdatedAt,
		); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, vehicle)
	}
	return vehicles, rows.Err()
}

func (s *Store) GetVehicle(ctx context.Context, vehicleID string) (model.Vehicle, error) {
	var vehicle model.Vehicle
	row := s.pool.QueryRow(ctx, `
		SELECT id, registration, model, capacity, status, route_id, driver_id, created_at, updated_at
		FROM vehicles
		WHERE id = $1
	`, vehicleID)
	err := row.Scan(
		&vehicle.ID,
		&vehicle.Registration,
		&vehicle.Model,
		&vehicle.Capacity,
		&vehicle.Status,
		&vehicle.RouteID,
		&vehicle.DriverID,
		&vehicle.CreatedAt,
		&vehicle.UpdatedAt,
	)
	return vehicle, err
}

func (s *Store) ListRoutes(ctx context.Context, limit int) ([]model.TransitRoute, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, start_point, end_point, stops, created_at
		FROM routes
		ORDER BY name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []model.TransitRoute
	for rows.Next() {
		var route model.TransitRoute
		if err := rows.Scan(
			&route.ID,
			&route.Name,
			&route.StartPoint,
			&route.EndPoint,
			&route.Stops,
			&route.CreatedAt,
		); err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

func (s *Store) ListTrips(ctx context.Context, limit int) ([]model.Trip, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, vehicle_id, route_id, driver_id, status, started_at, ended_at, created_at
		FROM trips
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []model.Trip
	for rows.Next() {
		var trip model.Trip
		if err := rows.Scan(
			&trip.ID,
			&trip.VehicleID,
			&trip.RouteID,
			&trip.DriverID,
			&trip.Status,
			&trip.StartedAt,
			&trip.EndedAt,
			&trip.CreatedAt,
		); err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func (s *Store) CreateTrip(ctx context.Context, trip model.Trip) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trips (id, vehicle_id, route_id, driver_id, status, started_at, ended_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, trip.ID, trip.VehicleID, trip.RouteID, trip.DriverID, trip.Status, trip.StartedAt, trip.EndedAt, trip.CreatedAt)
	return err
}

func (s *Store) UpdateTripStatus(ctx context.Context, tripID, status string, at time.Time) error {
	var column string
	switch status {
	case "active":
		column = "started_at"
	case "completed":
		column = "ended_at"
	default:
		_, err := s.pool.Exec(ctx, `UPDATE trips SET status = $2 WHERE id = $1`, tripID, status)
		return err
	}
	_, err := s.pool.Exec(ctx, `UPDATE trips SET status = $2, `+column+` = $3 WHERE id = $1`, tripID, status, at)
	return err
}

func (s *Store) GetDashboardStats(ctx context.Context) (model.DashboardStats, error) {
	var stats model.DashboardStats
	row := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM vehicles),
			(SELECT COUNT(*) FROM trips WHERE status = 'active'),
			(SELECT COUNT(*) FROM routes),
			(SELECT COUNT(*) FROM user_roles WHERE user_type = 'student'),
			(SELECT COUNT(*) FROM user_roles WHERE user_type = 'driver')
	`)
	err := row.Scan(
		&stats.TotalVehicles,
		&stats.ActiveTrips,
		&stats.TotalRoutes,
		&stats.TotalStudents,
		&stats.TotalDrivers,
	)
	return stats, err
}
