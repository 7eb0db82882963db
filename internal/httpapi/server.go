package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campustransit/internal/auth"
	"campustransit/internal/config"
	"campustransit/internal/crypto"
	"campustransit/internal/hub"
	"campustransit/internal/model"
	"campustransit/internal/positions"
	"campustransit/internal/repository"
)

type Server struct {
	cfg       config.Config
	store     *repository.Store
	positions *positions.Cache
	hub       *hub.Hub
}

func NewServer(cfg config.Config, store *repository.Store, cache *positions.Cache, h *hub.Hub) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		positions: cache,
		hub:       h,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if s.hub != nil {
		r.Get("/ws", s.hub.Handler(s.cfg.JWTSecret))
	}

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/register", s.handleRegister)
	r.With(s.authMiddleware).Post("/api/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/api/auth/profile", s.handleGetProfile)
	r.With(s.authMiddleware).Put("/api/auth/profile", s.handlePutProfile)

	r.With(s.authMiddleware).Get("/api/vehicles", s.handleListVehicles)
	r.With(s.authMiddleware).Get("/api/trips", s.handleListTrips)
	r.With(s.authMiddleware).Get("/api/routes", s.handleListRoutes)
	r.With(s.authMiddleware, s.requireAdmin).Get("/api/dashboard/stats", s.handleDashboardStats)

	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

type authResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         userSummary `json:"user"`
}

type userSummary struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Phone     *string `json:"phone,omitempty"`
	Role      string  `json:"role"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	role, err := s.store.GetRole(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "role_not_found")
		return
	}

	s.writeAuthResponse(w, r, user, role)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Role = strings.TrimSpace(strings.ToLower(req.Role))
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !model.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	if _, err := s.store.GetUserByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email_taken")
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user.Phone = &phone
	}

	if err := s.store.CreateUserWithRole(r.Context(), user, req.Role); err != nil {
		writeError(w, http.StatusBadRequest, "user_create_failed")
		return
	}

	s.writeAuthResponse(w, r, user, model.Role{UserID: user.ID, UserType: req.Role})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	_ = s.store.RevokeRefreshSessionsByUser(r.Context(), claims.UserID, time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	writeJSON(w, http.StatusOK, userSummary{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Role:      claims.UserType,
	})
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Password  *string `json:"password,omitempty"`
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	update := repository.UserUpdate{}
	if req.FirstName != nil {
		first := strings.TrimSpace(*req.FirstName)
		if first != "" {
			update.FirstName = &first
		}
	}
	if req.LastName != nil {
		last := strings.TrimSpace(*req.LastName)
		if last != "" {
			update.LastName = &last
		}
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone != "" {
			update.Phone = &phone
		}
	}
	if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "password_hash_failed")
			return
		}
		update.PasswordHash = &hash
	}

	user, err := s.store.UpdateUser(r.Context(), claims.UserID, update)
	if err != nil {
		writeError(w, http.StatusBadRequest, "update_failed")
		return
	}

	writeJSON(w, http.StatusOK, userSummary{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Role:      claims.UserType,
	})
}

type vehicleSummary struct {
	ID           string                 `json:"id"`
	Registration string                 `json:"registration"`
	Model        string                 `json:"model"`
	Capacity     int                    `json:"capacity"`
	Status       string                 `json:"status"`
	RouteID      *string                `json:"routeId,omitempty"`
	DriverID     *string                `json:"driverId,omitempty"`
	Position     *model.VehiclePosition `json:"position,omitempty"`
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 200)
	vehicles, err := s.store.ListVehicles(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]vehicleSummary, 0, len(vehicles))
	for _, vehicle := range vehicles {
		summary := vehicleSummary{
			ID:           vehicle.ID,
			Registration: vehicle.Registration,
			Model:        vehicle.Model,
			Capacity:     vehicle.Capacity,
			Status:       vehicle.Status,
			RouteID:      vehicle.RouteID,
			DriverID:     vehicle.DriverID,
		}
		if position, ok, err := s.positions.Get(r.Context(), vehicle.ID); err == nil && ok {
			p := position
			summary.Position = &p
		}
		resp = append(resp, summary)
	}

	writeJSON(w, http.StatusOK, resp)
}

type tripSummary struct {
	ID        string     `json:"id"`
	VehicleID string     `json:"vehicleId"`
	RouteID   string     `json:"routeId"`
	DriverID  string     `json:"driverId"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 200)
	trips, err := s.store.ListTrips(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]tripSummary, 0, len(trips))
	for _, trip := range trips {
		resp = append(resp, tripSummary{
			ID:        trip.ID,
			VehicleID: trip.VehicleID,
			RouteID:   trip.RouteID,
			DriverID:  trip.DriverID,
			Status:    trip.Status,
			StartedAt: trip.StartedAt,
			EndedAt:   trip.EndedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type routeSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	StartPoint string   `json:"startPoint"`
	EndPoint   string   `json:"endPoint"`
	Stops      []string `json:"stops"`
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 200)
	routes, err := s.store.ListRoutes(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]routeSummary, 0, len(routes))
	for _, route := range routes {
		resp = append(resp, routeSummary{
			ID:         route.ID,
			Name:       route.Name,
			StartPoint: route.StartPoint,
			EndPoint:   route.EndPoint,
			Stops:      route.Stops,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetDashboardStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeAuthResponse(w http.ResponseWriter, r *http.Request, user model.User, role model.Role) {
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID:   user.ID,
		UserType: role.UserType,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	refreshToken, err := crypto.NewRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	now := time.Now().UTC()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if userAgent := r.UserAgent(); userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ip := clientIP(r); ip != "" {
		session.IPAddress = &ip
	}
	if err := s.store.CreateRefreshSession(r.Context(), session); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		User: userSummary{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Phone:     user.Phone,
			Role:      role.UserType,
		},
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.UserType != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// queryLimit reads the limit parameter. The fallback doubles as the
// ceiling so a client cannot request an unbounded result set.
func queryLimit(r *http.Request, fallback int) int {
	limit := fallback
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > fallback {
		limit = fallback
	}
	return limit
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}
