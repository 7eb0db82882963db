package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"campustransit/internal/auth"
	"campustransit/internal/config"
	"campustransit/internal/repository"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:        ":0",
		JWTSecret:       "test-secret",
		JWTIssuer:       "test-issuer",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func mustToken(t *testing.T, cfg config.Config, userID, userType string) string {
	t.Helper()
	token, err := auth.NewAccessToken(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, auth.Claims{
		UserID:   userID,
		UserType: userType,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func doReq(t *testing.T, method, url, token string, body []byte) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Bearer abc":      "abc",
		"bearer abc":      "abc",
		"Basic abc":       "",
		"Bearer":          "",
		"Bearer  spaced ": "spaced",
	}
	for header, expect := range cases {
		if got := bearerToken(header); got != expect {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, expect)
		}
	}
}

func TestQueryLimit(t *testing.T) {
	cases := map[string]int{
		"":          200,
		"50":        50,
		"200":       200,
		"0":         200,
		"-5":        200,
		"abc":       200,
		"201":       200,
		"100000000": 200,
	}
	for raw, expect := range cases {
		target := "/api/vehicles"
		if raw != "" {
			target += "?limit=" + raw
		}
		r := httptest.NewRequest(http.MethodGet, target, nil)
		if got := queryLimit(r, 200); got != expect {
			t.Fatalf("queryLimit(limit=%q) = %d, want %d", raw, got, expect)
		}
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	resp := doReq(t, http.MethodGet, app.URL+"/api/vehicles", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/api/vehicles", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != "invalid_token" {
		t.Fatalf("expected invalid_token code, got %q", body["error"])
	}
}

func TestDashboardStatsAdminOnly(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	for _, role := range []string{"student", "driver", "parent"} {
		token := mustToken(t, cfg, "user-1", role)
		resp := doReq(t, http.MethodGet, app.URL+"/api/dashboard/stats", token, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403 for %s, got %d", role, resp.StatusCode)
		}
	}
}

func TestLoginValidation(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", []byte(`{}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty credentials, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "missing_credentials" {
		t.Fatalf("expected missing_credentials, got %q", body["error"])
	}
}

func TestRegisterValidation(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	payload := []byte(`{"email":"a@b.com","password":"pw","firstName":"A","lastName":"B","role":"pilot"}`)
	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/register", "", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "invalid_role" {
		t.Fatalf("expected invalid_role, got %q", body["error"])
	}

	payload = []byte(`{"email":"a@b.com","password":"pw"}`)
	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/register", "", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	resp := doReq(t, http.MethodGet, app.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TEST_DATABASE_URL to run")
		return nil
	}
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("test db: %v", err)
	}
	return pool
}

func TestAuthRoundTrip(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	email := "driver+" + time.Now().UTC().Format("150405.000000") + "@demo.local"
	register := []byte(`{"email":"` + email + `","password":"dev-password","firstName":"Dana","lastName":"Driver","role":"driver"}`)
	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/register", "", register)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status %d", resp.StatusCode)
	}

	var authResp struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if authResp.Token == "" || authResp.User.Role != "driver" {
		t.Fatalf("unexpected register response: %+v", authResp)
	}

	login := []byte(`{"email":"` + email + `","password":"dev-password"}`)
	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", login)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}

	wrong := []byte(`{"email":"` + email + `","password":"wrong"}`)
	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", wrong)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.StatusCode)
	}

	profile := doReq(t, http.MethodGet, app.URL+"/api/auth/profile", authResp.Token, nil)
	if profile.StatusCode != http.StatusOK {
		t.Fatalf("profile status %d", profile.StatusCode)
	}
}
