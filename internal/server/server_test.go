package server

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/config"
	"github.com/dukerupert/nudge/internal/database"
)

func setupServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		DefaultLocale:   "id",
		DeliveryTimeout: time.Second,
		PostLookback:    24 * time.Hour,
		LedgerRetention: 24 * time.Hour,
		Schedules:       map[string]string{},
	}
	srv, err := New(db, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, db
}

func createSession(t *testing.T, db *sql.DB, email, role, token string) {
	t.Helper()
	res, err := db.Exec(`INSERT INTO users (email, name, role) VALUES (?, 'Test', ?)`, email, role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	uid, _ := res.LastInsertId()
	if _, err := db.Exec(`INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)`,
		uid, token, time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestJobsRegistered(t *testing.T) {
	srv, _ := setupServer(t)
	if got := len(srv.Scheduler().Status()); got != 7 {
		t.Errorf("registered %d jobs, want 7", got)
	}
}

func TestInvalidScheduleOverride(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	cfg := &config.Config{Schedules: map[string]string{"digests": "whenever"}}
	if _, err := New(db, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestRoutes(t *testing.T) {
	srv, db := setupServer(t)
	createSession(t, db, "member@example.com", "member", "member-token")
	createSession(t, db, "admin@example.com", "admin", "admin-token")
	router := srv.Router()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"inbox requires auth", "GET", "/api/notifications", "", http.StatusUnauthorized},
		{"inbox", "GET", "/api/notifications", "member-token", http.StatusOK},
		{"unread count", "GET", "/api/notifications/unread-count", "member-token", http.StatusOK},
		{"read all", "POST", "/api/notifications/read-all", "member-token", http.StatusOK},
		{"preferences", "GET", "/api/preferences", "member-token", http.StatusOK},
		{"subscriptions", "GET", "/api/push/subscriptions", "member-token", http.StatusOK},
		{"vapid key unset", "GET", "/api/push/vapid-key", "member-token", http.StatusServiceUnavailable},
		{"admin jobs forbidden", "GET", "/api/admin/jobs", "member-token", http.StatusForbidden},
		{"admin jobs", "GET", "/api/admin/jobs", "admin-token", http.StatusOK},
		{"run job before start", "POST", "/api/admin/jobs/digests/run", "admin-token", http.StatusServiceUnavailable},
		{"run unknown job", "POST", "/api/admin/jobs/nope/run", "admin-token", http.StatusNotFound},
		{"unknown route", "GET", "/api/nothing", "member-token", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (body %s)", tt.method, tt.path, rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestPushTestRateLimited(t *testing.T) {
	srv, db := setupServer(t)
	createSession(t, db, "member@example.com", "member", "member-token")
	router := srv.Router()

	for i := range pushTestLimit + 1 {
		req := httptest.NewRequest("POST", "/api/push/test", nil)
		req.Header.Set("Authorization", "Bearer member-token")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if i < pushTestLimit && rr.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d rate limited early", i+1)
		}
		if i == pushTestLimit && rr.Code != http.StatusTooManyRequests {
			t.Errorf("request %d = %d, want 429", i+1, rr.Code)
		}
	}
}
