package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/auth"
	"github.com/dukerupert/nudge/internal/database"
	"github.com/dukerupert/nudge/internal/store"
)

func setupAuthMiddlewareDB(t *testing.T) (*store.SessionStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSessionStore(db), db
}

func createSession(t *testing.T, db *sql.DB, role, token string, expires time.Time) int64 {
	t.Helper()
	res, err := db.Exec("INSERT INTO users (email, role) VALUES (?, ?)", token+"@example.com", role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	uid, _ := res.LastInsertId()
	if _, err := db.Exec("INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)", uid, token, expires.UTC()); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return uid
}

func unreachable(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func TestRequireAuthRejects(t *testing.T) {
	ss, db := setupAuthMiddlewareDB(t)
	createSession(t, db, "member", "stale", time.Now().Add(-time.Hour))

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no credentials", func(r *http.Request) {}},
		{"invalid cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
		}},
		{"invalid bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }},
		{"non-bearer scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") }},
		{"expired session", func(r *http.Request) { r.Header.Set("Authorization", "Bearer stale") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/notifications", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			RequireAuth(ss)(unreachable(t)).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	ss, db := setupAuthMiddlewareDB(t)
	uid := createSession(t, db, "admin", "good-token", time.Now().Add(time.Hour))

	for _, via := range []string{"cookie", "bearer"} {
		t.Run(via, func(t *testing.T) {
			var gotAC auth.AuthContext
			handler := RequireAuth(ss)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ac, ok := auth.FromContext(r.Context())
				if !ok {
					t.Fatal("expected AuthContext in request context")
				}
				gotAC = ac
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/", nil)
			if via == "cookie" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good-token"})
			} else {
				req.Header.Set("Authorization", "Bearer good-token")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if gotAC.UserID != uid {
				t.Errorf("UserID = %d, want %d", gotAC.UserID, uid)
			}
			if gotAC.Role != "admin" {
				t.Errorf("Role = %q, want %q", gotAC.Role, "admin")
			}
		})
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: "admin"})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAdminForbidden(t *testing.T) {
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: "member"})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	RequireAdmin(unreachable(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
