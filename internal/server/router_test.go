package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/config"
	"github.com/diewo77/invoice-tracker/internal/db"
	"github.com/diewo77/invoice-tracker/internal/storage"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Config{TokenTTL: time.Hour, BcryptCost: 4, BaseURL: "http://test.local"}
	store := storage.NewDiskStore(t.TempDir(), cfg.BaseURL)
	return New(conn, store, cfg)
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	h := newTestHandler(t)
	for _, path := range []string{"/me", "/users", "/invoices", "/comments", "/invoices/summary"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, w.Code)
		}
	}
}

func TestSignupLoginRoundTrip(t *testing.T) {
	h := newTestHandler(t)

	body := `{"email":"flow@example.com","password":"s3cret-pass","role":"client"}`
	r := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		Token struct {
			Token string `json:"token"`
		} `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	if created.Token.Token == "" {
		t.Fatalf("missing token")
	}

	// The issued token opens protected routes
	r = httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer "+created.Token.Token)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("me expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	// A bogus token does not
	r = httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token expected 401 got %d", w.Code)
	}
}

func TestMethodNotAllowedOnActionRoutes(t *testing.T) {
	h := newTestHandler(t)

	// Authenticate first so the method check is what fails
	body := `{"email":"m@example.com","password":"s3cret-pass","role":"client"}`
	r := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: %d", w.Code)
	}
	var created struct {
		Token struct {
			Token string `json:"token"`
		} `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	r = httptest.NewRequest(http.MethodDelete, "/invoices", bytes.NewReader(nil))
	r.Header.Set("Authorization", "Bearer "+created.Token.Token)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", w.Code)
	}
}
