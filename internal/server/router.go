package server

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/auth"
	"github.com/diewo77/invoice-tracker/internal/config"
	"github.com/diewo77/invoice-tracker/internal/handlers"
	"github.com/diewo77/invoice-tracker/internal/httpx"
	"github.com/diewo77/invoice-tracker/internal/logger"
	"github.com/diewo77/invoice-tracker/internal/models"
	"github.com/diewo77/invoice-tracker/internal/services"
	"github.com/diewo77/invoice-tracker/internal/storage"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, store storage.FileStore, cfg config.Config) http.Handler {
	mux := http.NewServeMux()

	// Configure a user verifier so RequireAuth can ensure the user still exists.
	auth.SetUserVerifier(func(_ context.Context, uid uint) bool {
		var count int64
		if err := db.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	// --- Health endpoints ---
	//revive:disable:unused-parameter simple handlers intentionally ignore *http.Request
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// Lightweight DB check (SELECT 1) – no detail in the body
		if err := db.Exec("SELECT 1").Error; err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, werr := w.Write([]byte(`{"status":"degraded"}`)); werr != nil {
				_ = werr
			}
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	//revive:enable:unused-parameter

	protected := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(auth.RequireAuth(h))
	}

	// Auth endpoints
	ah := handlers.NewAuthHandler(db, cfg.TokenTTL, cfg.BcryptCost)
	mux.HandleFunc("/signup", ah.Signup)
	mux.HandleFunc("/login", ah.Login)
	mux.Handle("/me", protected(ah.Me))

	// User endpoints. List via /users, the rest act on ?id=.
	userSvc := services.NewUserService(db, cfg.BcryptCost)
	uh := handlers.NewUserHandler(db, userSvc)
	mux.Handle("/users", protected(uh.List))
	mux.Handle("/users/get", protected(uh.Get))
	mux.Handle("/users/update", protected(uh.Update))
	mux.Handle("/users/delete", protected(uh.Delete))
	mux.Handle("/users/assign_client", protected(uh.AssignClient))
	mux.Handle("/users/remove_client", protected(uh.RemoveClient))
	mux.Handle("/profile/password", protected(uh.ChangePassword))

	// Invoice endpoints
	summarySvc := services.NewSummaryService(db)
	ih := handlers.NewInvoiceHandler(db, store, summarySvc)
	mux.Handle("/invoices", protected(ih.ListOrCreate))
	mux.Handle("/invoices/get", protected(ih.Get))
	mux.Handle("/invoices/update", protected(ih.Update))
	mux.Handle("/invoices/delete", protected(ih.Delete))
	mux.Handle("/invoices/comments", protected(ih.Comments))
	mux.Handle("/invoices/summary", protected(ih.FinancialSummary))

	// Flat comment list / direct create
	ch := handlers.NewCommentHandler(db)
	mux.Handle("/comments", protected(ch.ListOrCreate))

	// Uploaded invoice documents
	if ds, ok := store.(*storage.DiskStore); ok {
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(ds.Root))))
	}

	return withRecover(withLogging(mux))
}

func withLogging(next http.Handler) http.Handler {
	log := logger.WithComponent("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log := logger.WithComponent("http")
				log.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("handler panicked")
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
