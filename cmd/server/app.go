package main

import (
	"net/http"
	"time"

	"github.com/diewo77/go-stock/internal/handlers"
	"github.com/diewo77/go-stock/internal/httpx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HeaderRequestID is echoed back on every response.
const HeaderRequestID = "X-Request-ID"

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	db      *gorm.DB
	log     *zap.Logger
	handler http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(db *gorm.DB, h handlers.Handlers, log *zap.Logger) *App {
	app := &App{
		mux: http.NewServeMux(),
		db:  db,
		log: log,
	}
	app.setupRoutes(h)
	app.handler = app.withLogging(app.mux)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *App) setupRoutes(h handlers.Handlers) {
	a.mux.HandleFunc("GET /healthz", a.healthz)
	h.Register(a.mux)
}

// healthz performs a lightweight DB check.
func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withLogging tags each request with an id and logs it once served.
func (a *App) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
