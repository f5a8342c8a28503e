package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tradewatch/internal/models"
	"tradewatch/internal/trades"
	"tradewatch/internal/watcher"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserHeader carries the acting user's ID. Authentication happens in front
// of this server.
const UserHeader = "X-User-ID"

// UserLookup resolves the acting user.
type UserLookup interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// APIServer provides an HTTP interface for the trade service and the alert
// engine.
type APIServer struct {
	server  *http.Server
	service *trades.Service
	engine  *watcher.Engine
	users   UserLookup
	logger  *zap.Logger

	UUID      string
	StartTime time.Time
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(port int, service *trades.Service, engine *watcher.Engine, users UserLookup, logger *zap.Logger) *APIServer {
	s := &APIServer{
		service:   service,
		engine:    engine,
		users:     users,
		logger:    logger.Named("api-server"),
		UUID:      uuid.NewString(),
		StartTime: time.Now(),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler of the server.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /status", s.statusHandler)

	mux.HandleFunc("POST /users", s.registerHandler)
	mux.HandleFunc("PUT /users/me/notification-handle", s.withActor(s.setHandleHandler))
	mux.HandleFunc("DELETE /users/me/notification-handle", s.withActor(s.clearHandleHandler))

	mux.HandleFunc("GET /trades", s.withActor(s.listTradesHandler))
	mux.HandleFunc("POST /trades", s.withActor(s.addTradeHandler))
	mux.HandleFunc("GET /trades/summary", s.withActor(s.summaryHandler))
	mux.HandleFunc("DELETE /trades/{id}", s.withActor(s.deleteTradeHandler))
	mux.HandleFunc("POST /trades/{id}/sell", s.withActor(s.sellHandler))

	mux.HandleFunc("GET /alerts", s.withActor(s.listAlertsHandler))
	mux.HandleFunc("POST /alerts", s.withActor(s.addAlertHandler))
	mux.HandleFunc("POST /alerts/check", s.checkAlertsHandler)
	return mux
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

type actorHandler func(w http.ResponseWriter, r *http.Request, actor *models.User)

// withActor resolves the acting user from UserHeader.
func (s *APIServer) withActor(next actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserHeader)
		if raw == "" {
			s.fail(w, http.StatusUnauthorized, ErrCodeUnauthorized, UserHeader+" header is required")
			return
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			s.fail(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid "+UserHeader+" header")
			return
		}
		actor, err := s.users.GetUser(r.Context(), uint(id))
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				s.fail(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unknown user")
				return
			}
			s.handleError(w, r, err)
			return
		}
		next(w, r, actor)
	}
}
