package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leaderboard-api/internal/config"
	"github.com/leaderboard-api/internal/domain"
	"github.com/leaderboard-api/internal/resolver"
	"github.com/leaderboard-api/internal/session"
	"github.com/leaderboard-api/internal/websocket"
)

// Handler routes requests into the resolver layer
type Handler struct {
	resolver *resolver.Resolver
	hub      *websocket.Hub
	session  config.SessionConfig
	cors     config.CORSConfig
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(resolver *resolver.Resolver, hub *websocket.Hub, sessionCfg config.SessionConfig, corsCfg config.CORSConfig, logger *slog.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		hub:      hub,
		session:  sessionCfg,
		cors:     corsCfg,
		logger:   logger,
	}
}

// operationRequest is the body of a query/mutation request
type operationRequest struct {
	Operation string          `json:"operation"`
	Input     json.RawMessage `json:"input"`
}

// errorDetail carries one validation failure message
type errorDetail struct {
	Message string `json:"message"`
}

// responseError is an application-level failure surfaced in the payload.
// The outer HTTP status stays 200; callers inspect Status here.
type responseError struct {
	Message string        `json:"message"`
	Status  int           `json:"status"`
	Data    []errorDetail `json:"data,omitempty"`
}

// envelope is the fixed response shape for every operation
type envelope struct {
	Data   map[string]interface{} `json:"data,omitempty"`
	Errors []responseError        `json:"errors,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware(h.cors.AllowedOrigins))

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// Single endpoint, two transports: POST for queries/mutations, GET
	// (websocket upgrade) for subscriptions.
	r.Post("/graphql", h.HandleOperation)
	r.Get("/graphql", h.HandleWebSocket)

	r.Get("/api/v1/ws/stats", h.GetWebSocketStats)

	return r
}

// corsMiddleware allows the configured frontend origins with credentials
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// currentSession resolves the caller's session from the request cookie.
// A missing, expired, or unreadable session yields nil.
func (h *Handler) currentSession(r *http.Request) *session.Session {
	cookie, err := r.Cookie(h.session.CookieName)
	if err != nil {
		return nil
	}

	sess, err := h.resolver.Sessions().Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			h.logger.Warn("session lookup failed", "error", err)
		}
		return nil
	}
	return sess
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeEnvelope writes the response payload. The HTTP status is always 200,
// even for application-level failures; client tooling detects failure from
// the errors list.
func (h *Handler) writeEnvelope(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeData writes a single-field success payload
func (h *Handler) writeData(w http.ResponseWriter, field string, value interface{}) {
	h.writeEnvelope(w, envelope{Data: map[string]interface{}{field: value}})
}

// writeError translates a tagged application error into the envelope
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	appErr := domain.AsError(err)

	respErr := responseError{
		Message: appErr.Message,
		Status:  appErr.Status,
	}
	for _, d := range appErr.Details {
		respErr.Data = append(respErr.Data, errorDetail{Message: d})
	}

	h.writeEnvelope(w, envelope{Errors: []responseError{respErr}})
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, message string) {
	h.writeEnvelope(w, envelope{Errors: []responseError{{Message: message, Status: 400}}})
}

// HandleOperation dispatches a query or mutation request
func (h *Handler) HandleOperation(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Invalid request body.")
		return
	}

	sess := h.currentSession(r)
	ctx := r.Context()

	switch req.Operation {
	case "getAllPlayers":
		players, err := h.resolver.GetAllPlayers(ctx)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeData(w, "getAllPlayers", players)

	case "session":
		h.writeData(w, "session", h.resolver.Session(ctx, sess))

	case "createPlayer":
		var input domain.PlayerInput
		if err := json.Unmarshal(req.Input, &input); err != nil {
			h.writeBadRequest(w, "Invalid input.")
			return
		}
		player, err := h.resolver.CreatePlayer(ctx, sess, input)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeData(w, "createPlayer", player)

	case "updatePlayer":
		var input domain.PlayerInput
		if err := json.Unmarshal(req.Input, &input); err != nil {
			h.writeBadRequest(w, "Invalid input.")
			return
		}
		player, err := h.resolver.UpdatePlayer(ctx, sess, input)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeData(w, "updatePlayer", player)

	case "deletePlayer":
		var input struct {
			PlayerID string `json:"playerId"`
		}
		if err := json.Unmarshal(req.Input, &input); err != nil {
			h.writeBadRequest(w, "Invalid input.")
			return
		}
		player, err := h.resolver.DeletePlayer(ctx, sess, input.PlayerID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeData(w, "deletePlayer", player)

	case "createUser":
		var input domain.UserInput
		if err := json.Unmarshal(req.Input, &input); err != nil {
			h.writeBadRequest(w, "Invalid input.")
			return
		}
		user, err := h.resolver.CreateUser(ctx, input)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeData(w, "createUser", user)

	case "login":
		var input struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(req.Input, &input); err != nil {
			h.writeBadRequest(w, "Invalid input.")
			return
		}
		newSess, identity, err := h.resolver.Login(ctx, input.Email, input.Password)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.setSessionCookie(w, newSess.Token)
		h.writeData(w, "login", identity)

	case "logout":
		msg, err := h.resolver.Logout(ctx, sess)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.clearSessionCookie(w)
		h.writeData(w, "logout", map[string]string{"message": msg})

	default:
		h.writeBadRequest(w, "Unknown operation.")
	}
}

// HandleWebSocket handles subscription upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
