package handlers

import (
	"errors"
	"net/http"
	"strings"

	"chat-backend/internal/auth"
	"chat-backend/internal/metrics"
	"chat-backend/internal/models"
	ws "chat-backend/internal/websocket"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WebSocketHandlers struct {
	authService *auth.Service
	deps        ws.Deps
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

func NewWebSocketHandlers(authService *auth.Service, deps ws.Deps, log zerolog.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		deps:        deps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
		log: log.With().Str("component", "ws_handlers").Logger(),
	}
}

// HandleWebSocket gates the upgrade behind token verification and starts
// the client's pumps. Every event on the resulting connection runs under
// the identity established here.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Verify(r.Context(), bearerToken(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMissingToken):
			writeError(w, http.StatusUnauthorized, "Missing token")
		case errors.Is(err, models.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "Token expired")
		default:
			writeError(w, http.StatusUnauthorized, "Invalid token")
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(conn, user, h.deps)
	h.deps.Sessions.Establish(client, user)
	metrics.ActiveConnections.Inc()
	h.log.Info().Str("username", user.Username).Str("conn", client.ID()).Msg("client connected")

	go client.WritePump()
	go client.ReadPump()
}

// bearerToken extracts the token from the Authorization header (raw or
// "Bearer <token>") or, for browser websocket clients that cannot set
// headers, from the token query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
		return header
	}
	return r.URL.Query().Get("token")
}
