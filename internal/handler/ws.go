package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hikari/taskboard/internal/domain"
	"github.com/hikari/taskboard/internal/metrics"
	"github.com/hikari/taskboard/internal/realtime"
	"github.com/hikari/taskboard/internal/service"
)

// WSHandler upgrades authenticated connections and joins them to the
// owner's channel. Browsers cannot set an Authorization header on a
// websocket handshake, so the access token rides in the query string.
type WSHandler struct {
	auth     *service.AuthService
	registry *realtime.Registry
	metrics  *metrics.Collector
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. Only handshakes from frontendURL
// (or non-browser clients sending no Origin) are accepted.
func NewWSHandler(auth *service.AuthService, registry *realtime.Registry, collector *metrics.Collector, frontendURL string) *WSHandler {
	return &WSHandler{
		auth:     auth,
		registry: registry,
		metrics:  collector,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == frontendURL
			},
		},
	}
}

// Serve authenticates, upgrades and pumps one websocket connection. Blocks
// until the peer disconnects.
func (h *WSHandler) Serve(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return domain.ErrNoCredential
	}

	userID, err := h.auth.VerifyAccessToken(token)
	if err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake failure to the client.
		return nil
	}

	client := realtime.NewClient(conn)
	h.registry.Join(userID, client)
	h.metrics.WSConnected()
	slog.Info("websocket connected", "user_id", userID)

	go client.WritePump()
	client.ReadPump()

	h.registry.Leave(client)
	client.Close()
	h.metrics.WSDisconnected()
	slog.Info("websocket disconnected", "user_id", userID)

	return nil
}
