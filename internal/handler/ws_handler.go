package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/genialityco/gen-live-web-sub001/internal/config"
	"github.com/genialityco/gen-live-web-sub001/internal/hub"
	"github.com/genialityco/gen-live-web-sub001/internal/middleware"
	"github.com/genialityco/gen-live-web-sub001/pkg/log"
	"github.com/genialityco/gen-live-web-sub001/pkg/response"
	"github.com/genialityco/gen-live-web-sub001/pkg/token"
)

// WSHandler upgrades connections onto the push surface.
type WSHandler struct {
	hub      *hub.Hub
	tokens   *token.Manager
	config   config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(h *hub.Hub, tokens *token.Manager, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:    h,
		tokens: tokens,
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve authenticates and upgrades a client connection. The token comes
// from the "token" query parameter, falling back to the bearer header for
// non-browser clients.
func (h *WSHandler) Serve(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		raw = strings.TrimPrefix(c.GetHeader(middleware.AuthHeaderKey), middleware.BearerPrefix)
	}
	if raw == "" {
		response.Unauthorized(c, "missing token")
		return
	}

	claims, err := h.tokens.Validate(raw)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}

	eventID := c.Param("id")
	if claims.EventID != eventID {
		response.Forbidden(c, "token is not valid for this event")
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), claims.UID, eventID, claims.Role, h.hub, conn, h.config)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
