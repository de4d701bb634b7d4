package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"raybox-panel/internal/events"
)

type WSHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *events.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The panel serves a single operator on a trusted network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.hub.Register(conn)

	// The hub owns all writes; this loop only drains control frames and
	// detects disconnects.
	go func() {
		defer h.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WSHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Connect)
}
