package chat

import (
	"context"
	"net/http"

	myMiddleware "pairchat/internal/middleware"
	"pairchat/internal/web"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	hub      *Hub
	router   *Router
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket endpoint. An empty origin allows any
// origin, which is what development setups need.
func NewHandler(hub *Hub, router *Router, origin string) *Handler {
	return &Handler{
		hub:    hub,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return origin == "" || o == "" || o == origin
			},
		},
	}
}

func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		web.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h.hub, h.router, conn, userID)
	select {
	case h.hub.Register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}
	log.Info().Str("user_id", userID).Msg("websocket connected")

	go client.writePump()
	go client.readPump(context.WithoutCancel(r.Context()))
}
