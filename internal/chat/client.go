package chat

import (
	"context"
	"encoding/json"
	"time"

	"pairchat/internal/apperr"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 8192                // Maximum frame size allowed from peer.
	sendBuffer     = 256
)

// Client is a middleman between one websocket and the hub. identity is the
// authenticated user; a client can only join that user's room.
type Client struct {
	hub      *Hub
	router   *Router
	conn     *websocket.Conn
	send     chan []byte
	identity string
}

func newClient(hub *Hub, router *Router, conn *websocket.Conn, identity string) *Client {
	return &Client{
		hub:      hub,
		router:   router,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		identity: identity,
	}
}

// readPump reads events until the socket fails. Each event is handled on its
// own; a bad event is answered with an error event and the loop continues.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user_id", c.identity).Msg("websocket closed unexpectedly")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.fail("", apperr.New(apperr.Validation, "malformed event"))
			continue
		}
		if err := c.handle(ctx, env); err != nil {
			c.fail(env.Event, err)
		}
	}
}

func (c *Client) handle(ctx context.Context, env Envelope) error {
	switch env.Event {
	case EventJoin:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil || id == "" {
			return apperr.New(apperr.Validation, "join expects a user id")
		}
		if id != c.identity {
			return apperr.New(apperr.Forbidden, "cannot join another user's room")
		}
		c.hub.Join(c)

	case EventLeave:
		c.hub.Leave(c)

	case EventSendMessage:
		var p SendPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return apperr.New(apperr.Validation, "malformed sendMessage payload")
		}
		// The write must outlive this socket.
		_, err := c.router.Send(context.WithoutCancel(ctx), c.identity, p.RecipientID, p.Message.ConnectionID, p.Message.Content, c)
		return err

	default:
		return apperr.New(apperr.Validation, "unknown event")
	}
	return nil
}

// fail logs err and tells the client which event it belonged to.
func (c *Client) fail(event string, err error) {
	ev := log.Warn()
	if apperr.KindOf(err) == apperr.Internal {
		ev = log.Error()
	}
	ev.Err(err).Str("user_id", c.identity).Str("event", event).Msg("websocket event failed")

	msg := apperr.Message(err)
	if apperr.KindOf(err) == apperr.Internal {
		msg = "Internal server error"
	}
	payload, encErr := encode(EventError, ErrorPayload{Event: event, Message: msg})
	if encErr != nil {
		return
	}
	c.hub.Reply(c, payload)
}

// writePump drains send onto the socket and keeps it alive with pings. It
// owns all writes to conn.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One envelope per frame; clients parse frames as single JSON values.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
