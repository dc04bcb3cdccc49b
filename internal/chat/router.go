package chat

import (
	"context"
	"errors"
	"strings"

	"pairchat/internal/apperr"
	"pairchat/internal/connection"
	"pairchat/internal/message"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotAccepted      = apperr.New(apperr.Forbidden, "Connection is not accepted")
	ErrWrongRecipient   = apperr.New(apperr.Validation, "Recipient is not the other party of this connection")
	ErrMissingRecipient = apperr.New(apperr.Validation, "recipientId is required")
)

// ConnectionFinder resolves the connection a message is sent on.
type ConnectionFinder interface {
	Get(ctx context.Context, id string) (*connection.Connection, error)
}

// Appender stores messages.
type Appender interface {
	Append(ctx context.Context, connectionID, senderID, content string) (*message.Message, error)
}

// Router writes messages to the store and fans them out to live sockets.
type Router struct {
	hub         *Hub
	connections ConnectionFinder
	messages    Appender
}

func NewRouter(hub *Hub, connections ConnectionFinder, messages Appender) *Router {
	return &Router{hub: hub, connections: connections, messages: messages}
}

// Route pushes m to every socket in recipient's room. Offline recipients get
// nothing now and read the message from the store later.
func (r *Router) Route(recipient string, m *message.Message) {
	r.fanOut(recipient, m, nil)
}

// Deliver lets HTTP sends reach online peers.
func (r *Router) Deliver(recipient string, m *message.Message) {
	r.Route(recipient, m)
}

func (r *Router) fanOut(room string, m *message.Message, except *Client) {
	payload, err := encode(EventNewMessage, m)
	if err != nil {
		log.Error().Err(err).Str("message_id", m.ID).Msg("encode message")
		return
	}
	r.hub.Route(room, payload, except)
}

// Send stores a message from sender on an accepted connection shared with
// recipient, routes it to the recipient and echoes it to the sender's other
// sockets. origin may be nil.
func (r *Router) Send(ctx context.Context, sender, recipient, connectionID, content string, origin *Client) (*message.Message, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, ErrMissingRecipient
	}
	if strings.TrimSpace(connectionID) == "" {
		return nil, apperr.New(apperr.Validation, "connectionId is required")
	}
	if err := message.ValidateContent(content); err != nil {
		return nil, err
	}

	c, err := r.connections.Get(ctx, connectionID)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil, message.ErrConnectionNotFound
		}
		return nil, err
	}
	if !c.Involves(sender) {
		return nil, connection.ErrNotParty
	}
	if c.Peer(sender) != recipient {
		return nil, ErrWrongRecipient
	}
	if c.Status != connection.StatusAccepted {
		return nil, ErrNotAccepted
	}

	m, err := r.messages.Append(ctx, connectionID, sender, content)
	if err != nil {
		return nil, err
	}

	r.Route(recipient, m)
	r.fanOut(sender, m, origin)
	return m, nil
}
