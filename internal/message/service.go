package message

import (
	"context"
	"errors"
	"strings"

	"pairchat/internal/apperr"
	"pairchat/internal/connection"

	"github.com/rs/zerolog/log"
)

// ConnectionFinder resolves the connection a message belongs to.
type ConnectionFinder interface {
	Get(ctx context.Context, id string) (*connection.Connection, error)
}

// Deliverer pushes a stored message to the recipient's live sockets.
type Deliverer interface {
	Deliver(recipientID string, m *Message)
}

type Service struct {
	repo        Repository
	connections ConnectionFinder
	deliverer   Deliverer
}

func NewService(repo Repository, connections ConnectionFinder) *Service {
	return &Service{repo: repo, connections: connections}
}

// WithDeliverer makes messages sent over HTTP reach online peers too.
func (s *Service) WithDeliverer(d Deliverer) *Service {
	s.deliverer = d
	return s
}

// ValidateContent rejects empty and oversized message bodies.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.New(apperr.Validation, "content is required")
	}
	if len(content) > MaxContentLength {
		return apperr.New(apperr.Validation, "content is too long")
	}
	return nil
}

// Send appends a message from senderID to the connection and returns it with
// the connection it was written to. The sender must be a party.
func (s *Service) Send(ctx context.Context, connectionID, senderID, content string) (*Message, *connection.Connection, error) {
	if strings.TrimSpace(connectionID) == "" {
		return nil, nil, apperr.New(apperr.Validation, "connectionId is required")
	}
	if err := ValidateContent(content); err != nil {
		return nil, nil, err
	}

	c, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil, nil, ErrConnectionNotFound
		}
		return nil, nil, err
	}
	if !c.Involves(senderID) {
		return nil, nil, connection.ErrNotParty
	}

	m, err := s.repo.Append(ctx, connectionID, senderID, content)
	if err != nil {
		return nil, nil, err
	}
	return m, c, nil
}

// Post handles an HTTP send on behalf of requester.
func (s *Service) Post(ctx context.Context, requester string, req *SendRequest) (*Message, error) {
	sender := strings.TrimSpace(req.SenderID)
	if sender == "" {
		sender = requester
	}
	if sender != requester {
		return nil, apperr.New(apperr.Forbidden, "senderId must match the authenticated user")
	}

	m, c, err := s.Send(ctx, req.ConnectionID, sender, req.Content)
	if err != nil {
		return nil, err
	}
	if s.deliverer != nil {
		s.deliverer.Deliver(c.Peer(sender), m)
	}
	return m, nil
}

func (s *Service) ListFor(ctx context.Context, connectionID string) ([]Message, error) {
	return s.repo.ListFor(ctx, connectionID)
}

// MarkRead flips every unread message in the connection not sent by readerID.
func (s *Service) MarkRead(ctx context.Context, requester, connectionID, readerID string) (int64, error) {
	if readerID == "" {
		readerID = requester
	}
	if readerID != requester {
		return 0, apperr.New(apperr.Forbidden, "userId must match the authenticated user")
	}
	n, err := s.repo.MarkRead(ctx, connectionID, readerID)
	if err != nil {
		return 0, err
	}
	log.Debug().Str("connection_id", connectionID).Int64("count", n).Msg("messages marked read")
	return n, nil
}

// Delete removes a message. Only its sender may delete it.
func (s *Service) Delete(ctx context.Context, requester, id string) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.SenderID != requester {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}
