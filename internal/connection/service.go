package connection

import (
	"context"
	"errors"
	"strings"

	"pairchat/internal/apperr"
	"pairchat/internal/user"
)

// UserLookup resolves identities to users.
type UserLookup interface {
	Profile(ctx context.Context, id string) (*user.Profile, error)
}

type Service struct {
	repo  Repository
	users UserLookup
}

func NewService(repo Repository, users UserLookup) *Service {
	return &Service{repo: repo, users: users}
}

// Create records a direct connection between userA and userB. The requester
// must be one of them. The pair is created accepted unless status asks for
// pending.
func (s *Service) Create(ctx context.Context, requester, userA, userB string, status Status) (*Connection, error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return nil, apperr.New(apperr.Validation, "user1Id and user2Id are required")
	}
	switch status {
	case "":
		status = StatusAccepted
	case StatusAccepted, StatusPending:
	default:
		return nil, apperr.New(apperr.Validation, "status must be pending or accepted")
	}
	if userA == userB {
		return nil, ErrSelfPair
	}
	if requester != userA && requester != userB {
		return nil, ErrNotParty
	}
	if err := s.requireUsers(ctx, userA, userB); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, userA, userB, status)
}

// Pair upserts an accepted connection between subject and scanner. Pairing
// an existing pair moves it to accepted instead of creating a second record.
func (s *Service) Pair(ctx context.Context, subject, scanner string) (*Connection, bool, error) {
	if subject == scanner {
		return nil, false, ErrSelfPair
	}
	if err := s.requireUsers(ctx, subject, scanner); err != nil {
		return nil, false, err
	}
	return s.repo.Upsert(ctx, subject, scanner, StatusAccepted)
}

func (s *Service) requireUsers(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := s.users.Profile(ctx, id); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return ErrUnknownUser
			}
			return err
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Connection, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListFor(ctx context.Context, userID string) ([]Connection, error) {
	return s.repo.ListFor(ctx, userID)
}

// UpdateStatus moves a connection along pending -> accepted|rejected and
// rejected -> accepted. The write only lands if the status is still the one
// checked; a concurrent change surfaces as ErrStatusChanged.
func (s *Service) UpdateStatus(ctx context.Context, requester, id string, status Status) (*Connection, error) {
	if !status.Valid() {
		return nil, apperr.New(apperr.Validation, "status must be one of pending, accepted, rejected")
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Involves(requester) {
		return nil, ErrNotParty
	}
	if c.Status == status {
		return c, nil
	}
	if !c.Status.CanTransition(status) {
		return nil, apperr.New(apperr.Validation, "cannot move connection from "+string(c.Status)+" to "+string(status))
	}
	return s.repo.UpdateStatus(ctx, id, c.Status, status)
}

// Delete removes the connection for both parties. Only a party may delete it.
func (s *Service) Delete(ctx context.Context, requester, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.Involves(requester) {
		return ErrNotParty
	}
	return s.repo.Delete(ctx, id)
}
