package connection

import (
	"time"

	"pairchat/internal/apperr"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a connection may move from s to next.
// Accepted is terminal; only deletion ends it.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusAccepted || next == StatusRejected
	case StatusRejected:
		return next == StatusAccepted
	}
	return false
}

// Connection is a symmetric pairing of two users. UserA and UserB keep the
// order the pair was created in; uniqueness ignores it.
type Connection struct {
	ID        string    `json:"id"`
	UserA     string    `json:"user1"`
	UserB     string    `json:"user2"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Connection) Involves(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}

// Peer returns the other party of the connection, or "" if userID is not a
// party.
func (c *Connection) Peer(userID string) string {
	switch userID {
	case c.UserA:
		return c.UserB
	case c.UserB:
		return c.UserA
	}
	return ""
}

// CreateRequest asks for a direct connection. Status is accepted when
// omitted; pending leaves the pair for the other party to accept or reject.
type CreateRequest struct {
	User1ID string `json:"user1Id"`
	User2ID string `json:"user2Id"`
	Status  Status `json:"status,omitempty"`
}

type StatusRequest struct {
	Status Status `json:"status"`
}

var (
	ErrAlreadyExists = apperr.New(apperr.Conflict, "Connection already exists")
	ErrNotFound      = apperr.New(apperr.NotFound, "Connection not found")
	ErrUnknownUser   = apperr.New(apperr.Validation, "Both users must exist")
	ErrSelfPair      = apperr.New(apperr.Validation, "Cannot connect a user to themselves")
	ErrNotParty      = apperr.New(apperr.Forbidden, "Not a party to this connection")
	ErrStatusChanged = apperr.New(apperr.Conflict, "Connection status changed, reload and retry")
)

// pairKey orders two identities so (a, b) and (b, a) map to the same key.
func pairKey(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}
