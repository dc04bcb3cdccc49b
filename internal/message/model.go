package message

import (
	"time"

	"pairchat/internal/apperr"
)

type Message struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	SenderID     string    `json:"senderId"`
	Content      string    `json:"content"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"createdAt"`
}

type SendRequest struct {
	ConnectionID string `json:"connectionId"`
	SenderID     string `json:"senderId"`
	Content      string `json:"content"`
}

type MarkReadRequest struct {
	UserID string `json:"userId"`
}

// MaxContentLength bounds a message body in bytes.
const MaxContentLength = 4096

var (
	ErrConnectionNotFound = apperr.New(apperr.NotFound, "Connection not found")
	ErrNotFound           = apperr.New(apperr.NotFound, "Message not found")
	ErrForbidden          = apperr.New(apperr.Forbidden, "Not authorized to delete this message")
)
