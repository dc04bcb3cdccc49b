package pairing

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"pairchat/internal/apperr"
	"pairchat/internal/connection"
	"pairchat/internal/user"

	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

var (
	ErrExpired        = apperr.New(apperr.Expired, "QR code has expired")
	ErrNotYetValid    = apperr.New(apperr.NotYetValid, "QR code is not valid yet")
	ErrUnknownSubject = apperr.New(apperr.NotFound, "User not found")
)

// Connector records the connection a successful scan produces.
type Connector interface {
	Pair(ctx context.Context, subject, scanner string) (*connection.Connection, bool, error)
}

type GenerateResponse struct {
	QRCode    string    `json:"qrCode"`
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ScanResponse struct {
	Success    bool                   `json:"success"`
	User       *user.Profile          `json:"user"`
	Connection *connection.Connection `json:"connection,omitempty"`
}

type Service struct {
	validator   *Validator
	connections Connector
}

func NewService(v *Validator, connections Connector) *Service {
	return &Service{validator: v, connections: connections}
}

// Generate issues a token for subject and renders it as a PNG data URL.
func (s *Service) Generate(subject string, now time.Time) (*GenerateResponse, error) {
	tok := Issue(subject, now)
	raw := Serialize(tok)
	png, err := qrcode.Encode(raw, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return &GenerateResponse{
		QRCode:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Token:     raw,
		UserID:    subject,
		ExpiresAt: tok.IssuedAt.Add(s.validator.TTL()),
	}, nil
}

// Scan validates the serialized token raw on behalf of scanner and, when
// valid, pairs the token's subject with the scanner as an accepted
// connection. Scanning the same token again returns the existing connection.
// Scanning one's own token succeeds without creating a connection.
func (s *Service) Scan(ctx context.Context, raw, scanner string, now time.Time) (*ScanResponse, error) {
	_, res, subject, err := s.validator.ValidateString(ctx, raw, now)
	if err != nil {
		return nil, err
	}
	if err := reasonError(res.Reason); err != nil {
		return nil, err
	}
	if subject.ID == scanner {
		log.Debug().Str("subject", subject.ID).Msg("own qr code scanned")
		return &ScanResponse{Success: true, User: subject}, nil
	}

	c, inserted, err := s.connections.Pair(ctx, subject.ID, scanner)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("subject", subject.ID).
		Str("scanner", scanner).
		Str("connection_id", c.ID).
		Bool("created", inserted).
		Msg("qr code scanned")

	return &ScanResponse{Success: true, User: subject, Connection: c}, nil
}

// Check reports whether the textual token fields would pass validation.
// Invalid tokens are a result, not an error.
func (s *Service) Check(ctx context.Context, userID, timestamp string, now time.Time) (Result, error) {
	tok, err := ParseFields(userID, timestamp)
	if err != nil {
		return Result{Reason: ReasonMalformed}, nil
	}
	res, _, err := s.validator.Validate(ctx, tok, now)
	return res, err
}

func reasonError(r Reason) error {
	switch r {
	case ReasonNone:
		return nil
	case ReasonExpired:
		return ErrExpired
	case ReasonNotYetValid:
		return ErrNotYetValid
	case ReasonUnknownSubject:
		return ErrUnknownSubject
	}
	return ErrMalformed
}
