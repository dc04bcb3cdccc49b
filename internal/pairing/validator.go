package pairing

import (
	"context"
	"errors"
	"time"

	"pairchat/internal/user"
)

// DefaultTTL is how long a pairing token stays valid after issue.
const DefaultTTL = time.Hour

type Reason string

const (
	ReasonNone           Reason = ""
	ReasonMalformed      Reason = "malformed"
	ReasonNotYetValid    Reason = "not_yet_valid"
	ReasonExpired        Reason = "expired"
	ReasonUnknownSubject Reason = "unknown_subject"
)

type Result struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

// SubjectResolver looks up the user a token names.
type SubjectResolver interface {
	Profile(ctx context.Context, id string) (*user.Profile, error)
}

type Validator struct {
	users SubjectResolver
	ttl   time.Duration
}

func NewValidator(users SubjectResolver, ttl time.Duration) *Validator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Validator{users: users, ttl: ttl}
}

func (v *Validator) TTL() time.Duration { return v.ttl }

// ValidateString deserializes raw and validates the result.
func (v *Validator) ValidateString(ctx context.Context, raw string, now time.Time) (Token, Result, *user.Profile, error) {
	tok, err := Deserialize(raw)
	if err != nil {
		return Token{}, Result{Reason: ReasonMalformed}, nil, nil
	}
	res, subject, err := v.Validate(ctx, tok, now)
	return tok, res, subject, err
}

// Validate applies the checks in order: malformed, issued in the future,
// older than the TTL, unknown subject. The returned error is non-nil only
// when the user store fails; an invalid token is reported through Result.
func (v *Validator) Validate(ctx context.Context, tok Token, now time.Time) (Result, *user.Profile, error) {
	if tok.Subject == "" || tok.IssuedAt.IsZero() {
		return Result{Reason: ReasonMalformed}, nil, nil
	}
	if now.Before(tok.IssuedAt) {
		return Result{Reason: ReasonNotYetValid}, nil, nil
	}
	if now.Sub(tok.IssuedAt) > v.ttl {
		return Result{Reason: ReasonExpired}, nil, nil
	}

	subject, err := v.users.Profile(ctx, tok.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Result{Reason: ReasonUnknownSubject}, nil, nil
		}
		return Result{}, nil, err
	}
	return Result{Valid: true}, subject, nil
}
