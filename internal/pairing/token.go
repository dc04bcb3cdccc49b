package pairing

import (
	"encoding/json"
	"strings"
	"time"

	"pairchat/internal/apperr"
)

// timestampLayout is RFC 3339 with fixed millisecond precision, the format
// JavaScript's Date.toISOString produces.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var ErrMalformed = apperr.New(apperr.Validation, "Invalid QR code")

// Token binds a user identity to the moment it was issued. It is never
// stored; validity is decided from IssuedAt alone.
type Token struct {
	Subject  string
	IssuedAt time.Time
}

// wireToken is the serialized form, also accepted as the /qr/scan body.
type wireToken struct {
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

// Issue builds a token for subject at now, truncated to milliseconds in UTC
// so that it survives a Serialize/Deserialize round trip unchanged.
func Issue(subject string, now time.Time) Token {
	return Token{Subject: subject, IssuedAt: now.UTC().Truncate(time.Millisecond)}
}

func Serialize(t Token) string {
	b, _ := json.Marshal(wireToken{
		UserID:    t.Subject,
		Timestamp: t.IssuedAt.UTC().Format(timestampLayout),
	})
	return string(b)
}

func Deserialize(s string) (Token, error) {
	var w wireToken
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return Token{}, ErrMalformed
	}
	return ParseFields(w.UserID, w.Timestamp)
}

// ParseFields builds a token from its two textual parts, as received in a
// query string or a JSON body. The subject is kept verbatim; a blank one is
// malformed.
func ParseFields(userID, timestamp string) (Token, error) {
	timestamp = strings.TrimSpace(timestamp)
	if strings.TrimSpace(userID) == "" || timestamp == "" {
		return Token{}, ErrMalformed
	}
	issued, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return Token{}, ErrMalformed
	}
	return Token{Subject: userID, IssuedAt: issued.UTC()}, nil
}

func (t Token) Equal(o Token) bool {
	return t.Subject == o.Subject && t.IssuedAt.Equal(o.IssuedAt)
}
