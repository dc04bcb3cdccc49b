package pairing

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairchat/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[string]bool

func (s stubUsers) Profile(_ context.Context, id string) (*user.Profile, error) {
	if !s[id] {
		return nil, user.ErrNotFound
	}
	return &user.Profile{ID: id, Name: "name-" + id, Email: id + "@example.com"}, nil
}

type failingUsers struct{ err error }

func (f failingUsers) Profile(context.Context, string) (*user.Profile, error) {
	return nil, f.err
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestValidateWindow(t *testing.T) {
	v := NewValidator(stubUsers{"alice": true}, time.Hour)
	tok := Issue("alice", t0)

	tests := []struct {
		name   string
		now    time.Time
		valid  bool
		reason Reason
	}{
		{name: "at issue", now: t0, valid: true},
		{name: "inside window", now: t0.Add(59 * time.Minute), valid: true},
		{name: "exactly ttl", now: t0.Add(time.Hour), valid: true},
		{name: "ttl plus 1ms", now: t0.Add(time.Hour + time.Millisecond), reason: ReasonExpired},
		{name: "ttl plus 1ns", now: t0.Add(time.Hour + time.Nanosecond), reason: ReasonExpired},
		{name: "from the future", now: t0.Add(-time.Millisecond), reason: ReasonNotYetValid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, subject, err := v.Validate(context.Background(), tok, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.valid {
				require.NotNil(t, subject)
				assert.Equal(t, "alice", subject.ID)
			} else {
				assert.Nil(t, subject)
			}
		})
	}
}

func TestValidateOrder(t *testing.T) {
	v := NewValidator(stubUsers{}, time.Hour)

	// An expired token for an unknown user reports expiry first.
	res, _, err := v.Validate(context.Background(), Issue("ghost", t0), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, res.Reason)

	res, _, err = v.Validate(context.Background(), Issue("ghost", t0), t0)
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownSubject, res.Reason)

	res, _, err = v.Validate(context.Background(), Token{}, t0)
	require.NoError(t, err)
	assert.Equal(t, ReasonMalformed, res.Reason)
}

func TestValidateString(t *testing.T) {
	v := NewValidator(stubUsers{"alice": true}, 0)
	assert.Equal(t, DefaultTTL, v.TTL())

	tok, res, _, err := v.ValidateString(context.Background(), Serialize(Issue("alice", t0)), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "alice", tok.Subject)

	_, res, _, err = v.ValidateString(context.Background(), "{", t0)
	require.NoError(t, err)
	assert.Equal(t, ReasonMalformed, res.Reason)
}

func TestValidateStoreFailure(t *testing.T) {
	boom := errors.New("db down")
	v := NewValidator(failingUsers{err: boom}, time.Hour)

	_, _, err := v.Validate(context.Background(), Issue("alice", t0), t0)
	assert.ErrorIs(t, err, boom)
}
