package connection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pairchat/internal/apperr"
	"pairchat/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[string]bool

func (s stubUsers) Profile(_ context.Context, id string) (*user.Profile, error) {
	if !s[id] {
		return nil, user.ErrNotFound
	}
	return &user.Profile{ID: id, Name: "name-" + id}, nil
}

func newTestService() *Service {
	return NewService(NewMemoryRepository(), stubUsers{"alice": true, "bob": true, "carol": true})
}

func ids(connections []Connection) []string {
	out := make([]string, 0, len(connections))
	for _, c := range connections {
		out = append(out, c.ID)
	}
	return out
}

func TestCreateRejectsDuplicateInEitherOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	c, err := s.Create(ctx, "alice", "alice", "bob", "")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, c.Status)
	assert.Equal(t, "alice", c.UserA)
	assert.Equal(t, "bob", c.UserB)

	_, err = s.Create(ctx, "alice", "alice", "bob", "")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.Create(ctx, "bob", "bob", "alice", "")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	tests := []struct {
		name      string
		requester string
		a, b      string
		status    Status
		want      error
		kind      apperr.Kind
	}{
		{name: "missing user", requester: "alice", a: "alice", b: "", kind: apperr.Validation},
		{name: "self pair", requester: "alice", a: "alice", b: "alice", want: ErrSelfPair},
		{name: "unknown user", requester: "alice", a: "alice", b: "mallory", want: ErrUnknownUser},
		{name: "not a party", requester: "carol", a: "alice", b: "bob", want: ErrNotParty},
		{name: "created rejected", requester: "alice", a: "alice", b: "bob", status: StatusRejected, kind: apperr.Validation},
		{name: "unknown status", requester: "alice", a: "alice", b: "bob", status: Status("blocked"), kind: apperr.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.requester, tt.a, tt.b, tt.status)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				assert.Equal(t, tt.kind, apperr.KindOf(err))
			}
		})
	}
}

func TestConcurrentCreateKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			_, err := s.Create(ctx, a, a, b, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrAlreadyExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)

	list, err := s.ListFor(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPairIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	first, inserted, err := s.Pair(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, inserted)

	second, inserted, err := s.Pair(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)

	list, err := s.ListFor(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, ids(list))
}

func TestPairForcesAcceptedOnRejectedPair(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := NewService(repo, stubUsers{"alice": true, "bob": true})

	c, err := repo.Create(ctx, "alice", "bob", StatusRejected)
	require.NoError(t, err)

	paired, inserted, err := s.Pair(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, c.ID, paired.ID)
	assert.Equal(t, StatusAccepted, paired.Status)
}

func TestDeleteDetachesBothParties(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	ab, err := s.Create(ctx, "alice", "alice", "bob", "")
	require.NoError(t, err)
	ac, err := s.Create(ctx, "alice", "alice", "carol", "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, "carol", ab.ID), ErrNotParty)
	require.NoError(t, s.Delete(ctx, "bob", ab.ID))

	aliceList, err := s.ListFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{ac.ID}, ids(aliceList))

	bobList, err := s.ListFor(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobList)

	_, err = s.Get(ctx, ab.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "alice", ab.ID), ErrNotFound)

	// The pair is free again once deleted.
	_, err = s.Create(ctx, "bob", "bob", "alice", "")
	assert.NoError(t, err)
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := NewService(repo, stubUsers{"alice": true, "bob": true})

	c, err := s.Create(ctx, "alice", "alice", "bob", StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, c.Status)

	_, err = s.UpdateStatus(ctx, "mallory", c.ID, StatusAccepted)
	assert.ErrorIs(t, err, ErrNotParty)

	_, err = s.UpdateStatus(ctx, "bob", c.ID, Status("blocked"))
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	updated, err := s.UpdateStatus(ctx, "bob", c.ID, StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, updated.Status)

	updated, err = s.UpdateStatus(ctx, "alice", c.ID, StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, updated.Status)

	_, err = s.UpdateStatus(ctx, "alice", c.ID, StatusPending)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = s.UpdateStatus(ctx, "alice", "missing", StatusAccepted)
	assert.ErrorIs(t, err, ErrNotFound)
}

// racingRepo lets another writer change the status between the service's
// read and its write.
type racingRepo struct {
	*MemoryRepository
	competing Status
}

func (r *racingRepo) UpdateStatus(ctx context.Context, id string, from, to Status) (*Connection, error) {
	if _, err := r.MemoryRepository.UpdateStatus(ctx, id, from, r.competing); err != nil {
		return nil, err
	}
	return r.MemoryRepository.UpdateStatus(ctx, id, from, to)
}

func TestUpdateStatusLosesToConcurrentChange(t *testing.T) {
	ctx := context.Background()
	repo := &racingRepo{MemoryRepository: NewMemoryRepository(), competing: StatusRejected}
	s := NewService(repo, stubUsers{"alice": true, "bob": true})

	c, err := s.Create(ctx, "alice", "alice", "bob", StatusPending)
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, "bob", c.ID, StatusAccepted)
	assert.ErrorIs(t, err, ErrStatusChanged)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
}

func TestMemoryUpdateStatusRequiresExpectedStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	c, err := repo.Create(ctx, "alice", "bob", StatusPending)
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, c.ID, StatusRejected, StatusAccepted)
	assert.ErrorIs(t, err, ErrStatusChanged)

	updated, err := repo.UpdateStatus(ctx, c.ID, StatusPending, StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, updated.Status)

	_, err = repo.UpdateStatus(ctx, "missing", StatusPending, StatusAccepted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusCanTransition(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusAccepted))
	assert.True(t, StatusPending.CanTransition(StatusRejected))
	assert.True(t, StatusRejected.CanTransition(StatusAccepted))
	assert.False(t, StatusAccepted.CanTransition(StatusRejected))
	assert.False(t, StatusAccepted.CanTransition(StatusPending))
	assert.False(t, StatusRejected.CanTransition(StatusPending))
}

func TestPeer(t *testing.T) {
	c := &Connection{UserA: "alice", UserB: "bob"}
	assert.Equal(t, "bob", c.Peer("alice"))
	assert.Equal(t, "alice", c.Peer("bob"))
	assert.Equal(t, "", c.Peer("carol"))
	assert.False(t, c.Involves("carol"))
}
