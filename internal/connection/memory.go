package connection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository. One mutex guards the pair
// index, the records and both users' membership sets, so every operation is
// atomic with respect to the others.
type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]*Connection
	byPair  map[[2]string]string
	members map[string]map[string]struct{}
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*Connection),
		byPair:  make(map[[2]string]string),
		members: make(map[string]map[string]struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(_ context.Context, userA, userB string, status Status) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	low, high := pairKey(userA, userB)
	if _, ok := r.byPair[[2]string{low, high}]; ok {
		return nil, ErrAlreadyExists
	}
	c := r.insertLocked(userA, userB, status)
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, userA, userB string, status Status) (*Connection, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	low, high := pairKey(userA, userB)
	if id, ok := r.byPair[[2]string{low, high}]; ok {
		c := r.byID[id]
		c.Status = status
		c.UpdatedAt = r.now()
		cp := *c
		return &cp, false, nil
	}
	c := r.insertLocked(userA, userB, status)
	cp := *c
	return &cp, true, nil
}

func (r *MemoryRepository) insertLocked(userA, userB string, status Status) *Connection {
	now := r.now()
	c := &Connection{
		ID:        uuid.NewString(),
		UserA:     userA,
		UserB:     userB,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	low, high := pairKey(userA, userB)
	r.byID[c.ID] = c
	r.byPair[[2]string{low, high}] = c.ID
	r.attachLocked(userA, c.ID)
	r.attachLocked(userB, c.ID)
	return c
}

func (r *MemoryRepository) attachLocked(userID, connID string) {
	set, ok := r.members[userID]
	if !ok {
		set = make(map[string]struct{})
		r.members[userID] = set
	}
	set[connID] = struct{}{}
}

func (r *MemoryRepository) detachLocked(userID, connID string) {
	set := r.members[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.members, userID)
	}
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) ListFor(_ context.Context, userID string) ([]Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connections := make([]Connection, 0, len(r.members[userID]))
	for id := range r.members[userID] {
		connections = append(connections, *r.byID[id])
	}
	sort.Slice(connections, func(i, j int) bool {
		return connections[i].CreatedAt.Before(connections[j].CreatedAt)
	})
	return connections, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, from, to Status) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status != from {
		return nil, ErrStatusChanged
	}
	c.Status = to
	c.UpdatedAt = r.now()
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	low, high := pairKey(c.UserA, c.UserB)
	delete(r.byPair, [2]string{low, high})
	delete(r.byID, id)
	r.detachLocked(c.UserA, id)
	r.detachLocked(c.UserB, id)
	return nil
}

// Exists reports whether a connection with id is stored.
func (r *MemoryRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[id]
	return ok, nil
}
