package message

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConnectionChecker reports whether a connection exists.
type ConnectionChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// MemoryRepository keeps messages in process memory, ordered by insertion.
// The existence check against the connection store is not atomic with the
// append; a connection deleted in between leaves orphans that ListFor hides.
type MemoryRepository struct {
	mu          sync.RWMutex
	connections ConnectionChecker
	byID        map[string]*Message
	order       []string
	now         func() time.Time
}

func NewMemoryRepository(connections ConnectionChecker) *MemoryRepository {
	return &MemoryRepository{
		connections: connections,
		byID:        make(map[string]*Message),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Append(ctx context.Context, connectionID, senderID, content string) (*Message, error) {
	ok, err := r.connections.Exists(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConnectionNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := &Message{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		SenderID:     senderID,
		Content:      content,
		CreatedAt:    r.now(),
	}
	r.byID[m.ID] = m
	r.order = append(r.order, m.ID)
	cp := *m
	return &cp, nil
}

func (r *MemoryRepository) ListFor(ctx context.Context, connectionID string) ([]Message, error) {
	messages := []Message{}
	ok, err := r.connections.Exists(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return messages, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if m := r.byID[id]; m.ConnectionID == connectionID {
			messages = append(messages, *m)
		}
	}
	return messages, nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, connectionID, readerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, m := range r.byID {
		if m.ConnectionID == connectionID && m.SenderID != readerID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
