// Package repository persists per-user dialog state. The primary
// backend is Redis so an in-progress booking dialog survives a bot
// restart; an in-memory repository serves as fallback when Redis is
// down or not configured.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Karamelishe/TgBOT/internal/models"
)

// StateTTL is how long an idle dialog state is kept before expiry.
const StateTTL = 30 * time.Minute

// StateRepository stores dialog state keyed by Telegram user id.
type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error

	// CheckRateLimit reports whether the user is within limit actions
	// per window.
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type memoryEntry struct {
	state     *models.UserState
	expiresAt time.Time
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// MemoryStateRepository keeps state in a TTL map. Entries are evicted
// lazily on read and by Sweep.
type MemoryStateRepository struct {
	mu     sync.Mutex
	states map[int64]memoryEntry
	rates  map[int64]rateWindow
	ttl    time.Duration
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{
		states: make(map[int64]memoryEntry),
		rates:  make(map[int64]rateWindow),
		ttl:    StateTTL,
	}
}

func (r *MemoryStateRepository) GetState(_ context.Context, userID int64) (*models.UserState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.states[userID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(r.states, userID)
		return nil, nil
	}
	return entry.state, nil
}

func (r *MemoryStateRepository) SetState(_ context.Context, state *models.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state.UpdatedAt = time.Now()
	r.states[state.UserID] = memoryEntry{state: state, expiresAt: time.Now().Add(r.ttl)}
	return nil
}

func (r *MemoryStateRepository) ClearState(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, userID)
	return nil
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	w, ok := r.rates[userID]
	if !ok || now.After(w.resetAt) {
		r.rates[userID] = rateWindow{count: 1, resetAt: now.Add(window)}
		return true, nil
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	r.rates[userID] = w
	return true, nil
}

// Sweep drops expired states and stale rate windows, returning how
// many states were removed.
func (r *MemoryStateRepository) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for userID, entry := range r.states {
		if now.After(entry.expiresAt) {
			delete(r.states, userID)
			removed++
		}
	}
	for userID, w := range r.rates {
		if now.After(w.resetAt) {
			delete(r.rates, userID)
		}
	}
	return removed
}
