package coordinator

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/37715/retrocycles-leaderboard/internal/models"
)

// DefaultTTL is the cache validity window. An entry older than this is a
// miss, not merely stale: it is purged on lookup, never served.
const DefaultTTL = time.Hour

// ErrSuperseded is returned when a fetch completes after a newer fetch for
// the same board has started. The result is discarded without a cache write;
// callers treat it as "nothing happened", never as a user-visible failure.
var ErrSuperseded = errors.New("request superseded by a newer fetch")

// State is the coordinator's per-fetch lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateServed    State = "served"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Token identifies one fetch. Exactly one token is current at a time; every
// checkpoint inside a fetch compares itself against the current token and
// aborts silently when it has been superseded.
type Token struct {
	id        uuid.UUID
	cancelled atomic.Bool
}

func (t *Token) Cancel()         { t.cancelled.Store(true) }
func (t *Token) Cancelled() bool { return t.cancelled.Load() }
func (t *Token) ID() uuid.UUID   { return t.id }

// Source is the two-stage fetch pipeline the coordinator drives. Splitting
// network and parse keeps a token checkpoint between every suspension point.
type Source interface {
	FetchDocument(ctx context.Context, scope models.Scope) ([]byte, error)
	ParseDocument(scope models.Scope, body []byte) ([]models.LeaderboardRow, error)
}

type cacheEntry struct {
	rows      []models.LeaderboardRow
	createdAt time.Time
}

// Coordinator serializes "what the consumer currently wants" against "what
// is in flight" and "what is cached" for one logical board. The mutex keeps
// the token handoff and the cache write atomic; everything between
// checkpoints runs unlocked.
type Coordinator struct {
	source Source
	ttl    time.Duration

	mu      sync.Mutex
	cache   map[string]cacheEntry
	current *Token
	state   State

	now func() time.Time
}

func New(source Source) *Coordinator {
	return &Coordinator{
		source: source,
		ttl:    DefaultTTL,
		cache:  make(map[string]cacheEntry),
		state:  StateIdle,
		now:    time.Now,
	}
}

// State reports the most recent fetch lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rows returns the leaderboard for a scope, serving from cache when a fresh
// entry exists and otherwise running a token-guarded fetch. A superseded
// fetch returns ErrSuperseded; a failed fetch with a still-current token
// returns the fetch error and leaves the cache untouched.
func (c *Coordinator) Rows(ctx context.Context, scope models.Scope) ([]models.LeaderboardRow, error) {
	key := scope.Key()

	c.mu.Lock()
	if entry, ok := c.cache[key]; ok {
		if c.now().Sub(entry.createdAt) <= c.ttl {
			rows := entry.rows
			// A hit involves no fetch, so the lifecycle goes back to idle
			// rather than reporting the outcome of some earlier fetch.
			c.state = StateIdle
			c.mu.Unlock()
			log.Printf("[CACHE HIT] leaderboard %s", key)
			return rows, nil
		}
		// Expired entries are purged, not served. Eviction is lazy:
		// nothing sweeps the map in the background.
		delete(c.cache, key)
	}

	if c.current != nil {
		c.current.Cancel()
	}
	token := &Token{id: uuid.New()}
	c.current = token
	c.state = StateFetching
	c.mu.Unlock()

	body, err := c.source.FetchDocument(ctx, scope)
	if !c.isCurrent(token) {
		return nil, ErrSuperseded
	}
	if err != nil {
		c.finish(token, StateFailed)
		return nil, err
	}

	rows, err := c.source.ParseDocument(scope, body)
	if !c.isCurrent(token) {
		return nil, ErrSuperseded
	}
	if err != nil {
		c.finish(token, StateFailed)
		return nil, err
	}

	c.mu.Lock()
	// Final checkpoint before the cache write: a write from a superseded
	// fetch could overwrite fresher data with staler data.
	if c.current != token || token.Cancelled() {
		c.mu.Unlock()
		return nil, ErrSuperseded
	}
	c.cache[key] = cacheEntry{rows: rows, createdAt: c.now()}
	c.state = StateServed
	c.mu.Unlock()

	return rows, nil
}

// Reset drops all cached entries and cancels any in-flight token. Explicit
// construction/reset keeps the engine testable in isolation.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
	if c.current != nil {
		c.current.Cancel()
		c.current = nil
	}
	c.state = StateIdle
}

func (c *Coordinator) isCurrent(token *Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == token && !token.Cancelled()
}

// finish records a terminal state, but only for the fetch that is still
// current; a superseded fetch must not clobber its successor's state.
func (c *Coordinator) finish(token *Token, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == token {
		c.state = state
	}
}
