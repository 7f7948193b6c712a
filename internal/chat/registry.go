// Package chat holds chatbot conversation state between requests.
package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/dom/healthguide/internal/domain"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PublicOwner owns sessions opened without an authenticated user. Such
// sessions are shared by every caller.
const PublicOwner = "public"

const (
	DefaultMaxSessions = 1000
	DefaultMaxTurns    = 50
	DefaultTTL         = 2 * time.Hour
)

type Options struct {
	// MaxSessions caps live sessions; the least recently used one is evicted.
	MaxSessions int
	// MaxTurns caps the history kept per session; oldest turns are dropped.
	MaxTurns int
	// TTL evicts sessions that saw no new turn for this long.
	TTL time.Duration
	// OnEvict is called with the id of every session leaving the registry,
	// including explicit deletes.
	OnEvict func(sessionID string)
}

type session struct {
	mu   sync.Mutex
	conv domain.Conversation
}

// Registry maps session ids to conversation history. It is safe for
// concurrent use; appends to one session are serialized.
type Registry struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *session]
	maxTurns int
	now      func() time.Time
}

func NewRegistry(opts Options) *Registry {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	var onEvict expirable.EvictCallback[string, *session]
	if opts.OnEvict != nil {
		hook := opts.OnEvict
		onEvict = func(id string, _ *session) { hook(id) }
	}

	return &Registry{
		sessions: expirable.NewLRU[string, *session](opts.MaxSessions, onEvict, opts.TTL),
		maxTurns: opts.MaxTurns,
		now:      time.Now,
	}
}

// NewSessionID builds the id used when the client did not supply one:
// <owner>_<unixMillis>_<random suffix>.
func NewSessionID(ownerID string, at time.Time) string {
	return fmt.Sprintf("%s_%d_%s", ownerID, at.UnixMilli(), uuid.NewString()[:8])
}

// GetOrCreate returns a snapshot of the session, creating an empty one when
// it does not exist. An empty sessionID gets a generated id. A session that
// belongs to another owner is reported as domain.ErrSessionNotFound.
func (r *Registry) GetOrCreate(sessionID, ownerID string) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if sessionID == "" {
		sessionID = NewSessionID(ownerID, now)
	}

	if s, ok := r.sessions.Get(sessionID); ok {
		if !s.accessibleBy(ownerID) {
			return domain.Conversation{}, domain.ErrSessionNotFound
		}
		return s.snapshot(), nil
	}

	s := &session{conv: domain.Conversation{
		ID:        sessionID,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	r.sessions.Add(sessionID, s)
	return s.snapshot(), nil
}

// AppendTurn records an exchange at the end of the session history.
func (r *Registry) AppendTurn(sessionID, userMessage, reply string) error {
	r.mu.Lock()
	s, ok := r.sessions.Get(sessionID)
	if ok {
		// Re-adding refreshes the idle TTL.
		r.sessions.Add(sessionID, s)
	}
	r.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := r.now()
	s.conv.Turns = append(s.conv.Turns, domain.Turn{
		UserMessage: userMessage,
		Reply:       reply,
		At:          now,
	})
	if over := len(s.conv.Turns) - r.maxTurns; over > 0 {
		s.conv.Turns = append([]domain.Turn(nil), s.conv.Turns[over:]...)
	}
	s.conv.UpdatedAt = now
	return nil
}

// History returns a copy of the turns of a session in append order.
func (r *Registry) History(sessionID string) ([]domain.Turn, error) {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.snapshot().Turns, nil
}

// Get returns a snapshot of a session the caller may access.
func (r *Registry) Get(sessionID, ownerID string) (domain.Conversation, error) {
	s, ok := r.sessions.Peek(sessionID)
	if !ok || !s.accessibleBy(ownerID) {
		return domain.Conversation{}, domain.ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// Delete removes a session the caller may access.
func (r *Registry) Delete(sessionID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions.Peek(sessionID)
	if !ok || !s.accessibleBy(ownerID) {
		return domain.ErrSessionNotFound
	}
	r.sessions.Remove(sessionID)
	return nil
}

// List returns the ids of live sessions, oldest first.
func (r *Registry) List() []string {
	return r.sessions.Keys()
}

// ListOwned returns the ids of live sessions owned by ownerID, oldest first.
func (r *Registry) ListOwned(ownerID string) []string {
	ids := make([]string, 0)
	for _, id := range r.sessions.Keys() {
		s, ok := r.sessions.Peek(id)
		if ok && s.owner() == ownerID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *session) owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.OwnerID
}

func (s *session) accessibleBy(ownerID string) bool {
	owner := s.owner()
	return owner == ownerID || owner == PublicOwner
}

func (s *session) snapshot() domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.conv
	conv.Turns = append([]domain.Turn(nil), s.conv.Turns...)
	return conv
}
