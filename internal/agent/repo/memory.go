package repo

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/voice-agent-core/server/internal/agent/model"
)

// DefaultMaxSessions caps how many sessions the in-memory store keeps.
const DefaultMaxSessions = 1000

type MemoryOption func(*MemoryConversationRepository)

// WithIdleTTL drops a session once it has gone unused for ttl. Zero keeps
// sessions until they are evicted by the session cap.
func WithIdleTTL(ttl time.Duration) MemoryOption {
	return func(r *MemoryConversationRepository) { r.idleTTL = ttl }
}

// WithMaxSessions caps the number of sessions held; the least recently used
// session is evicted first.
func WithMaxSessions(n int) MemoryOption {
	return func(r *MemoryConversationRepository) { r.maxSessions = n }
}

func withClock(now func() time.Time) MemoryOption {
	return func(r *MemoryConversationRepository) { r.now = now }
}

type memorySession struct {
	id       string
	ring     *HistoryRing
	lastUsed time.Time
}

// MemoryConversationRepository keeps one bounded ring per session in process
// memory. Each call holds the repository lock, so concurrent requests in the
// same session never interleave within an append. Sessions are kept in
// recency order: idle ones expire and the oldest is evicted past the cap.
type MemoryConversationRepository struct {
	mu          sync.Mutex
	capacity    int
	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time
	order       *list.List
	sessions    map[string]*list.Element
}

func NewMemoryConversationRepository(capacity int, opts ...MemoryOption) *MemoryConversationRepository {
	r := &MemoryConversationRepository{
		capacity:    capacity,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		order:       list.New(),
		sessions:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MemoryConversationRepository) AddMessages(_ context.Context, conversationID string, messages ...*schema.Message) error {
	if r.capacity <= 0 || len(messages) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expire()
	sess := r.touch(conversationID)
	if sess == nil {
		sess = &memorySession{id: conversationID, ring: NewHistoryRing(r.capacity), lastUsed: r.now()}
		r.sessions[conversationID] = r.order.PushFront(sess)
		r.evictOverflow()
	}
	sess.ring.Append(messages...)
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expire()
	msgs := []*schema.Message{}
	if sess := r.touch(conversationID); sess != nil {
		msgs = sess.ring.Snapshot()
	}
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.sessions[conversationID]; ok {
		r.remove(el)
	}
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(_ context.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expire()
	if el, ok := r.sessions[conversationID]; ok {
		return el.Value.(*memorySession).ring.Len(), nil
	}
	return 0, nil
}

// SessionCount reports how many sessions are currently held.
func (r *MemoryConversationRepository) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expire()
	return r.order.Len()
}

// touch stamps the session as used and moves it to the front. Caller holds mu.
func (r *MemoryConversationRepository) touch(id string) *memorySession {
	el, ok := r.sessions[id]
	if !ok {
		return nil
	}
	sess := el.Value.(*memorySession)
	sess.lastUsed = r.now()
	r.order.MoveToFront(el)
	return sess
}

// expire drops idle sessions from the back of the recency list. Caller holds mu.
func (r *MemoryConversationRepository) expire() {
	if r.idleTTL <= 0 {
		return
	}
	cutoff := r.now().Add(-r.idleTTL)
	for el := r.order.Back(); el != nil; el = r.order.Back() {
		if el.Value.(*memorySession).lastUsed.After(cutoff) {
			return
		}
		r.remove(el)
	}
}

func (r *MemoryConversationRepository) evictOverflow() {
	if r.maxSessions <= 0 {
		return
	}
	for r.order.Len() > r.maxSessions {
		r.remove(r.order.Back())
	}
}

func (r *MemoryConversationRepository) remove(el *list.Element) {
	r.order.Remove(el)
	delete(r.sessions, el.Value.(*memorySession).id)
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
