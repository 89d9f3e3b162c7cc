package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shelfsync/shelfsync-backend/internal/logger"
)

const contextListPrefix = "context-queue:"

// Transport delivers an outbound message to a user, typically over a
// messaging gateway.
type Transport interface {
	Deliver(ctx context.Context, user, message string) error
}

// ContextStore is the persistence behind the per-user context list. The
// redis implementation is the production one; tests swap in memory.
type ContextStore interface {
	Append(ctx context.Context, user, documentID string) error
	PopHead(ctx context.Context, user string) (string, error)
	Head(ctx context.Context, user string) (string, error)
	Clear(ctx context.Context) error
}

type redisContextStore struct {
	rdb *redis.Client
}

func NewRedisContextStore(rdb *redis.Client) ContextStore {
	return &redisContextStore{rdb: rdb}
}

func (s *redisContextStore) Append(ctx context.Context, user, documentID string) error {
	return s.rdb.RPush(ctx, contextListPrefix+user, documentID).Err()
}

func (s *redisContextStore) PopHead(ctx context.Context, user string) (string, error) {
	v, err := s.rdb.LPop(ctx, contextListPrefix+user).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (s *redisContextStore) Head(ctx context.Context, user string) (string, error) {
	v, err := s.rdb.LIndex(ctx, contextListPrefix+user, 0).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

// Clear drops every context list. Lists describe in-flight conversations,
// which do not survive a restart meaningfully.
func (s *redisContextStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, contextListPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// deliveryQueue buffers messages for one document context while it is not
// the user's current context.
type deliveryQueue struct {
	running  bool
	buffered []string
}

// Manager serializes each user's conversation around one document at a
// time. Messages for the current context go straight out; messages for
// queued contexts are buffered and flushed, in order, when their context
// becomes current.
type Manager struct {
	log       *logger.Logger
	store     ContextStore
	transport Transport

	mu sync.Mutex
	// user -> document -> queue
	queues map[string]map[string]*deliveryQueue
	// user -> document -> one-shot: shift after that context's next
	// successful delivery
	shiftAfterNext map[string]map[string]bool
}

func NewManager(baseLog *logger.Logger, store ContextStore, transport Transport) *Manager {
	return &Manager{
		log:            baseLog.With("component", "ConversationManager"),
		store:          store,
		transport:      transport,
		queues:         make(map[string]map[string]*deliveryQueue),
		shiftAfterNext: make(map[string]map[string]bool),
	}
}

// Initialize clears stale context state left behind by a previous run.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// InitializeContext registers a document as a conversation context for the
// user. The first context for a user becomes current immediately; later
// ones wait their turn with a paused queue.
func (m *Manager) InitializeContext(ctx context.Context, user, documentID string) error {
	if err := m.store.Append(ctx, user, documentID); err != nil {
		return err
	}

	head, err := m.store.Head(ctx, user)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queues[user] == nil {
		m.queues[user] = make(map[string]*deliveryQueue)
	}
	m.queues[user][documentID] = &deliveryQueue{running: head == documentID}
	m.log.Info("Conversation context initialized", "user", user, "document_id", documentID, "current", head == documentID)
	return nil
}

// Send routes a message. An empty documentID bypasses context routing and
// delivers immediately (user-level notices). Otherwise the message is
// delivered only if the document is the user's current context; queued
// contexts buffer until their turn.
func (m *Manager) Send(ctx context.Context, user, documentID, message string) error {
	if documentID == "" {
		return m.transport.Deliver(ctx, user, message)
	}

	m.mu.Lock()
	q := m.queues[user][documentID]
	if q == nil {
		m.mu.Unlock()
		return fmt.Errorf("no conversation context for user=%s document=%s", user, documentID)
	}
	if !q.running {
		q.buffered = append(q.buffered, message)
		m.mu.Unlock()
		m.log.Debug("Buffered message for queued context", "user", user, "document_id", documentID)
		return nil
	}
	// Any messages left over from a failed flush go out first, in order.
	pending := append(q.buffered, message)
	q.buffered = nil
	m.mu.Unlock()

	if err := m.deliver(ctx, user, documentID, pending); err != nil {
		return err
	}
	return m.afterDelivery(ctx, user, documentID)
}

// ScheduleContextShift arms a one-shot shift for one context: the
// conversation moves on right after that document's next message reaches
// the user. Tools use this to let a closing summary go out before the
// topic changes.
func (m *Manager) ScheduleContextShift(user, documentID string) {
	m.mu.Lock()
	if m.shiftAfterNext[user] == nil {
		m.shiftAfterNext[user] = make(map[string]bool)
	}
	m.shiftAfterNext[user][documentID] = true
	m.mu.Unlock()
}

// deliver sends msgs in order for a running context. On a transport error
// the undelivered tail goes back to the front of the context's buffer, so
// a later delivery retries it without reordering.
func (m *Manager) deliver(ctx context.Context, user, documentID string, msgs []string) error {
	for i, msg := range msgs {
		if err := m.transport.Deliver(ctx, user, msg); err != nil {
			m.mu.Lock()
			if q := m.queues[user][documentID]; q != nil {
				q.buffered = append(append([]string(nil), msgs[i:]...), q.buffered...)
			}
			m.mu.Unlock()
			return err
		}
	}
	return nil
}

func (m *Manager) afterDelivery(ctx context.Context, user, documentID string) error {
	m.mu.Lock()
	armed := m.shiftAfterNext[user][documentID]
	if armed {
		delete(m.shiftAfterNext[user], documentID)
	}
	m.mu.Unlock()
	if !armed {
		return nil
	}
	return m.ShiftContext(ctx, user)
}

// ShiftContext retires the user's current context and promotes the next
// one, flushing its buffered messages in arrival order.
func (m *Manager) ShiftContext(ctx context.Context, user string) error {
	done, err := m.store.PopHead(ctx, user)
	if err != nil {
		return err
	}
	if done == "" {
		return nil
	}

	next, err := m.store.Head(ctx, user)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.queues[user], done)
	delete(m.shiftAfterNext[user], done)
	var pending []string
	if next != "" {
		if q := m.queues[user][next]; q != nil {
			q.running = true
			pending = q.buffered
			q.buffered = nil
		}
	}
	m.mu.Unlock()

	m.log.Info("Conversation context shifted", "user", user, "done", done, "next", next)

	if len(pending) == 0 {
		return nil
	}
	if err := m.deliver(ctx, user, next, pending); err != nil {
		return err
	}
	return m.afterDelivery(ctx, user, next)
}

// GetCurrentContext reports the document the user's conversation is about.
func (m *Manager) GetCurrentContext(ctx context.Context, user string) (string, error) {
	return m.store.Head(ctx, user)
}
