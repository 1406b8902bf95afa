// Package realtime fans board change signals out to connected clients.
//
// A signal only says "project N changed, refetch it". Signals are never
// stored: a subscriber sees exactly the publishes that happen while it is
// registered, in publish order, and a slow subscriber loses signals rather
// than slowing anyone else down.
package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trackit/pkg/metrics"
)

// Notifier is what mutating services call after a successful commit.
type Notifier interface {
	BoardChanged(ctx context.Context, projectID int64)
}

// AllProjects subscribes to every project's signals.
const AllProjects int64 = 0

type Subscription struct {
	ID        string
	ProjectID int64

	ch   chan int64
	once sync.Once
}

// C yields project ids. It is closed on Unsubscribe or Hub.Close.
func (s *Subscription) C() <-chan int64 { return s.ch }

func (s *Subscription) matches(projectID int64) bool {
	return s.ProjectID == AllProjects || s.ProjectID == projectID
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	buffer int
	logger *zap.Logger
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber for projectID, or for every project when
// projectID is AllProjects.
func (h *Hub) Subscribe(projectID int64) *Subscription {
	sub := &Subscription{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		ch:        make(chan int64, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	metrics.BoardSubscribers.Inc()
	return sub
}

// Unsubscribe removes sub. Calling it more than once is fine.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

// remove must be called with the write lock held.
func (h *Hub) remove(sub *Subscription) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	metrics.BoardSubscribers.Dec()
	sub.once.Do(func() { close(sub.ch) })
}

// Publish delivers projectID to every matching subscriber registered right
// now and returns how many received it. It never blocks.
func (h *Hub) Publish(projectID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs {
		if !sub.matches(projectID) {
			continue
		}
		select {
		case sub.ch <- projectID:
			delivered++
		default:
			metrics.IncrementDroppedSignal()
			h.logger.Warn("Subscriber buffer full, dropping board signal",
				zap.String("subscription_id", sub.ID),
				zap.Int64("project_id", projectID),
			)
		}
	}
	return delivered
}

// BoardChanged publishes to this process only.
func (h *Hub) BoardChanged(_ context.Context, projectID int64) {
	metrics.IncrementBroadcast("local")
	n := h.Publish(projectID)
	h.logger.Debug("Board signal published",
		zap.Int64("project_id", projectID),
		zap.Int("subscribers", n),
	)
}

// Len reports the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unsubscribes everyone. Later subscriptions start out closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		h.remove(sub)
	}
	h.closed = true
}
