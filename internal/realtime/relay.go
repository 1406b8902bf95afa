package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"trackit/pkg/circuitbreaker"
	"trackit/pkg/metrics"
	"trackit/pkg/mq"
)

// RedisChannel is the pub/sub channel RedisRelay uses.
const RedisChannel = "trackit:board"

const (
	relayQueueSize      = 256
	relayPublishTimeout = 2 * time.Second
	relayMinBackoff     = 500 * time.Millisecond
	relayMaxBackoff     = 30 * time.Second
)

// relayEvent is the payload carried between instances.
type relayEvent struct {
	ProjectID int64  `json:"projectId"`
	Origin    string `json:"origin"`
}

func decodeRelayEvent(data []byte) (relayEvent, error) {
	var ev relayEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return relayEvent{}, fmt.Errorf("decode board event: %w", err)
	}
	if ev.ProjectID <= 0 {
		return relayEvent{}, fmt.Errorf("board event without project id")
	}
	return ev, nil
}

// pendingSignal is a board signal waiting for the broker.
type pendingSignal struct {
	projectID int64
	span      trace.SpanContext
	// local is set when the signal already reached this instance's hub.
	local bool
}

// sendQueue moves broker publishes off the mutation path.
type sendQueue struct {
	ch      chan pendingSignal
	timeout time.Duration
}

func newSendQueue() *sendQueue {
	return &sendQueue{ch: make(chan pendingSignal, relayQueueSize), timeout: relayPublishTimeout}
}

func (q *sendQueue) offer(sig pendingSignal) bool {
	select {
	case q.ch <- sig:
		return true
	default:
		return false
	}
}

// drain hands queued signals to send, one at a time and each under the
// publish timeout, until ctx is done.
func (q *sendQueue) drain(ctx context.Context, send func(ctx context.Context, sig pendingSignal)) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-q.ch:
			sctx, cancel := context.WithTimeout(trace.ContextWithSpanContext(ctx, sig.span), q.timeout)
			send(sctx, sig)
			cancel()
		}
	}
}

// retryLoop runs attempt until ctx ends, sleeping with capped exponential
// backoff in between. The delay resets after an attempt that got connected.
func retryLoop(ctx context.Context, minBackoff, maxBackoff time.Duration, logger *zap.Logger, what string, attempt func(context.Context) (bool, error)) error {
	backoff := minBackoff
	for {
		connected, err := attempt(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = minBackoff
		}
		logger.Warn(what+" stopped, retrying",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Publisher is the broker side of MQRelay; *mq.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

// Consumer feeds MQRelay from the exchange; *mq.Consumer satisfies it.
type Consumer interface {
	SetHandler(h mq.MessageHandler)
	StartConsuming(ctx context.Context) error
	Close()
}

// ConsumerDialer opens a fresh consumer with its own queue bound to the
// exchange.
type ConsumerDialer func() (Consumer, error)

// MQRelay carries signals between instances over a RabbitMQ fanout
// exchange. Every instance, including the sender, receives each signal
// through its own queue and hands it to its local hub. Signals the broker
// cannot take, and every signal raised while the consumer is detached, are
// delivered to the local hub directly.
type MQRelay struct {
	hub        *Hub
	publisher  Publisher
	dial       ConsumerDialer
	breaker    *circuitbreaker.CircuitBreaker
	instanceID string
	logger     *zap.Logger

	queue      *sendQueue
	consuming  atomic.Bool
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewMQRelay(hub *Hub, publisher Publisher, dial ConsumerDialer, breaker *circuitbreaker.CircuitBreaker, instanceID string, logger *zap.Logger) *MQRelay {
	return &MQRelay{
		hub:        hub,
		publisher:  publisher,
		dial:       dial,
		breaker:    breaker,
		instanceID: instanceID,
		logger:     logger,
		queue:      newSendQueue(),
		minBackoff: relayMinBackoff,
		maxBackoff: relayMaxBackoff,
	}
}

// BoardChanged queues the signal for the broker and returns at once.
func (r *MQRelay) BoardChanged(ctx context.Context, projectID int64) {
	sig := pendingSignal{
		projectID: projectID,
		span:      trace.SpanContextFromContext(ctx),
		local:     !r.consuming.Load(),
	}
	if sig.local {
		r.hub.BoardChanged(ctx, projectID)
	}
	if !r.queue.offer(sig) {
		metrics.IncrementRelayFailure("rabbitmq")
		r.logger.Warn("Board relay queue full", zap.Int64("project_id", projectID))
		if !sig.local {
			r.hub.BoardChanged(ctx, projectID)
		}
	}
}

func (r *MQRelay) publish(ctx context.Context, sig pendingSignal) {
	ev := relayEvent{ProjectID: sig.projectID, Origin: r.instanceID}
	err := r.breaker.Execute(func() error {
		return r.publisher.Publish(ctx, ev)
	})
	if err == nil {
		return
	}

	metrics.IncrementRelayFailure("rabbitmq")
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		r.logger.Debug("Board relay breaker open, delivering locally", zap.Int64("project_id", sig.projectID))
	} else {
		r.logger.Warn("Board relay publish failed, delivering locally",
			zap.Int64("project_id", sig.projectID),
			zap.Error(err),
		)
	}
	if !sig.local {
		r.hub.BoardChanged(ctx, sig.projectID)
	}
}

// Run drains the send queue and keeps a consumer attached to the exchange,
// dialling again after any loss, until ctx is done.
func (r *MQRelay) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.queue.drain(ctx, r.publish)
	}()
	defer func() { <-done }()

	return retryLoop(ctx, r.minBackoff, r.maxBackoff, r.logger, "Board relay consumer", r.consume)
}

func (r *MQRelay) consume(ctx context.Context) (bool, error) {
	c, err := r.dial()
	if err != nil {
		return false, err
	}
	defer c.Close()

	c.SetHandler(r.Handle)
	r.consuming.Store(true)
	defer r.consuming.Store(false)

	r.logger.Info("Board relay consumer attached", zap.String("instance", r.instanceID))
	return true, c.StartConsuming(ctx)
}

// Consuming reports whether signals from the exchange currently reach the hub.
func (r *MQRelay) Consuming() bool {
	return r.consuming.Load()
}

// Handle is the consumer callback for the instance queue.
func (r *MQRelay) Handle(_ context.Context, data json.RawMessage) error {
	ev, err := decodeRelayEvent(data)
	if err != nil {
		return err
	}
	metrics.IncrementBroadcast("relay")
	r.hub.Publish(ev.ProjectID)
	return nil
}

// RedisRelay does the same over Redis pub/sub, which keeps no backlog either.
type RedisRelay struct {
	hub        *Hub
	rdb        *redis.Client
	instanceID string
	logger     *zap.Logger

	queue      *sendQueue
	subscribed atomic.Bool
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewRedisRelay(hub *Hub, rdb *redis.Client, instanceID string, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		hub:        hub,
		rdb:        rdb,
		instanceID: instanceID,
		logger:     logger,
		queue:      newSendQueue(),
		minBackoff: relayMinBackoff,
		maxBackoff: relayMaxBackoff,
	}
}

// BoardChanged queues the signal for Redis and returns at once.
func (r *RedisRelay) BoardChanged(ctx context.Context, projectID int64) {
	sig := pendingSignal{
		projectID: projectID,
		span:      trace.SpanContextFromContext(ctx),
		local:     !r.subscribed.Load(),
	}
	if sig.local {
		r.hub.BoardChanged(ctx, projectID)
	}
	if !r.queue.offer(sig) {
		metrics.IncrementRelayFailure("redis")
		r.logger.Warn("Board relay queue full", zap.Int64("project_id", projectID))
		if !sig.local {
			r.hub.BoardChanged(ctx, projectID)
		}
	}
}

func (r *RedisRelay) publish(ctx context.Context, sig pendingSignal) {
	payload, err := json.Marshal(relayEvent{ProjectID: sig.projectID, Origin: r.instanceID})
	if err == nil {
		err = r.rdb.Publish(ctx, RedisChannel, payload).Err()
	}
	if err == nil {
		return
	}

	metrics.IncrementRelayFailure("redis")
	r.logger.Warn("Board relay publish failed, delivering locally",
		zap.Int64("project_id", sig.projectID),
		zap.Error(err),
	)
	if !sig.local {
		r.hub.BoardChanged(ctx, sig.projectID)
	}
}

// Run drains the send queue and keeps the channel subscription alive until
// ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.queue.drain(ctx, r.publish)
	}()
	defer func() { <-done }()

	return retryLoop(ctx, r.minBackoff, r.maxBackoff, r.logger, "Board relay subscriber", r.subscribe)
}

// Subscribed reports whether signals from the channel currently reach the hub.
func (r *RedisRelay) Subscribed() bool {
	return r.subscribed.Load()
}

func (r *RedisRelay) subscribe(ctx context.Context) (bool, error) {
	sub := r.rdb.Subscribe(ctx, RedisChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", RedisChannel, err)
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)
	r.logger.Info("Board relay subscribed", zap.String("channel", RedisChannel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return true, fmt.Errorf("redis subscription closed")
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	ev, err := decodeRelayEvent([]byte(payload))
	if err != nil {
		r.logger.Warn("Dropping malformed board event", zap.Error(err))
		return
	}
	metrics.IncrementBroadcast("relay")
	r.hub.Publish(ev.ProjectID)
}
