package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pots-hq/pots/internal/config"
)

// TokenFunc supplies a fresh bearer token for the transport. It is consulted
// on every (re)connect attempt so an expired token never wedges the channel.
type TokenFunc func(ctx context.Context) (string, error)

// Handler receives resolved notifications. Handlers run on the transport's
// receive goroutine and must not block.
type Handler func(Notification)

// reconnectSchedule is the fixed backoff between transport reconnect
// attempts: immediate, 2s, 10s, then 30s forever.
var reconnectSchedule = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// Subscription identifies one registered handler so it can be removed.
type Subscription struct {
	id     uint64
	bridge *Bridge
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bridge == nil {
		return
	}
	s.bridge.remove(s.id)
	s.bridge = nil
}

// Bridge is the long-lived push channel from the core platform. It fans
// incoming envelopes out to registered handlers, preserving transport
// delivery order. Delivery is at-most-once: events arriving before a handler
// subscribes are lost, and nothing is buffered or replayed.
type Bridge struct {
	cfg     config.RedisConfig
	tokenFn TokenFunc

	mu       sync.Mutex
	handlers map[uint64]Handler
	nextID   uint64
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewBridge creates a bridge over the configured pub/sub transport.
func NewBridge(cfg config.RedisConfig, tokenFn TokenFunc) *Bridge {
	return &Bridge{
		cfg:      cfg,
		tokenFn:  tokenFn,
		handlers: make(map[uint64]Handler),
	}
}

// Subscribe registers a handler for all resolved notifications.
func (b *Bridge) Subscribe(handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = handler
	return &Subscription{id: id, bridge: b}
}

func (b *Bridge) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

// Connected reports whether the receive loop is running.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

// Connect establishes the subscription and starts the receive loop. Calling
// Connect while connected is a no-op.
func (b *Bridge) Connect(ctx context.Context) {
	b.mu.Lock()
	if b.cancel != nil {
		b.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()

	go b.run(runCtx, done)
}

// Disconnect tears the transport down and clears every registered handler,
// so no callbacks leak across session boundaries.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.cancel = nil
	b.done = nil
	b.handlers = make(map[uint64]Handler)
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// run dials, receives and redials until the context is cancelled.
func (b *Bridge) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		delay := reconnectSchedule[min(attempt, len(reconnectSchedule)-1)]
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		if err := b.receive(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("notification transport lost, reconnecting",
				"error", err, "attempt", attempt+1)
			attempt++
			continue
		}
		return
	}
}

// receive holds one transport connection open and pumps messages to the
// handlers. Returns nil only on context cancellation.
func (b *Bridge) receive(ctx context.Context) error {
	token, err := b.tokenFn(ctx)
	if err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     b.cfg.Address,
		Password: token,
		DB:       b.cfg.DB,
	})
	defer client.Close()

	pubsub := client.Subscribe(ctx, b.cfg.Channel)
	defer pubsub.Close()

	// Confirm the subscription before reporting a healthy connection.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	slog.Info("notification bridge connected", "channel", b.cfg.Channel)

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		env, err := DecodeEnvelope([]byte(msg.Payload))
		if err != nil {
			slog.Warn("dropping malformed notification", "error", err)
			continue
		}
		b.Dispatch(env)
	}
}

// Dispatch resolves an envelope and fans it out to the current handlers.
// Exported so tests and local tooling can inject notifications without a
// live transport.
func (b *Bridge) Dispatch(env Envelope) {
	notification := Resolve(env)
	if notification == nil {
		slog.Debug("dropping notification outside known vocabulary",
			"entityType", env.EntityType, "action", env.Action)
		return
	}

	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(notification)
	}
}
