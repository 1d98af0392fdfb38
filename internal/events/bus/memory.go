package bus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/common/logger"
)

// ReplyKey is the event data key Request stores the reply subject under.
const ReplyKey = "_reply"

// MemoryEventBus implements EventBus inside the process. Handlers run on their
// own goroutines; Close waits for the ones already dispatched.
type MemoryEventBus struct {
	mu       sync.Mutex
	subs     map[uint64]*memorySubscription
	nextID   uint64
	cursors  map[string]int // round-robin position per queue group
	closed   bool
	inflight sync.WaitGroup
	logger   *logger.Logger
}

type memorySubscription struct {
	bus     *MemoryEventBus
	id      uint64
	subject string
	queue   string
	handler EventHandler
	active  atomic.Bool
}

// Unsubscribe removes the subscription. Calling it more than once is harmless.
func (s *memorySubscription) Unsubscribe() error {
	if !s.active.Swap(false) {
		return nil
	}
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	return nil
}

// IsValid returns whether the subscription is still active
func (s *memorySubscription) IsValid() bool {
	return s.active.Load()
}

// NewMemoryEventBus creates a new in-memory event bus
func NewMemoryEventBus(log *logger.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		subs:    make(map[uint64]*memorySubscription),
		cursors: make(map[string]int),
		logger:  log.WithFields(zap.String("component", "memory_bus")),
	}
}

// Publish delivers event to every matching plain subscriber and to one member
// of each matching queue group.
func (b *MemoryEventBus) Publish(ctx context.Context, subject string, event *Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus is closed")
	}

	matching := make([]*memorySubscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.active.Load() && subjectMatches(sub.subject, subject) {
			matching = append(matching, sub)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].id < matching[j].id })

	targets := make([]*memorySubscription, 0, len(matching))
	groups := make(map[string][]*memorySubscription)
	var groupOrder []string
	for _, sub := range matching {
		if sub.queue == "" {
			targets = append(targets, sub)
			continue
		}
		key := sub.queue + "|" + sub.subject
		if _, seen := groups[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], sub)
	}
	for _, key := range groupOrder {
		members := groups[key]
		idx := b.cursors[key] % len(members)
		b.cursors[key] = idx + 1
		targets = append(targets, members[idx])
	}

	b.inflight.Add(len(targets))
	b.mu.Unlock()

	handlerCtx := context.WithoutCancel(ctx)
	for _, sub := range targets {
		go b.dispatch(handlerCtx, sub, subject, event)
	}

	b.logger.Debug("Published event",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.Int("receivers", len(targets)))
	return nil
}

func (b *MemoryEventBus) dispatch(ctx context.Context, sub *memorySubscription, subject string, event *Event) {
	defer b.inflight.Done()
	if !sub.active.Load() {
		return
	}
	if err := sub.handler(ctx, event); err != nil {
		b.logger.Error("Event handler error",
			zap.String("subject", subject),
			zap.String("queue", sub.queue),
			zap.Error(err))
	}
}

// Subscribe creates a subscription to a subject pattern
func (b *MemoryEventBus) Subscribe(subject string, handler EventHandler) (Subscription, error) {
	return b.subscribe(subject, "", handler)
}

// QueueSubscribe creates a queue subscription for load balancing.
// Only one subscriber in the queue group receives each message.
func (b *MemoryEventBus) QueueSubscribe(subject, queue string, handler EventHandler) (Subscription, error) {
	return b.subscribe(subject, queue, handler)
}

func (b *MemoryEventBus) subscribe(subject, queue string, handler EventHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	b.nextID++
	sub := &memorySubscription{
		bus:     b,
		id:      b.nextID,
		subject: subject,
		queue:   queue,
		handler: handler,
	}
	sub.active.Store(true)
	b.subs[sub.id] = sub

	b.logger.Debug("Subscribed to subject", zap.String("subject", subject), zap.String("queue", queue))
	return sub, nil
}

// Request publishes event with a reply subject in its data and waits for the
// first event published back on that subject.
func (b *MemoryEventBus) Request(ctx context.Context, subject string, event *Event, timeout time.Duration) (*Event, error) {
	replySubject := "_INBOX." + event.ID
	responses := make(chan *Event, 1)

	sub, err := b.Subscribe(replySubject, func(_ context.Context, e *Event) error {
		select {
		case responses <- e:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reply subscription: %w", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	data := make(map[string]interface{}, len(event.Data)+1)
	for k, v := range event.Data {
		data[k] = v
	}
	data[ReplyKey] = replySubject
	request := *event
	request.Data = data

	if err := b.Publish(ctx, subject, &request); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case response := <-responses:
		return response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("request timeout after %v", timeout)
	}
}

// Close stops accepting events and waits for dispatched handlers to return.
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.active.Store(false)
	}
	b.subs = make(map[uint64]*memorySubscription)
	b.mu.Unlock()

	b.inflight.Wait()
	b.logger.Info("Memory event bus closed")
}

// IsConnected reports whether the bus is still open.
func (b *MemoryEventBus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// subjectMatches applies NATS wildcard rules: "*" matches exactly one token and
// a trailing ">" matches one or more tokens.
func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, tok := range pt {
		if tok == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
