package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/worldcore/internal/core/observability/log"
)

var ErrEmptyName = errors.New("bus: message name is empty")

type subscription struct {
	id      string
	name    string
	handler Handler
	mu      sync.Mutex
	active  bool
	cancel  func()
}

func (s *subscription) ID() string    { return s.id }
func (s *subscription) Name() string { return s.name }

func (s *subscription) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *subscription) Cancel() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()
	s.cancel()
	return nil
}

// inMemoryBus keeps, per message name, the subscriptions in the order they
// were registered.
type inMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]*subscription
	metrics   Metrics
	observers map[Observer]struct{}
}

func New() Bus {
	return &inMemoryBus{
		handlers:  make(map[string][]*subscription),
		observers: make(map[Observer]struct{}),
	}
}

func (b *inMemoryBus) PublishBatch(msgs ...Message) error {
	var errs []error
	for _, msg := range msgs {
		if err := b.Publish(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *inMemoryBus) Subscribe(name string, handler Handler) (Subscription, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &subscription{
		id:      uuid.NewString(),
		name:    name,
		handler: handler,
		active:  true,
	}
	s.cancel = func() { b.remove(s) }
	b.handlers[name] = append(b.handlers[name], s)
	return s, nil
}

func (b *inMemoryBus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[s.name]
	for i, other := range subs {
		if other == s {
			if len(subs) == 1 {
				delete(b.handlers, s.name)
				return
			}
			b.handlers[s.name] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) AddObserver(obs Observer) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	b.mu.Unlock()
}

func (b *inMemoryBus) RemoveObserver(obs Observer) {
	b.mu.Lock()
	delete(b.observers, obs)
	b.mu.Unlock()
}

func (b *inMemoryBus) GetMetrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

// Publish delivers msg to the subscribers of msg.Name and updates the
// metrics whether or not observers are registered.
func (b *inMemoryBus) Publish(msg Message) error {
	if msg.Name == "" {
		return ErrEmptyName
	}
	start := time.Now()

	b.mu.RLock()
	subs := append([]*subscription(nil), b.handlers[msg.Name]...)
	observers := make([]Observer, 0, len(b.observers))
	for obs := range b.observers {
		observers = append(observers, obs)
	}
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(msg)
	}

	var errs []error
	delivered := 0
	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		delivered++
		if err := s.handler(msg); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	for _, obs := range observers {
		obs.OnDelivered(msg, delivered, err, time.Since(start))
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(delivered)
	if err != nil {
		b.metrics.Errors++
	}
	b.metrics.Names = uint64(len(b.handlers))
	var active uint64
	for _, list := range b.handlers {
		active += uint64(len(list))
	}
	b.metrics.SubscribersActive = active
	b.mu.Unlock()
	return err
}

// LogObserver writes one debug line per delivery and an error line when a
// handler fails.
type LogObserver struct {
	Log log.Log
}

func (o LogObserver) OnPublish(Message) {}

func (o LogObserver) OnDelivered(msg Message, handlers int, err error, elapsed time.Duration) {
	fields := []log.Field{
		log.String("message", msg.Name),
		log.String("source", msg.Source),
		log.Int("handlers", handlers),
		log.Duration("elapsed", elapsed),
	}
	if err != nil {
		o.Log.Error("message handler failed", append(fields, log.Error(err))...)
		return
	}
	o.Log.Debug("message delivered", fields...)
}
