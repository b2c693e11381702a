package host

import (
	"errors"
	"sync"

	"github.com/zeusync/worldcore/internal/core/events/bus"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/values"
)

// DefaultInboxLimit bounds the messages queued for one instance between ticks.
const DefaultInboxLimit = 1024

// Inbox queues bus messages for one guest instance until the runtime drains
// them on the next tick.
type Inbox struct {
	bus    bus.Bus
	module string
	limit  int
	log    log.Log

	mu      sync.Mutex
	subs    map[string]bus.Subscription
	pending []bus.Message
	dropped uint64
}

func NewInbox(b bus.Bus, module string, limit int, l log.Log) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	if l == nil {
		l = log.NewNop()
	}
	return &Inbox{
		bus:    b,
		module: module,
		limit:  limit,
		log:    l,
		subs:   make(map[string]bus.Subscription),
	}
}

// Subscribe starts queueing messages named name. Repeated calls are no-ops.
func (i *Inbox) Subscribe(name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.subs[name]; ok {
		return nil
	}
	sub, err := i.bus.Subscribe(name, i.enqueue)
	if err != nil {
		return err
	}
	i.subs[name] = sub
	return nil
}

func (i *Inbox) enqueue(msg bus.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.pending) >= i.limit {
		i.dropped++
		i.log.Warn("inbox full, message dropped",
			log.Module(i.module),
			log.String("event", msg.Name),
			log.Uint64("dropped", i.dropped),
		)
		return nil
	}
	msg.Data = msg.Data.Clone()
	i.pending = append(i.pending, msg)
	return nil
}

// Send publishes a message from this instance.
func (i *Inbox) Send(name string, data values.ComponentSet) error {
	return i.bus.Publish(bus.NewMessage(name, i.module, data))
}

// Drain hands over every queued message in arrival order.
func (i *Inbox) Drain() []bus.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.pending
	i.pending = nil
	return out
}

func (i *Inbox) Subscriptions() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	names := make([]string, 0, len(i.subs))
	for name := range i.subs {
		names = append(names, name)
	}
	return names
}

func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}

// Close cancels every subscription and discards queued messages.
func (i *Inbox) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	var errs []error
	for name, sub := range i.subs {
		if err := i.bus.Unsubscribe(sub); err != nil {
			errs = append(errs, err)
		}
		delete(i.subs, name)
	}
	i.pending = nil
	return errors.Join(errs...)
}
