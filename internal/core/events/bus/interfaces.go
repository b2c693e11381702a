package bus

import (
	"time"

	"github.com/zeusync/worldcore/internal/core/values"
)

// Bus is a thread-safe, in-process pub/sub bus for named world messages.
//
// Delivery is synchronous in the publisher's goroutine and follows
// subscription order. Handler errors are joined and returned from Publish.
type Bus interface {
	// Publish delivers msg to every subscriber of msg.Name.
	Publish(msg Message) error
	// PublishBatch publishes msgs in order and joins their errors.
	PublishBatch(msgs ...Message) error
	Subscribe(name string, handler Handler) (Subscription, error)
	// Unsubscribe cancels sub. A nil sub is ignored.
	Unsubscribe(sub Subscription) error

	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	GetMetrics() Metrics
}

// Message is one named event with a component-set payload.
type Message struct {
	Name   string
	Source string
	Data   values.ComponentSet
	Time   time.Time
}

// NewMessage stamps a message with the current time.
func NewMessage(name, source string, data values.ComponentSet) Message {
	return Message{Name: name, Source: source, Data: data, Time: time.Now()}
}

type Handler func(msg Message) error

// Subscription is a registered handler bound to a message name.
type Subscription interface {
	ID() string
	Name() string
	IsActive() bool
	// Cancel is idempotent.
	Cancel() error
}

// Observer is notified about deliveries. Observers should return quickly.
type Observer interface {
	OnPublish(msg Message)
	OnDelivered(msg Message, handlers int, err error, elapsed time.Duration)
}

type Metrics struct {
	Published         uint64 `json:"published"`
	DeliveredHandlers uint64 `json:"delivered_handlers"`
	Errors            uint64 `json:"errors"`
	SubscribersActive uint64 `json:"subscribers_active"`
	Names             uint64 `json:"names"`
}
