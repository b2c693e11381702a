package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/worldcore/internal/core/values"
)

type countingObserver struct {
	published int
	delivered int
	lastErr   error
}

func (o *countingObserver) OnPublish(Message) {
	o.published++
}

func (o *countingObserver) OnDelivered(_ Message, handlers int, err error, _ time.Duration) {
	o.delivered += handlers
	o.lastErr = err
}

func TestPublishSubscribe(t *testing.T) {
	t.Run("Delivery in subscription order", func(t *testing.T) {
		b := New()
		var order []int
		for i := range 3 {
			_, err := b.Subscribe("arena/hit", func(Message) error {
				order = append(order, i)
				return nil
			})
			require.NoError(t, err)
		}

		data, err := values.NewComponentSet(values.Entry{Index: 1, Value: values.F32(2)})
		require.NoError(t, err)
		require.NoError(t, b.Publish(NewMessage("arena/hit", "arena", data)))
		assert.Equal(t, []int{0, 1, 2}, order)
	})

	t.Run("Payload reaches the handler", func(t *testing.T) {
		b := New()
		var got Message
		_, err := b.Subscribe("ping", func(msg Message) error {
			got = msg
			return nil
		})
		require.NoError(t, err)

		data := values.ComponentSet{}.With(4, values.String("hello"))
		require.NoError(t, b.Publish(NewMessage("ping", "tester", data)))
		assert.Equal(t, "tester", got.Source)
		v, ok := got.Data.Get(4)
		require.True(t, ok)
		assert.Equal(t, values.String("hello"), v)
	})

	t.Run("Cancel stops delivery", func(t *testing.T) {
		b := New()
		calls := 0
		sub, err := b.Subscribe("x", func(Message) error { calls++; return nil })
		require.NoError(t, err)

		require.NoError(t, b.Publish(NewMessage("x", "", nil)))
		require.NoError(t, b.Unsubscribe(sub))
		require.NoError(t, sub.Cancel())
		require.NoError(t, b.Publish(NewMessage("x", "", nil)))

		assert.Equal(t, 1, calls)
		assert.False(t, sub.IsActive())
		require.NoError(t, b.Unsubscribe(nil))
	})

	t.Run("Handler errors are joined", func(t *testing.T) {
		b := New()
		e1, e2 := errors.New("first"), errors.New("second")
		_, _ = b.Subscribe("x", func(Message) error { return e1 })
		_, _ = b.Subscribe("x", func(Message) error { return e2 })

		err := b.Publish(NewMessage("x", "", nil))
		require.ErrorIs(t, err, e1)
		require.ErrorIs(t, err, e2)
	})

	t.Run("Empty names are rejected", func(t *testing.T) {
		b := New()
		_, err := b.Subscribe("", func(Message) error { return nil })
		require.ErrorIs(t, err, ErrEmptyName)
		require.ErrorIs(t, b.Publish(Message{}), ErrEmptyName)
	})
}

func TestMetrics(t *testing.T) {
	b := New()
	calls := 0
	sub, _ := b.Subscribe("e", func(Message) error { calls++; return nil })
	_, _ = b.Subscribe("f", func(Message) error { return errors.New("nope") })

	t.Run("Counted without observers", func(t *testing.T) {
		require.NoError(t, b.Publish(NewMessage("e", "", nil)))
		m := b.GetMetrics()
		assert.Equal(t, uint64(1), m.Published)
		assert.Equal(t, uint64(1), m.DeliveredHandlers)
		assert.Equal(t, uint64(2), m.SubscribersActive)
		assert.Equal(t, uint64(2), m.Names)
	})

	t.Run("Batch publishes in order and joins errors", func(t *testing.T) {
		obs := &countingObserver{}
		b.AddObserver(obs)
		defer b.RemoveObserver(obs)

		err := b.PublishBatch(NewMessage("e", "", nil), NewMessage("f", "", nil), NewMessage("e", "", nil))
		require.Error(t, err)
		assert.Equal(t, 3, obs.published)
		assert.Equal(t, 3, calls)

		m := b.GetMetrics()
		assert.Equal(t, uint64(4), m.Published)
		assert.Equal(t, uint64(1), m.Errors)
	})

	t.Run("Cancelled names are forgotten", func(t *testing.T) {
		require.NoError(t, sub.Cancel())
		require.NoError(t, b.Publish(NewMessage("e", "", nil)))
		m := b.GetMetrics()
		assert.Equal(t, uint64(1), m.Names)
		assert.Equal(t, uint64(1), m.SubscribersActive)
		assert.Equal(t, 3, calls)
	})
}
