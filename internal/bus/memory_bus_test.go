package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("session.started")
	defer cancel()

	b.Publish("session.started", "abc123")

	select {
	case msg := <-ch:
		assert.Equal(t, "abc123", msg)
	case <-time.After(time.Second):
		t.Fatal("expected message on subscribed channel")
	}
}

func TestMemoryBusPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() { b.Publish("nobody-listening", "x") })
}

func TestMemoryBusCancelStopsDelivery(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("topic")
	cancel()

	_, open := <-ch
	assert.False(t, open, "channel should be closed after cancel")

	b.Publish("topic", "ignored")
}

func TestMemoryBusMultipleSubscribersEachReceive(t *testing.T) {
	b := New()
	ch1, cancel1 := b.Subscribe("fanout")
	ch2, cancel2 := b.Subscribe("fanout")
	defer cancel1()
	defer cancel2()

	b.Publish("fanout", 42)

	for _, ch := range []<-chan any{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, 42, msg)
		case <-time.After(time.Second):
			t.Fatal("expected message on every subscriber")
		}
	}
}

func TestMemoryBusDropsWhenBufferFull(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("overflow")
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish("overflow", i)
	}

	require.LessOrEqual(t, len(ch), subscriberBuffer)
}
