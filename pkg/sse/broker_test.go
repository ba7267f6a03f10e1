package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan Event, max int, timeout time.Duration) []Event {
	var events []Event
	deadline := time.After(timeout)
	for len(events) < max {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}

func TestSubscribeEmptyID(t *testing.T) {
	b := NewBroker()

	_, _, err := b.Subscribe("")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestPublishToSubscriber(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch, cancel, err := b.Subscribe("opt-1")
	require.NoError(t, err)
	defer cancel()

	b.Publish(Progress("opt-1", 50, "halfway"))

	events := collect(ch, 1, time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, EventProgress, events[0].Type)
	assert.Equal(t, 50, events[0].Percent)
	assert.Equal(t, "halfway", events[0].Message)
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch1, cancel1, err := b.Subscribe("opt-1")
	require.NoError(t, err)
	defer cancel1()

	ch2, cancel2, err := b.Subscribe("opt-1")
	require.NoError(t, err)
	defer cancel2()

	assert.Equal(t, 2, b.SubscriberCount("opt-1"))

	b.Publish(Progress("opt-1", 10, "start"))

	assert.Len(t, collect(ch1, 1, time.Second), 1)
	assert.Len(t, collect(ch2, 1, time.Second), 1)
}

func TestKeyedIsolation(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	chA, cancelA, err := b.Subscribe("opt-a")
	require.NoError(t, err)
	defer cancelA()

	chB, cancelB, err := b.Subscribe("opt-b")
	require.NoError(t, err)
	defer cancelB()

	b.Publish(Progress("opt-a", 30, "only a"))

	assert.Len(t, collect(chA, 1, 200*time.Millisecond), 1)
	assert.Empty(t, collect(chB, 1, 100*time.Millisecond))
}

func TestTerminalEventClosesAfterGrace(t *testing.T) {
	b := NewBroker(WithGrace(20 * time.Millisecond))
	defer b.Close()

	ch, cancel, err := b.Subscribe("opt-1")
	require.NoError(t, err)
	defer cancel()

	b.Publish(Complete("opt-1", map[string]string{"status": "done"}))

	events := collect(ch, 1, time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, EventComplete, events[0].Type)
	assert.True(t, events[0].Terminal())

	// Channel closes after the grace window and the id is dropped
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, b.StreamCount())
}

func TestErrorEventIsTerminal(t *testing.T) {
	b := NewBroker(WithGrace(10 * time.Millisecond))
	defer b.Close()

	ch, cancel, err := b.Subscribe("opt-1")
	require.NoError(t, err)
	defer cancel()

	b.Publish(Error("opt-1", "codec failed"))

	events := collect(ch, 1, time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, "codec failed", events[0].Message)

	assert.Eventually(t, func() bool {
		return b.StreamCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestTerminalEventReachesStalledSubscriber(t *testing.T) {
	b := NewBroker(WithGrace(20 * time.Millisecond))
	defer b.Close()

	ch, cancel, err := b.Subscribe("opt-stalled")
	require.NoError(t, err)
	defer cancel()

	// Overflow the buffer without reading, then complete.
	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(Progress("opt-stalled", i, "working"))
	}
	b.Publish(Complete("opt-stalled", "done"))

	events := collect(ch, subscriberBuffer+10, time.Second)
	require.NotEmpty(t, events)

	var sawTerminal bool
	for _, ev := range events {
		if ev.Terminal() {
			sawTerminal = true
		}
	}
	assert.True(t, sawTerminal, "stalled subscriber must still observe the terminal event")
	assert.True(t, events[len(events)-1].Terminal())
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	assert.NotPanics(t, func() {
		b.Publish(Progress("nobody", 10, "hello"))
		b.Publish(Complete("nobody", nil))
	})
}

func TestCancelDetachesSubscriber(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch, cancel, err := b.Subscribe("opt-1")
	require.NoError(t, err)

	cancel()
	cancel() // safe twice

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.SubscriberCount("opt-1"))
}

func TestSweepDropsIdleStreams(t *testing.T) {
	b := NewBroker(WithIdleTTL(time.Hour))
	defer b.Close()

	ch, cancel, err := b.Subscribe("opt-1")
	require.NoError(t, err)
	defer cancel()

	// Nothing idle yet
	assert.Equal(t, 0, b.Sweep())

	// Move the clock past the idle TTL
	b.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	assert.Equal(t, 1, b.Sweep())
	assert.Equal(t, 0, b.StreamCount())

	_, open := <-ch
	assert.False(t, open)
}

func TestPublishAfterTerminalIgnored(t *testing.T) {
	b := NewBroker(WithGrace(time.Hour)) // long grace keeps the stream around
	defer b.Close()

	ch, cancel, err := b.Subscribe("opt-1")
	require.NoError(t, err)
	defer cancel()

	b.Publish(Complete("opt-1", nil))
	b.Publish(Progress("opt-1", 99, "too late"))

	events := collect(ch, 2, 200*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, EventComplete, events[0].Type)
}

func TestCloseShutsEverything(t *testing.T) {
	b := NewBroker()

	ch, _, err := b.Subscribe("opt-1")
	require.NoError(t, err)

	b.Close()

	_, open := <-ch
	assert.False(t, open)

	_, _, err = b.Subscribe("opt-2")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEventConstructors(t *testing.T) {
	p := Progress("id", 40, "msg")
	assert.False(t, p.Terminal())

	fp := FileProgress("id", 60, "file done", "a.png", 2)
	assert.Equal(t, "a.png", fp.FileName)
	assert.Equal(t, 2, fp.FileIndex)

	c := Complete("id", "payload")
	assert.True(t, c.Terminal())
	assert.Equal(t, 100, c.Percent)

	e := Error("id", "boom")
	assert.True(t, e.Terminal())
}
