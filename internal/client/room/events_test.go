package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusKeepsOrder(t *testing.T) {
	var b bus
	events, unsubscribe := b.subscribe(0)
	defer unsubscribe()

	for i := range 10 {
		b.publish(NotificationEvent{Message: string(rune('a' + i))})
	}

	for i := range 10 {
		select {
		case e := <-events:
			assert.Equal(t, NotificationEvent{Message: string(rune('a' + i))}, e)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBusDropsOverflowingSubscriber(t *testing.T) {
	var b bus
	stalled, _ := b.subscribe(0)
	live, unsubscribe := b.subscribe(0)
	defer unsubscribe()

	for range maxPendingEvents + 2 {
		b.publish(StateChangedEvent{State: StateConnected})
		select {
		case <-live:
		case <-time.After(time.Second):
			t.Fatal("live subscriber was blocked")
		}
	}

	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-stalled:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)

	b.mu.Lock()
	assert.Len(t, b.subs, 1)
	b.mu.Unlock()
}
