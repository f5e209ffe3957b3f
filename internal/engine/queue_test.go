package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/stacktower/internal/game"
)

func types(batch []Event) []EventType {
	out := make([]EventType, len(batch))
	for i, ev := range batch {
		out[i] = ev.Type
	}
	return out
}

func TestInbox_DrainKeepsOrder(t *testing.T) {
	b := newInbox()
	b.push(Event{Type: EventStart, SessionID: "s"})
	b.push(Event{Type: EventInput, Input: game.Key()})
	b.push(Event{Type: EventExit})

	batch, shut := b.drain()
	assert.False(t, shut)
	assert.Equal(t, []EventType{EventStart, EventInput, EventExit}, types(batch))

	batch, _ = b.drain()
	assert.Empty(t, batch)
}

func TestInbox_WakeCoalesces(t *testing.T) {
	b := newInbox()
	b.push(Event{Type: EventTick, Dt: time.Millisecond})
	b.push(Event{Type: EventTick, Dt: time.Millisecond})

	select {
	case <-b.wake():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no wakeup after push")
	}
	select {
	case <-b.wake():
		t.Fatal("second wakeup for one batch")
	default:
	}
}

func TestInbox_Shutdown(t *testing.T) {
	b := newInbox()
	b.push(Event{Type: EventTick})
	<-b.wake()

	b.shutdown()
	b.shutdown()
	assert.False(t, b.push(Event{Type: EventTick}), "push after shutdown")

	select {
	case <-b.wake():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("shutdown did not wake the loop")
	}
	batch, shut := b.drain()
	assert.True(t, shut)
	assert.Len(t, batch, 1, "events queued before shutdown survive")
}

func TestInbox_ConcurrentPushers(t *testing.T) {
	b := newInbox()
	const pushers, each = 10, 100

	var wg sync.WaitGroup
	for range pushers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				assert.True(t, b.push(Event{Type: EventInput, Input: game.Key()}))
			}
		}()
	}
	wg.Wait()

	batch, _ := b.drain()
	assert.Len(t, batch, pushers*each)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "tick", EventTick.String())
	assert.Equal(t, "unknown", EventType(0).String())
}
