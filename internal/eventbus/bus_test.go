package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(4)
	defer unsubA()
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: TypeTriggerFired, Data: TriggerData{Name: "x"}})

	for i, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Type != TypeTriggerFired || e.Time.IsZero() {
				t.Fatalf("sub %d: unexpected event %+v", i, e)
			}
			if d, ok := e.Data.(TriggerData); !ok || d.Name != "x" {
				t.Fatalf("sub %d: data %+v", i, e.Data)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub %d: no event", i)
		}
	}
}

func TestSubscribeTypeFilter(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4, TypeTriggerExhausted)
	defer unsub()

	b.Publish(Event{Type: TypeTriggerFired})
	b.Publish(Event{Type: TypeTriggerExhausted})

	select {
	case e := <-ch:
		if e.Type != TypeTriggerExhausted {
			t.Fatalf("got %q, want %q", e.Type, TypeTriggerExhausted)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event")
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected extra event %+v", e)
	default:
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	b.Publish(Event{Type: "c"})
	if got := b.Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: "x"})
}
