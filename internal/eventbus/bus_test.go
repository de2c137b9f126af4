package eventbus

import (
	"sync"
	"testing"
)

func TestFanout(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: "x", Data: 1})
	for _, ch := range []<-chan Event{a, c} {
		ev := <-ch
		if ev.Type != "x" || ev.Time.IsZero() {
			t.Fatalf("event = %+v", ev)
		}
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()
	b.Publish(Event{Type: "1"})
	b.Publish(Event{Type: "2"})
	if got := (<-ch).Type; got != "1" {
		t.Fatalf("first = %q", got)
	}
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d", b.Dropped())
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(0)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open")
	}
	b.Publish(Event{Type: "after"})
}

func TestPublishRacesUnsubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		_, unsub := b.Subscribe(1)
		go func() { defer wg.Done(); unsub() }()
		go func() { defer wg.Done(); b.Publish(Event{Type: "race"}) }()
	}
	wg.Wait()
}

func TestNop(t *testing.T) {
	t.Parallel()
	var bus Bus = Nop{}
	bus.Publish(Event{Type: "x"})
	ch, unsub := bus.Subscribe(1)
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("nop channel should be closed")
	}
}
