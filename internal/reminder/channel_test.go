package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "timerbot/internal/transport"
)

func TestCommandsPreserveProducerOrder(t *testing.T) {
	t.Parallel()
	c := NewCommands(4)

	const producers = 3
	const n = 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				owner := Owner{ID: int64(p)}
				if err := c.Send(context.Background(), CancelCommand(string(rune('a'+i%26)), Origin{Requester: owner, Ref: kit.MessageRef{MessageID: i}})); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		c.Close()
	}()

	last := map[int64]int{0: -1, 1: -1, 2: -1}
	total := 0
	for cmd := range c.Recv() {
		p := cmd.Origin.Requester.ID
		seq := cmd.Origin.Ref.MessageID
		if seq <= last[p] {
			t.Fatalf("producer %d: seq %d after %d", p, seq, last[p])
		}
		last[p] = seq
		total++
	}
	if total != producers*n {
		t.Fatalf("received %d commands, want %d", total, producers*n)
	}
}

func TestCommandsSendBlocksWhenFull(t *testing.T) {
	t.Parallel()
	c := NewCommands(1)
	if err := c.Send(context.Background(), ListCommand(ScopeAll, Origin{})); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := c.Send(ctx, ListCommand(ScopeAll, Origin{})); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("send on full channel = %v, want deadline exceeded", err)
	}
	if c.Len() != 1 || c.Cap() != 1 {
		t.Fatalf("len/cap = %d/%d", c.Len(), c.Cap())
	}
}

func TestCommandsCloseReleasesBlockedSenders(t *testing.T) {
	t.Parallel()
	c := NewCommands(1)
	_ = c.Send(context.Background(), ListCommand(ScopeAll, Origin{}))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Send(context.Background(), ListCommand(ScopeMine, Origin{})) }()

	time.Sleep(20 * time.Millisecond)
	c.Close()
	c.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("blocked send = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked sender not released by Close")
	}

	// Buffered commands stay readable after Close.
	cmd, ok := <-c.Recv()
	if !ok || cmd.Kind != CommandList || cmd.Scope != ScopeAll {
		t.Fatalf("drained %+v ok=%v", cmd, ok)
	}
	if _, ok := <-c.Recv(); ok {
		t.Fatal("channel should be closed after drain")
	}
}

func TestNewCommandsDefaultSize(t *testing.T) {
	t.Parallel()
	if got := NewCommands(0).Cap(); got != DefaultQueueSize {
		t.Fatalf("cap = %d, want %d", got, DefaultQueueSize)
	}
}
