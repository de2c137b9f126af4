package reminder

import (
	"context"
	"errors"
	"sync"
)

// DefaultQueueSize bounds the number of in-flight commands.
const DefaultQueueSize = 400

var ErrClosed = errors.New("reminder command channel closed")

type CommandKind int

const (
	CommandAdd CommandKind = iota
	CommandCancel
	CommandList
)

func (k CommandKind) String() string {
	switch k {
	case CommandAdd:
		return "add"
	case CommandCancel:
		return "cancel"
	case CommandList:
		return "list"
	default:
		return "unknown"
	}
}

// Command is one request for the scheduler. Only the fields relevant to Kind
// are read.
type Command struct {
	Kind CommandKind

	// Add
	Reminder Reminder

	// Cancel
	TargetID string

	// Cancel and List: who asked and where to answer.
	Origin Origin

	// List
	Scope Scope
}

func AddCommand(r Reminder) Command { return Command{Kind: CommandAdd, Reminder: r} }

func CancelCommand(targetID string, origin Origin) Command {
	return Command{Kind: CommandCancel, TargetID: targetID, Origin: origin}
}

func ListCommand(scope Scope, origin Origin) Command {
	return Command{Kind: CommandList, Scope: scope, Origin: origin}
}

// Commands is a bounded multi-producer/single-consumer FIFO. Send blocks while
// the buffer is full. Close is the terminal signal for the consumer.
type Commands struct {
	ch chan Command

	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
}

func NewCommands(size int) *Commands {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Commands{
		ch:      make(chan Command, size),
		closing: make(chan struct{}),
	}
}

// Send enqueues cmd. It returns ErrClosed after Close, or ctx.Err() if the
// context ends while waiting for buffer space.
func (c *Commands) Send(ctx context.Context, cmd Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.ch <- cmd:
		return nil
	case <-c.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake. Buffered commands remain readable; the receive side
// reports closed once they are drained. Safe to call more than once.
func (c *Commands) Close() {
	c.closeOnce.Do(func() {
		// Wake senders blocked on a full buffer before taking the write lock.
		close(c.closing)
		c.mu.Lock()
		c.closed = true
		close(c.ch)
		c.mu.Unlock()
	})
}

// Recv exposes the receive side for the single consumer.
func (c *Commands) Recv() <-chan Command { return c.ch }

func (c *Commands) Len() int { return len(c.ch) }
func (c *Commands) Cap() int { return cap(c.ch) }
