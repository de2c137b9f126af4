package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"timerbot/internal/eventbus"
	rtsup "timerbot/internal/runtime/supervisor"
	kit "timerbot/internal/transport"
	logx "timerbot/pkg/logx"

	"golang.org/x/time/rate"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

const sendTimeout = 10 * time.Second

// Service is a queue + worker pool + rate limit + retry pipeline.
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan kit.Notification
	urgent   chan kit.Notification
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	queued, sent, failed, dropped atomic.Uint64
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Service{adapter: adapter, log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the config. Worker count and queue size take effect on the
// next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	s.cfg = cfg
	// burst = rate per sec so short spikes don't block too hard
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start launches the workers. It is idempotent and a no-op when disabled.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan kit.Notification, s.cfg.QueueSize)
	s.urgent = make(chan kit.Notification, priorityLaneSize(s.cfg.QueueSize))
	s.accepting = true
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log.With(logx.String("comp", "notifier"))))
	sup, q, urgent, workers := s.sup, s.queue, s.urgent, s.cfg.Workers
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		sup.GoRestart(fmt.Sprintf("notifier.worker.%d", i), func(c context.Context) error {
			s.workerLoop(c, urgent, q)
			return nil
		})
	}
}

// Stop stops intake and drains the queue until ctx ends, then force-stops
// the workers.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, urgent, sup := s.queue, s.urgent, s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		// in-flight enqueues must finish before the queue closes
		s.sendWG.Wait()
		close(q)
		close(urgent)
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.queue, s.urgent, s.sup, s.stopDone = nil, nil, nil, nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
}

// Notify enqueues n without blocking.
func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q, urgent := s.queue, s.urgent
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	if n.Priority {
		select {
		case urgent <- n:
			s.queued.Add(1)
			s.publish(EventQueued, n, 0, nil)
			return nil
		default:
			// lane full; fall back to the shared queue
		}
	}
	select {
	case q <- n:
		s.queued.Add(1)
		s.publish(EventQueued, n, 0, nil)
		return nil
	default:
		s.dropped.Add(1)
		s.publish(EventDropped, n, 0, ErrQueueFull)
		return ErrQueueFull
	}
}

func (s *Service) Stats() Stats {
	return Stats{
		Queued:  s.queued.Load(),
		Sent:    s.sent.Load(),
		Failed:  s.failed.Load(),
		Dropped: s.dropped.Load(),
	}
}

func (s *Service) publish(typ string, n kit.Notification, attempts int, err error) {
	now := time.Now()
	ev := NotificationEvent{
		Kind:     string(n.Kind),
		Channel:  n.Channel,
		ChatID:   n.Target.ChatID,
		ThreadID: n.Target.ThreadID,
		Key:      n.Key,
		At:       now,
		Attempts: attempts,
	}
	if n.Kind == kit.NotifyReaction {
		ev.ChatID, ev.ThreadID = n.Ref.ChatID, n.Ref.ThreadID
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}

// workerLoop drains the priority lane ahead of the shared queue and returns
// once both are closed and empty.
func (s *Service) workerLoop(ctx context.Context, urgent, q <-chan kit.Notification) {
	for urgent != nil || q != nil {
		select {
		case n, ok := <-urgent:
			if !ok {
				urgent = nil
				continue
			}
			s.sendWithRetry(ctx, n)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case n, ok := <-urgent:
			if !ok {
				urgent = nil
				continue
			}
			s.sendWithRetry(ctx, n)
		case n, ok := <-q:
			if !ok {
				q = nil
				continue
			}
			s.sendWithRetry(ctx, n)
		}
	}
}

// priorityLaneSize reserves a quarter of the queue budget, at least 8 slots.
func priorityLaneSize(queue int) int {
	return max(queue/4, 8)
}

func (s *Service) deliver(ctx context.Context, ad kit.Adapter, n kit.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	switch n.Kind {
	case kit.NotifyReaction:
		return ad.React(ctx, n.Ref, n.Reaction)
	case kit.NotifyText, "":
		_, err := ad.SendText(ctx, n.Target, n.Text, n.Options)
		return err
	default:
		return fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}

func (s *Service) sendWithRetry(ctx context.Context, n kit.Notification) {
	s.mu.Lock()
	cfg, lim, ad, log := s.cfg, s.limiter, s.adapter, s.log
	s.mu.Unlock()

	if ad == nil || (n.Kind != kit.NotifyReaction && n.Text == "") {
		return
	}

	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		lastErr = s.deliver(ctx, ad, n)
		if lastErr == nil {
			s.sent.Add(1)
			s.publish(EventSent, n, attempt, nil)
			return
		}
		log.Debug("notify send failed",
			logx.String("key", n.Key),
			logx.Err(lastErr),
			logx.Int("attempt", attempt),
			logx.Int("max", maxAttempts),
		)
		if attempt == maxAttempts {
			break
		}

		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}

	s.failed.Add(1)
	log.Warn("notify gave up", logx.String("key", n.Key), logx.String("kind", string(n.Kind)), logx.Err(lastErr))
	s.publish(EventFailed, n, maxAttempts, lastErr)
}

// retryDelay is the wait before attempt+1: base*2^(attempt-1) with 0.7..1.3
// jitter, capped at RetryMaxDelay.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(max(d, 0), cfg.RetryMaxDelay)
}
