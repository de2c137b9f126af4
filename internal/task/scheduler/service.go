package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	logx "timerbot/pkg/logx"

	"github.com/robfig/cron/v3"
)

// Job is a named periodic function. Timeout bounds one run (0 = none).
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type entry struct {
	job     Job
	spec    string
	entryID cron.EntryID
}

// Service owns one cron instance. It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	parser cron.Parser
	loc    *time.Location

	c       *cron.Cron
	runCtx  context.Context
	cancel  context.CancelFunc
	entries map[string]*entry
}

func New(loc *time.Location, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		log: log,
		loc: loc,
		parser:  specParser,
		entries: map[string]*entry{},
	}
}

// Set registers or replaces job by name. An empty schedule removes it.
func (s *Service) Set(job Job) error {
	name := strings.TrimSpace(job.Name)
	if name == "" {
		return errors.New("name required")
	}
	if job.Run == nil {
		return errors.New("run func required")
	}
	if strings.TrimSpace(job.Schedule) == "" {
		s.Remove(name)
		return nil
	}
	ps, err := ParseSchedule(job.Schedule)
	if err != nil {
		return err
	}
	spec := ps.Spec()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	e := &entry{job: job, spec: spec}
	s.entries[name] = e
	if s.c != nil {
		return s.addLocked(e)
	}
	return nil
}

func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

func (s *Service) removeLocked(name string) bool {
	e, ok := s.entries[name]
	if !ok {
		return false
	}
	if s.c != nil && e.entryID != 0 {
		s.c.Remove(e.entryID)
	}
	delete(s.entries, name)
	return true
}

// Start begins triggering. Jobs run with a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, e := range s.entries {
		if err := s.addLocked(e); err != nil {
			s.log.Error("schedule register failed", logx.String("name", e.job.Name), logx.String("spec", e.spec), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.entries)))
}

// Stop stops triggering and waits for running jobs until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	for _, e := range s.entries {
		e.entryID = 0
	}
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("service stopped")
}

// Next returns the next trigger time for name.
func (s *Service) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok || s.c == nil || e.entryID == 0 {
		return time.Time{}, false
	}
	next := s.c.Entry(e.entryID).Next
	return next, !next.IsZero()
}

func (s *Service) addLocked(e *entry) error {
	runCtx := s.runCtx
	job := e.job
	id, err := s.c.AddFunc(e.spec, func() {
		ctx := runCtx
		if job.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, job.Timeout)
			defer cancel()
		}
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.log.Warn("job failed", logx.String("name", job.Name), logx.Duration("took", time.Since(start)), logx.Err(err))
			return
		}
		s.log.Debug("job done", logx.String("name", job.Name), logx.Duration("took", time.Since(start)))
	})
	if err != nil {
		return err
	}
	e.entryID = id
	s.log.Debug("schedule registered", logx.String("name", e.job.Name), logx.String("spec", e.spec))
	return nil
}

// cronLogger adapts logx to cron.Logger for the Recover/Skip wrappers.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
