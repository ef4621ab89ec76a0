// Package supervisor runs the daemon's background loops under one context,
// recovering panics and restarting loops that fail.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	logx "dailyprompt/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger
	wg     sync.WaitGroup

	errOnce  sync.Once
	firstErr error

	mu    sync.Mutex
	loops map[string]*LoopStats
}

// LoopStats is a best-effort view of one named loop.
type LoopStats struct {
	Name     string
	Running  bool
	Restarts int
	Panics   int
	LastErr  string
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{ctx: ctx, cancel: cancel, loops: map[string]*LoopStats{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Err returns the first error that made a loop give up, if any.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

func (s *Supervisor) setErr(err error) {
	s.errOnce.Do(func() {
		s.mu.Lock()
		s.firstErr = err
		s.mu.Unlock()
	})
}

func (s *Supervisor) stats(name string) *LoopStats {
	st := s.loops[name]
	if st == nil {
		st = &LoopStats{Name: name}
		s.loops[name] = st
	}
	return st
}

// Snapshot returns the loops sorted by name.
func (s *Supervisor) Snapshot() []LoopStats {
	s.mu.Lock()
	out := make([]LoopStats, 0, len(s.loops))
	for _, st := range s.loops {
		out = append(out, *st)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RestartPolicy bounds GoRestart. MaxRestarts <= 0 means unlimited.
type RestartPolicy struct {
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	MaxRestarts int
}

var DefaultRestartPolicy = RestartPolicy{MinBackoff: 250 * time.Millisecond, MaxBackoff: 30 * time.Second}

// Go runs fn once. A panic is recovered and recorded as the loop's error.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.GoRestart(name, fn, RestartPolicy{MaxRestarts: -1})
}

// GoRestart runs fn until it returns nil or the context ends, restarting it
// after errors and panics with jittered exponential backoff.
// A negative MaxRestarts disables restarts.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, p RestartPolicy) {
	if fn == nil {
		return
	}
	if p.MinBackoff <= 0 {
		p.MinBackoff = DefaultRestartPolicy.MinBackoff
	}
	p.MaxBackoff = max(p.MaxBackoff, p.MinBackoff)

	// Visible in Snapshot as soon as GoRestart returns.
	s.mu.Lock()
	s.stats(name)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		backoff := p.MinBackoff
		restarts := 0
		for {
			s.mu.Lock()
			s.stats(name).Running = true
			s.mu.Unlock()

			err := s.runOnce(name, fn)

			s.mu.Lock()
			st := s.stats(name)
			st.Running = false
			if err != nil {
				st.LastErr = err.Error()
			}
			s.mu.Unlock()

			if s.ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
				return
			}
			err = fmt.Errorf("%s: %w", name, err)
			if p.MaxRestarts < 0 || (p.MaxRestarts > 0 && restarts >= p.MaxRestarts) {
				s.log.Error("loop stopped", logx.String("name", name), logx.Int("restarts", restarts), logx.Err(err))
				s.setErr(err)
				return
			}

			wait := backoff + time.Duration(time.Now().UnixNano()%int64(backoff/5+1))
			backoff = min(backoff*2, p.MaxBackoff)
			restarts++
			s.mu.Lock()
			s.stats(name).Restarts = restarts
			s.mu.Unlock()
			s.log.Warn("loop restarting", logx.String("name", name), logx.Duration("backoff", wait), logx.Err(err))

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
}

func (s *Supervisor) runOnce(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.stats(name).Panics++
			s.mu.Unlock()
			s.log.Error("loop panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	s.log.Debug("loop started", logx.String("name", name))
	return fn(s.ctx)
}

// Stop cancels every loop and waits for them, bounded by ctx.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return s.Err()
	}
}
