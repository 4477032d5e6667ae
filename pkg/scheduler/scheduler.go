package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"energylogger/pkg/metric"
	"energylogger/pkg/runtime/constant"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

const progressEvery = 1000

// Cycle runs one poll cycle. n counts from zero and start is the time the
// cycle began.
type Cycle func(ctx context.Context, n int, start time.Time) error

type Option func(*Scheduler)

// WithMaxCycles stops the scheduler after n cycles. Zero runs until the
// context is canceled.
func WithMaxCycles(n int) Option {
	return func(s *Scheduler) {
		s.maxCycles = n
	}
}

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

func WithMetrics(m *metric.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

type Stats struct {
	Interval  time.Duration `json:"interval"`
	Cycles    int64         `json:"cycles"`
	Failures  int64         `json:"failures"`
	Overruns  int64         `json:"overruns"`
	LastStart time.Time     `json:"lastStart,omitempty"`
	LastError string        `json:"lastError,omitempty"`
}

// Scheduler starts cycles on a fixed grid anchored at the first start, so
// the time spent in a cycle never shifts the following ones.
type Scheduler struct {
	interval  time.Duration
	cycle     Cycle
	maxCycles int
	clock     Clock
	metrics   *metric.Metrics

	cycles    *atomic.Int64
	failures  *atomic.Int64
	overruns  *atomic.Int64
	lastStart *atomic.Int64
	lastError *atomic.String
}

func New(interval time.Duration, cycle Cycle, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval:  interval,
		cycle:     cycle,
		clock:     NewClock(nil),
		cycles:    atomic.NewInt64(0),
		failures:  atomic.NewInt64(0),
		overruns:  atomic.NewInt64(0),
		lastStart: atomic.NewInt64(0),
		lastError: atomic.NewString(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives cycles until ctx is done or the cycle limit is reached. Cycle
// failures are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	target := s.clock.Now()
	klog.V(1).InfoS("Starting poll loop", "interval", s.interval, "maxCycles", s.maxCycles)
	for n := 0; s.maxCycles == 0 || n < s.maxCycles; n++ {
		if wait := target.Sub(s.clock.Now()); wait > 0 {
			if err := s.clock.Sleep(ctx, wait); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		if n%progressEvery == 0 {
			klog.InfoS("Collected readouts", "cycles", n)
		}

		s.runCycle(ctx, n)
		target = s.next(target)
	}
	klog.V(1).InfoS("Stopped poll loop", "cycles", s.cycles.Load())
	return nil
}

// next advances target by one interval. When the cycle overran the following
// slot entirely, the next cycle starts immediately and the grid is anchored
// at that start, so missed slots are not run back to back.
func (s *Scheduler) next(target time.Time) time.Time {
	target = target.Add(s.interval)
	if s.interval <= 0 {
		return target
	}
	now := s.clock.Now()
	behind := now.Sub(target)
	if behind <= s.interval {
		return target
	}
	s.overruns.Inc()
	s.metrics.RecordOverrun()
	klog.InfoS("Cycle overran its interval, starting the next one now", "behind", behind, "missed", int64(behind/s.interval))
	return now
}

func (s *Scheduler) runCycle(ctx context.Context, n int) {
	began := s.clock.Now()
	s.lastStart.Store(began.UnixNano())

	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: cycle %d panicked: %v", constant.ErrCycle, n, p)
		}
		s.cycles.Inc()
		s.metrics.RecordCycle(s.clock.Now().Sub(began), err)
		if err != nil {
			s.failures.Inc()
			s.lastError.Store(err.Error())
			klog.ErrorS(err, "Poll cycle failed", "cycle", n)
			return
		}
		s.lastError.Store("")
	}()

	if err = s.cycle(ctx, n, began); err != nil && !errors.Is(err, constant.ErrCycle) {
		err = fmt.Errorf("%w: cycle %d: %w", constant.ErrCycle, n, err)
	}
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		Interval:  s.interval,
		Cycles:    s.cycles.Load(),
		Failures:  s.failures.Load(),
		Overruns:  s.overruns.Load(),
		LastError: s.lastError.Load(),
	}
	if ns := s.lastStart.Load(); ns != 0 {
		st.LastStart = time.Unix(0, ns).UTC()
	}
	return st
}
