package sink

import (
	"sync"
	"time"

	"energylogger/pkg/storage"
	v1 "energylogger/pkg/v1"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

const initialCountdown = 1

type Option func(*Registry)

// WithResetCountdownsOnReload restarts every countdown whenever the sink
// file is reloaded, instead of keeping the phase of unchanged sinks.
func WithResetCountdownsOnReload(reset bool) Option {
	return func(r *Registry) {
		r.resetOnReload = reset
	}
}

// WithCycleInterval bounds every write timeout below cadence times interval,
// so a write always returns before the sink is due again.
func WithCycleInterval(interval time.Duration) Option {
	return func(r *Registry) {
		r.interval = interval
	}
}

// Status is a point in time view of one sink. WriteTimeout is the effective
// timeout, after bounding by the cadence.
type Status struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Cadence      int           `json:"cadence"`
	Countdown    int           `json:"countdown"`
	WriteTimeout time.Duration `json:"writeTimeout"`
	InFlight     bool          `json:"inFlight"`
	Writes       int64         `json:"writes"`
	Failures     int64         `json:"failures"`
	Skipped      int64         `json:"skipped"`
	LastWrite    time.Time     `json:"lastWrite,omitempty"`
	LastError    string        `json:"lastError,omitempty"`
}

type entry struct {
	def       *v1.Sink
	sink      Sink
	countdown int
	timeout   time.Duration

	inFlight  *atomic.Bool
	writes    *atomic.Int64
	failures  *atomic.Int64
	skipped   *atomic.Int64
	lastWrite *atomic.Int64
	lastError *atomic.String
	wg        *sync.WaitGroup
}

func newEntry(def *v1.Sink, s Sink, timeout time.Duration) *entry {
	return &entry{
		def:       def,
		sink:      s,
		countdown: initialCountdown,
		timeout:   timeout,
		inFlight:  atomic.NewBool(false),
		writes:    atomic.NewInt64(0),
		failures:  atomic.NewInt64(0),
		skipped:   atomic.NewInt64(0),
		lastWrite: atomic.NewInt64(0),
		lastError: atomic.NewString(""),
		wg:        &sync.WaitGroup{},
	}
}

func (e *entry) status() Status {
	st := Status{
		Name:         e.def.Name,
		Type:         e.def.Type,
		Cadence:      e.def.Cadence,
		Countdown:    e.countdown,
		WriteTimeout: e.timeout,
		InFlight:     e.inFlight.Load(),
		Writes:       e.writes.Load(),
		Failures:     e.failures.Load(),
		Skipped:      e.skipped.Load(),
		LastError:    e.lastError.Load(),
	}
	if ns := e.lastWrite.Load(); ns != 0 {
		st.LastWrite = time.Unix(0, ns).UTC()
	}
	return st
}

// closeWhenIdle closes the sink once its in flight write, if any, returned.
func (e *entry) closeWhenIdle() {
	go func() {
		e.wg.Wait()
		if err := e.sink.Close(); err != nil {
			klog.V(2).InfoS("Failed to close sink", "sink", e.def.Name, "err", err)
		}
	}()
}

// Registry owns the configured sinks and their countdowns. The sink file is
// reloaded when its modification time changes.
type Registry struct {
	store         *storage.ConfigStore[*v1.SinkList]
	factories     Factories
	resetOnReload bool
	interval      time.Duration

	mu      *sync.Mutex
	entries []*entry
}

func NewRegistry(path string, factories Factories, opts ...Option) *Registry {
	types := factories.Types()
	r := &Registry{
		store: storage.NewConfigStore(path, func(data []byte) (*v1.SinkList, error) {
			return v1.ParseSinks(data, types)
		}),
		factories: factories,
		mu:        &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init loads the sink file and builds every sink. Any failure is a
// configuration error.
func (r *Registry) Init() error {
	sl, err := r.store.Load()
	if err != nil {
		return err
	}
	entries := make([]*entry, 0, len(sl.Sinks))
	for _, def := range sl.Sinks {
		s, err := r.factories.New(def)
		if err != nil {
			for _, e := range entries {
				e.closeWhenIdle()
			}
			return err
		}
		entries = append(entries, newEntry(def, s, r.writeTimeout(def)))
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
	klog.V(1).InfoS("Loaded sinks", "path", r.store.Path(), "count", len(entries))
	return nil
}

// writeTimeout is the timeout of def, cut to 90% of cadence times interval
// when it would outlast the next write cycle.
func (r *Registry) writeTimeout(def *v1.Sink) time.Duration {
	timeout := def.WriteTimeout.Duration
	if r.interval <= 0 {
		return timeout
	}
	limit := time.Duration(def.Cadence) * r.interval
	if timeout > 0 && timeout < limit {
		return timeout
	}
	bounded := limit * 9 / 10
	klog.V(1).InfoS("Write timeout outlasts the sink cadence, bounding it", "sink", def.Name,
		"writeTimeout", timeout, "cadence", def.Cadence, "interval", r.interval, "bounded", bounded)
	return bounded
}

// sync reloads the sink file if it changed. Called with r.mu held.
func (r *Registry) sync() {
	sl, changed := r.store.ReloadIfChanged()
	if !changed || sl == nil {
		return
	}

	previous := make(map[string]*entry, len(r.entries))
	for _, e := range r.entries {
		previous[e.def.Name] = e
	}
	next := make([]*entry, 0, len(sl.Sinks))
	for _, def := range sl.Sinks {
		old, ok := previous[def.Name]
		if ok && old.def.Equal(def) {
			delete(previous, def.Name)
			if r.resetOnReload {
				old.countdown = initialCountdown
			}
			next = append(next, old)
			continue
		}
		s, err := r.factories.New(def)
		if err != nil {
			klog.V(2).InfoS("Failed to build sink, keeping previous definition", "sink", def.Name, "err", err)
			if ok {
				delete(previous, def.Name)
				next = append(next, old)
			}
			continue
		}
		next = append(next, newEntry(def, s, r.writeTimeout(def)))
	}
	for _, e := range previous {
		e.closeWhenIdle()
	}
	r.entries = next
	klog.V(3).InfoS("Sink list changed", "count", len(next), "resetCountdowns", r.resetOnReload)
}

func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	sts := make([]Status, 0, len(r.entries))
	for _, e := range r.entries {
		sts = append(sts, e.status())
	}
	return sts
}

func (r *Registry) Info() storage.FileInfo {
	return r.store.Info()
}

// Close closes every sink after its in flight write returned.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()
	for _, e := range entries {
		e.wg.Wait()
		if err := e.sink.Close(); err != nil {
			klog.V(2).InfoS("Failed to close sink", "sink", e.def.Name, "err", err)
		}
	}
	return nil
}
