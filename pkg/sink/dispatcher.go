package sink

import (
	"context"
	"fmt"
	"time"

	"energylogger/pkg/metric"
	"energylogger/pkg/runtime"
	"energylogger/pkg/runtime/constant"
	"k8s.io/klog/v2"
)

// Dispatcher fans the records of one cycle out to every sink whose
// countdown expired.
type Dispatcher struct {
	registry *Registry
	metrics  *metric.Metrics
	now      func() time.Time
}

func NewDispatcher(registry *Registry, m *metric.Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, metrics: m, now: time.Now}
}

// Dispatch advances every countdown and starts the writes that are due. It
// returns the names of the sinks written to without waiting for the writes.
// A sink whose previous write has not returned yet is skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, records []*runtime.DeviceRecord, cycleStart time.Time) []string {
	r := d.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sync()

	if len(records) == 0 {
		klog.V(2).InfoS("No device records this cycle", "cycleStart", cycleStart)
	}

	fired := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		e.countdown--
		if e.countdown > 0 {
			d.metrics.SetCountdown(e.def.Name, e.countdown)
			continue
		}
		e.countdown = e.def.Cadence
		d.metrics.SetCountdown(e.def.Name, e.countdown)

		if !e.inFlight.CAS(false, true) {
			e.skipped.Inc()
			d.metrics.RecordSinkSkipped(e.def.Name)
			klog.V(2).InfoS("Skipped sink write", "sink", e.def.Name, "err", constant.ErrSinkWriteActive)
			continue
		}
		points := runtime.ToPoints(records, Measurement(e.def), cycleStart)
		e.wg.Add(1)
		go d.write(ctx, e, points)
		fired = append(fired, e.def.Name)
	}
	return fired
}

func (d *Dispatcher) write(ctx context.Context, e *entry, points []runtime.Point) {
	start := d.now()
	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s panicked: %v", constant.ErrSinkWrite, e.def.Name, p)
		}
		d.finish(e, len(points), d.now().Sub(start), err)
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err = e.sink.Write(ctx, points); err != nil {
		err = fmt.Errorf("%w: %s: %w", constant.ErrSinkWrite, e.def.Name, err)
	}
}

func (d *Dispatcher) finish(e *entry, n int, duration time.Duration, err error) {
	defer e.wg.Done()
	defer e.inFlight.Store(false)

	d.metrics.RecordSinkWrite(e.def.Name, duration, err)
	if err != nil {
		e.failures.Inc()
		e.lastError.Store(err.Error())
		klog.V(2).InfoS("Failed to write to sink", "sink", e.def.Name, "points", n, "err", err)
		return
	}
	e.writes.Inc()
	e.lastWrite.Store(d.now().UnixNano())
	e.lastError.Store("")
	klog.V(4).InfoS("Wrote to sink", "sink", e.def.Name, "points", n, "duration", duration)
}

// Wait blocks until every write started so far returned.
func (d *Dispatcher) Wait() {
	d.registry.mu.Lock()
	entries := append([]*entry(nil), d.registry.entries...)
	d.registry.mu.Unlock()
	for _, e := range entries {
		e.wg.Wait()
	}
}
