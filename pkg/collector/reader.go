package collector

import (
	"time"

	"energylogger/pkg/decoder"
	"energylogger/pkg/metric"
	"energylogger/pkg/protocol/modbus"
	v1 "energylogger/pkg/v1"
	"k8s.io/klog/v2"
)

// Reader reads and decodes one register group, retrying a fixed number of
// times. It never returns an error: a group that cannot be read is absent.
type Reader struct {
	Attempts int
	Backoff  time.Duration
	Sleep    func(time.Duration)
	Metrics  *metric.Metrics
}

func NewReader(m *metric.Metrics) *Reader {
	return &Reader{
		Attempts: retryBudget,
		Backoff:  retryBackoff,
		Sleep:    time.Sleep,
		Metrics:  m,
	}
}

// ReadWithRetry returns the decoded value and true, or nil and false once
// every attempt failed.
func (r *Reader) ReadWithRetry(s modbus.Session, d *v1.Device, g v1.RegisterGroup) (interface{}, bool) {
	for i := 0; i < r.Attempts; i++ {
		if i > 0 {
			r.Sleep(r.Backoff)
		}
		value, err := r.read(s, d, g)
		if err == nil {
			return value, true
		}
		klog.V(2).InfoS("Failed to read register group", "device", d, "measurement", g.Name,
			"start", g.Start, "count", g.Count, "attempt", i+1, "err", err)
		r.Metrics.RecordReadFailure(d.String(), err)
	}
	klog.V(2).InfoS("Register group unavailable this cycle", "device", d, "measurement", g.Name, "attempts", r.Attempts)
	return nil, false
}

func (r *Reader) read(s modbus.Session, d *v1.Device, g v1.RegisterGroup) (interface{}, error) {
	words, err := s.ReadRegisters(uint8(d.ID), d.Function, g.Start, g.Count)
	if err != nil {
		return nil, err
	}
	return decoder.Decode(words, g.Decode)
}
