package metric

import (
	"errors"
	"net/http"
	"time"

	"energylogger/pkg/runtime/constant"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "energylogger"

// Metrics holds the Prometheus collectors of the poll loop. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// cycle
	cyclesTotal   *prometheus.CounterVec // By status (ok/error)
	cycleDuration prometheus.Histogram
	cycleOverruns prometheus.Counter

	// devices
	readFailures   *prometheus.CounterVec // By device and error_type
	absentValues   *prometheus.CounterVec // By device
	openFailures   *prometheus.CounterVec // By device
	deviceDuration *prometheus.HistogramVec

	// sinks
	sinkWrites        *prometheus.CounterVec // By sink and status (ok/error/skipped)
	sinkWriteDuration *prometheus.HistogramVec
	sinkCountdown     *prometheus.GaugeVec
}

func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Total number of poll cycles run",
		}, []string{"status"}),

		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		cycleOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "overruns_total",
			Help:      "Total number of cycles that started later than their slot",
		}),

		readFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "read_failures_total",
			Help:      "Total number of failed register read attempts",
		}, []string{"device", "error_type"}), // error_type: transport, protocol, decode

		absentValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "absent_values_total",
			Help:      "Total number of measurements recorded as unavailable",
		}, []string{"device"}),

		openFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "open_failures_total",
			Help:      "Total number of cycles a device was skipped because its link could not be opened",
		}, []string{"device"}),

		deviceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "read_duration_seconds",
			Help:      "Duration of the full read sequence of one device",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"device"}),

		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "writes_total",
			Help:      "Total number of sink writes by outcome",
		}, []string{"sink", "status"}), // status: ok, error, skipped

		sinkWriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "write_duration_seconds",
			Help:      "Sink write duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"sink"}),

		sinkCountdown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "countdown",
			Help:      "Cycles left until the next write of a sink",
		}, []string{"sink"}),
	}

	for _, c := range []prometheus.Collector{
		m.cyclesTotal, m.cycleDuration, m.cycleOverruns,
		m.readFailures, m.absentValues, m.openFailures, m.deviceDuration,
		m.sinkWrites, m.sinkWriteDuration, m.sinkCountdown,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordCycle(duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.cyclesTotal.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordOverrun() {
	if m == nil {
		return
	}
	m.cycleOverruns.Inc()
}

func (m *Metrics) RecordReadFailure(device string, err error) {
	if m == nil {
		return
	}
	m.readFailures.WithLabelValues(device, ErrorType(err)).Inc()
}

func (m *Metrics) RecordDevice(device string, duration time.Duration, absent int) {
	if m == nil {
		return
	}
	m.deviceDuration.WithLabelValues(device).Observe(duration.Seconds())
	m.absentValues.WithLabelValues(device).Add(float64(absent))
}

func (m *Metrics) RecordOpenFailure(device string) {
	if m == nil {
		return
	}
	m.openFailures.WithLabelValues(device).Inc()
}

func (m *Metrics) RecordSinkWrite(sink string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.sinkWrites.WithLabelValues(sink, status).Inc()
	m.sinkWriteDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

func (m *Metrics) RecordSinkSkipped(sink string) {
	if m == nil {
		return
	}
	m.sinkWrites.WithLabelValues(sink, "skipped").Inc()
}

func (m *Metrics) SetCountdown(sink string, countdown int) {
	if m == nil {
		return
	}
	m.sinkCountdown.WithLabelValues(sink).Set(float64(countdown))
}

// ErrorType names the taxonomy class of err for labels and logs.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, constant.ErrProtocol):
		return "protocol"
	case errors.Is(err, constant.ErrDecode):
		return "decode"
	case errors.Is(err, constant.ErrTransport):
		return "transport"
	case errors.Is(err, constant.ErrSinkWrite):
		return "sink"
	case errors.Is(err, constant.ErrConfig):
		return "config"
	}
	return "other"
}
