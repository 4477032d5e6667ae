package options

import (
	"context"
	"time"

	"energylogger/cmd/energylogger/config"
	"energylogger/pkg/collector"
	"energylogger/pkg/device"
	"energylogger/pkg/generic"
	baseoptions "energylogger/pkg/generic/options"
	"energylogger/pkg/host"
	"energylogger/pkg/metric"
	"energylogger/pkg/protocol/modbus"
	"energylogger/pkg/scheduler"
	"energylogger/pkg/sink"
	"energylogger/pkg/utils/fileutil"
	"github.com/spf13/pflag"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
)

type Options struct {
	Devices                 string          `json:"devices"`
	Sinks                   string          `json:"sinks"`
	RegisterMapDir          string          `json:"registerMapDir,omitempty"`
	Interval                metav1.Duration `json:"interval"`
	MaxCycles               int             `json:"maxCycles"`
	SerialPort              string          `json:"serialPort"`
	InterReadPause          metav1.Duration `json:"interReadPause"`
	ParallelLinks           bool            `json:"parallelLinks"`
	ResetCountdownsOnReload bool            `json:"resetCountdownsOnReload"`
	Port                    string          `json:"port,omitempty"`
	CertFile                string          `json:"certFile,omitempty"`
	KeyFile                 string          `json:"keyFile,omitempty"`
	LockFile                string          `json:"lockFile,omitempty"`
	Wait                    metav1.Duration `json:"gracefulTimeout"`
	baseoptions.BaseOptions
}

const (
	_defaultDevices    = "devices.yml"
	_defaultSinks      = "sinks.yml"
	_defaultInterval   = 60 * time.Second
	_defaultSerialPort = "/dev/ttyUSB0"
	_defaultWait       = 15 * time.Second
)

func NewDefaultOptions() *Options {
	return &Options{
		Devices:        _defaultDevices,
		Sinks:          _defaultSinks,
		Interval:       metav1.Duration{Duration: _defaultInterval},
		SerialPort:     _defaultSerialPort,
		InterReadPause: metav1.Duration{Duration: collector.DefaultInterReadPause},
		Wait:           metav1.Duration{Duration: _defaultWait},
		BaseOptions:    baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Devices, "devices", o.Devices, "Device definition file. Reloaded when its modification time changes.")
	fs.StringVar(&o.Sinks, "sinks", o.Sinks, "Sink definition file. Reloaded when its modification time changes.")
	fs.StringVar(&o.RegisterMapDir, "register-map-dir", o.RegisterMapDir, "Directory relative register map references are resolved against. Defaults to the directory of the device file.")
	fs.DurationVar(&o.Interval.Duration, "interval", o.Interval.Duration, "Device readout interval, e.g. 60s or 5m.")
	fs.IntVar(&o.MaxCycles, "max-cycles", o.MaxCycles, "Stop after this many cycles. 0 runs until interrupted.")
	fs.StringVar(&o.SerialPort, "serial-port", o.SerialPort, "Serial port used by rtu devices that do not name one.")
	fs.DurationVar(&o.InterReadPause.Duration, "inter-read-pause", o.InterReadPause.Duration, "Pause between two register group reads of one device.")
	fs.BoolVar(&o.ParallelLinks, "parallel-links", o.ParallelLinks, "Read devices on distinct links concurrently.")
	fs.BoolVar(&o.ResetCountdownsOnReload, "reset-countdowns-on-reload", o.ResetCountdownsOnReload, "Restart every sink cadence when the sink file is reloaded, instead of keeping the phase of unchanged sinks.")
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port of the status HTTP server. Empty disables the server.")
	fs.StringVar(&o.CertFile, "tls-cert-file", o.CertFile, "x509 certificate of the status HTTP server.")
	fs.StringVar(&o.KeyFile, "tls-private-key-file", o.KeyFile, "x509 private key matching --tls-cert-file.")
	fs.StringVar(&o.LockFile, "lock-file", o.LockFile, "Refuse to start when another process holds this file. Empty disables the check.")
	fs.DurationVar(&o.Wait.Duration, "graceful-timeout", o.Wait.Duration, "The duration for which the process gracefully waits for in flight sink writes to finish - e.g. 15s or 1m")
}

// Config builds every component. Definition files are loaded here, so a
// missing or invalid file fails startup.
func (o *Options) Config() (c *config.Config, err error) {
	c = &config.Config{CertFile: o.CertFile, KeyFile: o.KeyFile}
	if len(o.LockFile) > 0 {
		var lock fileutil.Releaser
		var existed bool
		if lock, existed, err = fileutil.Flock(o.LockFile); err != nil {
			return nil, err
		}
		if existed {
			klog.V(1).InfoS("Lock file left behind, previous run was not shut down cleanly", "file", o.LockFile)
		}
		c.Lock = lock
		defer func() {
			if err != nil {
				_ = lock.Release()
			}
		}()
	}

	if c.Metrics, err = metric.New(); err != nil {
		return nil, err
	}

	var deviceOpts []device.Option
	if len(o.RegisterMapDir) > 0 {
		deviceOpts = append(deviceOpts, device.WithRegisterMapDir(o.RegisterMapDir))
	}
	c.Devices = device.NewRegistry(o.Devices, o.SerialPort, deviceOpts...)
	if err = c.Devices.Init(); err != nil {
		return nil, err
	}
	c.Sinks = sink.NewRegistry(o.Sinks, generic.SinkTypeMap,
		sink.WithResetCountdownsOnReload(o.ResetCountdownsOnReload),
		sink.WithCycleInterval(o.Interval.Duration),
	)
	if err = c.Sinks.Init(); err != nil {
		return nil, err
	}

	c.Collector = collector.NewCollector(c.Devices, modbus.NewOpener(), c.Metrics,
		collector.WithInterReadPause(o.InterReadPause.Duration),
		collector.WithParallelLinks(o.ParallelLinks),
	)
	c.Dispatcher = sink.NewDispatcher(c.Sinks, c.Metrics)
	c.Scheduler = scheduler.New(o.Interval.Duration, cycle(c),
		scheduler.WithMaxCycles(o.MaxCycles),
		scheduler.WithMetrics(c.Metrics),
	)
	c.Host = host.NewManager()
	return c, nil
}

func cycle(c *config.Config) scheduler.Cycle {
	return func(ctx context.Context, n int, start time.Time) error {
		records := c.Collector.Poll(ctx)
		fired := c.Dispatcher.Dispatch(ctx, records, start)
		klog.V(3).InfoS("Dispatched cycle", "cycle", n, "devices", len(records), "sinks", fired)
		return nil
	}
}
