package config

import (
	"energylogger/pkg/collector"
	"energylogger/pkg/device"
	"energylogger/pkg/host"
	"energylogger/pkg/metric"
	"energylogger/pkg/scheduler"
	"energylogger/pkg/sink"
	"energylogger/pkg/utils/fileutil"
)

type Config struct {
	Devices    *device.Registry
	Sinks      *sink.Registry
	Collector  *collector.Collector
	Dispatcher *sink.Dispatcher
	Scheduler  *scheduler.Scheduler
	Metrics    *metric.Metrics
	Host       *host.Manager
	// Lock is nil when no lock file is configured.
	Lock     fileutil.Releaser
	CertFile string
	KeyFile  string
}
