package generic

import (
	"energylogger/pkg/sink"
	"energylogger/pkg/sink/influxdb"
	"energylogger/pkg/sink/mqtt"
	"energylogger/pkg/sink/nats"
)

// SinkTypeMap lists the sink types a sink definition may name.
var SinkTypeMap = sink.Factories{
	influxdb.Type: influxdb.New,
	mqtt.Type:     mqtt.New,
	nats.Type:     nats.New,
}
