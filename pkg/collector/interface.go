package collector

import (
	"energylogger/pkg/device"
	v1 "energylogger/pkg/v1"
)

// DeviceSource is the view of the device registry a cycle works from.
type DeviceSource interface {
	Devices() []*v1.Device
	RegisterMap(d *v1.Device) (*v1.RegisterMap, error)
	Report(id int, st *device.Status)
}
