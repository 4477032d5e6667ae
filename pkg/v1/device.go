package v1

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"energylogger/pkg/runtime/constant"
	"sigs.k8s.io/yaml"
)

const (
	DefaultBaudRate = 9600
	DefaultByteSize = 8
	DefaultTimeout  = time.Second
	DefaultTcpPort  = 502
)

// Seconds is a duration written as a (fractional) number of seconds.
type Seconds time.Duration

func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(s).Seconds())
}

func (s *Seconds) UnmarshalJSON(bytes []byte) error {
	var f float64
	if err := json.Unmarshal(bytes, &f); err != nil {
		return fmt.Errorf("timeout must be a number of seconds: %w", err)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid timeout %v", f)
	}
	*s = Seconds(f * float64(time.Second))
	return nil
}

// Device describes one field device and the link it is reached over.
type Device struct {
	ID        int                    `json:"id"`
	Name      string                 `json:"name"`
	Transport constant.TransportKind `json:"transport"`
	// serial link, used by rtu
	Port     string            `json:"port,omitempty"`
	BaudRate int               `json:"baudrate,omitempty"`
	ByteSize int               `json:"bytesize,omitempty"`
	Parity   constant.Parity   `json:"parity"`
	StopBits constant.StopBits `json:"stopbits"`
	// network endpoint, used by tcp and rtuovertcp
	Host     string                `json:"host,omitempty"`
	TcpPort  int                   `json:"tcpPort,omitempty"`
	Function constant.FunctionCode `json:"function"`
	Timeout  Seconds               `json:"timeout"`
	// register map reference
	Type string `json:"type"`
}

type DeviceList struct {
	Devices []*Device `json:"devices"`
}

// Link names the physical link the device is reached over. Devices sharing a
// link must never be read concurrently.
func (d *Device) Link() string {
	if d.Transport.Networked() {
		return net.JoinHostPort(d.Host, strconv.Itoa(d.TcpPort))
	}
	return d.Port
}

func (d *Device) String() string {
	if d.Name != "" {
		return d.Name
	}
	return "device-" + strconv.Itoa(d.ID)
}

func (d *Device) SetDefaults(serialPort string) {
	if d.Function == 0 {
		d.Function = constant.ReadHoldRegister
	}
	if d.Timeout == 0 {
		d.Timeout = Seconds(DefaultTimeout)
	}
	switch d.Transport {
	case constant.TransportRtu:
		if d.Port == "" {
			d.Port = serialPort
		}
		if d.BaudRate == 0 {
			d.BaudRate = DefaultBaudRate
		}
		if d.ByteSize == 0 {
			d.ByteSize = DefaultByteSize
		}
	case constant.TransportTcp, constant.TransportRtuOverTcp:
		if d.TcpPort == 0 {
			d.TcpPort = DefaultTcpPort
		}
	}
}

// ParseDevices decodes a device definition file, applies defaults and
// validates the result.
func ParseDevices(data []byte, serialPort string) (*DeviceList, error) {
	dl := &DeviceList{}
	if err := yaml.Unmarshal(data, dl); err != nil {
		return nil, err
	}
	for _, d := range dl.Devices {
		if d != nil {
			d.SetDefaults(serialPort)
		}
	}
	if errs := ValidateDeviceList(dl); len(errs) > 0 {
		return nil, errs.ToAggregate()
	}
	return dl, nil
}
