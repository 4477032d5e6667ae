package v1

import (
	"testing"
	"time"

	"energylogger/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devicesYaml = `
devices:
  - id: 1
    name: main
    type: sdm120.yml
  - id: 2
    name: pump
    transport: tcp
    host: 10.0.0.5
    function: input
    timeout: 0.5
    type: sdm630.yml
  - id: 3
    transport: rtuovertcp
    host: gw.local
    tcpPort: 4001
    parity: E
    stopbits: 2
    function: 4
    type: sdm630.yml
`

func TestParseDevices(t *testing.T) {
	dl, err := ParseDevices([]byte(devicesYaml), "/dev/ttyUSB0")
	require.NoError(t, err)
	require.Len(t, dl.Devices, 3)

	d := dl.Devices[0]
	assert.Equal(t, constant.TransportRtu, d.Transport)
	assert.Equal(t, "/dev/ttyUSB0", d.Port)
	assert.Equal(t, 9600, d.BaudRate)
	assert.Equal(t, 8, d.ByteSize)
	assert.Equal(t, constant.NoParity, d.Parity)
	assert.Equal(t, constant.OneStopBit, d.StopBits)
	assert.Equal(t, constant.ReadHoldRegister, d.Function)
	assert.Equal(t, time.Second, d.Timeout.Duration())
	assert.Equal(t, "/dev/ttyUSB0", d.Link())

	d = dl.Devices[1]
	assert.Equal(t, constant.TransportTcp, d.Transport)
	assert.Equal(t, constant.ReadInputRegister, d.Function)
	assert.Equal(t, 500*time.Millisecond, d.Timeout.Duration())
	assert.Equal(t, "10.0.0.5:502", d.Link())

	d = dl.Devices[2]
	assert.Equal(t, constant.TransportRtuOverTcp, d.Transport)
	assert.Equal(t, constant.EvenParity, d.Parity)
	assert.Equal(t, constant.TwoStopBits, d.StopBits)
	assert.Equal(t, "gw.local:4001", d.Link())
	assert.Equal(t, "device-3", d.String())
}

func TestParseDevicesInvalid(t *testing.T) {
	testCases := map[string]string{
		"duplicate id": "devices:\n  - {id: 1, type: a}\n  - {id: 1, type: a}\n",
		"id range":     "devices:\n  - {id: 248, type: a}\n",
		"no type":      "devices:\n  - {id: 1}\n",
		"no host":      "devices:\n  - {id: 1, transport: tcp, type: a}\n",
		"transport":    "devices:\n  - {id: 1, transport: udp, type: a}\n",
		"parity":       "devices:\n  - {id: 1, parity: X, type: a}\n",
		"function":     "devices:\n  - {id: 1, function: 6, type: a}\n",
		"timeout":      "devices:\n  - {id: 1, timeout: fast, type: a}\n",
		"syntax":       "devices: [",
	}
	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDevices([]byte(content), "/dev/ttyS0")
			assert.Error(t, err)
		})
	}
}

func TestParseDevicesNoSerialPort(t *testing.T) {
	_, err := ParseDevices([]byte("devices:\n  - {id: 1, type: a}\n"), "")
	assert.Error(t, err)
}

func TestParseRegisterMap(t *testing.T) {
	rm, err := ParseRegisterMap([]byte(`
Voltage: [0, 2, 1]
Current: [6, 2, float_be32]
Energy: [342, 4, 6]
Status: [10, 3, raw_passthrough]
Frequency: [70, 2, 7]
`))
	require.NoError(t, err)
	require.Len(t, rm.Groups, 5)
	names := make([]string, 0, len(rm.Groups))
	for _, g := range rm.Groups {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"Voltage", "Current", "Energy", "Status", "Frequency"}, names)
	assert.Equal(t, RegisterGroup{Name: "Energy", Start: 342, Count: 4, Decode: constant.Unsigned64}, rm.Groups[2])
	assert.Equal(t, constant.FloatWordSwapped, rm.Groups[4].Decode)
	assert.Empty(t, rm.Warnings)
}

func TestParseRegisterMapWidthWarning(t *testing.T) {
	rm, err := ParseRegisterMap([]byte("Voltage: [0, 1, 1]\n"))
	require.NoError(t, err)
	require.Len(t, rm.Groups, 1)
	assert.Len(t, rm.Warnings, 1)
}

func TestParseRegisterMapInvalid(t *testing.T) {
	for _, content := range []string{
		"Voltage: [0, 2, 8]\n",
		"Voltage: [0, 2, 0]\n",
		"Voltage: [0, 2, double]\n",
		"Voltage: [0, 2]\n",
		"Voltage: [-1, 2, 1]\n",
		"Voltage: [0, 0, 1]\n",
		"Voltage: [65535, 2, 1]\n",
		"Voltage: [0, 2, 1]\nVoltage: [2, 2, 1]\n",
		"- [0, 2, 1]\n",
	} {
		_, err := ParseRegisterMap([]byte(content))
		assert.Error(t, err, content)
	}
}

func TestParseSinks(t *testing.T) {
	sl, err := ParseSinks([]byte(`
sinks:
  - name: influx
    type: influxdb
    params:
      url: http://localhost:8086
  - name: broker
    type: mqtt
    cadence: 5
    writeTimeout: 3s
`), []string{"influxdb", "mqtt"})
	require.NoError(t, err)
	require.Len(t, sl.Sinks, 2)
	assert.Equal(t, 1, sl.Sinks[0].Cadence)
	assert.Equal(t, DefaultWriteTimeout, sl.Sinks[0].WriteTimeout.Duration)
	assert.Equal(t, "http://localhost:8086", sl.Sinks[0].Params["url"])
	assert.Equal(t, 5, sl.Sinks[1].Cadence)
	assert.Equal(t, 3*time.Second, sl.Sinks[1].WriteTimeout.Duration)
}

func TestParseSinksInvalid(t *testing.T) {
	for _, content := range []string{
		"sinks:\n  - {name: a, type: influxdb, cadence: -1}\n",
		"sinks:\n  - {name: a, type: influxdb}\n  - {name: a, type: influxdb}\n",
		"sinks:\n  - {type: influxdb}\n",
		"sinks:\n  - {name: a, type: kafka}\n",
	} {
		_, err := ParseSinks([]byte(content), []string{"influxdb"})
		assert.Error(t, err, content)
	}
}

func TestSinkEqual(t *testing.T) {
	a := &Sink{Name: "a", Type: "influxdb", Cadence: 2, Params: map[string]interface{}{"url": "x"}}
	b := &Sink{Name: "a", Type: "influxdb", Cadence: 2, Params: map[string]interface{}{"url": "x"}}
	assert.True(t, a.Equal(b))
	b.Params["url"] = "y"
	assert.False(t, a.Equal(b))
	b.Params["url"] = "x"
	b.Cadence = 3
	assert.False(t, a.Equal(b))
}
