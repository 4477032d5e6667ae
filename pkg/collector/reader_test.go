package collector

import (
	"testing"
	"time"

	"energylogger/pkg/runtime/constant"
	v1 "energylogger/pkg/v1"
	"github.com/stretchr/testify/assert"
)

func newTestReader() (*Reader, *[]time.Duration) {
	var slept []time.Duration
	r := NewReader(nil)
	r.Sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

var voltage = v1.RegisterGroup{Name: "Voltage", Start: 10, Count: 2, Decode: constant.FloatBE32}

func TestReadWithRetrySuccess(t *testing.T) {
	r, slept := newTestReader()
	s := &fakeSession{read: func(slave uint8, fc constant.FunctionCode, start, count uint16) ([]uint16, error) {
		assert.Equal(t, uint8(1), slave)
		assert.Equal(t, constant.ReadHoldRegister, fc)
		assert.Equal(t, uint16(10), start)
		assert.Equal(t, uint16(2), count)
		return []uint16{0x4048, 0xF5C3}, nil
	}}

	v, ok := r.ReadWithRetry(s, rtuDevice(1, "/dev/ttyUSB0", "a"), voltage)
	assert.True(t, ok)
	assert.InDelta(t, 3.14, v.(float32), 1e-6)
	assert.Equal(t, 1, s.Calls())
	assert.Empty(t, *slept)
}

func TestReadWithRetryExhausted(t *testing.T) {
	r, slept := newTestReader()
	s := &fakeSession{read: func(uint8, constant.FunctionCode, uint16, uint16) ([]uint16, error) {
		return nil, errTimeout
	}}

	var v interface{}
	var ok bool
	assert.NotPanics(t, func() {
		v, ok = r.ReadWithRetry(s, rtuDevice(1, "/dev/ttyUSB0", "a"), voltage)
	})
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 3, s.Calls())
	assert.Equal(t, []time.Duration{retryBackoff, retryBackoff}, *slept)
}

func TestReadWithRetryRecovers(t *testing.T) {
	r, _ := newTestReader()
	n := 0
	s := &fakeSession{read: func(uint8, constant.FunctionCode, uint16, uint16) ([]uint16, error) {
		n++
		if n < 3 {
			return nil, errTimeout
		}
		return []uint16{0, 7}, nil
	}}

	v, ok := r.ReadWithRetry(s, rtuDevice(1, "/dev/ttyUSB0", "a"), v1.RegisterGroup{Name: "Count", Start: 0, Count: 2, Decode: constant.RawUnsigned32})
	assert.True(t, ok)
	assert.Equal(t, uint32(7), v)
	assert.Equal(t, 3, s.Calls())
}

func TestReadWithRetryDecodeError(t *testing.T) {
	r, _ := newTestReader()
	// a one word answer never fits a float
	s := &fakeSession{read: func(uint8, constant.FunctionCode, uint16, uint16) ([]uint16, error) {
		return []uint16{1}, nil
	}}

	v, ok := r.ReadWithRetry(s, rtuDevice(1, "/dev/ttyUSB0", "a"), v1.RegisterGroup{Name: "Bad", Start: 0, Count: 1, Decode: constant.FloatBE32})
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 3, s.Calls())
}

func TestReadWithRetryProtocolError(t *testing.T) {
	r, _ := newTestReader()
	s := &fakeSession{read: func(uint8, constant.FunctionCode, uint16, uint16) ([]uint16, error) {
		return nil, constant.ErrProtocol
	}}
	_, ok := r.ReadWithRetry(s, rtuDevice(1, "/dev/ttyUSB0", "a"), voltage)
	assert.False(t, ok)
	assert.Equal(t, 3, s.Calls())
}
