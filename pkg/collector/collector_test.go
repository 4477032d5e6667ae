package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"energylogger/pkg/device"
	"energylogger/pkg/runtime"
	"energylogger/pkg/runtime/constant"
	v1 "energylogger/pkg/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sdm120 = &v1.RegisterMap{Groups: []v1.RegisterGroup{
	{Name: "Voltage", Start: 10, Count: 2, Decode: constant.FloatBE32},
	{Name: "Energy", Start: 20, Count: 4, Decode: constant.Unsigned64},
	{Name: "Status", Start: 30, Count: 2, Decode: constant.RawPassthrough},
}}

func meterReads(slave uint8, fc constant.FunctionCode, start, count uint16) ([]uint16, error) {
	switch start {
	case 10:
		return []uint16{0x4048, 0xF5C3}, nil
	case 20:
		return []uint16{0, 0, 0, 42}, nil
	case 30:
		return []uint16{1, 2}, nil
	}
	return nil, errTimeout
}

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func newTestCollector(source DeviceSource, opener *fakeOpener, opts ...Option) (*Collector, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reader := NewReader(nil)
	reader.Sleep = clock.Sleep
	opts = append([]Option{WithReader(reader), WithClock(clock.Now, clock.Sleep)}, opts...)
	return NewCollector(source, opener, nil, opts...), clock
}

func TestPollSingleDevice(t *testing.T) {
	opener := newFakeOpener()
	opener.reads[1] = meterReads
	source := newFakeSource(map[string]*v1.RegisterMap{"sdm120": sdm120}, rtuDevice(1, "/dev/ttyUSB0", "sdm120"))
	c, clock := newTestCollector(source, opener)

	records := c.Poll(context.Background())
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, 1, r.ID)
	require.Len(t, r.Values, 3)
	assert.Equal(t, "Voltage", r.Values[0].Name)
	assert.InDelta(t, 3.14, r.Values[0].Value.(float32), 1e-6)
	assert.Equal(t, uint64(42), r.Values[1].Value)
	assert.Equal(t, []uint16{1, 2}, r.Values[2].Value)

	// pause between the three groups, none before the first
	assert.Equal(t, []time.Duration{DefaultInterReadPause, DefaultInterReadPause}, clock.slept)
	assert.Equal(t, 2*DefaultInterReadPause, r.ReadTime)
	assert.True(t, opener.sessions[1].closed)

	st := source.status[1]
	require.NotNil(t, st)
	assert.Equal(t, device.StateDone, st.State)
	assert.Equal(t, 0, st.Absent)
}

func TestPollAbsentValue(t *testing.T) {
	opener := newFakeOpener()
	opener.reads[1] = func(slave uint8, fc constant.FunctionCode, start, count uint16) ([]uint16, error) {
		if start == 10 {
			return nil, errTimeout
		}
		return meterReads(slave, fc, start, count)
	}
	source := newFakeSource(map[string]*v1.RegisterMap{"sdm120": sdm120}, rtuDevice(1, "/dev/ttyUSB0", "sdm120"))
	c, clock := newTestCollector(source, opener)

	records := c.Poll(context.Background())
	require.Len(t, records, 1)
	r := records[0]
	assert.False(t, r.Present("Voltage"))
	v, ok := r.Get("Voltage")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.True(t, r.Present("Energy"))
	assert.True(t, r.Present("Status"))
	// 3 attempts on the first group, one each on the others
	assert.Equal(t, 5, opener.sessions[1].Calls())
	assert.Equal(t, []time.Duration{retryBackoff, retryBackoff, DefaultInterReadPause, DefaultInterReadPause}, clock.slept)
	assert.Equal(t, 1, source.status[1].Absent)
}

func TestPollOpenFailure(t *testing.T) {
	opener := newFakeOpener()
	opener.failOpen[1] = true
	opener.reads[2] = meterReads
	source := newFakeSource(map[string]*v1.RegisterMap{"sdm120": sdm120},
		rtuDevice(1, "/dev/ttyUSB0", "sdm120"),
		rtuDevice(2, "/dev/ttyUSB0", "sdm120"))
	c, _ := newTestCollector(source, opener)

	records := c.Poll(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].ID)
	assert.Equal(t, device.StateFailed, source.status[1].State)
	assert.NotEmpty(t, source.status[1].Error)
	assert.Equal(t, device.StateDone, source.status[2].State)
}

func TestPollRegisterMapFailure(t *testing.T) {
	opener := newFakeOpener()
	opener.reads[2] = meterReads
	source := newFakeSource(map[string]*v1.RegisterMap{"sdm120": sdm120},
		rtuDevice(1, "/dev/ttyUSB0", "missing"),
		rtuDevice(2, "/dev/ttyUSB0", "sdm120"))
	c, _ := newTestCollector(source, opener)

	records := c.Poll(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, []int{2}, opener.opened)
	assert.Equal(t, device.StateFailed, source.status[1].State)
}

func TestPollDuplicateAddress(t *testing.T) {
	opener := newFakeOpener()
	opener.reads[1] = meterReads
	source := newFakeSource(map[string]*v1.RegisterMap{"sdm120": sdm120},
		rtuDevice(1, "/dev/ttyUSB0", "sdm120"),
		rtuDevice(1, "/dev/ttyUSB1", "sdm120"))
	c, _ := newTestCollector(source, opener)

	records := c.Poll(context.Background())
	assert.Len(t, records, 1)
	assert.Equal(t, []int{1}, opener.opened)
}

func TestPollRecoversPanic(t *testing.T) {
	opener := newFakeOpener()
	opener.reads[1] = func(uint8, constant.FunctionCode, uint16, uint16) ([]uint16, error) {
		panic("driver bug")
	}
	opener.reads[2] = meterReads
	source := newFakeSource(map[string]*v1.RegisterMap{"sdm120": sdm120},
		rtuDevice(1, "/dev/ttyUSB0", "sdm120"),
		rtuDevice(2, "/dev/ttyUSB0", "sdm120"))
	c, _ := newTestCollector(source, opener)

	var records []*runtime.DeviceRecord
	assert.NotPanics(t, func() {
		records = c.Poll(context.Background())
	})
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].ID)
	assert.Equal(t, device.StateFailed, source.status[1].State)
	assert.Contains(t, source.status[1].Error, "driver bug")
	assert.True(t, opener.sessions[1].closed)
}

func TestPollParallelLinks(t *testing.T) {
	opener := newFakeOpener()
	opener.hold = 5 * time.Millisecond
	devices := []*v1.Device{
		rtuDevice(1, "/dev/ttyUSB0", "sdm120"),
		rtuDevice(2, "/dev/ttyUSB1", "sdm120"),
		rtuDevice(3, "/dev/ttyUSB0", "sdm120"),
		rtuDevice(4, "/dev/ttyUSB1", "sdm120"),
		rtuDevice(5, "/dev/ttyUSB2", "sdm120"),
	}
	for _, d := range devices {
		opener.reads[d.ID] = meterReads
	}
	source := newFakeSource(map[string]*v1.RegisterMap{"sdm120": sdm120}, devices...)
	c, _ := newTestCollector(source, opener, WithParallelLinks(true))

	records := c.Poll(context.Background())
	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, i+1, r.ID)
	}
	for link, n := range opener.maxActive {
		assert.Equal(t, 1, n, link)
	}
	assert.Len(t, source.status, 5)
}

func TestPollCanceled(t *testing.T) {
	opener := newFakeOpener()
	opener.reads[1] = meterReads
	source := newFakeSource(map[string]*v1.RegisterMap{"sdm120": sdm120}, rtuDevice(1, "/dev/ttyUSB0", "sdm120"))
	c, _ := newTestCollector(source, opener)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, c.Poll(ctx))
	assert.Empty(t, opener.opened)
}

func TestPollTcpKeepsInterReadPause(t *testing.T) {
	opener := newFakeOpener()
	opener.reads[9] = meterReads
	d := &v1.Device{ID: 9, Transport: constant.TransportTcp, Host: "10.0.0.9", Type: "sdm120"}
	d.SetDefaults("")
	source := newFakeSource(map[string]*v1.RegisterMap{"sdm120": sdm120}, d)
	c, clock := newTestCollector(source, opener, WithInterReadPause(50*time.Millisecond))

	require.Len(t, c.Poll(context.Background()), 1)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond}, clock.slept)
}
