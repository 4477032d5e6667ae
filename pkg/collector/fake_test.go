package collector

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"energylogger/pkg/device"
	"energylogger/pkg/protocol/modbus"
	"energylogger/pkg/runtime/constant"
	v1 "energylogger/pkg/v1"
)

type readFunc func(slave uint8, fc constant.FunctionCode, start, count uint16) ([]uint16, error)

type fakeSession struct {
	mu     sync.Mutex
	read   readFunc
	calls  int
	closed bool
}

func (s *fakeSession) ReadRegisters(slave uint8, fc constant.FunctionCode, start, count uint16) ([]uint16, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.read(slave, fc, start, count)
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSession) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errTimeout = fmt.Errorf("%w: i/o timeout", constant.ErrTransport)

type fakeOpener struct {
	mu       sync.Mutex
	reads    map[int]readFunc
	failOpen map[int]bool
	sessions map[int]*fakeSession
	opened   []int
	// concurrent sessions per link
	active    map[string]int
	maxActive map[string]int
	hold      time.Duration
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		reads:     map[int]readFunc{},
		failOpen:  map[int]bool{},
		sessions:  map[int]*fakeSession{},
		active:    map[string]int{},
		maxActive: map[string]int{},
	}
}

func (o *fakeOpener) Open(d *v1.Device) (modbus.Session, error) {
	o.mu.Lock()
	o.opened = append(o.opened, d.ID)
	if o.failOpen[d.ID] {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: open %s: no such device", constant.ErrTransport, d.Link())
	}
	read, ok := o.reads[d.ID]
	if !ok {
		read = func(uint8, constant.FunctionCode, uint16, uint16) ([]uint16, error) {
			return nil, errors.New("no reads configured")
		}
	}
	link := d.Link()
	o.active[link]++
	if o.active[link] > o.maxActive[link] {
		o.maxActive[link] = o.active[link]
	}
	o.mu.Unlock()

	s := &fakeSession{read: read}
	o.mu.Lock()
	o.sessions[d.ID] = s
	o.mu.Unlock()
	return &trackedSession{fakeSession: s, release: func() {
		o.mu.Lock()
		o.active[link]--
		o.mu.Unlock()
	}, hold: o.hold}, nil
}

type trackedSession struct {
	*fakeSession
	release func()
	hold    time.Duration
}

func (s *trackedSession) Close() error {
	if s.hold > 0 {
		time.Sleep(s.hold)
	}
	s.release()
	return s.fakeSession.Close()
}

type fakeSource struct {
	mu      sync.Mutex
	devices []*v1.Device
	maps    map[string]*v1.RegisterMap
	status  map[int]*device.Status
}

func newFakeSource(maps map[string]*v1.RegisterMap, devices ...*v1.Device) *fakeSource {
	return &fakeSource{devices: devices, maps: maps, status: map[int]*device.Status{}}
}

func (s *fakeSource) Devices() []*v1.Device {
	return s.devices
}

func (s *fakeSource) RegisterMap(d *v1.Device) (*v1.RegisterMap, error) {
	rm, ok := s.maps[d.Type]
	if !ok {
		return nil, fmt.Errorf("%w: register map %s missing", constant.ErrConfig, d.Type)
	}
	return rm, nil
}

func (s *fakeSource) Report(id int, st *device.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = st
}

func rtuDevice(id int, port string, typ string) *v1.Device {
	d := &v1.Device{ID: id, Name: fmt.Sprintf("meter-%d", id), Port: port, Type: typ}
	d.SetDefaults("")
	return d
}
