package device

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"energylogger/pkg/runtime/constant"
	"energylogger/pkg/storage"
	v1 "energylogger/pkg/v1"
	"k8s.io/klog/v2"
)

type Option func(*Registry)

// WithRegisterMapDir resolves relative register map references against dir
// instead of the directory of the device file.
func WithRegisterMapDir(dir string) Option {
	return func(r *Registry) {
		r.mapDir = dir
	}
}

// Status is the last observed outcome of one device, for reporting.
type Status struct {
	Device    *v1.Device `json:"device"`
	State     State      `json:"state"`
	LastCycle time.Time  `json:"lastCycle,omitempty"`
	ReadTime  float64    `json:"readTime"`
	Absent    int        `json:"absent"`
	Error     string     `json:"error,omitempty"`
}

// Registry serves the device list and register maps, reloading each from
// disk when its modification time changes.
type Registry struct {
	devices *storage.ConfigStore[*v1.DeviceList]
	mapDir  string

	mu     *sync.Mutex
	maps   map[string]*storage.ConfigStore[*v1.RegisterMap]
	status map[int]*Status
}

func NewRegistry(path string, serialPort string, opts ...Option) *Registry {
	r := &Registry{
		devices: storage.NewConfigStore(path, func(data []byte) (*v1.DeviceList, error) {
			return v1.ParseDevices(data, serialPort)
		}),
		mapDir: filepath.Dir(path),
		mu:     &sync.Mutex{},
		maps:   make(map[string]*storage.ConfigStore[*v1.RegisterMap], 0),
		status: make(map[int]*Status, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init loads the device file and every register map it references. Any
// failure is a configuration error.
func (r *Registry) Init() error {
	dl, err := r.devices.Load()
	if err != nil {
		return err
	}
	for _, d := range dl.Devices {
		if _, err := r.RegisterMap(d); err != nil {
			return err
		}
	}
	r.refreshStatus(dl.Devices)
	klog.V(1).InfoS("Loaded devices", "path", r.devices.Path(), "count", len(dl.Devices))
	return nil
}

// Devices returns the device list in definition order, reloading it first if
// the file changed. A failed reload keeps the previous list.
func (r *Registry) Devices() []*v1.Device {
	dl, changed := r.devices.ReloadIfChanged()
	if dl == nil {
		return nil
	}
	if changed {
		klog.V(3).InfoS("Device list changed", "count", len(dl.Devices))
		r.refreshStatus(dl.Devices)
	}
	return dl.Devices
}

// RegisterMap returns the register map of a device. Errors wrap
// constant.ErrConfig and only occur when the map never loaded.
func (r *Registry) RegisterMap(d *v1.Device) (*v1.RegisterMap, error) {
	path := d.Type
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.mapDir, path)
	}

	r.mu.Lock()
	cs, ok := r.maps[path]
	if !ok {
		cs = storage.NewConfigStore(path, v1.ParseRegisterMap)
		r.maps[path] = cs
	}
	r.mu.Unlock()

	rm, changed := cs.ReloadIfChanged()
	if rm == nil {
		return nil, fmt.Errorf("%w: register map %s of %s: %s", constant.ErrConfig, path, d, cs.Info().LastError)
	}
	if changed {
		for _, w := range rm.Warnings {
			klog.InfoS("Register group does not fit its decode type", "path", path, "warning", w)
		}
	}
	return rm, nil
}

func (r *Registry) Report(id int, st *Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st.Device == nil {
		old, ok := r.status[id]
		if !ok {
			return
		}
		st.Device = old.Device
	}
	r.status[id] = st
}

func (r *Registry) GetStatus(id int) (*Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.status[id]
	if !ok {
		return nil, false
	}
	cp := *st
	return &cp, true
}

// List returns the status of every known device matching the filter,
// ordered by id.
func (r *Registry) List(filter *Filter) []*Status {
	predicates := ParseFilter(filter)

	r.mu.Lock()
	defer r.mu.Unlock()
	sts := make([]*Status, 0, len(r.status))
	for _, st := range r.status {
		isMatch := true
		for _, p := range predicates {
			if !p(st.Device) {
				isMatch = false
				break
			}
		}
		if isMatch {
			cp := *st
			sts = append(sts, &cp)
		}
	}
	sort.Slice(sts, func(i, j int) bool { return sts[i].Device.ID < sts[j].Device.ID })
	return sts
}

func (r *Registry) Info() storage.FileInfo {
	return r.devices.Info()
}

// refreshStatus drops devices no longer defined and adds new ones as pending.
func (r *Registry) refreshStatus(devices []*v1.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[int]*Status, len(devices))
	for _, d := range devices {
		if st, ok := r.status[d.ID]; ok {
			st.Device = d
			next[d.ID] = st
			continue
		}
		next[d.ID] = &Status{Device: d, State: StatePending}
	}
	r.status = next
}
