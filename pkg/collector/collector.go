package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"energylogger/pkg/device"
	"energylogger/pkg/metric"
	"energylogger/pkg/protocol/modbus"
	"energylogger/pkg/runtime"
	"energylogger/pkg/runtime/constant"
	v1 "energylogger/pkg/v1"
	"k8s.io/klog/v2"
)

type Option func(*Collector)

func WithInterReadPause(d time.Duration) Option {
	return func(c *Collector) {
		c.interReadPause = d
	}
}

// WithParallelLinks reads devices on distinct links concurrently. Devices on
// one link are still read one after another.
func WithParallelLinks(parallel bool) Option {
	return func(c *Collector) {
		c.parallelLinks = parallel
	}
}

func WithReader(r *Reader) Option {
	return func(c *Collector) {
		c.reader = r
	}
}

func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(c *Collector) {
		c.now = now
		c.sleep = sleep
	}
}

// Collector runs the read phase of one poll cycle.
type Collector struct {
	source  DeviceSource
	opener  modbus.Opener
	reader  *Reader
	metrics *metric.Metrics

	interReadPause time.Duration
	parallelLinks  bool
	now            func() time.Time
	sleep          func(time.Duration)
}

func NewCollector(source DeviceSource, opener modbus.Opener, m *metric.Metrics, opts ...Option) *Collector {
	c := &Collector{
		source:         source,
		opener:         opener,
		reader:         NewReader(m),
		metrics:        m,
		interReadPause: DefaultInterReadPause,
		now:            time.Now,
		sleep:          time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type job struct {
	device *v1.Device
	rm     *v1.RegisterMap
	err    error
}

type outcome struct {
	record *runtime.DeviceRecord
	status *device.Status
}

// Poll reads every defined device once and returns their records in
// definition order. Devices whose link cannot be opened produce no record.
func (c *Collector) Poll(ctx context.Context) []*runtime.DeviceRecord {
	jobs := c.jobs()
	outcomes := make([]outcome, len(jobs))

	if c.parallelLinks {
		c.pollParallel(ctx, jobs, outcomes)
	} else {
		for i := range jobs {
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = c.pollDevice(jobs[i])
		}
	}

	records := make([]*runtime.DeviceRecord, 0, len(jobs))
	for i, o := range outcomes {
		if o.status == nil {
			continue
		}
		c.source.Report(jobs[i].device.ID, o.status)
		if o.record != nil {
			records = append(records, o.record)
		}
	}
	return records
}

// jobs resolves the register maps of this cycle on the calling goroutine.
func (c *Collector) jobs() []job {
	devices := c.source.Devices()
	jobs := make([]job, 0, len(devices))
	seen := make(map[int]struct{}, len(devices))
	for _, d := range devices {
		if _, ok := seen[d.ID]; ok {
			klog.InfoS("Skipped device with duplicate address", "device", d, "id", d.ID)
			continue
		}
		seen[d.ID] = struct{}{}
		rm, err := c.source.RegisterMap(d)
		jobs = append(jobs, job{device: d, rm: rm, err: err})
	}
	return jobs
}

func (c *Collector) pollParallel(ctx context.Context, jobs []job, outcomes []outcome) {
	links := make(map[string][]int)
	order := make([]string, 0)
	for i, j := range jobs {
		link := j.device.Link()
		if _, ok := links[link]; !ok {
			order = append(order, link)
		}
		links[link] = append(links[link], i)
	}

	wg := &sync.WaitGroup{}
	for _, link := range order {
		wg.Add(1)
		go func(indexes []int) {
			defer wg.Done()
			for _, i := range indexes {
				if ctx.Err() != nil {
					return
				}
				outcomes[i] = c.pollDevice(jobs[i])
			}
		}(links[link])
	}
	wg.Wait()
}

// pollDevice walks OPEN_TRANSPORT, READ_GROUPS and CLOSE_TRANSPORT for one
// device, ending in DONE or FAILED.
func (c *Collector) pollDevice(j job) (o outcome) {
	d := j.device
	start := c.now()
	o.status = &device.Status{Device: d, State: device.StateFailed, LastCycle: start}

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: panic reading %s: %v", constant.ErrCycle, d, p)
			klog.ErrorS(err, "Recovered device read", "device", d)
			o.record = nil
			o.status.State = device.StateFailed
			o.status.Error = err.Error()
		}
	}()

	if j.err != nil {
		klog.V(2).InfoS("Failed to load register map, skipping device", "device", d, "err", j.err)
		o.status.Error = j.err.Error()
		return o
	}

	session, err := c.opener.Open(d)
	if err != nil {
		klog.V(2).InfoS("Failed to open device link, skipping device", "device", d, "link", d.Link(), "err", err)
		c.metrics.RecordOpenFailure(d.String())
		o.status.Error = err.Error()
		return o
	}

	record := runtime.NewDeviceRecord(d.ID, d.Name, len(j.rm.Groups))
	func() {
		defer func() {
			if err := session.Close(); err != nil {
				klog.V(2).InfoS("Failed to close device link", "device", d, "err", err)
			}
		}()
		for i, g := range j.rm.Groups {
			if i > 0 && c.interReadPause > 0 {
				c.sleep(c.interReadPause)
			}
			value, ok := c.reader.ReadWithRetry(session, d, g)
			if !ok {
				value = nil
			}
			record.Set(g.Name, value)
		}
	}()
	record.ReadTime = c.now().Sub(start)

	absent := record.Absent()
	c.metrics.RecordDevice(d.String(), record.ReadTime, absent)
	klog.V(4).InfoS("Read device", "device", d, "readTime", record.ReadTime, "absent", absent)

	o.record = record
	o.status.State = device.StateDone
	o.status.ReadTime = record.ReadTime.Seconds()
	o.status.Absent = absent
	return o
}
