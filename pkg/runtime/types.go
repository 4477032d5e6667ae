package runtime

import (
	"fmt"
	"math"
	"time"
)

// ReadTimeField carries the elapsed read time of a device, in seconds.
const ReadTimeField = "Read time"

type Measurement struct {
	Name string
	// Value is nil when the measurement could not be read this cycle.
	Value interface{}
}

// DeviceRecord is the outcome of reading one device in one cycle.
type DeviceRecord struct {
	ID       int
	Name     string
	Values   []Measurement
	ReadTime time.Duration
}

func NewDeviceRecord(id int, name string, size int) *DeviceRecord {
	return &DeviceRecord{ID: id, Name: name, Values: make([]Measurement, 0, size)}
}

func (r *DeviceRecord) Set(name string, value interface{}) {
	for i := range r.Values {
		if r.Values[i].Name == name {
			r.Values[i].Value = value
			return
		}
	}
	r.Values = append(r.Values, Measurement{Name: name, Value: value})
}

// Get returns the value of a measurement and whether the record has it at all.
func (r *DeviceRecord) Get(name string) (interface{}, bool) {
	for _, m := range r.Values {
		if m.Name == name {
			return m.Value, true
		}
	}
	return nil, false
}

// Present reports whether the measurement was read successfully.
func (r *DeviceRecord) Present(name string) bool {
	v, ok := r.Get(name)
	return ok && v != nil
}

func (r *DeviceRecord) Absent() int {
	n := 0
	for _, m := range r.Values {
		if m.Value == nil {
			n++
		}
	}
	return n
}

type Field struct {
	Key   string
	Value interface{}
}

// Point is the sink-neutral form of one device record.
type Point struct {
	Measurement string
	Tags        map[string]string
	Time        time.Time
	Fields      []Field
}

func (p *Point) Timestamp() string {
	return p.Time.UTC().Format(time.RFC3339Nano)
}

func (p *Point) FieldMap() map[string]interface{} {
	m := make(map[string]interface{}, len(p.Fields))
	for _, f := range p.Fields {
		m[f.Key] = f.Value
	}
	return m
}

// ToPoint transforms a record. Absent measurements and floats that are not
// finite are left out. Meters report "not available" as NaN, and no sink can
// store it. Multi-register passthrough values become one field per register.
func ToPoint(r *DeviceRecord, measurement string, cycleStart time.Time) Point {
	p := Point{
		Measurement: measurement,
		Tags: map[string]string{
			"id":     fmt.Sprint(r.ID),
			"device": r.Name,
		},
		Time:   cycleStart.UTC(),
		Fields: make([]Field, 0, len(r.Values)+1),
	}
	for _, m := range r.Values {
		switch v := m.Value.(type) {
		case nil:
		case float32:
			if !finite(float64(v)) {
				continue
			}
			p.Fields = append(p.Fields, Field{Key: m.Name, Value: v})
		case float64:
			if !finite(v) {
				continue
			}
			p.Fields = append(p.Fields, Field{Key: m.Name, Value: v})
		case []uint16:
			for i, w := range v {
				p.Fields = append(p.Fields, Field{Key: fmt.Sprintf("%s[%d]", m.Name, i), Value: w})
			}
		default:
			p.Fields = append(p.Fields, Field{Key: m.Name, Value: v})
		}
	}
	p.Fields = append(p.Fields, Field{Key: ReadTimeField, Value: r.ReadTime.Seconds()})
	return p
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func ToPoints(records []*DeviceRecord, measurement string, cycleStart time.Time) []Point {
	points := make([]Point, 0, len(records))
	for _, r := range records {
		points = append(points, ToPoint(r, measurement, cycleStart))
	}
	return points
}

type PublishData struct {
	Device  string  `json:"device,omitempty"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	Data []TimeSeriesData `json:"data"`
}

type TimeSeriesData struct {
	Timestamp string      `json:"timestamp"`
	Values    []PointData `json:"values"`
}

type PointData struct {
	DataPointId string      `json:"dataPointId"`
	Value       interface{} `json:"value"`
}

// NewPublishData lays out the points in the message format shared by the
// broker sinks.
func NewPublishData(device string, points ...Point) *PublishData {
	pd := &PublishData{Device: device, Payload: Payload{Data: make([]TimeSeriesData, 0, len(points))}}
	for i := range points {
		p := &points[i]
		values := make([]PointData, 0, len(p.Fields))
		for _, f := range p.Fields {
			values = append(values, PointData{DataPointId: f.Key, Value: f.Value})
		}
		pd.Payload.Data = append(pd.Payload.Data, TimeSeriesData{Timestamp: p.Timestamp(), Values: values})
	}
	return pd
}
