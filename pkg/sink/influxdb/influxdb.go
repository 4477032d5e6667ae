package influxdb

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"energylogger/pkg/runtime"
	"energylogger/pkg/runtime/constant"
	"energylogger/pkg/sink"
	v1 "energylogger/pkg/v1"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	Type = "influxdb"

	defaultHost = "localhost"
	defaultPort = 8086
)

// Params configures an InfluxDB sink. Either Token, Org and Bucket (2.x) or
// User, Password and Database (1.8 compatibility endpoint) are used.
type Params struct {
	URL  string `json:"url"`
	Host string `json:"host"`
	Port int    `json:"port"`

	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`

	User            string `json:"user"`
	Password        string `json:"password"`
	Database        string `json:"database"`
	RetentionPolicy string `json:"retentionPolicy"`
}

func (p *Params) serverURL() string {
	if p.URL != "" {
		return p.URL
	}
	host, port := p.Host, p.Port
	if host == "" {
		host = defaultHost
	}
	if port == 0 {
		port = defaultPort
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// credentials maps 1.8 style settings onto the 2.x write API.
func (p *Params) credentials() (token, org, bucket string) {
	if p.Bucket != "" || p.Database == "" {
		return p.Token, p.Org, p.Bucket
	}
	token = p.Token
	if token == "" && p.User != "" {
		token = p.User + ":" + p.Password
	}
	bucket = p.Database
	if p.RetentionPolicy != "" {
		bucket += "/" + p.RetentionPolicy
	}
	return token, "", bucket
}

type Sink struct {
	name   string
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

func New(s *v1.Sink) (sink.Sink, error) {
	p := &Params{}
	if err := sink.DecodeParams(s.Params, p); err != nil {
		return nil, err
	}
	token, org, bucket := p.credentials()
	if bucket == "" {
		return nil, fmt.Errorf("%w: %s: bucket or database is required", constant.ErrConfig, s.Name)
	}
	timeout := uint(s.WriteTimeout.Duration / time.Second)
	if timeout == 0 {
		timeout = 1
	}
	client := influxdb2.NewClientWithOptions(p.serverURL(), token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(timeout))
	return &Sink{
		name:   s.Name,
		client: client,
		writer: client.WriteAPIBlocking(org, bucket),
	}, nil
}

func (s *Sink) Write(ctx context.Context, points []runtime.Point) error {
	if len(points) == 0 {
		return nil
	}
	batch := make([]*write.Point, 0, len(points))
	for i := range points {
		batch = append(batch, toPoint(&points[i]))
	}
	return s.writer.WritePoint(ctx, batch...)
}

func (s *Sink) Close() error {
	s.client.Close()
	return nil
}

func toPoint(p *runtime.Point) *write.Point {
	wp := influxdb2.NewPointWithMeasurement(p.Measurement).SetTime(p.Time)
	for k, v := range p.Tags {
		wp.AddTag(k, v)
	}
	wp.SortTags()
	for _, f := range p.Fields {
		wp.AddField(f.Key, f.Value)
	}
	return wp
}
