package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"energylogger/pkg/runtime"
	"energylogger/pkg/runtime/constant"
	"energylogger/pkg/sink"
	v1 "energylogger/pkg/v1"
	"github.com/nats-io/nats.go"
	"k8s.io/klog/v2"
)

const (
	Type = "nats"

	defaultSubject        = "energylogger.points"
	defaultName           = "energylogger"
	defaultConnectTimeout = 5 * time.Second
	reconnectWait         = 2 * time.Second
)

type Params struct {
	URL            string        `json:"url"`
	Subject        string        `json:"subject"`
	Name           string        `json:"name"`
	Token          string        `json:"token"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	ConnectTimeout time.Duration `json:"connectTimeout"`
}

func (p *Params) setDefaults() {
	if p.URL == "" {
		p.URL = nats.DefaultURL
	}
	if p.Subject == "" {
		p.Subject = defaultSubject
	}
	if p.Name == "" {
		p.Name = defaultName
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = defaultConnectTimeout
	}
}

func (p *Params) options() []nats.Option {
	opts := []nats.Option{
		nats.Name(p.Name),
		nats.Timeout(p.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
	}
	if p.User != "" {
		opts = append(opts, nats.UserInfo(p.User, p.Password))
	}
	if p.Token != "" {
		opts = append(opts, nats.Token(p.Token))
	}
	return opts
}

// Sink publishes every batch as one message on a single subject.
type Sink struct {
	name   string
	params *Params

	mu   sync.Mutex
	conn *nats.Conn
}

func New(s *v1.Sink) (sink.Sink, error) {
	p := &Params{}
	if err := sink.DecodeParams(s.Params, p); err != nil {
		return nil, err
	}
	p.setDefaults()
	if p.User != "" && p.Token != "" {
		return nil, fmt.Errorf("%w: %s: user and token are exclusive", constant.ErrConfig, s.Name)
	}
	return &Sink{name: s.Name, params: p}, nil
}

func (s *Sink) Write(ctx context.Context, points []runtime.Point) error {
	if len(points) == 0 {
		return nil
	}
	payload, err := Encode(points)
	if err != nil {
		return err
	}
	conn, err := s.connect()
	if err != nil {
		return err
	}
	if err := conn.Publish(s.params.Subject, payload); err != nil {
		return err
	}
	return conn.FlushWithContext(ctx)
}

func (s *Sink) connect() (*nats.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}
	conn, err := nats.Connect(s.params.URL, s.params.options()...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.params.URL, err)
	}
	klog.V(1).InfoS("Connected to NATS", "sink", s.name, "url", conn.ConnectedUrlRedacted())
	s.conn = conn
	return conn, nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

// Encode lays out a batch as a list of per device messages.
func Encode(points []runtime.Point) ([]byte, error) {
	batch := make([]*runtime.PublishData, 0, len(points))
	for _, p := range points {
		batch = append(batch, runtime.NewPublishData(p.Tags["device"], p))
	}
	return json.Marshal(batch)
}
