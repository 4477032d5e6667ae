package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"energylogger/pkg/runtime"
	"energylogger/pkg/runtime/constant"
	"energylogger/pkg/sink"
	"energylogger/pkg/utils/uuidutil"
	v1 "energylogger/pkg/v1"
	paho "github.com/eclipse/paho.mqtt.golang"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
)

const (
	Type = "mqtt"

	defaultTopicPrefix    = "energylogger"
	defaultQoS            = 1
	defaultConnectTimeout = 10 * time.Second
	defaultKeepAlive      = 60 * time.Second
	disconnectQuiesce     = 250
)

type Params struct {
	Broker         string        `json:"broker"`
	ClientID       string        `json:"clientId"`
	Username       string        `json:"username"`
	Password       string        `json:"password"`
	TopicPrefix    string        `json:"topicPrefix"`
	QoS            byte          `json:"qos"`
	Retained       bool          `json:"retained"`
	ConnectTimeout time.Duration `json:"connectTimeout"`
}

func (p *Params) setDefaults() {
	if p.ClientID == "" {
		p.ClientID = uuidutil.ClientID(defaultTopicPrefix)
	}
	if p.TopicPrefix == "" {
		p.TopicPrefix = defaultTopicPrefix
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = defaultConnectTimeout
	}
}

// newClient is replaced in tests.
var newClient = paho.NewClient

// Sink publishes one message per device on <topicPrefix>/<id>.
type Sink struct {
	name   string
	params *Params
	client paho.Client
}

func New(s *v1.Sink) (sink.Sink, error) {
	p := &Params{QoS: defaultQoS}
	if err := sink.DecodeParams(s.Params, p); err != nil {
		return nil, err
	}
	if p.Broker == "" {
		return nil, fmt.Errorf("%w: %s: broker is required", constant.ErrConfig, s.Name)
	}
	if p.QoS > 2 {
		return nil, fmt.Errorf("%w: %s: invalid qos %d", constant.ErrConfig, s.Name, p.QoS)
	}
	p.setDefaults()

	opts := paho.NewClientOptions().
		AddBroker(p.Broker).
		SetClientID(p.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(p.ConnectTimeout).
		SetKeepAlive(defaultKeepAlive).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			klog.V(2).InfoS("Lost connection to MQTT broker", "sink", s.Name, "broker", p.Broker, "err", err)
		})
	if p.Username != "" {
		opts.SetUsername(p.Username)
		opts.SetPassword(p.Password)
	}
	return &Sink{name: s.Name, params: p, client: newClient(opts)}, nil
}

func (s *Sink) Topic(id string) string {
	return s.params.TopicPrefix + "/" + id
}

func (s *Sink) Write(ctx context.Context, points []runtime.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := s.connect(ctx); err != nil {
		return err
	}

	type pending struct {
		topic string
		token paho.Token
	}
	var errs []error
	tokens := make([]pending, 0, len(points))
	for _, p := range points {
		topic := s.Topic(p.Tags["id"])
		payload, err := json.Marshal(runtime.NewPublishData(p.Tags["device"], p))
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", topic, err))
			continue
		}
		tokens = append(tokens, pending{topic: topic, token: s.client.Publish(topic, s.params.QoS, s.params.Retained, payload)})
	}

	for _, p := range tokens {
		if err := wait(ctx, p.token); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", p.topic, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

func (s *Sink) connect(ctx context.Context) error {
	if s.client.IsConnectionOpen() {
		return nil
	}
	if err := wait(ctx, s.client.Connect()); err != nil {
		return fmt.Errorf("connect %s: %w", s.params.Broker, err)
	}
	klog.V(1).InfoS("Connected to MQTT broker", "sink", s.name, "broker", s.params.Broker)
	return nil
}

func (s *Sink) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(disconnectQuiesce)
	}
	return nil
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
