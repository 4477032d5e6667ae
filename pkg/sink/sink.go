package sink

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"energylogger/pkg/runtime"
	"energylogger/pkg/runtime/constant"
	v1 "energylogger/pkg/v1"
	"github.com/mitchellh/mapstructure"
)

const (
	DefaultMeasurement = "energy"
	measurementParam   = "measurement"
)

// Sink accepts a batch of points. Write must honour ctx and must not retain
// points after it returns.
type Sink interface {
	Write(ctx context.Context, points []runtime.Point) error
	Close() error
}

// Factory builds a sink from its descriptor. It must not block on the
// network; connections are established on first write.
type Factory func(s *v1.Sink) (Sink, error)

type Factories map[string]Factory

func (f Factories) Types() []string {
	types := make([]string, 0, len(f))
	for t := range f {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (f Factories) New(s *v1.Sink) (Sink, error) {
	factory, ok := f[s.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", constant.ErrConfig, constant.ErrSinkType, s.Type)
	}
	return factory(s)
}

// Measurement returns the measurement name points for s are written under.
func Measurement(s *v1.Sink) string {
	if m, ok := s.Params[measurementParam].(string); ok && m != "" {
		return m
	}
	return DefaultMeasurement
}

// DecodeParams decodes the free form params of a sink into out, which must
// be a pointer to a struct tagged with json names.
func DecodeParams(params map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDurationHook,
		),
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(params); err != nil {
		return fmt.Errorf("%w: sink params: %w", constant.ErrConfig, err)
	}
	return nil
}

// secondsToDurationHook reads bare numbers as seconds.
func secondsToDurationHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	}
	return data, nil
}
