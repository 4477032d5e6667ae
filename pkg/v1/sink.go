package v1

import (
	"reflect"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

const DefaultWriteTimeout = 10 * time.Second

// Sink describes one downstream writer. Params are decoded by the sink type.
type Sink struct {
	Name         string                 `json:"name"`
	Type         string                 `json:"type"`
	Cadence      int                    `json:"cadence"`
	WriteTimeout metav1.Duration        `json:"writeTimeout"`
	Params       map[string]interface{} `json:"params,omitempty"`
}

type SinkList struct {
	Sinks []*Sink `json:"sinks"`
}

func (s *Sink) SetDefaults() {
	if s.Cadence == 0 {
		s.Cadence = 1
	}
	if s.WriteTimeout.Duration == 0 {
		s.WriteTimeout.Duration = DefaultWriteTimeout
	}
}

// Equal reports whether two descriptors configure the same writer.
func (s *Sink) Equal(o *Sink) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Name == o.Name &&
		s.Type == o.Type &&
		s.Cadence == o.Cadence &&
		s.WriteTimeout == o.WriteTimeout &&
		reflect.DeepEqual(s.Params, o.Params)
}

// ParseSinks decodes a sink definition file. knownTypes restricts the
// accepted sink types; nil accepts any.
func ParseSinks(data []byte, knownTypes []string) (*SinkList, error) {
	sl := &SinkList{}
	if err := yaml.Unmarshal(data, sl); err != nil {
		return nil, err
	}
	for _, s := range sl.Sinks {
		if s != nil {
			s.SetDefaults()
		}
	}
	if errs := ValidateSinkList(sl, knownTypes); len(errs) > 0 {
		return nil, errs.ToAggregate()
	}
	return sl, nil
}
