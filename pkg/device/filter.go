package device

import (
	"strings"

	"energylogger/pkg/runtime/constant"
	v1 "energylogger/pkg/v1"
	"github.com/mitchellh/mapstructure"
	"k8s.io/klog/v2"
)

type NameFilterFunc struct {
	Eq         string
	In         []string
	Contains   string
	StartsWith string
	EndsWith   string
}

// Filter selects devices for listing. Name is either a plain string or a
// map decodable into NameFilterFunc.
type Filter struct {
	Name      interface{}
	ID        int
	Transport string
	Link      string
}

type predicateType func(d *v1.Device) bool

func ParseFilter(filter *Filter) []predicateType {
	predicates := make([]predicateType, 0)
	if filter == nil {
		return predicates
	}

	// id
	if filter.ID > 0 {
		predicates = append(predicates, func(d *v1.Device) bool {
			return d.ID == filter.ID
		})
	}

	// transport
	if len(filter.Transport) > 0 {
		tk, ok := constant.StringToTransportKind[filter.Transport]
		predicates = append(predicates, func(d *v1.Device) bool {
			return ok && d.Transport == tk
		})
	}

	// link
	if len(filter.Link) > 0 {
		predicates = append(predicates, func(d *v1.Device) bool {
			return d.Link() == filter.Link
		})
	}

	// name
	if filter.Name == nil {
		return predicates
	}
	if name, ok := filter.Name.(string); ok {
		predicates = append(predicates, func(d *v1.Device) bool {
			return name == d.Name
		})
		return predicates
	}

	var ff NameFilterFunc
	if err := mapstructure.Decode(filter.Name, &ff); err != nil {
		klog.V(3).InfoS("Failed to parse filter.name", "err", err)
	}
	// eq
	if len(ff.Eq) > 0 {
		predicates = append(predicates, func(d *v1.Device) bool {
			return ff.Eq == d.Name
		})
	}
	// in
	if len(ff.In) > 0 {
		predicates = append(predicates, func(d *v1.Device) bool {
			for _, name := range ff.In {
				if name == d.Name {
					return true
				}
			}
			return false
		})
	}
	// contains
	if len(ff.Contains) > 0 {
		predicates = append(predicates, func(d *v1.Device) bool {
			return strings.Contains(d.Name, ff.Contains)
		})
	}
	// startsWith
	if len(ff.StartsWith) > 0 {
		predicates = append(predicates, func(d *v1.Device) bool {
			return strings.HasPrefix(d.Name, strings.TrimSpace(ff.StartsWith))
		})
	}
	// endsWith
	if len(ff.EndsWith) > 0 {
		predicates = append(predicates, func(d *v1.Device) bool {
			return strings.HasSuffix(d.Name, strings.TrimSpace(ff.EndsWith))
		})
	}
	return predicates
}
