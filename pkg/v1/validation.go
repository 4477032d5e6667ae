package v1

import (
	"energylogger/pkg/runtime/constant"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

func ValidateDeviceList(dl *DeviceList) field.ErrorList {
	var allErrs field.ErrorList
	root := field.NewPath("devices")
	ids := sets.New[int]()
	for i, d := range dl.Devices {
		p := root.Index(i)
		if d == nil {
			allErrs = append(allErrs, field.Required(p, ""))
			continue
		}
		if ids.Has(d.ID) {
			allErrs = append(allErrs, field.Duplicate(p.Child("id"), d.ID))
		}
		ids.Insert(d.ID)
		allErrs = append(allErrs, ValidateDevice(d, p)...)
	}
	return allErrs
}

func ValidateDevice(d *Device, p *field.Path) field.ErrorList {
	var allErrs field.ErrorList
	if d.ID < 1 || d.ID > 247 {
		allErrs = append(allErrs, field.Invalid(p.Child("id"), d.ID, "must be between 1 and 247"))
	}
	if _, ok := constant.TransportKindToString[d.Transport]; !ok {
		allErrs = append(allErrs, field.NotSupported(p.Child("transport"), d.Transport, keys(constant.StringToTransportKind)))
	}
	if _, ok := constant.FunctionCodeToString[d.Function]; !ok {
		allErrs = append(allErrs, field.NotSupported(p.Child("function"), d.Function, keys(constant.StringToFunctionCode)))
	}
	if len(d.Type) == 0 {
		allErrs = append(allErrs, field.Required(p.Child("type"), "register map reference"))
	}

	switch d.Transport {
	case constant.TransportRtu:
		if len(d.Port) == 0 {
			allErrs = append(allErrs, field.Required(p.Child("port"), "serial device path"))
		}
		if d.BaudRate <= 0 {
			allErrs = append(allErrs, field.Invalid(p.Child("baudrate"), d.BaudRate, "must be positive"))
		}
		if d.ByteSize < 5 || d.ByteSize > 8 {
			allErrs = append(allErrs, field.Invalid(p.Child("bytesize"), d.ByteSize, "must be between 5 and 8"))
		}
	case constant.TransportTcp, constant.TransportRtuOverTcp:
		if len(d.Host) == 0 {
			allErrs = append(allErrs, field.Required(p.Child("host"), ""))
		}
		if d.TcpPort < 1 || d.TcpPort > 65535 {
			allErrs = append(allErrs, field.Invalid(p.Child("tcpPort"), d.TcpPort, "must be a valid port"))
		}
	}
	return allErrs
}

func ValidateSinkList(sl *SinkList, knownTypes []string) field.ErrorList {
	var allErrs field.ErrorList
	root := field.NewPath("sinks")
	names := sets.New[string]()
	types := sets.New[string](knownTypes...)
	for i, s := range sl.Sinks {
		p := root.Index(i)
		if s == nil {
			allErrs = append(allErrs, field.Required(p, ""))
			continue
		}
		if len(s.Name) == 0 {
			allErrs = append(allErrs, field.Required(p.Child("name"), ""))
		} else if names.Has(s.Name) {
			allErrs = append(allErrs, field.Duplicate(p.Child("name"), s.Name))
		}
		names.Insert(s.Name)
		if knownTypes != nil && !types.Has(s.Type) {
			allErrs = append(allErrs, field.NotSupported(p.Child("type"), s.Type, knownTypes))
		}
		if s.Cadence < 1 {
			allErrs = append(allErrs, field.Invalid(p.Child("cadence"), s.Cadence, "must be at least 1"))
		}
		if s.WriteTimeout.Duration < 0 {
			allErrs = append(allErrs, field.Invalid(p.Child("writeTimeout"), s.WriteTimeout.Duration.String(), "must not be negative"))
		}
	}
	return allErrs
}

func keys[T comparable](m map[string]T) []string {
	return sets.List(sets.KeySet(m))
}
