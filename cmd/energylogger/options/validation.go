package options

import (
	"strconv"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

func Validate(o *Options) []error {
	var errs field.ErrorList
	if len(o.Devices) == 0 {
		errs = append(errs, field.Required(field.NewPath("devices"), ""))
	}
	if len(o.Sinks) == 0 {
		errs = append(errs, field.Required(field.NewPath("sinks"), ""))
	}
	if o.Interval.Duration <= 0 {
		errs = append(errs, field.Invalid(field.NewPath("interval"), o.Interval.Duration.String(), "must be positive"))
	}
	if o.MaxCycles < 0 {
		errs = append(errs, field.Invalid(field.NewPath("maxCycles"), o.MaxCycles, "must not be negative"))
	}
	if o.InterReadPause.Duration < 0 {
		errs = append(errs, field.Invalid(field.NewPath("interReadPause"), o.InterReadPause.Duration.String(), "must not be negative"))
	}
	if len(o.Port) > 0 {
		if p, err := strconv.Atoi(o.Port); err != nil || p <= 0 || p > 65535 {
			errs = append(errs, field.Invalid(field.NewPath("port"), o.Port, "must be a port number"))
		}
	}
	if (len(o.CertFile) == 0) != (len(o.KeyFile) == 0) {
		errs = append(errs, field.Invalid(field.NewPath("certFile"), o.CertFile, "certificate and private key must be given together"))
	}

	result := make([]error, 0, len(errs)+1)
	for _, err := range errs {
		result = append(result, err)
	}
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		result = append(result, err)
	}
	return result
}
