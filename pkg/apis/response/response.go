package response

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

type responseError struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
	Err     error   `json:"-"`
}

func (re *responseError) Error() string {
	if re == nil {
		return ""
	}
	return `{"code": ` + strconv.Itoa(int(re.Code)) + `, "message": ` + strconv.Quote(re.Message) + `}`
}

func (re *responseError) GetCode() ErrCode {
	if re == nil {
		return 0
	}
	return re.Code
}

func (re *responseError) Unwrap() error {
	return re.Err
}

func IsResponseError(err error) bool {
	_, ok := err.(*responseError)
	return ok
}

// MultiError contains multiple errors and implements the error interface. Its
// zero value is ready to use. All its methods are goroutine safe.
type MultiError struct {
	mtx    sync.Mutex
	errors []error
}

func NewMultiError(err ...error) *MultiError {
	return &MultiError{
		errors: err,
	}
}

// Add adds an error to the MultiError.
func (e *MultiError) Add(err ...error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	e.errors = append(e.errors, err...)
}

// Len returns the number of errors added to the MultiError.
func (e *MultiError) Len() int {
	if e == nil {
		return 0
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()

	return len(e.errors)
}

func (e *MultiError) MarshalJSON() ([]byte, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	errs := make([]*responseError, 0, len(e.errors))
	for _, err := range e.errors {
		if re, ok := err.(*responseError); ok {
			errs = append(errs, re)
			continue
		}
		errs = append(errs, &responseError{Message: err.Error(), Err: err})
	}
	return json.Marshal(struct {
		Errors []*responseError `json:"errors"`
	}{
		Errors: errs,
	})
}

func (e *MultiError) Error() string {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	es := make([]string, 0, len(e.errors))
	for _, err := range e.errors {
		es = append(es, err.Error())
	}
	return strings.Join(es, "; ")
}

func generateErrorWrapper(code ErrCode, err error, s ...interface{}) *responseError {
	return &responseError{
		Code:    code,
		Message: fmt.Sprintf(errors[code], s...),
		Err:     err,
	}
}

func ErrInvalidParameter(name string, err error) *responseError {
	return generateErrorWrapper(ErrCodeInvalidParameter, err, name)
}

func ErrResourceNotFound(resource string) *responseError {
	return generateErrorWrapper(ErrCodeResourceNotFound, nil, resource)
}

func ErrUnavailable(what string, err error) *responseError {
	return generateErrorWrapper(ErrCodeUnavailable, err, what)
}
