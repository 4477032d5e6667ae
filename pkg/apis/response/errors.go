package response

var errors = map[ErrCode]string{
	ErrCodeMalformedJSON:    "The JSON you provided was not well-formed or did not validate against our published format.",
	ErrCodeInvalidParameter: "Invalid parameter %s.",
	ErrCodeResourceNotFound: "Resource %s not found.",
	ErrCodeUnavailable:      "%s is unavailable.",
}

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: errors[ErrCodeMalformedJSON],
}
