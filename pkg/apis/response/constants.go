package response

type ErrCode int

const (
	_                       ErrCode = 10000 + iota
	ErrCodeMalformedJSON            // 10001
	ErrCodeInvalidParameter         // 10002
	ErrCodeResourceNotFound         // 10003
	ErrCodeUnavailable              // 10004
)

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end, and append comment of number
// Meanwhile, the corresponding error message SHOULD be appended in response.errors
// The order MUST be consistent between them
