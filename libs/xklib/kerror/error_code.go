package kerror

type ErrorCode string

const (
	EC_OK                ErrorCode = "OK"
	EC_UNKNOWN           ErrorCode = "UNKNOWN"
	EC_NOT_FOUND         ErrorCode = "NOT_FOUND"
	EC_INVALID_PARAMETER ErrorCode = "INVALID_PARAMETER"
	EC_CONFLICT          ErrorCode = "CONFLICT"
	EC_INTERNAL_ERROR    ErrorCode = "INTERNAL_ERROR"
	EC_CANCELLED         ErrorCode = "CANCELLED"
	EC_TIMEOUT           ErrorCode = "TIMEOUT"
	EC_NETWORK_ERR       ErrorCode = "NETWORK_ERR"
	EC_RETRYABLE         ErrorCode = "RETRYABLE"
	EC_UNAVAILABLE       ErrorCode = "UNAVAILABLE"
)

var httpErrorCodeMap = map[ErrorCode]int{
	EC_OK:                200,
	EC_UNKNOWN:           500,
	EC_NOT_FOUND:         404,
	EC_INVALID_PARAMETER: 400,
	EC_CONFLICT:          409,
	EC_INTERNAL_ERROR:    503,
	EC_CANCELLED:         499, // client closed request (nginx convention)
	EC_TIMEOUT:           408,
	EC_NETWORK_ERR:       504,
	EC_RETRYABLE:         429,
	EC_UNAVAILABLE:       503,
}

func (code ErrorCode) String() string {
	return string(code)
}

func (code ErrorCode) ToHttpErrorCode() int {
	if http, ok := httpErrorCodeMap[code]; ok {
		return http
	}
	return 503
}
