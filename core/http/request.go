package http

import (
	"strconv"
	"strings"
)

// Method is the enumerated request method
type Method uint8

const (
	// MethodUnsupported covers every token other than the four below. The raw
	// token stays available in Request.RawMethod.
	MethodUnsupported Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
)

// ParseMethod maps a request-line token to a Method. Matching is case-sensitive.
func ParseMethod(token string) Method {
	switch token {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	default:
		return MethodUnsupported
	}
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNSUPPORTED"
	}
}

// Request is a parsed inbound request. It is not modified after ParseRequest
// returns and owns all of its memory, so it may outlive the read buffer.
type Request struct {
	Method    Method
	RawMethod string
	Path      string
	Proto     string

	// Headers keys are kept exactly as received.
	Headers map[string]string

	Body []byte
}

// Header returns the value stored under key, compared byte for byte
func (r *Request) Header(key string) string {
	return r.Headers[key]
}

// ContentLength returns the declared Content-Length, or -1 when the request
// does not declare a valid one.
func (r *Request) ContentLength() int {
	v, ok := lookupFold(r.Headers, HeaderContentLength)
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

func lookupFold(headers map[string]string, key string) (string, bool) {
	if v, ok := headers[key]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
