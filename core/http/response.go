package http

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

const (
	ContentTypeHTML = "text/html"
	ContentTypeJSON = "application/json"
)

// Response is an outbound response built with chainable mutators. Headers
// keep insertion order; setting an existing key replaces it in place.
type Response struct {
	StatusCode int
	Reason     string
	Body       []byte

	headers []header
}

type header struct {
	key   string
	value string
}

// NewResponse creates a response with Content-Type text/html. An empty reason
// is filled from StatusText.
func NewResponse(code int, reason string) *Response {
	if reason == "" {
		reason = StatusText(code)
	}
	r := &Response{StatusCode: code, Reason: reason}
	return r.WithHeader(HeaderContentType, ContentTypeHTML)
}

func OK() *Response { return NewResponse(200, "OK") }

func Created() *Response { return NewResponse(201, "Created") }

func BadRequest() *Response { return NewResponse(400, "Bad Request") }

func NotFound() *Response { return NewResponse(404, "Not Found") }

func MethodNotAllowed() *Response { return NewResponse(405, "Method Not Allowed") }

func InternalServerError() *Response { return NewResponse(500, "Internal Server Error") }

func ServiceUnavailable() *Response { return NewResponse(503, "Service Unavailable") }

// JSON creates a response with Content-Type application/json. A later
// WithHeader call may still override the content type.
func JSON(code int, reason string) *Response {
	return NewResponse(code, reason).WithHeader(HeaderContentType, ContentTypeJSON)
}

// JSONValue marshals v as the body of a JSON response
func JSONValue(code int, v any) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSON(code, "").WithBody(data), nil
}

// WithBody sets the body
func (r *Response) WithBody(body []byte) *Response {
	r.Body = body
	return r
}

// WithString sets the body from a string
func (r *Response) WithString(body string) *Response {
	r.Body = []byte(body)
	return r
}

// WithHeader sets a header, replacing a previous value stored under the same key
func (r *Response) WithHeader(key, value string) *Response {
	for i := range r.headers {
		if r.headers[i].key == key {
			r.headers[i].value = value
			return r
		}
	}
	r.headers = append(r.headers, header{key: key, value: value})
	return r
}

// Header returns the value stored under key
func (r *Response) Header(key string) string {
	for _, h := range r.headers {
		if h.key == key {
			return h.value
		}
	}
	return ""
}

// HeaderKeys returns header keys in serialization order
func (r *Response) HeaderKeys() []string {
	keys := make([]string, len(r.headers))
	for i, h := range r.headers {
		keys[i] = h.key
	}
	return keys
}

// Bytes serializes the response. Content-Length always carries len(Body): an
// explicit value is rewritten in place, a missing one is appended.
func (r *Response) Bytes() []byte {
	buf := make([]byte, 0, 128+len(r.Body))

	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(r.StatusCode), 10)
	buf = append(buf, ' ')
	buf = append(buf, r.Reason...)
	buf = append(buf, "\r\n"...)

	length := strconv.Itoa(len(r.Body))
	wroteLength := false
	for _, h := range r.headers {
		value := h.value
		if strings.EqualFold(h.key, HeaderContentLength) {
			if wroteLength {
				continue
			}
			value = length
			wroteLength = true
		}
		buf = appendHeader(buf, h.key, value)
	}
	if !wroteLength {
		buf = appendHeader(buf, HeaderContentLength, length)
	}

	buf = append(buf, "\r\n"...)
	buf = append(buf, r.Body...)
	return buf
}

// WriteTo writes the serialized response to w
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

func appendHeader(buf []byte, key, value string) []byte {
	buf = append(buf, key...)
	buf = append(buf, ": "...)
	buf = append(buf, value...)
	return append(buf, "\r\n"...)
}

// StatusText returns the reason phrase for the given code
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Payload Too Large"
	case 429:
		return "Too Many Requests"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}
