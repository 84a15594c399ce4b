package http

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HTTP header names used by the parser and the serializer
const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderConnection    = "Connection"
	HeaderServer        = "Server"
	HeaderAccept        = "Accept"
	HeaderHost          = "Host"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrIncomplete = errors.New("incomplete request")
)

// ParseErrorKind classifies a ParseError
type ParseErrorKind int

const (
	// KindBadRequest means the bytes can never form a valid request.
	KindBadRequest ParseErrorKind = iota
	// KindIncomplete means more bytes are needed before the header block ends.
	KindIncomplete
)

// ParseError is returned by ParseRequest. It matches ErrBadRequest or
// ErrIncomplete with errors.Is.
type ParseError struct {
	Kind   ParseErrorKind
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s", e.Unwrap(), e.Reason)
}

func (e *ParseError) Unwrap() error {
	if e.Kind == KindIncomplete {
		return ErrIncomplete
	}
	return ErrBadRequest
}

func badRequest(format string, args ...any) error {
	return &ParseError{Kind: KindBadRequest, Reason: fmt.Sprintf(format, args...)}
}

func incomplete(reason string) error {
	return &ParseError{Kind: KindIncomplete, Reason: reason}
}

// ParseRequest parses one request from data: the request line, header lines
// up to the first empty line, then the body. The body is cut at a declared
// Content-Length and otherwise takes every remaining byte.
func ParseRequest(data []byte) (*Request, error) {
	lineEnd := bytes.IndexByte(data, '\n')
	if lineEnd == -1 {
		return nil, incomplete("request line not terminated")
	}

	method, path, proto, err := parseRequestLine(trimCR(data[:lineEnd]))
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:    ParseMethod(method),
		RawMethod: method,
		Path:      path,
		Proto:     proto,
		Headers:   make(map[string]string),
	}

	rest := data[lineEnd+1:]
	for {
		end := bytes.IndexByte(rest, '\n')
		if end == -1 {
			return nil, incomplete("header block not terminated")
		}
		line := trimCR(rest[:end])
		rest = rest[end+1:]

		if len(line) == 0 {
			break
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		key := string(bytes.TrimSpace(line[:colon]))
		value := string(bytes.TrimSpace(line[colon+1:]))
		if key == "" {
			continue
		}
		req.Headers[key] = value
	}

	if v, ok := lookupFold(req.Headers, HeaderContentLength); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, badRequest("invalid Content-Length %q", v)
		}
		if len(rest) > n {
			rest = rest[:n]
		}
	}

	req.Body = make([]byte, len(rest))
	copy(req.Body, rest)

	return req, nil
}

// parseRequestLine splits "METHOD PATH PROTO" and validates the protocol token.
func parseRequestLine(line []byte) (method, path, proto string, err error) {
	fields := strings.Fields(string(line))
	if len(fields) != 3 {
		return "", "", "", badRequest("malformed request line %q", line)
	}
	if !validProto(fields[2]) {
		return "", "", "", badRequest("malformed protocol version %q", fields[2])
	}
	return fields[0], fields[1], fields[2], nil
}

// validProto accepts HTTP/<digit>.<digit>
func validProto(proto string) bool {
	if len(proto) != 8 || !strings.HasPrefix(proto, "HTTP/") {
		return false
	}
	return isDigit(proto[5]) && proto[6] == '.' && isDigit(proto[7])
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func trimCR(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\r' {
		return line[:len(line)-1]
	}
	return line
}
