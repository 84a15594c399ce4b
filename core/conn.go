package core

import (
	"errors"
	"io"
	"log"
	"net"
	"time"

	"github.com/searchktools/webpool/core/http"
)

var (
	errEmptyRequest    = errors.New("connection closed before any data")
	errRequestTooLarge = errors.New("request exceeds read buffer")
)

const (
	badRequestPage      = "<h1>400 - Bad Request</h1>"
	payloadTooLargePage = "<h1>413 - Payload Too Large</h1>"
)

// handleConn runs on a pool worker and owns conn until it is closed.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	req, in, err := s.readRequest(conn)

	var resp *http.Response
	switch {
	case err == nil:
		resp = s.router.Dispatch(req)
	case errors.Is(err, errEmptyRequest):
		s.monitor.RecordConnection(0, 0)
		return
	case errors.Is(err, errRequestTooLarge):
		s.monitor.RecordBadRequest()
		resp = http.NewResponse(413, "").WithString(payloadTooLargePage)
	default:
		s.monitor.RecordBadRequest()
		log.Printf("[server] bad request from %v: %v", conn.RemoteAddr(), err)
		resp = http.BadRequest().WithString(badRequestPage)
	}

	out := s.writeResponse(conn, resp, s.cfg.WriteTimeout)
	s.monitor.RecordConnection(in, out)
}

// readRequest reads until a full request (headers plus declared body) is
// buffered, the buffer is full, or the peer stops sending.
func (s *Server) readRequest(conn net.Conn) (*http.Request, int, error) {
	buf := s.buffers.Get(s.cfg.MaxRequestBytes)
	defer s.buffers.Put(buf)

	if s.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}

	n := 0
	for {
		m, rerr := conn.Read(buf[n:])
		n += m

		var req *http.Request
		var perr error = http.ErrIncomplete
		if n > 0 {
			req, perr = http.ParseRequest(buf[:n])
		}
		switch {
		case perr == nil && req.ContentLength() <= len(req.Body):
			return req, n, nil
		case perr != nil && !errors.Is(perr, http.ErrIncomplete):
			return nil, n, perr
		}

		if rerr != nil {
			if perr == nil {
				// body shorter than declared; keep what arrived
				return req, n, nil
			}
			if n == 0 {
				return nil, 0, errEmptyRequest
			}
			if errors.Is(rerr, io.EOF) {
				return nil, n, perr
			}
			return nil, n, rerr
		}
		if n == len(buf) {
			return nil, n, errRequestTooLarge
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, resp *http.Response, timeout time.Duration) int {
	resp.WithHeader(http.HeaderServer, s.cfg.Name).
		WithHeader(http.HeaderConnection, "close")

	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	n, err := resp.WriteTo(conn)
	if err != nil {
		log.Printf("[server] write to %v: %v", conn.RemoteAddr(), err)
	}
	return int(n)
}
