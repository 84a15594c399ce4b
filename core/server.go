package core

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"

	"github.com/searchktools/webpool/core/http"
	"github.com/searchktools/webpool/core/observability"
	"github.com/searchktools/webpool/core/pools"
	"github.com/searchktools/webpool/core/router"
)

var (
	ErrServerClosed = errors.New("server closed")
	ErrNilRouter    = errors.New("server: nil router")
)

// Defaults applied by NewServer to zero fields of ServerConfig. Workers has
// no default: it must be set.
const (
	DefaultMaxRequestBytes = 8192
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultName            = "webpool"

	// rejectWriteTimeout bounds the 503 written on the accept goroutine
	rejectWriteTimeout = 500 * time.Millisecond
)

// ServerConfig holds the tunables of a Server
type ServerConfig struct {
	Workers         int
	QueueSize       int
	MaxConnections  int // 0 means unlimited
	MaxRequestBytes int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	Name            string
	ReusePort       bool
}

func (c *ServerConfig) applyDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = pools.DefaultQueueSize
	}
	if c.MaxRequestBytes <= 0 {
		c.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
}

// ServerOption customizes a Server
type ServerOption func(*Server)

// WithMonitor makes the server record connection metrics into m
func WithMonitor(m *observability.Monitor) ServerOption {
	return func(s *Server) {
		s.monitor = m
	}
}

// Server accepts TCP connections and runs each one as a single job on a
// fixed-size thread pool: read, parse, dispatch, write, close.
type Server struct {
	cfg     ServerConfig
	router  *router.Router
	pool    *pools.ThreadPool
	buffers *pools.BytePool
	monitor *observability.Monitor

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	closing   atomic.Bool
}

// NewServer starts the worker pool. A worker count below one, including an
// unset one, fails with pools.ErrInvalidPoolSize before anything is started.
func NewServer(cfg ServerConfig, r *router.Router, opts ...ServerOption) (*Server, error) {
	if r == nil {
		return nil, ErrNilRouter
	}
	cfg.applyDefaults()

	s := &Server{
		cfg:       cfg,
		router:    r,
		buffers:   pools.NewBytePool(cfg.MaxRequestBytes),
		listeners: make(map[net.Listener]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.monitor == nil {
		s.monitor = observability.NewMonitor()
	}

	pool, err := pools.NewThreadPool(cfg.Workers, pools.WithQueueSize(cfg.QueueSize))
	if err != nil {
		return nil, err
	}
	s.pool = pool

	return s, nil
}

// Router returns the router requests are dispatched to
func (s *Server) Router() *router.Router {
	return s.router
}

// Monitor returns the metrics sink
func (s *Server) Monitor() *observability.Monitor {
	return s.monitor
}

// Addr returns the address of a listener currently being served, or nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ln := range s.listeners {
		return ln.Addr()
	}
	return nil
}

// Listen opens a TCP listener on addr with the server's socket options
func (s *Server) Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: listenControl(s.cfg.ReusePort)}
	return lc.Listen(ctx, "tcp", addr)
}

// ListenAndServe listens on addr and calls Serve
func (s *Server) ListenAndServe(addr string) error {
	ln, err := s.Listen(context.Background(), addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It always returns a
// non-nil error; after Shutdown that error is ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	if !s.track(ln) {
		ln.Close()
		return ErrServerClosed
	}
	defer s.untrack(ln)

	log.Printf("[server] %s listening on %s (%d workers)", s.cfg.Name, ln.Addr(), s.pool.Size())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				log.Printf("[server] accept error: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0
		s.submit(conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// submit hands conn to the pool as one job. A closed pool gets a 503.
func (s *Server) submit(conn net.Conn) {
	tuneConn(conn)
	err := s.pool.Execute(func() {
		s.handleConn(conn)
	})
	if err == nil {
		return
	}

	s.monitor.RecordRejected()
	log.Printf("[server] rejecting %v: %v", conn.RemoteAddr(), err)
	resp := http.ServiceUnavailable().WithString("<h1>503 - Service Unavailable</h1>")
	s.writeResponse(conn, resp, rejectWriteTimeout)
	conn.Close()
}

func (s *Server) track(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrack(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

// Shutdown closes every listener, then waits for the pool to finish all
// accepted connections or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	for ln := range s.listeners {
		if err := ln.Close(); err != nil {
			log.Printf("[server] closing listener %s: %v", ln.Addr(), err)
		}
	}
	s.mu.Unlock()

	log.Printf("[server] shutting down, waiting for %d workers", s.pool.Size())
	return s.pool.Shutdown(ctx)
}
