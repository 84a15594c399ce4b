package middleware

import (
	"log"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/webpool/core/http"
	"github.com/searchktools/webpool/core/observability"
	"github.com/searchktools/webpool/core/router"
)

// Chain composes middleware around h. The first middleware is the outermost.
func Chain(h router.Handler, mws ...router.Middleware) router.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recovery turns a handler panic into a JSON 500 response
func Recovery() router.Middleware {
	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(req *http.Request) (resp *http.Response) {
			defer func() {
				if err := recover(); err != nil {
					log.Printf("Panic recovered: %s %s: %v\n%s", req.RawMethod, req.Path, err, debug.Stack())
					resp = http.JSON(500, "").WithString(`{"error": "Internal Server Error"}`)
				}
			}()
			return next.Serve(req)
		})
	}
}

// Logger logs method, path, status and latency of every request
func Logger() router.Middleware {
	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(req *http.Request) *http.Response {
			start := time.Now()
			resp := next.Serve(req)
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			log.Printf("[%s] %s %d %v", req.RawMethod, req.Path, status, time.Since(start))
			return resp
		})
	}
}

// RequestID stamps every response with a sequential X-Request-ID
func RequestID() router.Middleware {
	var counter atomic.Uint64

	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(req *http.Request) *http.Response {
			id := counter.Add(1)
			resp := next.Serve(req)
			if resp != nil {
				resp.WithHeader("X-Request-ID", strconv.FormatUint(id, 10))
			}
			return resp
		})
	}
}

// Metrics records every request in m under the route pattern r resolves it
// to, so unknown paths share one entry.
func Metrics(m *observability.Monitor, r *router.Router) router.Middleware {
	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(req *http.Request) *http.Response {
			start := time.Now()
			resp := next.Serve(req)
			status := 500
			if resp != nil {
				status = resp.StatusCode
			}
			m.RecordRequest(r.Pattern(req), time.Since(start), status)
			return resp
		})
	}
}

// RateLimiter allows requestsPerSecond requests per one-second window and
// answers the rest with 429
func RateLimiter(requestsPerSecond int) router.Middleware {
	var (
		tokens     = requestsPerSecond
		lastRefill = time.Now()
		mu         sync.Mutex
	)

	allow := func() bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Sub(lastRefill) > time.Second {
			tokens = requestsPerSecond
			lastRefill = now
		}
		if tokens > 0 {
			tokens--
			return true
		}
		return false
	}

	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(req *http.Request) *http.Response {
			if !allow() {
				return http.JSON(429, "").WithString(`{"error": "Too Many Requests"}`)
			}
			return next.Serve(req)
		})
	}
}
